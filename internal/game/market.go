package game

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"minegrid/internal/events"
)

// CreateListing withdraws one unit from the seller's inventory and posts
// it at a fixed coin price.
func (s *Service) CreateListing(ctx context.Context, sellerID int64, itemCode string, price int64) (int64, error) {
	if price < 1 {
		return 0, fmt.Errorf("%w: price must be at least 1", ErrInvalidInput)
	}
	var listingID int64
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		it, err := getItemByCode(ctx, tx, itemCode)
		if err != nil {
			return err
		}
		if _, err := lockPlayer(ctx, tx, sellerID); err != nil {
			return err
		}
		if err := takeInventory(ctx, tx, sellerID, it.ID); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `
			INSERT INTO game.market_listings (seller_id, item_id, price)
			VALUES ($1, $2, $3)
			RETURNING id
		`, sellerID, it.ID, price).Scan(&listingID)
	})
	if err != nil {
		return 0, err
	}
	s.publish(ctx, events.PlayerChanged(sellerID), events.MarketChanged())
	return listingID, nil
}

// BuyListing settles a marketplace sale: buyer pays the full price, seller
// receives it minus the 10% tax, the item moves, the listing disappears.
// The listing row locks first, then both player rows in ascending id order.
func (s *Service) BuyListing(ctx context.Context, buyerID, listingID int64) error {
	var sellerID int64
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var itemID, price int64
		err := tx.QueryRow(ctx, `
			SELECT seller_id, item_id, price
			FROM game.market_listings
			WHERE id = $1
			FOR UPDATE
		`, listingID).Scan(&sellerID, &itemID, &price)
		if err == pgx.ErrNoRows {
			return fmt.Errorf("%w: listing %d", ErrNotFound, listingID)
		}
		if err != nil {
			return err
		}
		if sellerID == buyerID {
			return ErrSelfTrade
		}
		buyer, seller, err := lockPlayerPair(ctx, tx, buyerID, sellerID)
		if err != nil {
			return err
		}
		if buyer.Coins < price {
			return ErrNotEnoughCoins
		}
		proceeds := price - marketTax(price)
		buyer.Coins -= price
		seller.Coins += proceeds
		if err := addInventory(ctx, tx, buyerID, itemID, 1); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM game.market_listings WHERE id = $1
		`, listingID); err != nil {
			return err
		}
		if err := appendLedger(ctx, tx, buyerID, "market_buy", -price, 0); err != nil {
			return err
		}
		if err := appendLedger(ctx, tx, sellerID, "market_sale", proceeds, 0); err != nil {
			return err
		}
		if err := checkAchievementsTx(ctx, tx, buyer); err != nil {
			return err
		}
		if err := checkAchievementsTx(ctx, tx, seller); err != nil {
			return err
		}
		if err := savePlayer(ctx, tx, buyer); err != nil {
			return err
		}
		return savePlayer(ctx, tx, seller)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events.PlayerChanged(buyerID), events.PlayerChanged(sellerID), events.MarketChanged())
	return nil
}

// Listings returns open marketplace entries, newest first.
func (s *Service) Listings(ctx context.Context) ([]ListingView, error) {
	rows, err := s.db.Query(ctx, `
		SELECT l.id, it.item_code, it.name, p.username, l.price, l.created_at
		FROM game.market_listings l
		JOIN game.items it ON it.id = l.item_id
		JOIN game.players p ON p.id = l.seller_id
		ORDER BY l.created_at DESC
		LIMIT 200
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ListingView
	for rows.Next() {
		var v ListingView
		if err := rows.Scan(&v.ID, &v.ItemCode, &v.ItemName, &v.Seller, &v.Price, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
