package game

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"minegrid/internal/events"
)

type auctionRow struct {
	ID            int64
	SellerID      int64
	ItemID        int64
	StartingPrice int64
	CurrentPrice  int64
	BidderID      *int64
	BuyNowPrice   *int64
	EndsAt        time.Time
	Active        bool
}

const auctionColumns = `
	id, seller_id, item_id, starting_price, current_price,
	current_bidder_id, buy_now_price, ends_at, is_active`

func scanAuction(row pgx.Row) (*auctionRow, error) {
	var a auctionRow
	err := row.Scan(
		&a.ID, &a.SellerID, &a.ItemID, &a.StartingPrice, &a.CurrentPrice,
		&a.BidderID, &a.BuyNowPrice, &a.EndsAt, &a.Active,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func lockAuction(ctx context.Context, tx pgx.Tx, auctionID int64) (*auctionRow, error) {
	a, err := scanAuction(tx.QueryRow(ctx, `
		SELECT `+auctionColumns+`
		FROM game.auctions
		WHERE id = $1
		FOR UPDATE
	`, auctionID))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: auction %d", ErrNotFound, auctionID)
	}
	return a, err
}

// minimumBid is the lowest acceptable bid: always one above the current
// price, including the opening bid against the starting price.
func minimumBid(a *auctionRow) int64 {
	return a.CurrentPrice + 1
}

// CreateAuction withdraws one unit from the seller and opens a timed
// auction on it. Bids escrow diamonds until outbid or settled.
func (s *Service) CreateAuction(ctx context.Context, in CreateAuctionInput) (int64, error) {
	if in.StartingPrice < 1 {
		return 0, fmt.Errorf("%w: starting price must be at least 1", ErrInvalidInput)
	}
	if in.DurationHours < MinAuctionHours || in.DurationHours > MaxAuctionHours {
		return 0, fmt.Errorf("%w: duration must be %d..%d hours", ErrInvalidInput, MinAuctionHours, MaxAuctionHours)
	}
	if in.BuyNowPrice != 0 && in.BuyNowPrice < in.StartingPrice {
		return 0, fmt.Errorf("%w: buy-now below starting price", ErrInvalidInput)
	}
	var auctionID int64
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		it, err := getItemByCode(ctx, tx, in.ItemCode)
		if err != nil {
			return err
		}
		if _, err := lockPlayer(ctx, tx, in.SellerID); err != nil {
			return err
		}
		if err := takeInventory(ctx, tx, in.SellerID, it.ID); err != nil {
			return err
		}
		var buyNow *int64
		if in.BuyNowPrice > 0 {
			buyNow = &in.BuyNowPrice
		}
		endsAt := s.now().Add(time.Duration(in.DurationHours) * time.Hour)
		return tx.QueryRow(ctx, `
			INSERT INTO game.auctions
				(seller_id, item_id, starting_price, current_price, buy_now_price, ends_at, is_active)
			VALUES ($1, $2, $3, $3, $4, $5, true)
			RETURNING id
		`, in.SellerID, it.ID, in.StartingPrice, buyNow, endsAt).Scan(&auctionID)
	})
	if err != nil {
		return 0, err
	}
	s.publish(ctx, events.PlayerChanged(in.SellerID), events.AuctionChanged(auctionID))
	return auctionID, nil
}

// finalizeAuctionTx settles an expired auction under its row lock: the top
// bidder (whose diamonds are already escrowed) receives the item and the
// seller the taxed proceeds; with no bids the item returns to the seller.
// Idempotent through is_active.
func finalizeAuctionTx(ctx context.Context, tx pgx.Tx, a *auctionRow, now time.Time) error {
	if !a.Active || a.EndsAt.After(now) {
		return nil
	}
	if a.BidderID != nil {
		seller, err := lockPlayer(ctx, tx, a.SellerID)
		if err != nil {
			return err
		}
		proceeds := a.CurrentPrice - marketTax(a.CurrentPrice)
		seller.Diamonds += proceeds
		if err := addInventory(ctx, tx, *a.BidderID, a.ItemID, 1); err != nil {
			return err
		}
		if err := appendLedger(ctx, tx, a.SellerID, "auction_sale", 0, proceeds); err != nil {
			return err
		}
		if err := savePlayer(ctx, tx, seller); err != nil {
			return err
		}
	} else {
		if err := addInventory(ctx, tx, a.SellerID, a.ItemID, 1); err != nil {
			return err
		}
	}
	a.Active = false
	_, err := tx.Exec(ctx, `
		UPDATE game.auctions SET is_active = false WHERE id = $1
	`, a.ID)
	return err
}

// Bid places or tops a bid, or settles instantly when in.BuyNow is set.
// Touching an expired auction finalizes it in its own committed
// transaction, then reports it closed.
func (s *Service) Bid(ctx context.Context, in BidInput) (BidResult, error) {
	var out BidResult
	var sellerID int64
	var closed bool
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		closed = false
		a, err := lockAuction(ctx, tx, in.AuctionID)
		if err != nil {
			return err
		}
		now := s.now()
		if !a.Active || !a.EndsAt.After(now) {
			// Settle and commit; the closed error surfaces after.
			closed = true
			return finalizeAuctionTx(ctx, tx, a, now)
		}
		if a.SellerID == in.BidderID {
			return ErrSelfTrade
		}
		sellerID = a.SellerID

		if in.BuyNow {
			return s.buyNowTx(ctx, tx, a, in.BidderID, &out)
		}

		if in.Amount < minimumBid(a) {
			return ErrBidTooLow
		}
		bidder, prev, err := lockBidderAndPrevious(ctx, tx, in.BidderID, a.BidderID)
		if err != nil {
			return err
		}
		if bidder.Diamonds < in.Amount {
			return ErrNotEnoughGems
		}
		// Refund before debiting so a bidder topping their own bid only
		// fronts the difference.
		if prev != nil {
			prev.Diamonds += a.CurrentPrice
			if err := appendLedger(ctx, tx, prev.ID, "auction_refund", 0, a.CurrentPrice); err != nil {
				return err
			}
		}
		bidder.Diamonds -= in.Amount
		if err := appendLedger(ctx, tx, bidder.ID, "auction_bid", 0, -in.Amount); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE game.auctions
			SET current_price = $1, current_bidder_id = $2
			WHERE id = $3
		`, in.Amount, bidder.ID, a.ID); err != nil {
			return err
		}
		if prev != nil && prev.ID != bidder.ID {
			if err := savePlayer(ctx, tx, prev); err != nil {
				return err
			}
		}
		if err := savePlayer(ctx, tx, bidder); err != nil {
			return err
		}
		out = BidResult{
			AuctionID:    a.ID,
			CurrentPrice: in.Amount,
			Diamonds:     bidder.Diamonds,
			Outcome:      "bid",
		}
		return nil
	})
	if err != nil {
		return BidResult{}, err
	}
	if closed {
		s.publish(ctx, events.AuctionChanged(in.AuctionID))
		return BidResult{}, ErrAuctionClosed
	}
	s.publish(ctx, events.PlayerChanged(in.BidderID), events.PlayerChanged(sellerID), events.AuctionChanged(in.AuctionID))
	return out, nil
}

// lockBidderAndPrevious locks the new bidder and the outbid player in
// ascending id order. Either pointer may refer to the same row when a
// bidder tops their own bid.
func lockBidderAndPrevious(ctx context.Context, tx pgx.Tx, bidderID int64, prevID *int64) (*playerRow, *playerRow, error) {
	if prevID == nil {
		bidder, err := lockPlayer(ctx, tx, bidderID)
		return bidder, nil, err
	}
	if *prevID == bidderID {
		bidder, err := lockPlayer(ctx, tx, bidderID)
		return bidder, bidder, err
	}
	bidder, prev, err := lockPlayerPair(ctx, tx, bidderID, *prevID)
	return bidder, prev, err
}

// buyNowTx settles the auction at its buy-now price inside the caller's
// transaction: refund the standing bid, move funds and item, deactivate.
// All involved player rows lock in one ascending pass.
func (s *Service) buyNowTx(ctx context.Context, tx pgx.Tx, a *auctionRow, buyerID int64, out *BidResult) error {
	if a.BuyNowPrice == nil {
		return fmt.Errorf("%w: auction has no buy-now price", ErrInvalidInput)
	}
	price := *a.BuyNowPrice
	ids := []int64{buyerID, a.SellerID}
	if a.BidderID != nil {
		ids = append(ids, *a.BidderID)
	}
	players, err := lockPlayersAscending(ctx, tx, ids...)
	if err != nil {
		return err
	}
	buyer := players[buyerID]
	seller := players[a.SellerID]
	if a.BidderID != nil {
		prev := players[*a.BidderID]
		prev.Diamonds += a.CurrentPrice
		if err := appendLedger(ctx, tx, prev.ID, "auction_refund", 0, a.CurrentPrice); err != nil {
			return err
		}
	}
	if buyer.Diamonds < price {
		return ErrNotEnoughGems
	}
	buyer.Diamonds -= price
	if err := appendLedger(ctx, tx, buyer.ID, "auction_buy_now", 0, -price); err != nil {
		return err
	}
	proceeds := price - marketTax(price)
	seller.Diamonds += proceeds
	if err := appendLedger(ctx, tx, seller.ID, "auction_sale", 0, proceeds); err != nil {
		return err
	}
	if err := addInventory(ctx, tx, buyer.ID, a.ItemID, 1); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE game.auctions
		SET is_active = false, current_price = $1, current_bidder_id = $2
		WHERE id = $3
	`, price, buyer.ID, a.ID); err != nil {
		return err
	}
	for _, p := range players {
		if err := savePlayer(ctx, tx, p); err != nil {
			return err
		}
	}
	*out = BidResult{
		AuctionID:    a.ID,
		CurrentPrice: price,
		Diamonds:     buyer.Diamonds,
		Won:          true,
		Outcome:      "bought",
	}
	return nil
}

// GetAuction reads one auction, finalizing it first if it has expired.
func (s *Service) GetAuction(ctx context.Context, auctionID int64) (AuctionView, error) {
	var out AuctionView
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		a, err := lockAuction(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		return finalizeAuctionTx(ctx, tx, a, s.now())
	})
	if err != nil {
		return out, err
	}
	err = s.db.QueryRow(ctx, `
		SELECT a.id, it.item_code, it.name, p.username,
		       a.starting_price, a.current_price,
		       COALESCE(b.username, ''), COALESCE(a.buy_now_price, 0),
		       a.ends_at, a.is_active
		FROM game.auctions a
		JOIN game.items it ON it.id = a.item_id
		JOIN game.players p ON p.id = a.seller_id
		LEFT JOIN game.players b ON b.id = a.current_bidder_id
		WHERE a.id = $1
	`, auctionID).Scan(
		&out.ID, &out.ItemCode, &out.ItemName, &out.Seller,
		&out.StartingPrice, &out.CurrentPrice,
		&out.CurrentBidder, &out.BuyNowPrice,
		&out.EndsAt, &out.Active,
	)
	if err == pgx.ErrNoRows {
		return out, fmt.Errorf("%w: auction %d", ErrNotFound, auctionID)
	}
	return out, err
}

// ListAuctions sweeps expired auctions, then returns the open ones ending
// soonest first.
func (s *Service) ListAuctions(ctx context.Context) ([]AuctionView, error) {
	if _, err := s.FinalizeExpiredAuctions(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT a.id, it.item_code, it.name, p.username,
		       a.starting_price, a.current_price,
		       COALESCE(b.username, ''), COALESCE(a.buy_now_price, 0),
		       a.ends_at, a.is_active
		FROM game.auctions a
		JOIN game.items it ON it.id = a.item_id
		JOIN game.players p ON p.id = a.seller_id
		LEFT JOIN game.players b ON b.id = a.current_bidder_id
		WHERE a.is_active
		ORDER BY a.ends_at
		LIMIT 200
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuctionView
	for rows.Next() {
		var v AuctionView
		if err := rows.Scan(
			&v.ID, &v.ItemCode, &v.ItemName, &v.Seller,
			&v.StartingPrice, &v.CurrentPrice,
			&v.CurrentBidder, &v.BuyNowPrice,
			&v.EndsAt, &v.Active,
		); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// FinalizeExpiredAuctions settles every expired open auction, one
// transaction per auction so a single conflict cannot wedge the sweep.
// Used by the background worker and by list reads.
func (s *Service) FinalizeExpiredAuctions(ctx context.Context) (int, error) {
	now := s.now()
	rows, err := s.db.Query(ctx, `
		SELECT id FROM game.auctions
		WHERE is_active AND ends_at <= $1
		ORDER BY id
	`, now)
	if err != nil {
		return 0, err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	settled := 0
	for _, id := range ids {
		err := s.withTx(ctx, func(tx pgx.Tx) error {
			a, err := lockAuction(ctx, tx, id)
			if err != nil {
				return err
			}
			return finalizeAuctionTx(ctx, tx, a, now)
		})
		if err != nil {
			return settled, err
		}
		settled++
		s.publish(ctx, events.AuctionChanged(id))
	}
	return settled, nil
}
