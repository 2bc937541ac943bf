package game

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"minegrid/internal/events"
)

// BuyItem purchases one unit from the shop catalog for diamonds. Energy
// packs are consumed on the spot: they restore electricity to max and never
// enter the inventory. Finite stock decrements under the catalog row lock.
func (s *Service) BuyItem(ctx context.Context, playerID int64, itemCode string) (BuyItemResult, error) {
	var out BuyItemResult
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		it, err := lockItemByCode(ctx, tx, itemCode)
		if err != nil {
			return err
		}
		if it.Hidden || it.PriceDiamonds <= 0 {
			return ErrNotPurchasable
		}
		if it.Stock == 0 {
			return ErrOutOfStock
		}
		p, err := lockPlayer(ctx, tx, playerID)
		if err != nil {
			return err
		}
		if p.Diamonds < it.PriceDiamonds {
			return ErrNotEnoughGems
		}
		p.Diamonds -= it.PriceDiamonds

		restored := false
		if it.Type == ItemEnergyPack {
			p.Electricity = p.MaxElectricity
			restored = true
		} else {
			if err := addInventory(ctx, tx, playerID, it.ID, 1); err != nil {
				return err
			}
		}
		if it.Stock > 0 {
			if _, err := tx.Exec(ctx, `
				UPDATE game.items SET stock = stock - 1 WHERE id = $1
			`, it.ID); err != nil {
				return err
			}
		}
		if err := appendLedger(ctx, tx, playerID, "shop_buy", 0, -it.PriceDiamonds); err != nil {
			return err
		}
		if err := checkAchievementsTx(ctx, tx, p); err != nil {
			return err
		}
		if err := savePlayer(ctx, tx, p); err != nil {
			return err
		}
		out = BuyItemResult{ItemCode: it.Code, Diamonds: p.Diamonds, Restored: restored}
		return nil
	})
	if err != nil {
		return BuyItemResult{}, err
	}
	s.publish(ctx, events.PlayerChanged(playerID), events.ShopChanged())
	return out, nil
}

// SellToShop sells one owned unit back for its catalog sell price in
// diamonds. Selling advances the click quest counters.
func (s *Service) SellToShop(ctx context.Context, playerID int64, itemCode string) (SellResult, error) {
	var out SellResult
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		it, err := getItemByCode(ctx, tx, itemCode)
		if err != nil {
			return err
		}
		if it.SellPrice <= 0 {
			return ErrNotSellable
		}
		p, err := lockPlayer(ctx, tx, playerID)
		if err != nil {
			return err
		}
		if err := takeInventory(ctx, tx, playerID, it.ID); err != nil {
			return err
		}
		p.Diamonds += it.SellPrice
		if err := updateQuestProgressTx(ctx, tx, p, QuestClick, 1, s.now()); err != nil {
			return err
		}
		if err := appendLedger(ctx, tx, playerID, "shop_sell", 0, it.SellPrice); err != nil {
			return err
		}
		if err := checkAchievementsTx(ctx, tx, p); err != nil {
			return err
		}
		if err := savePlayer(ctx, tx, p); err != nil {
			return err
		}
		out = SellResult{ItemCode: it.Code, Earned: it.SellPrice, Diamonds: p.Diamonds}
		return nil
	})
	if err != nil {
		return SellResult{}, err
	}
	s.publish(ctx, events.PlayerChanged(playerID))
	return out, nil
}

// Equip binds an owned item to an equipment slot, or clears the slot when
// itemCode is empty. Slot and item type must agree.
func (s *Service) Equip(ctx context.Context, playerID int64, slot, itemCode string) error {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		p, err := lockPlayer(ctx, tx, playerID)
		if err != nil {
			return err
		}
		var target **int64
		switch slot {
		case SlotSkin:
			target = &p.SkinID
		case SlotAvatar:
			target = &p.AvatarID
		case SlotBuff1:
			target = &p.Slot1ID
		case SlotBuff2:
			target = &p.Slot2ID
		case SlotBuff3:
			target = &p.Slot3ID
		default:
			return fmt.Errorf("%w: unknown slot %q", ErrInvalidInput, slot)
		}
		if itemCode == "" {
			*target = nil
			return savePlayer(ctx, tx, p)
		}
		it, err := getItemByCode(ctx, tx, itemCode)
		if err != nil {
			return err
		}
		if !slotAccepts(slot, it.Type) {
			return ErrWrongSlot
		}
		var qty int64
		err = tx.QueryRow(ctx, `
			SELECT quantity FROM game.inventory
			WHERE player_id = $1 AND item_id = $2
		`, playerID, it.ID).Scan(&qty)
		if err == pgx.ErrNoRows || (err == nil && qty <= 0) {
			return ErrNotOwned
		}
		if err != nil {
			return err
		}
		id := it.ID
		*target = &id
		return savePlayer(ctx, tx, p)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events.PlayerChanged(playerID))
	return nil
}

// ToggleProducer flips whether an owned producer contributes to mining.
func (s *Service) ToggleProducer(ctx context.Context, playerID int64, itemCode string) (bool, error) {
	var active bool
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		it, err := getItemByCode(ctx, tx, itemCode)
		if err != nil {
			return err
		}
		if it.Type != ItemProducer {
			return fmt.Errorf("%w: only producers toggle", ErrInvalidInput)
		}
		err = tx.QueryRow(ctx, `
			UPDATE game.inventory
			SET is_active = NOT is_active
			WHERE player_id = $1 AND item_id = $2 AND quantity > 0
			RETURNING is_active
		`, playerID, it.ID).Scan(&active)
		if err == pgx.ErrNoRows {
			return ErrNotOwned
		}
		return err
	})
	if err != nil {
		return false, err
	}
	s.publish(ctx, events.PlayerChanged(playerID))
	return active, nil
}

// RefillEnergy trades diamonds for click energy, capped at max.
func (s *Service) RefillEnergy(ctx context.Context, playerID int64) (RefillResult, error) {
	var out RefillResult
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		p, err := lockPlayer(ctx, tx, playerID)
		if err != nil {
			return err
		}
		if p.Diamonds < EnergyRefillCost {
			return ErrNotEnoughGems
		}
		p.Diamonds -= EnergyRefillCost
		p.Energy += EnergyRefillAmount
		if p.Energy > p.MaxEnergy {
			p.Energy = p.MaxEnergy
		}
		if err := appendLedger(ctx, tx, playerID, "energy_refill", 0, -EnergyRefillCost); err != nil {
			return err
		}
		if err := savePlayer(ctx, tx, p); err != nil {
			return err
		}
		out = RefillResult{Energy: p.Energy, Diamonds: p.Diamonds}
		return nil
	})
	if err != nil {
		return RefillResult{}, err
	}
	s.publish(ctx, events.PlayerChanged(playerID))
	return out, nil
}

// ActivateBoost buys a temporary click multiplier. Re-activating while a
// boost runs extends the current expiry rather than restarting it.
func (s *Service) ActivateBoost(ctx context.Context, playerID int64) (BoostResult, error) {
	var out BoostResult
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		p, err := lockPlayer(ctx, tx, playerID)
		if err != nil {
			return err
		}
		if p.Diamonds < BoostCost {
			return ErrNotEnoughGems
		}
		p.Diamonds -= BoostCost
		now := s.now()
		start := now
		if p.BoostUntil != nil && p.BoostUntil.After(now) && p.BoostMult > 1 {
			start = *p.BoostUntil
		}
		until := start.Add(BoostDuration)
		p.BoostMult = BoostMultiplier
		p.BoostUntil = &until
		if err := appendLedger(ctx, tx, playerID, "boost", 0, -BoostCost); err != nil {
			return err
		}
		if err := savePlayer(ctx, tx, p); err != nil {
			return err
		}
		out = BoostResult{
			Multiplier:   p.BoostMult,
			BoostSeconds: int64(until.Sub(now).Seconds()),
			Diamonds:     p.Diamonds,
		}
		return nil
	})
	if err != nil {
		return BoostResult{}, err
	}
	s.publish(ctx, events.PlayerChanged(playerID))
	return out, nil
}

// ClaimDailyReward pays the streak table entry for today. One claim per
// UTC calendar day; a missed day restarts the streak.
func (s *Service) ClaimDailyReward(ctx context.Context, playerID int64) (DailyRewardResult, error) {
	var out DailyRewardResult
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		p, err := lockPlayer(ctx, tx, playerID)
		if err != nil {
			return err
		}
		now := s.now()
		streak, err := nextStreak(p.DailyStreak, p.LastDailyClaim, now)
		if err != nil {
			return err
		}
		reward := dailyRewards[streak-1]
		p.DailyStreak = streak
		p.LastDailyClaim = &now
		p.Coins += reward.Coins
		p.Diamonds += reward.Diamonds
		if err := appendLedger(ctx, tx, playerID, "daily_reward", reward.Coins, reward.Diamonds); err != nil {
			return err
		}
		if err := checkAchievementsTx(ctx, tx, p); err != nil {
			return err
		}
		if err := savePlayer(ctx, tx, p); err != nil {
			return err
		}
		out = DailyRewardResult{Streak: streak, Coins: reward.Coins, Diamonds: reward.Diamonds}
		return nil
	})
	if err != nil {
		return DailyRewardResult{}, err
	}
	s.publish(ctx, events.PlayerChanged(playerID))
	return out, nil
}

// RedeemPromo applies a promo code: bounded total uses, optional expiry,
// once per player.
func (s *Service) RedeemPromo(ctx context.Context, playerID int64, code string) (PromoResult, error) {
	var out PromoResult
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var (
			promoID         int64
			coins, diamonds int64
			maxUses, uses   int64
			expiresAt       *time.Time
		)
		err := tx.QueryRow(ctx, `
			SELECT id, reward_coins, reward_diamonds, max_uses, uses, expires_at
			FROM game.promo_codes
			WHERE code = $1
			FOR UPDATE
		`, code).Scan(&promoID, &coins, &diamonds, &maxUses, &uses, &expiresAt)
		if err == pgx.ErrNoRows {
			return fmt.Errorf("%w: promo code", ErrNotFound)
		}
		if err != nil {
			return err
		}
		if expiresAt != nil && !expiresAt.After(s.now()) {
			return ErrPromoExpired
		}
		if maxUses > 0 && uses >= maxUses {
			return ErrPromoExhausted
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO game.promo_redemptions (promo_id, player_id)
			VALUES ($1, $2)
			ON CONFLICT (promo_id, player_id) DO NOTHING
		`, promoID, playerID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrPromoUsed
		}
		if _, err := tx.Exec(ctx, `
			UPDATE game.promo_codes SET uses = uses + 1 WHERE id = $1
		`, promoID); err != nil {
			return err
		}
		p, err := lockPlayer(ctx, tx, playerID)
		if err != nil {
			return err
		}
		p.Coins += coins
		p.Diamonds += diamonds
		if err := appendLedger(ctx, tx, playerID, "promo", coins, diamonds); err != nil {
			return err
		}
		if err := checkAchievementsTx(ctx, tx, p); err != nil {
			return err
		}
		if err := savePlayer(ctx, tx, p); err != nil {
			return err
		}
		out = PromoResult{Coins: coins, Diamonds: diamonds}
		return nil
	})
	if err != nil {
		return PromoResult{}, err
	}
	s.publish(ctx, events.PlayerChanged(playerID))
	return out, nil
}
