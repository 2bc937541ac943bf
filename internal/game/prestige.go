package game

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"minegrid/internal/events"
)

func getPrestige(ctx context.Context, q rowQuerier, playerID int64) (int, float64, *time.Time, error) {
	var count int
	var mult float64
	var last *time.Time
	err := q.QueryRow(ctx, `
		SELECT prestige_count, multiplier, last_prestige_at
		FROM game.prestige
		WHERE player_id = $1
	`, playerID).Scan(&count, &mult, &last)
	if err == pgx.ErrNoRows {
		return 0, 1.0, nil, nil
	}
	if err != nil {
		return 0, 0, nil, err
	}
	if mult <= 0 {
		mult = 1.0
	}
	return count, mult, last, nil
}

// PrestigeStatus reports the next reset cost and whether the player can
// afford it right now.
func (s *Service) PrestigeStatus(ctx context.Context, playerID int64) (PrestigeInfo, error) {
	var out PrestigeInfo
	count, mult, last, err := getPrestige(ctx, s.db, playerID)
	if err != nil {
		return out, err
	}
	var coins int64
	if err := s.db.QueryRow(ctx, `
		SELECT coins FROM game.players WHERE id = $1
	`, playerID).Scan(&coins); err == pgx.ErrNoRows {
		return out, ErrNotFound
	} else if err != nil {
		return out, err
	}
	cost := prestigeCost(count)
	return PrestigeInfo{
		Count:        count,
		Multiplier:   mult,
		NextCost:     cost,
		CanPrestige:  coins >= cost,
		LastPrestige: last,
	}, nil
}

// DoPrestige performs the soft reset: converts a fraction of banked coins
// to diamonds, wipes inventory and progress, and raises the permanent
// multiplier. One unit of work; a failed reset leaves the account intact.
func (s *Service) DoPrestige(ctx context.Context, playerID int64) (PrestigeResult, error) {
	var out PrestigeResult
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		p, err := lockPlayer(ctx, tx, playerID)
		if err != nil {
			return err
		}
		var count int
		var mult float64
		err = tx.QueryRow(ctx, `
			SELECT prestige_count, multiplier
			FROM game.prestige
			WHERE player_id = $1
			FOR UPDATE
		`, playerID).Scan(&count, &mult)
		if err == pgx.ErrNoRows {
			count, mult = 0, 1.0
			if _, err := tx.Exec(ctx, `
				INSERT INTO game.prestige (player_id, prestige_count, multiplier)
				VALUES ($1, 0, 1.0)
			`, playerID); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		cost := prestigeCost(count)
		if p.Coins < cost {
			return ErrNotEnoughCoins
		}

		earned := int64(float64(p.Coins) * PrestigeDiamondRate)
		spentCoins := p.Coins
		p.Diamonds += earned
		p.Coins = 0
		p.Energy = p.MaxEnergy
		p.Electricity = p.MaxElectricity
		p.ClickLevel = 1
		p.ClickXP = 0
		p.ClickXPToNext = BaseXPToNext
		p.BoostMult = 1.0
		p.BoostUntil = nil
		p.SkinID = nil
		p.AvatarID = nil
		p.Slot1ID = nil
		p.Slot2ID = nil
		p.Slot3ID = nil
		p.LastMinedAt = nil

		if _, err := tx.Exec(ctx, `
			DELETE FROM game.inventory WHERE player_id = $1
		`, playerID); err != nil {
			return err
		}

		count++
		mult += PrestigeMultiplierStep
		now := s.now()
		if _, err := tx.Exec(ctx, `
			UPDATE game.prestige
			SET prestige_count = $1, multiplier = $2, last_prestige_at = $3
			WHERE player_id = $4
		`, count, mult, now, playerID); err != nil {
			return err
		}
		if err := appendLedger(ctx, tx, playerID, "prestige", -spentCoins, earned); err != nil {
			return err
		}
		if err := savePlayer(ctx, tx, p); err != nil {
			return err
		}
		out = PrestigeResult{Count: count, Multiplier: mult, DiamondsEarned: earned}
		return nil
	})
	if err != nil {
		return PrestigeResult{}, err
	}
	s.publish(ctx, events.PlayerChanged(playerID), events.LeaderboardChanged())
	return out, nil
}
