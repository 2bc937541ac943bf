package game

import (
	"context"
	"math"

	"github.com/jackc/pgx/v5"

	"minegrid/internal/events"
)

// Click spends one energy and mints coins. All derived state (level, XP,
// boost expiry, loot) settles in the same transaction as the balance.
func (s *Service) Click(ctx context.Context, playerID int64) (ClickResult, error) {
	var out ClickResult
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		out = ClickResult{}
		p, err := lockPlayer(ctx, tx, playerID)
		if err != nil {
			return err
		}
		if p.Energy <= 0 {
			return ErrNoEnergy
		}
		buffs, err := loadSlotBuffs(ctx, tx, p)
		if err != nil {
			return err
		}
		_, prestigeMult, _, err := getPrestige(ctx, tx, playerID)
		if err != nil {
			return err
		}
		now := s.now()
		factor, stale := boostFactor(p.BoostMult, p.BoostUntil, now)
		if stale {
			p.BoostMult = 1.0
			p.BoostUntil = nil
		}

		gained := clickGain(p.ClickLevel, buffs.ClickCoins, factor, prestigeMult)
		p.Coins += gained
		p.Energy--

		luck := buffs.luckMultiplier()
		if s.nextFloat()*ClickDiamondRollRange <= luck {
			p.Diamonds++
			out.DiamondFound = true
		}

		p.ClickXP, p.ClickXPToNext, p.ClickLevel, out.LeveledUp =
			applyClickXP(p.ClickXP, p.ClickXPToNext, p.ClickLevel, gained)

		loot, err := s.rollLootDrop(ctx, tx, p.ID, luck)
		if err != nil {
			return err
		}
		out.Loot = loot

		if err := checkAchievementsTx(ctx, tx, p); err != nil {
			return err
		}
		if err := savePlayer(ctx, tx, p); err != nil {
			return err
		}
		out.Gained = gained
		out.Coins = p.Coins
		out.Diamonds = p.Diamonds
		out.Energy = p.Energy
		out.ClickLevel = p.ClickLevel
		out.ClickXP = p.ClickXP
		out.ClickXPToNext = p.ClickXPToNext
		out.BoostFactor = factor
		return nil
	})
	if err != nil {
		return ClickResult{}, err
	}
	s.publish(ctx, events.PlayerChanged(playerID))
	return out, nil
}

// rollLootDrop awards at most one droppable item per click. Items are
// walked in stable code order so repeated draws stay reproducible under a
// seeded source.
func (s *Service) rollLootDrop(ctx context.Context, tx pgx.Tx, playerID int64, luck float64) (string, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, item_code, drop_chance
		FROM game.items
		WHERE can_drop AND drop_chance > 0
		ORDER BY item_code
	`)
	if err != nil {
		return "", err
	}
	type drop struct {
		id     int64
		code   string
		chance float64
	}
	var drops []drop
	for rows.Next() {
		var d drop
		if err := rows.Scan(&d.id, &d.code, &d.chance); err != nil {
			rows.Close()
			return "", err
		}
		drops = append(drops, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return "", err
	}
	for _, d := range drops {
		if s.nextFloat()*100 < d.chance*luck {
			if err := addInventory(ctx, tx, playerID, d.id, 1); err != nil {
				return "", err
			}
			return d.code, nil
		}
	}
	return "", nil
}

// accrualPlan is the precomputed outcome of a mining collection.
type accrualPlan struct {
	WorkedHours     float64
	Coins           int64
	ElectricityUsed int64
}

// gateScale limits worked time to what the stored electricity can power.
// Returns the fraction of the elapsed period that actually ran.
func gateScale(needed, available int64) float64 {
	if needed <= 0 {
		return 1
	}
	if available <= 0 {
		return 0
	}
	if available >= needed {
		return 1
	}
	return float64(available) / float64(needed)
}

// planAccrual computes coins earned and electricity burned for an elapsed
// period. The requirement truncates to whole units, so short windows can
// run free; a period that needs power from an empty battery fails, and a
// partially powered one scales down.
func planAccrual(hours float64, coinsPerHour, drawPerHour, electricity int64, miningMult, prestigeMult float64) (accrualPlan, error) {
	needed := int64(float64(drawPerHour) * hours)
	if needed > 0 && electricity <= 0 {
		return accrualPlan{}, ErrNoElectricity
	}
	scale := gateScale(needed, electricity)
	worked := hours * scale
	used := needed
	if used > electricity {
		used = electricity
	}
	return accrualPlan{
		WorkedHours:     worked,
		Coins:           int64(float64(coinsPerHour) * worked * miningMult * prestigeMult),
		ElectricityUsed: used,
	}, nil
}

// diamondWhole splits an expected diamond count into the guaranteed part
// and the probability of one extra.
func diamondWhole(factor float64) (int64, float64) {
	whole := math.Floor(factor)
	return int64(whole), factor - whole
}

// CollectAccrual settles time-based mining income since the last
// collection. A collection with no active producers still advances the
// mining clock so idle accounts do not accumulate an unbounded window.
func (s *Service) CollectAccrual(ctx context.Context, playerID int64) (CollectResult, error) {
	var out CollectResult
	var noProducers bool
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		noProducers = false
		p, err := lockPlayer(ctx, tx, playerID)
		if err != nil {
			return err
		}
		now := s.now()
		hours := 0.0
		if p.LastMinedAt != nil {
			hours = now.Sub(*p.LastMinedAt).Hours()
		}
		if p.LastMinedAt != nil && hours < MineCooldownHours {
			return ErrTooSoon
		}
		if p.LastMinedAt == nil {
			hours = 0
		}

		rows, err := tx.Query(ctx, `
			SELECT it.mining_rate, it.power_draw, it.diamond_chance, inv.quantity
			FROM game.inventory inv
			JOIN game.items it ON it.id = inv.item_id
			WHERE inv.player_id = $1 AND it.item_type = $2 AND inv.is_active AND inv.quantity > 0
		`, playerID, ItemProducer)
		if err != nil {
			return err
		}
		type producer struct {
			rate, draw, qty int64
			diamondChance   float64
		}
		var producers []producer
		var coinsPerHour, drawPerHour int64
		for rows.Next() {
			var pr producer
			if err := rows.Scan(&pr.rate, &pr.draw, &pr.diamondChance, &pr.qty); err != nil {
				rows.Close()
				return err
			}
			producers = append(producers, pr)
			coinsPerHour += pr.rate * pr.qty
			drawPerHour += pr.draw * pr.qty
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if len(producers) == 0 {
			// Advance the clock and commit, then surface the condition.
			p.LastMinedAt = &now
			noProducers = true
			return savePlayer(ctx, tx, p)
		}

		buffs, err := loadSlotBuffs(ctx, tx, p)
		if err != nil {
			return err
		}
		_, prestigeMult, _, err := getPrestige(ctx, tx, playerID)
		if err != nil {
			return err
		}

		plan, err := planAccrual(hours, coinsPerHour, drawPerHour, p.Electricity, buffs.miningMultiplier(), prestigeMult)
		if err != nil {
			return err
		}
		p.Coins += plan.Coins
		p.Electricity -= plan.ElectricityUsed
		if p.Electricity < 0 {
			p.Electricity = 0
		}

		// Diamond chances run over the full elapsed window, not the
		// electricity-limited one.
		var diamonds int64
		for _, pr := range producers {
			if pr.diamondChance <= 0 {
				continue
			}
			whole, frac := diamondWhole(pr.diamondChance / 100 * hours * float64(pr.qty))
			diamonds += whole
			if frac > 0 && s.nextFloat() < frac {
				diamonds++
			}
		}
		p.Diamonds += diamonds
		p.LastMinedAt = &now

		if err := updateQuestProgressTx(ctx, tx, p, QuestMine, 1, now); err != nil {
			return err
		}
		if err := checkAchievementsTx(ctx, tx, p); err != nil {
			return err
		}
		if err := appendLedger(ctx, tx, p.ID, "mine_collect", plan.Coins, diamonds); err != nil {
			return err
		}
		if err := savePlayer(ctx, tx, p); err != nil {
			return err
		}
		out = CollectResult{
			CoinsEarned:    plan.Coins,
			DiamondsEarned: diamonds,
			HoursElapsed:   hours,
			EffectiveHours: plan.WorkedHours,
			Coins:          p.Coins,
			Diamonds:       p.Diamonds,
			Electricity:    p.Electricity,
		}
		return nil
	})
	if err != nil {
		return CollectResult{}, err
	}
	if noProducers {
		return CollectResult{}, ErrNoProducers
	}
	s.publish(ctx, events.PlayerChanged(playerID))
	return out, nil
}
