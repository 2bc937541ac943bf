package game

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// Quest kinds.
const (
	QuestClick = "CLICK"
	QuestMine  = "MINE"
)

type questSeed struct {
	Code           string
	Title          string
	Type           string
	Goal           int64
	RewardCoins    int64
	RewardDiamonds int64
	RewardXP       int64
}

var defaultQuests = []questSeed{
	{"click_500", "Sell 500 items to the shop", QuestClick, 500, 1000, 2, 50},
	{"click_2k", "Sell 2000 items to the shop", QuestClick, 2000, 4000, 5, 150},
	{"mine_5", "Collect mining income 5 times", QuestMine, 5, 5000, 3, 100},
}

func utcDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ensureQuestsTx creates the daily quest set for a player. Existing rows
// are left untouched; resets happen lazily when progress is recorded.
func ensureQuestsTx(ctx context.Context, tx pgx.Tx, playerID int64, now time.Time) error {
	today := utcDate(now)
	for _, q := range defaultQuests {
		_, err := tx.Exec(ctx, `
			INSERT INTO game.quests
				(player_id, code, title, quest_type, goal, progress, reward_coins, reward_diamonds, reward_xp, reset_at, completed)
			VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, $9, false)
			ON CONFLICT (player_id, code) DO NOTHING
		`, playerID, q.Code, q.Title, q.Type, q.Goal, q.RewardCoins, q.RewardDiamonds, q.RewardXP, today)
		if err != nil {
			return err
		}
	}
	return nil
}

// updateQuestProgressTx advances every quest of the given kind for the
// locked player. Quests from a previous day reset before counting.
// Completion pays the reward bundle exactly once; reward XP is credited
// raw, without running the click leveling loop.
func updateQuestProgressTx(ctx context.Context, tx pgx.Tx, p *playerRow, questType string, delta int64, now time.Time) error {
	today := utcDate(now)
	rows, err := tx.Query(ctx, `
		SELECT id, goal, progress, reward_coins, reward_diamonds, reward_xp, reset_at, completed
		FROM game.quests
		WHERE player_id = $1 AND quest_type = $2
		FOR UPDATE
	`, p.ID, questType)
	if err != nil {
		return err
	}
	type questState struct {
		id, goal, progress          int64
		rewardCoins, rewardDiamonds int64
		rewardXP                    int64
		resetAt                     time.Time
		completed                   bool
	}
	var quests []questState
	for rows.Next() {
		var q questState
		if err := rows.Scan(&q.id, &q.goal, &q.progress, &q.rewardCoins, &q.rewardDiamonds, &q.rewardXP, &q.resetAt, &q.completed); err != nil {
			rows.Close()
			return err
		}
		quests = append(quests, q)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, q := range quests {
		if !q.resetAt.Equal(today) {
			q.progress = 0
			q.completed = false
			q.resetAt = today
		}
		if q.completed {
			continue
		}
		q.progress += delta
		if q.progress >= q.goal {
			q.completed = true
			p.Coins += q.rewardCoins
			p.Diamonds += q.rewardDiamonds
			p.ClickXP += q.rewardXP
			if err := appendLedger(ctx, tx, p.ID, "quest_reward", q.rewardCoins, q.rewardDiamonds); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, `
			UPDATE game.quests
			SET progress = $1, completed = $2, reset_at = $3
			WHERE id = $4
		`, q.progress, q.completed, q.resetAt, q.id); err != nil {
			return err
		}
	}
	return nil
}

// thresholdsMet reports whether every nonzero achievement threshold is
// satisfied. An achievement with no thresholds counts as met.
func thresholdsMet(targetCoins, targetDiamonds, targetProducers, coins, diamonds, producers int64) bool {
	if targetCoins > 0 && coins < targetCoins {
		return false
	}
	if targetDiamonds > 0 && diamonds < targetDiamonds {
		return false
	}
	if targetProducers > 0 && producers < targetProducers {
		return false
	}
	return true
}

// checkAchievementsTx unlocks any achievement whose thresholds the locked
// player now meets and grants its reward once. Safe to run inside every
// balance-affecting transaction.
func checkAchievementsTx(ctx context.Context, tx pgx.Tx, p *playerRow) error {
	producers, err := countProducers(ctx, tx, p.ID)
	if err != nil {
		return err
	}
	rows, err := tx.Query(ctx, `
		SELECT a.id, a.target_coins, a.target_diamonds, a.target_producers,
		       a.reward_coins, a.reward_diamonds
		FROM game.achievements a
		WHERE NOT EXISTS (
			SELECT 1 FROM game.player_achievements pa
			WHERE pa.player_id = $1 AND pa.achievement_id = a.id
		)
	`, p.ID)
	if err != nil {
		return err
	}
	type achState struct {
		id                          int64
		targetCoins, targetDiamonds int64
		targetProducers             int64
		rewardCoins, rewardDiamonds int64
	}
	var pending []achState
	for rows.Next() {
		var a achState
		if err := rows.Scan(&a.id, &a.targetCoins, &a.targetDiamonds, &a.targetProducers, &a.rewardCoins, &a.rewardDiamonds); err != nil {
			rows.Close()
			return err
		}
		pending = append(pending, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, a := range pending {
		if !thresholdsMet(a.targetCoins, a.targetDiamonds, a.targetProducers, p.Coins, p.Diamonds, producers) {
			continue
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO game.player_achievements (player_id, achievement_id, unlocked_at)
			VALUES ($1, $2, now())
			ON CONFLICT (player_id, achievement_id) DO NOTHING
		`, p.ID, a.id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			continue
		}
		p.Coins += a.rewardCoins
		p.Diamonds += a.rewardDiamonds
		if err := appendLedger(ctx, tx, p.ID, "achievement_reward", a.rewardCoins, a.rewardDiamonds); err != nil {
			return err
		}
	}
	return nil
}

// Quests returns the player's daily quest board. Rows from a previous day
// display as reset even though the stored row only resets on next touch.
func (s *Service) Quests(ctx context.Context, playerID int64) ([]QuestView, error) {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		return ensureQuestsTx(ctx, tx, playerID, s.now())
	})
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT code, title, quest_type, goal, progress, reset_at, completed
		FROM game.quests
		WHERE player_id = $1
		ORDER BY code
	`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	today := utcDate(s.now())
	var out []QuestView
	for rows.Next() {
		var v QuestView
		var resetAt time.Time
		if err := rows.Scan(&v.Code, &v.Title, &v.Type, &v.Goal, &v.Progress, &resetAt, &v.Completed); err != nil {
			return nil, err
		}
		if !resetAt.Equal(today) {
			v.Progress = 0
			v.Completed = false
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Achievements lists every achievement with the player's unlock state.
func (s *Service) Achievements(ctx context.Context, playerID int64) ([]AchievementView, error) {
	rows, err := s.db.Query(ctx, `
		SELECT a.code, a.title, pa.unlocked_at
		FROM game.achievements a
		LEFT JOIN game.player_achievements pa
			ON pa.achievement_id = a.id AND pa.player_id = $1
		ORDER BY a.code
	`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AchievementView
	for rows.Next() {
		var v AchievementView
		if err := rows.Scan(&v.Code, &v.Title, &v.UnlockedAt); err != nil {
			return nil, err
		}
		v.Unlocked = v.UnlockedAt != nil
		out = append(out, v)
	}
	return out, rows.Err()
}
