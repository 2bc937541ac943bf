package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements is applied in order at startup. Everything is
// IF NOT EXISTS so repeated boots are harmless.
var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS game`,

	`CREATE TABLE IF NOT EXISTS game.players (
		id BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		api_token TEXT NOT NULL UNIQUE,
		coins BIGINT NOT NULL DEFAULT 0,
		diamonds BIGINT NOT NULL DEFAULT 0,
		energy BIGINT NOT NULL DEFAULT 1000,
		max_energy BIGINT NOT NULL DEFAULT 1000,
		electricity BIGINT NOT NULL DEFAULT 5000,
		max_electricity BIGINT NOT NULL DEFAULT 5000,
		click_level BIGINT NOT NULL DEFAULT 1,
		click_xp BIGINT NOT NULL DEFAULT 0,
		click_xp_to_next BIGINT NOT NULL DEFAULT 100,
		boost_multiplier DOUBLE PRECISION NOT NULL DEFAULT 1.0,
		boost_until TIMESTAMPTZ,
		skin_item_id BIGINT,
		avatar_item_id BIGINT,
		slot1_item_id BIGINT,
		slot2_item_id BIGINT,
		slot3_item_id BIGINT,
		last_mined_at TIMESTAMPTZ,
		last_daily_claim TIMESTAMPTZ,
		daily_streak INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS game.items (
		id BIGSERIAL PRIMARY KEY,
		item_code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		item_type TEXT NOT NULL,
		price_diamonds BIGINT NOT NULL DEFAULT 0,
		sell_price BIGINT NOT NULL DEFAULT 0,
		stock BIGINT NOT NULL DEFAULT -1,
		hidden BOOLEAN NOT NULL DEFAULT false,
		mining_rate BIGINT NOT NULL DEFAULT 0,
		power_draw BIGINT NOT NULL DEFAULT 0,
		diamond_chance DOUBLE PRECISION NOT NULL DEFAULT 0,
		buff_mining_speed DOUBLE PRECISION NOT NULL DEFAULT 0,
		buff_click_coins BIGINT NOT NULL DEFAULT 0,
		buff_luck DOUBLE PRECISION NOT NULL DEFAULT 0,
		can_drop BOOLEAN NOT NULL DEFAULT false,
		drop_chance DOUBLE PRECISION NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS game.inventory (
		id BIGSERIAL PRIMARY KEY,
		player_id BIGINT NOT NULL REFERENCES game.players(id),
		item_id BIGINT NOT NULL REFERENCES game.items(id),
		quantity BIGINT NOT NULL DEFAULT 0 CHECK (quantity >= 0),
		is_active BOOLEAN NOT NULL DEFAULT true,
		UNIQUE (player_id, item_id)
	)`,

	`CREATE TABLE IF NOT EXISTS game.market_listings (
		id BIGSERIAL PRIMARY KEY,
		seller_id BIGINT NOT NULL REFERENCES game.players(id),
		item_id BIGINT NOT NULL REFERENCES game.items(id),
		price BIGINT NOT NULL CHECK (price >= 1),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS game.auctions (
		id BIGSERIAL PRIMARY KEY,
		seller_id BIGINT NOT NULL REFERENCES game.players(id),
		item_id BIGINT NOT NULL REFERENCES game.items(id),
		starting_price BIGINT NOT NULL CHECK (starting_price >= 1),
		current_price BIGINT NOT NULL,
		current_bidder_id BIGINT REFERENCES game.players(id),
		buy_now_price BIGINT,
		ends_at TIMESTAMPTZ NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS auctions_open_idx
		ON game.auctions (ends_at) WHERE is_active`,

	`CREATE TABLE IF NOT EXISTS game.quests (
		id BIGSERIAL PRIMARY KEY,
		player_id BIGINT NOT NULL REFERENCES game.players(id),
		code TEXT NOT NULL,
		title TEXT NOT NULL,
		quest_type TEXT NOT NULL,
		goal BIGINT NOT NULL,
		progress BIGINT NOT NULL DEFAULT 0,
		reward_coins BIGINT NOT NULL DEFAULT 0,
		reward_diamonds BIGINT NOT NULL DEFAULT 0,
		reward_xp BIGINT NOT NULL DEFAULT 0,
		reset_at DATE NOT NULL,
		completed BOOLEAN NOT NULL DEFAULT false,
		UNIQUE (player_id, code)
	)`,

	`CREATE TABLE IF NOT EXISTS game.achievements (
		id BIGSERIAL PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		target_coins BIGINT NOT NULL DEFAULT 0,
		target_diamonds BIGINT NOT NULL DEFAULT 0,
		target_producers BIGINT NOT NULL DEFAULT 0,
		reward_coins BIGINT NOT NULL DEFAULT 0,
		reward_diamonds BIGINT NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS game.player_achievements (
		id BIGSERIAL PRIMARY KEY,
		player_id BIGINT NOT NULL REFERENCES game.players(id),
		achievement_id BIGINT NOT NULL REFERENCES game.achievements(id),
		unlocked_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (player_id, achievement_id)
	)`,

	`CREATE TABLE IF NOT EXISTS game.prestige (
		player_id BIGINT PRIMARY KEY REFERENCES game.players(id),
		prestige_count INT NOT NULL DEFAULT 0,
		multiplier DOUBLE PRECISION NOT NULL DEFAULT 1.0,
		last_prestige_at TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS game.promo_codes (
		id BIGSERIAL PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		reward_coins BIGINT NOT NULL DEFAULT 0,
		reward_diamonds BIGINT NOT NULL DEFAULT 0,
		max_uses BIGINT NOT NULL DEFAULT 0,
		uses BIGINT NOT NULL DEFAULT 0,
		expires_at TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS game.promo_redemptions (
		id BIGSERIAL PRIMARY KEY,
		promo_id BIGINT NOT NULL REFERENCES game.promo_codes(id),
		player_id BIGINT NOT NULL REFERENCES game.players(id),
		redeemed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (promo_id, player_id)
	)`,

	`CREATE TABLE IF NOT EXISTS game.ledger_entries (
		id BIGSERIAL PRIMARY KEY,
		tx_group_id TEXT NOT NULL,
		player_id BIGINT NOT NULL REFERENCES game.players(id),
		currency TEXT NOT NULL,
		delta BIGINT NOT NULL,
		action TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS ledger_player_idx
		ON game.ledger_entries (player_id, created_at)`,
}

// EnsureSchema creates the game schema and every table the engine uses.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
