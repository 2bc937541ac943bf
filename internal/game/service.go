package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"minegrid/internal/events"
)

var usernameRE = regexp.MustCompile(`^[a-zA-Z0-9_]{3,24}$`)

// Service is the economy engine. Every mutating operation is one
// serializable transaction: lock the rows it will write, compute, commit.
// Randomness and the clock are injectable so operations replay
// deterministically under test.
type Service struct {
	db     *pgxpool.Pool
	log    *slog.Logger
	events events.Publisher
	mu     sync.Mutex
	rand   *mathrand.Rand
	now    func() time.Time
}

func NewService(db *pgxpool.Pool, logger *slog.Logger, pub events.Publisher) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Service{
		db:     db,
		log:    logger,
		events: pub,
		rand:   mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithRand overrides the randomness source. Test hook.
func (s *Service) WithRand(r *mathrand.Rand) *Service {
	s.rand = r
	return s
}

func (s *Service) nextFloat() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Float64()
}

func (s *Service) nextInt(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Intn(n)
}

// withTx runs fn inside a serializable transaction, retrying the whole unit
// of work on serialization conflicts with capped backoff.
func (s *Service) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	const maxAttempts = 8
	retryDelay := 75 * time.Millisecond
	for attempt := 0; attempt < maxAttempts; attempt++ {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return err
		}
		err = func() error {
			defer tx.Rollback(ctx)
			if err := fn(tx); err != nil {
				return err
			}
			return tx.Commit(ctx)
		}()
		if err == nil {
			return nil
		}
		if !isSerializationError(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			return ErrTxConflict
		}
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < 1200*time.Millisecond {
			retryDelay *= 2
		}
	}
	return ErrTxConflict
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Service) publish(ctx context.Context, evs ...string) {
	for _, ev := range evs {
		s.events.Publish(ctx, ev)
	}
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ---- player rows ----

type playerRow struct {
	ID             int64
	Username       string
	Coins          int64
	Diamonds       int64
	Energy         int64
	MaxEnergy      int64
	Electricity    int64
	MaxElectricity int64
	ClickLevel     int64
	ClickXP        int64
	ClickXPToNext  int64
	BoostMult      float64
	BoostUntil     *time.Time
	SkinID         *int64
	AvatarID       *int64
	Slot1ID        *int64
	Slot2ID        *int64
	Slot3ID        *int64
	LastMinedAt    *time.Time
	LastDailyClaim *time.Time
	DailyStreak    int
}

const playerColumns = `
	id, username, coins, diamonds, energy, max_energy,
	electricity, max_electricity, click_level, click_xp, click_xp_to_next,
	boost_multiplier, boost_until, skin_item_id, avatar_item_id,
	slot1_item_id, slot2_item_id, slot3_item_id,
	last_mined_at, last_daily_claim, daily_streak`

func scanPlayer(row pgx.Row) (*playerRow, error) {
	var p playerRow
	err := row.Scan(
		&p.ID, &p.Username, &p.Coins, &p.Diamonds, &p.Energy, &p.MaxEnergy,
		&p.Electricity, &p.MaxElectricity, &p.ClickLevel, &p.ClickXP, &p.ClickXPToNext,
		&p.BoostMult, &p.BoostUntil, &p.SkinID, &p.AvatarID,
		&p.Slot1ID, &p.Slot2ID, &p.Slot3ID,
		&p.LastMinedAt, &p.LastDailyClaim, &p.DailyStreak,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func lockPlayer(ctx context.Context, tx pgx.Tx, playerID int64) (*playerRow, error) {
	p, err := scanPlayer(tx.QueryRow(ctx, `
		SELECT `+playerColumns+`
		FROM game.players
		WHERE id = $1
		FOR UPDATE
	`, playerID))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: player %d", ErrNotFound, playerID)
	}
	return p, err
}

// lockPlayerPair locks two distinct player rows in ascending id order so
// concurrent two-party settlements can never deadlock on each other.
func lockPlayerPair(ctx context.Context, tx pgx.Tx, aID, bID int64) (*playerRow, *playerRow, error) {
	first, second := aID, bID
	if first > second {
		first, second = second, first
	}
	p1, err := lockPlayer(ctx, tx, first)
	if err != nil {
		return nil, nil, err
	}
	p2, err := lockPlayer(ctx, tx, second)
	if err != nil {
		return nil, nil, err
	}
	if p1.ID == aID {
		return p1, p2, nil
	}
	return p2, p1, nil
}

// lockPlayersAscending locks every distinct player row in ascending id
// order and returns them keyed by id. Duplicate ids alias one row.
func lockPlayersAscending(ctx context.Context, tx pgx.Tx, ids ...int64) (map[int64]*playerRow, error) {
	distinct := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			distinct = append(distinct, id)
		}
	}
	sort.Slice(distinct, func(i, j int) bool { return distinct[i] < distinct[j] })
	out := make(map[int64]*playerRow, len(distinct))
	for _, id := range distinct {
		p, err := lockPlayer(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		out[id] = p
	}
	return out, nil
}

func savePlayer(ctx context.Context, tx pgx.Tx, p *playerRow) error {
	_, err := tx.Exec(ctx, `
		UPDATE game.players
		SET coins = $1, diamonds = $2, energy = $3, electricity = $4,
		    click_level = $5, click_xp = $6, click_xp_to_next = $7,
		    boost_multiplier = $8, boost_until = $9,
		    skin_item_id = $10, avatar_item_id = $11,
		    slot1_item_id = $12, slot2_item_id = $13, slot3_item_id = $14,
		    last_mined_at = $15, last_daily_claim = $16, daily_streak = $17,
		    updated_at = now()
		WHERE id = $18
	`, p.Coins, p.Diamonds, p.Energy, p.Electricity,
		p.ClickLevel, p.ClickXP, p.ClickXPToNext,
		p.BoostMult, p.BoostUntil,
		p.SkinID, p.AvatarID,
		p.Slot1ID, p.Slot2ID, p.Slot3ID,
		p.LastMinedAt, p.LastDailyClaim, p.DailyStreak,
		p.ID)
	return err
}

// ---- catalog rows ----

type itemRow struct {
	ID            int64
	Code          string
	Name          string
	Type          string
	PriceDiamonds int64
	SellPrice     int64
	Stock         int64
	Hidden        bool
	MiningRate    int64
	PowerDraw     int64
	DiamondChance float64
	BuffSpeed     float64
	BuffClick     int64
	BuffLuck      float64
	CanDrop       bool
	DropChance    float64
}

const itemColumns = `
	id, item_code, name, item_type, price_diamonds, sell_price, stock, hidden,
	mining_rate, power_draw, diamond_chance,
	buff_mining_speed, buff_click_coins, buff_luck, can_drop, drop_chance`

func scanItem(row pgx.Row) (*itemRow, error) {
	var it itemRow
	err := row.Scan(
		&it.ID, &it.Code, &it.Name, &it.Type, &it.PriceDiamonds, &it.SellPrice,
		&it.Stock, &it.Hidden, &it.MiningRate, &it.PowerDraw, &it.DiamondChance,
		&it.BuffSpeed, &it.BuffClick, &it.BuffLuck, &it.CanDrop, &it.DropChance,
	)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func getItemByCode(ctx context.Context, q rowQuerier, code string) (*itemRow, error) {
	it, err := scanItem(q.QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM game.items
		WHERE item_code = $1
	`, code))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: item %q", ErrNotFound, code)
	}
	return it, err
}

// lockItemByCode locks the catalog row so the stock counter serializes
// concurrent buyers.
func lockItemByCode(ctx context.Context, tx pgx.Tx, code string) (*itemRow, error) {
	it, err := scanItem(tx.QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM game.items
		WHERE item_code = $1
		FOR UPDATE
	`, code))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: item %q", ErrNotFound, code)
	}
	return it, err
}

func getItemByID(ctx context.Context, q rowQuerier, id int64) (*itemRow, error) {
	it, err := scanItem(q.QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM game.items
		WHERE id = $1
	`, id))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: item %d", ErrNotFound, id)
	}
	return it, err
}

// buffTotals aggregates the three equipped buff slots.
type buffTotals struct {
	ClickCoins  int64
	Luck        float64
	MiningSpeed float64
}

func (b buffTotals) luckMultiplier() float64 {
	return 1 + b.Luck/100
}

func (b buffTotals) miningMultiplier() float64 {
	return 1 + b.MiningSpeed/100
}

func loadSlotBuffs(ctx context.Context, q rowQuerier, p *playerRow) (buffTotals, error) {
	var out buffTotals
	ids := make([]int64, 0, 3)
	for _, id := range []*int64{p.Slot1ID, p.Slot2ID, p.Slot3ID} {
		if id != nil {
			ids = append(ids, *id)
		}
	}
	if len(ids) == 0 {
		return out, nil
	}
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(buff_click_coins), 0),
		       COALESCE(SUM(buff_luck), 0),
		       COALESCE(SUM(buff_mining_speed), 0)
		FROM game.items
		WHERE id = ANY($1)
	`, ids).Scan(&out.ClickCoins, &out.Luck, &out.MiningSpeed)
	return out, err
}

// ---- inventory rows ----

func addInventory(ctx context.Context, tx pgx.Tx, playerID, itemID, delta int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO game.inventory (player_id, item_id, quantity, is_active)
		VALUES ($1, $2, $3, true)
		ON CONFLICT (player_id, item_id)
		DO UPDATE SET quantity = game.inventory.quantity + EXCLUDED.quantity
	`, playerID, itemID, delta)
	return err
}

// takeInventory withdraws one unit under a row lock. Zero-quantity rows are
// left in place, inert.
func takeInventory(ctx context.Context, tx pgx.Tx, playerID, itemID int64) error {
	var qty int64
	err := tx.QueryRow(ctx, `
		SELECT quantity
		FROM game.inventory
		WHERE player_id = $1 AND item_id = $2
		FOR UPDATE
	`, playerID, itemID).Scan(&qty)
	if err == pgx.ErrNoRows || (err == nil && qty <= 0) {
		return ErrNotOwned
	}
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		UPDATE game.inventory
		SET quantity = quantity - 1
		WHERE player_id = $1 AND item_id = $2
	`, playerID, itemID)
	return err
}

func countProducers(ctx context.Context, q rowQuerier, playerID int64) (int64, error) {
	var n int64
	err := q.QueryRow(ctx, `
		SELECT COUNT(1)
		FROM game.inventory inv
		JOIN game.items it ON it.id = inv.item_id
		WHERE inv.player_id = $1 AND it.item_type = $2 AND inv.quantity > 0
	`, playerID, ItemProducer).Scan(&n)
	return n, err
}

// ---- ledger ----

// appendLedger records currency movements for auditing. One row per
// currency touched, grouped by a shared transaction id.
func appendLedger(ctx context.Context, tx pgx.Tx, playerID int64, action string, coinsDelta, diamondsDelta int64) error {
	txID := uuid.NewString()
	if coinsDelta != 0 {
		if _, err := tx.Exec(ctx, `
			INSERT INTO game.ledger_entries (tx_group_id, player_id, currency, delta, action)
			VALUES ($1, $2, 'coins', $3, $4)
		`, txID, playerID, coinsDelta, action); err != nil {
			return err
		}
	}
	if diamondsDelta != 0 {
		if _, err := tx.Exec(ctx, `
			INSERT INTO game.ledger_entries (tx_group_id, player_id, currency, delta, action)
			VALUES ($1, $2, 'diamonds', $3, $4)
		`, txID, playerID, diamondsDelta, action); err != nil {
			return err
		}
	}
	return nil
}

// ---- registration and reads ----

// Register creates a player with starter resources, a prestige record and
// the daily quest set. Idempotent per username.
func (s *Service) Register(ctx context.Context, username string) (RegisterResult, error) {
	var out RegisterResult
	username = strings.TrimSpace(username)
	if !usernameRE.MatchString(username) {
		return out, fmt.Errorf("%w: username must be 3-24 word characters", ErrInvalidInput)
	}
	token := uuid.NewString()
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO game.players (username, api_token, energy, max_energy, electricity, max_electricity)
			VALUES ($1, $2, $3, $3, $4, $4)
			ON CONFLICT (username) DO NOTHING
			RETURNING id, api_token
		`, username, token, DefaultMaxEnergy, DefaultMaxElectricity).Scan(&out.PlayerID, &out.Token)
		if err == pgx.ErrNoRows {
			err = tx.QueryRow(ctx, `
				SELECT id, api_token FROM game.players WHERE username = $1
			`, username).Scan(&out.PlayerID, &out.Token)
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO game.prestige (player_id, prestige_count, multiplier)
			VALUES ($1, 0, 1.0)
			ON CONFLICT (player_id) DO NOTHING
		`, out.PlayerID); err != nil {
			return err
		}
		return ensureQuestsTx(ctx, tx, out.PlayerID, s.now())
	})
	if err != nil {
		return out, err
	}
	out.Username = username
	return out, nil
}

// Authenticate resolves an API token to a player id. Read-only, no lock.
func (s *Service) Authenticate(ctx context.Context, token string) (int64, string, error) {
	var id int64
	var username string
	err := s.db.QueryRow(ctx, `
		SELECT id, username FROM game.players WHERE api_token = $1
	`, token).Scan(&id, &username)
	if err == pgx.ErrNoRows {
		return 0, "", fmt.Errorf("%w: unknown token", ErrNotFound)
	}
	return id, username, err
}

// Profile is a lock-free read of the player's state plus derived stats.
func (s *Service) Profile(ctx context.Context, playerID int64) (Profile, error) {
	var out Profile
	p, err := scanPlayer(s.db.QueryRow(ctx, `
		SELECT `+playerColumns+`
		FROM game.players
		WHERE id = $1
	`, playerID))
	if err == pgx.ErrNoRows {
		return out, fmt.Errorf("%w: player %d", ErrNotFound, playerID)
	}
	if err != nil {
		return out, err
	}
	out = Profile{
		PlayerID:       p.ID,
		Username:       p.Username,
		Coins:          p.Coins,
		Diamonds:       p.Diamonds,
		Energy:         p.Energy,
		MaxEnergy:      p.MaxEnergy,
		Electricity:    p.Electricity,
		MaxElectricity: p.MaxElectricity,
		ClickLevel:     p.ClickLevel,
		ClickXP:        p.ClickXP,
		ClickXPToNext:  p.ClickXPToNext,
		DailyStreak:    p.DailyStreak,
		LastMinedAt:    p.LastMinedAt,
		BoostFactor:    1.0,
	}
	now := s.now()
	if factor, _ := boostFactor(p.BoostMult, p.BoostUntil, now); factor > 1 {
		out.BoostFactor = factor
		out.BoostSeconds = int64(p.BoostUntil.Sub(now).Seconds())
	}
	err = s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(it.mining_rate * inv.quantity), 0)
		FROM game.inventory inv
		JOIN game.items it ON it.id = inv.item_id
		WHERE inv.player_id = $1 AND it.item_type = $2 AND inv.is_active AND inv.quantity > 0
	`, playerID, ItemProducer).Scan(&out.MiningPower)
	if err != nil {
		return out, err
	}
	var last *time.Time
	if err := s.db.QueryRow(ctx, `
		SELECT prestige_count, multiplier, last_prestige_at
		FROM game.prestige
		WHERE player_id = $1
	`, playerID).Scan(&out.PrestigeCount, &out.PrestigeMult, &last); err != nil && err != pgx.ErrNoRows {
		return out, err
	}
	if out.PrestigeMult == 0 {
		out.PrestigeMult = 1.0
	}
	return out, nil
}

// ShopItems lists the purchasable catalog: priced, not hidden, energy packs
// excluded (those sell from the producer room, not the shop front).
func (s *Service) ShopItems(ctx context.Context) ([]ItemView, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+itemColumns+`
		FROM game.items
		WHERE price_diamonds > 0 AND NOT hidden AND item_type <> $1
		ORDER BY item_code
	`, ItemEnergyPack)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ItemView
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, itemView(it))
	}
	return out, rows.Err()
}

func itemView(it *itemRow) ItemView {
	return ItemView{
		Code:          it.Code,
		Name:          it.Name,
		Type:          it.Type,
		PriceDiamonds: it.PriceDiamonds,
		SellPrice:     it.SellPrice,
		Stock:         it.Stock,
		MiningRate:    it.MiningRate,
		PowerDraw:     it.PowerDraw,
		BuffSpeed:     it.BuffSpeed,
		BuffClick:     it.BuffClick,
		BuffLuck:      it.BuffLuck,
	}
}

// Inventory lists owned entries with a positive quantity.
func (s *Service) Inventory(ctx context.Context, playerID int64) ([]InventoryView, error) {
	rows, err := s.db.Query(ctx, `
		SELECT it.item_code, it.name, it.item_type, inv.quantity, inv.is_active
		FROM game.inventory inv
		JOIN game.items it ON it.id = inv.item_id
		WHERE inv.player_id = $1 AND inv.quantity > 0
		ORDER BY inv.quantity DESC, it.item_code
	`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []InventoryView
	for rows.Next() {
		var v InventoryView
		if err := rows.Scan(&v.ItemCode, &v.Name, &v.Type, &v.Quantity, &v.Active); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Leaderboard ranks players by diamonds. Display-only: callers may cache it
// with bounded staleness.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
		SELECT username, diamonds, coins
		FROM game.players
		ORDER BY diamonds DESC, coins DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LeaderboardRow
	var rank int64 = 1
	for rows.Next() {
		var r LeaderboardRow
		if err := rows.Scan(&r.Username, &r.Diamonds, &r.Coins); err != nil {
			return nil, err
		}
		r.Rank = rank
		rank++
		out = append(out, r)
	}
	return out, rows.Err()
}
