package game

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type itemSeed struct {
	Code          string
	Name          string
	Type          string
	PriceDiamonds int64
	SellPrice     int64
	Stock         int64 // -1 unlimited
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

var defaultItems = []itemSeed{
	{Code: "basic_miner", Name: "Basic Miner", Type: ItemProducer, PriceDiamonds: 10, Stock: -1, MiningRate: 100, PowerDraw: 10, DiamondChance: 0.5},
	{Code: "advanced_miner", Name: "Advanced Miner", Type: ItemProducer, PriceDiamonds: 50, Stock: -1, MiningRate: 600, PowerDraw: 40, DiamondChance: 2},
	{Code: "quantum_rig", Name: "Quantum Rig", Type: ItemProducer, PriceDiamonds: 250, Stock: 100, MiningRate: 4000, PowerDraw: 200, DiamondChance: 5},
	{Code: "energy_cell", Name: "Energy Cell", Type: ItemEnergyPack, PriceDiamonds: 3, Stock: -1},
	{Code: "coal_chunk", Name: "Coal Chunk", Type: ItemLoot, SellPrice: 1, Stock: -1, CanDrop: true, DropChance: 1.5},
	{Code: "gold_nugget", Name: "Gold Nugget", Type: ItemLoot, SellPrice: 5, Stock: -1, CanDrop: true, DropChance: 0.3},
	{Code: "ancient_relic", Name: "Ancient Relic", Type: ItemLoot, SellPrice: 25, Stock: -1, CanDrop: true, DropChance: 0.05},
	{Code: "scrap_metal", Name: "Scrap Metal", Type: ItemMaterial, SellPrice: 2, Stock: -1},
	{Code: "lucky_charm", Name: "Lucky Charm", Type: ItemBuff, PriceDiamonds: 20, Stock: -1, BuffLuck: 25},
	{Code: "drill_bit", Name: "Reinforced Drill Bit", Type: ItemBuff, PriceDiamonds: 15, Stock: -1, BuffClick: 5},
	{Code: "overclock_chip", Name: "Overclock Chip", Type: ItemBuff, PriceDiamonds: 30, Stock: -1, BuffSpeed: 20},
	{Code: "skin_neon", Name: "Neon Rig Skin", Type: ItemSkin, PriceDiamonds: 8, Stock: -1},
	{Code: "avatar_prospector", Name: "Prospector Avatar", Type: ItemAvatar, PriceDiamonds: 5, Stock: -1},
}

type achievementSeed struct {
	Code            string
	Title           string
	TargetCoins     int64
	TargetDiamonds  int64
	TargetProducers int64
	RewardCoins     int64
	RewardDiamonds  int64
}

var defaultAchievements = []achievementSeed{
	{Code: "coins_1k", Title: "First Thousand", TargetCoins: 1000, RewardDiamonds: 1},
	{Code: "coins_100k", Title: "Six Figures", TargetCoins: 100_000, RewardDiamonds: 10},
	{Code: "diamond_10", Title: "Gem Collector", TargetDiamonds: 10, RewardCoins: 500},
	{Code: "miner_owner", Title: "Rig Owner", TargetProducers: 1, RewardCoins: 250, RewardDiamonds: 1},
}

// SeedDefaults installs the starter catalog, the achievement set and the
// welcome promo. Idempotent; safe to run at every startup.
func (s *Service) SeedDefaults(ctx context.Context) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		for _, it := range defaultItems {
			if _, err := tx.Exec(ctx, `
				INSERT INTO game.items
					(item_code, name, item_type, price_diamonds, sell_price, stock, hidden,
					 mining_rate, power_draw, diamond_chance,
					 buff_mining_speed, buff_click_coins, buff_luck, can_drop, drop_chance)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
				ON CONFLICT (item_code) DO NOTHING
			`, it.Code, it.Name, it.Type, it.PriceDiamonds, it.SellPrice, it.Stock, it.Hidden,
				it.MiningRate, it.PowerDraw, it.DiamondChance,
				it.BuffSpeed, it.BuffClick, it.BuffLuck, it.CanDrop, it.DropChance); err != nil {
				return err
			}
		}
		for _, a := range defaultAchievements {
			if _, err := tx.Exec(ctx, `
				INSERT INTO game.achievements
					(code, title, target_coins, target_diamonds, target_producers, reward_coins, reward_diamonds)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (code) DO NOTHING
			`, a.Code, a.Title, a.TargetCoins, a.TargetDiamonds, a.TargetProducers, a.RewardCoins, a.RewardDiamonds); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO game.promo_codes (code, reward_coins, reward_diamonds, max_uses)
			VALUES ('WELCOME', 1000, 5, 0)
			ON CONFLICT (code) DO NOTHING
		`)
		return err
	})
}
