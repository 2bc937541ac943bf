package game

import "time"

type Profile struct {
	PlayerID       int64      `json:"player_id"`
	Username       string     `json:"username"`
	Coins          int64      `json:"coins"`
	Diamonds       int64      `json:"diamonds"`
	Energy         int64      `json:"energy"`
	MaxEnergy      int64      `json:"max_energy"`
	Electricity    int64      `json:"electricity"`
	MaxElectricity int64      `json:"max_electricity"`
	ClickLevel     int64      `json:"click_level"`
	ClickXP        int64      `json:"click_xp"`
	ClickXPToNext  int64      `json:"click_xp_to_next"`
	BoostSeconds   int64      `json:"boost_seconds"`
	BoostFactor    float64    `json:"boost_multiplier"`
	DailyStreak    int        `json:"daily_streak"`
	MiningPower    int64      `json:"mining_power"`
	LastMinedAt    *time.Time `json:"last_mined_at,omitempty"`
	PrestigeCount  int        `json:"prestige_count"`
	PrestigeMult   float64    `json:"prestige_multiplier"`
}

type ItemView struct {
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	PriceDiamonds int64   `json:"price_diamonds"`
	SellPrice     int64   `json:"sell_price"`
	Stock         int64   `json:"stock"`
	MiningRate    int64   `json:"mining_rate,omitempty"`
	PowerDraw     int64   `json:"power_draw,omitempty"`
	BuffSpeed     float64 `json:"buff_mining_speed,omitempty"`
	BuffClick     int64   `json:"buff_click_coins,omitempty"`
	BuffLuck      float64 `json:"buff_luck,omitempty"`
}

type InventoryView struct {
	ItemCode string `json:"item_code"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Quantity int64  `json:"quantity"`
	Active   bool   `json:"active"`
}

type ClickResult struct {
	Gained        int64   `json:"gained"`
	Coins         int64   `json:"coins"`
	Diamonds      int64   `json:"diamonds"`
	Energy        int64   `json:"energy"`
	DiamondFound  bool    `json:"diamond_found"`
	Loot          string  `json:"loot,omitempty"`
	ClickLevel    int64   `json:"click_level"`
	ClickXP       int64   `json:"click_xp"`
	ClickXPToNext int64   `json:"click_xp_to_next"`
	LeveledUp     bool    `json:"leveled_up"`
	BoostFactor   float64 `json:"boost_multiplier"`
}

type CollectResult struct {
	CoinsEarned    int64   `json:"coins_earned"`
	DiamondsEarned int64   `json:"diamonds_earned"`
	HoursElapsed   float64 `json:"hours_elapsed"`
	EffectiveHours float64 `json:"effective_hours"`
	Coins          int64   `json:"coins"`
	Diamonds       int64   `json:"diamonds"`
	Electricity    int64   `json:"electricity"`
}

type BuyItemResult struct {
	ItemCode string `json:"item_code"`
	Diamonds int64  `json:"diamonds"`
	Restored bool   `json:"electricity_restored"`
}

type SellResult struct {
	ItemCode string `json:"item_code"`
	Earned   int64  `json:"earned"`
	Diamonds int64  `json:"diamonds"`
}

type ListingView struct {
	ID        int64     `json:"id"`
	ItemCode  string    `json:"item_code"`
	ItemName  string    `json:"item_name"`
	Seller    string    `json:"seller"`
	Price     int64     `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

type AuctionView struct {
	ID            int64     `json:"id"`
	ItemCode      string    `json:"item_code"`
	ItemName      string    `json:"item_name"`
	Seller        string    `json:"seller"`
	StartingPrice int64     `json:"starting_price"`
	CurrentPrice  int64     `json:"current_price"`
	CurrentBidder string    `json:"current_bidder,omitempty"`
	BuyNowPrice   int64     `json:"buy_now_price,omitempty"`
	EndsAt        time.Time `json:"ends_at"`
	Active        bool      `json:"active"`
}

type CreateAuctionInput struct {
	SellerID      int64
	ItemCode      string
	StartingPrice int64
	BuyNowPrice   int64 // 0 means no buy-now
	DurationHours int
}

type BidInput struct {
	BidderID  int64
	AuctionID int64
	Amount    int64
	BuyNow    bool
}

type BidResult struct {
	AuctionID    int64  `json:"auction_id"`
	CurrentPrice int64  `json:"current_price"`
	Diamonds     int64  `json:"diamonds"`
	Won          bool   `json:"won"`
	Outcome      string `json:"outcome"` // bid, bought, finalized
}

type BlackjackResult struct {
	Player    int64  `json:"player"`
	Dealer    int64  `json:"dealer"`
	Outcome   string `json:"outcome"` // win, lose, push, bust
	Payout    int64  `json:"payout"`
	NetChange int64  `json:"net_change"`
	Diamonds  int64  `json:"diamonds"`
}

type CrashResult struct {
	CrashAt   float64 `json:"crash_at"`
	Target    float64 `json:"target"`
	Win       bool    `json:"win"`
	Payout    int64   `json:"payout"`
	NetChange int64   `json:"net_change"`
	Diamonds  int64   `json:"diamonds"`
}

type SlotsResult struct {
	Spin      [3]string `json:"spin"`
	Payout    int64     `json:"payout"`
	NetChange int64     `json:"net_change"`
	Diamonds  int64     `json:"diamonds"`
	Coins     int64     `json:"coins"`
}

type QuestView struct {
	Code      string `json:"code"`
	Title     string `json:"title"`
	Type      string `json:"type"`
	Goal      int64  `json:"goal"`
	Progress  int64  `json:"progress"`
	Completed bool   `json:"completed"`
}

type AchievementView struct {
	Code       string     `json:"code"`
	Title      string     `json:"title"`
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

type PrestigeInfo struct {
	Count        int        `json:"prestige_count"`
	Multiplier   float64    `json:"prestige_multiplier"`
	NextCost     int64      `json:"next_cost"`
	CanPrestige  bool       `json:"can_prestige"`
	LastPrestige *time.Time `json:"last_prestige,omitempty"`
}

type PrestigeResult struct {
	Count          int     `json:"prestige_count"`
	Multiplier     float64 `json:"prestige_multiplier"`
	DiamondsEarned int64   `json:"diamonds_earned"`
}

type DailyRewardResult struct {
	Streak   int   `json:"streak"`
	Coins    int64 `json:"coins_gained"`
	Diamonds int64 `json:"diamonds_gained"`
}

type PromoResult struct {
	Coins    int64 `json:"coins_gained"`
	Diamonds int64 `json:"diamonds_gained"`
}

type BoostResult struct {
	Multiplier   float64 `json:"boost_multiplier"`
	BoostSeconds int64   `json:"boost_seconds"`
	Diamonds     int64   `json:"diamonds"`
}

type RefillResult struct {
	Energy   int64 `json:"energy"`
	Diamonds int64 `json:"diamonds"`
}

type LeaderboardRow struct {
	Rank     int64  `json:"rank"`
	Username string `json:"username"`
	Diamonds int64  `json:"diamonds"`
	Coins    int64  `json:"coins"`
}

type RegisterResult struct {
	PlayerID int64  `json:"player_id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}
