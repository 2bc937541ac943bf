package game

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Item type tags, fixed at catalog level.
const (
	ItemProducer   = "PRODUCER"
	ItemPowerPack  = "POWER_PACK"
	ItemSkin       = "COSMETIC_SKIN"
	ItemAvatar     = "AVATAR"
	ItemLoot       = "LOOT"
	ItemMaterial   = "MATERIAL"
	ItemEnergyPack = "ENERGY_PACK"
	ItemBuff       = "BUFF"
)

// Equipment slots.
const (
	SlotSkin   = "skin"
	SlotAvatar = "avatar"
	SlotBuff1  = "buff1"
	SlotBuff2  = "buff2"
	SlotBuff3  = "buff3"
)

const (
	DefaultMaxEnergy      = int64(1000)
	DefaultMaxElectricity = int64(5000)

	BaseXPToNext = int64(100)
	XPGrowth     = 1.35

	// Diamond drop on click: roll uniform over [0,1000), success when the
	// draw lands at or under 1 * luck multiplier.
	ClickDiamondRollRange = 1000.0

	MineCooldownHours = 0.016 // just under one minute, guards spam and zero division

	MarketTaxRate = 0.10

	EnergyRefillCost   = int64(2)
	EnergyRefillAmount = int64(50)

	BoostCost       = int64(5)
	BoostMultiplier = 2.0
	BoostDuration   = 15 * time.Minute

	MinAuctionHours = 1
	MaxAuctionHours = 168

	BasePrestigeCost       = int64(1_000_000)
	PrestigeCostGrowth     = 1.5
	PrestigeDiamondRate    = 0.005
	PrestigeMultiplierStep = 0.1
)

// Error taxonomy. Specific failures wrap one of these so callers can map
// classes to transport codes with errors.Is.
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrInsufficientResource = errors.New("insufficient resources")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrTooSoon              = errors.New("too soon")
	ErrForbidden            = errors.New("forbidden")
)

var (
	ErrNoEnergy       = fmt.Errorf("%w: no click energy left", ErrInsufficientResource)
	ErrNoElectricity  = fmt.Errorf("%w: electricity depleted", ErrInsufficientResource)
	ErrNotEnoughCoins = fmt.Errorf("%w: not enough coins", ErrInsufficientResource)
	ErrNotEnoughGems  = fmt.Errorf("%w: not enough diamonds", ErrInsufficientResource)
	ErrNotOwned       = fmt.Errorf("%w: item not in inventory", ErrInsufficientResource)
	ErrNoProducers    = fmt.Errorf("%w: no active producers", ErrConflict)
	ErrOutOfStock     = fmt.Errorf("%w: item out of stock", ErrConflict)
	ErrNotPurchasable = fmt.Errorf("%w: item is not for sale", ErrInvalidInput)
	ErrNotSellable    = fmt.Errorf("%w: item cannot be sold back", ErrInvalidInput)
	ErrSelfTrade      = fmt.Errorf("%w: cannot trade with yourself", ErrForbidden)
	ErrWrongSlot      = fmt.Errorf("%w: item type does not fit this slot", ErrForbidden)
	ErrAuctionClosed  = fmt.Errorf("%w: auction already finalized", ErrConflict)
	ErrBidTooLow      = fmt.Errorf("%w: bid below minimum", ErrInvalidInput)
	ErrInvalidBet     = fmt.Errorf("%w: bet must be a positive amount", ErrInvalidInput)
	ErrAlreadyClaimed = fmt.Errorf("%w: daily reward already claimed today", ErrTooSoon)
	ErrPromoExhausted = fmt.Errorf("%w: promo code exhausted", ErrConflict)
	ErrPromoExpired   = fmt.Errorf("%w: promo code expired", ErrConflict)
	ErrPromoUsed      = fmt.Errorf("%w: promo code already redeemed", ErrConflict)
	ErrTxConflict     = fmt.Errorf("%w: transaction conflict, retries exhausted", ErrConflict)
)

// clickGain computes the coins from a single click: base from level, flat
// buffs, boost and the half-weight prestige factor. Never below 1.
func clickGain(clickLevel, extraCoins int64, boostMult, prestigeMult float64) int64 {
	base := 1 + (clickLevel - 1)
	gained := int64(float64(base+extraCoins) * boostMult * prestigeClickFactor(prestigeMult))
	if gained < 1 {
		gained = 1
	}
	return gained
}

// applyClickXP runs the leveling loop: each level costs 35% more XP,
// truncated to an integer.
func applyClickXP(xp, toNext, level, gain int64) (int64, int64, int64, bool) {
	xp += gain
	leveled := false
	for xp >= toNext {
		xp -= toNext
		level++
		toNext = int64(float64(toNext) * XPGrowth)
		leveled = true
	}
	return xp, toNext, level, leveled
}

// boostFactor reports the effective click multiplier. A boost counts only
// while its expiry is in the future and its multiplier exceeds 1; stale
// reports whether leftover boost state should be cleared.
func boostFactor(mult float64, until *time.Time, now time.Time) (factor float64, stale bool) {
	if until != nil && until.After(now) && mult > 1 {
		return mult, false
	}
	return 1.0, mult != 1.0 || until != nil
}

// prestigeClickFactor scales click gains at half the weight of the
// permanent prestige multiplier.
func prestigeClickFactor(mult float64) float64 {
	return 1 + (mult-1)*0.5
}

// prestigeCost is the coin price of the next reset: 1M growing 50% per
// prestige already performed.
func prestigeCost(count int) int64 {
	return int64(float64(BasePrestigeCost) * math.Pow(PrestigeCostGrowth, float64(count)))
}

func marketTax(price int64) int64 {
	return int64(float64(price) * MarketTaxRate)
}

// slotAccepts validates the item type against an equipment slot.
func slotAccepts(slot, itemType string) bool {
	switch slot {
	case SlotSkin:
		return itemType == ItemSkin
	case SlotAvatar:
		return itemType == ItemAvatar
	case SlotBuff1, SlotBuff2, SlotBuff3:
		return itemType == ItemBuff
	default:
		return false
	}
}

// sameDay compares two instants by UTC calendar date.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// daysBetween counts whole calendar days from a to b in UTC.
func daysBetween(a, b time.Time) int {
	au := time.Date(a.UTC().Year(), a.UTC().Month(), a.UTC().Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.UTC().Year(), b.UTC().Month(), b.UTC().Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au).Hours() / 24)
}

// dailyRewards is the 7-day streak table.
var dailyRewards = []struct {
	Coins    int64
	Diamonds int64
}{
	{500, 0},
	{1000, 0},
	{1500, 0},
	{2000, 0},
	{2500, 5},
	{5000, 10},
	{10000, 50},
}

// nextStreak advances the daily streak: a missed day resets it, day 7
// wraps back to day 1.
func nextStreak(streak int, lastClaim *time.Time, now time.Time) (int, error) {
	if lastClaim != nil {
		if sameDay(*lastClaim, now) {
			return streak, ErrAlreadyClaimed
		}
		if daysBetween(*lastClaim, now) > 1 {
			streak = 0
		}
	}
	if streak < len(dailyRewards) {
		return streak + 1, nil
	}
	return 1, nil
}
