package game

import (
	"errors"
	"testing"
	"time"
)

func TestClickGain(t *testing.T) {
	cases := []struct {
		name         string
		level, extra int64
		boost        float64
		prestige     float64
		want         int64
	}{
		{"level one base", 1, 0, 1.0, 1.0, 1},
		{"level three", 3, 0, 1.0, 1.0, 3},
		{"flat buff adds", 3, 5, 1.0, 1.0, 8},
		{"boost doubles", 3, 0, 2.0, 1.0, 6},
		{"prestige half weight", 2, 0, 1.0, 2.0, 3},
		{"never below one", 1, 0, 0.5, 1.0, 1},
	}
	for _, tc := range cases {
		got := clickGain(tc.level, tc.extra, tc.boost, tc.prestige)
		if got != tc.want {
			t.Fatalf("%s: clickGain = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestApplyClickXP(t *testing.T) {
	xp, toNext, level, leveled := applyClickXP(95, 100, 1, 10)
	if !leveled {
		t.Fatalf("expected level up")
	}
	if level != 2 || xp != 5 || toNext != 135 {
		t.Fatalf("got level=%d xp=%d toNext=%d, want 2/5/135", level, xp, toNext)
	}

	xp, toNext, level, leveled = applyClickXP(0, 100, 1, 1)
	if leveled || level != 1 || xp != 1 || toNext != 100 {
		t.Fatalf("plain click changed level state: level=%d xp=%d toNext=%d leveled=%v", level, xp, toNext, leveled)
	}

	// A huge grant should cascade through several levels.
	_, toNext, level, leveled = applyClickXP(0, 100, 1, 400)
	if !leveled || level < 3 {
		t.Fatalf("cascade failed: level=%d toNext=%d", level, toNext)
	}
}

func TestBoostFactor(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(5 * time.Minute)
	past := now.Add(-5 * time.Minute)

	if f, stale := boostFactor(2.0, &future, now); f != 2.0 || stale {
		t.Fatalf("active boost: got factor=%v stale=%v", f, stale)
	}
	if f, stale := boostFactor(2.0, &past, now); f != 1.0 || !stale {
		t.Fatalf("expired boost: got factor=%v stale=%v", f, stale)
	}
	if f, stale := boostFactor(1.0, nil, now); f != 1.0 || stale {
		t.Fatalf("no boost: got factor=%v stale=%v", f, stale)
	}
}

func TestPrestigeCost(t *testing.T) {
	cases := []struct {
		count int
		want  int64
	}{
		{0, 1_000_000},
		{1, 1_500_000},
		{2, 2_250_000},
	}
	for _, tc := range cases {
		if got := prestigeCost(tc.count); got != tc.want {
			t.Fatalf("prestigeCost(%d) = %d, want %d", tc.count, got, tc.want)
		}
	}
}

func TestPrestigeClickFactor(t *testing.T) {
	if got := prestigeClickFactor(1.0); got != 1.0 {
		t.Fatalf("base multiplier should not scale clicks, got %v", got)
	}
	if got := prestigeClickFactor(2.0); got != 1.5 {
		t.Fatalf("prestigeClickFactor(2.0) = %v, want 1.5", got)
	}
}

func TestMarketTax(t *testing.T) {
	cases := []struct{ price, want int64 }{
		{100, 10},
		{99, 9},
		{1, 0},
		{1000, 100},
	}
	for _, tc := range cases {
		if got := marketTax(tc.price); got != tc.want {
			t.Fatalf("marketTax(%d) = %d, want %d", tc.price, got, tc.want)
		}
	}
}

func TestSlotAccepts(t *testing.T) {
	cases := []struct {
		slot, itemType string
		want           bool
	}{
		{SlotSkin, ItemSkin, true},
		{SlotSkin, ItemBuff, false},
		{SlotAvatar, ItemAvatar, true},
		{SlotBuff1, ItemBuff, true},
		{SlotBuff3, ItemBuff, true},
		{SlotBuff2, ItemProducer, false},
		{"weapon", ItemBuff, false},
	}
	for _, tc := range cases {
		if got := slotAccepts(tc.slot, tc.itemType); got != tc.want {
			t.Fatalf("slotAccepts(%q, %q) = %v, want %v", tc.slot, tc.itemType, got, tc.want)
		}
	}
}

func TestNextStreak(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2026, 3, d, 10, 0, 0, 0, time.UTC)
	}
	yesterday := day(9)
	twoDaysAgo := day(8)
	today := day(10)

	if got, err := nextStreak(0, nil, today); err != nil || got != 1 {
		t.Fatalf("first claim: got %d, err %v", got, err)
	}
	if _, err := nextStreak(1, &today, today); !errors.Is(err, ErrTooSoon) {
		t.Fatalf("same-day claim should be ErrTooSoon, got %v", err)
	}
	if got, err := nextStreak(3, &yesterday, today); err != nil || got != 4 {
		t.Fatalf("consecutive day: got %d, err %v", got, err)
	}
	if got, err := nextStreak(3, &twoDaysAgo, today); err != nil || got != 1 {
		t.Fatalf("missed day should reset: got %d, err %v", got, err)
	}
	if got, err := nextStreak(7, &yesterday, today); err != nil || got != 1 {
		t.Fatalf("streak should wrap after day 7: got %d, err %v", got, err)
	}
}

func TestDailyRewardTable(t *testing.T) {
	if len(dailyRewards) != 7 {
		t.Fatalf("expected 7 streak steps, got %d", len(dailyRewards))
	}
	if dailyRewards[0].Coins != 500 || dailyRewards[6].Coins != 10000 || dailyRewards[6].Diamonds != 50 {
		t.Fatalf("streak table endpoints wrong: %+v", dailyRewards)
	}
}

func TestSameDayAndDaysBetween(t *testing.T) {
	a := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	b := time.Date(2026, 3, 10, 0, 1, 0, 0, time.UTC)
	c := time.Date(2026, 3, 11, 0, 1, 0, 0, time.UTC)

	if !sameDay(a, b) {
		t.Fatalf("same calendar day not detected")
	}
	if sameDay(a, c) {
		t.Fatalf("different days reported as same")
	}
	if got := daysBetween(a, c); got != 1 {
		t.Fatalf("daysBetween across midnight = %d, want 1", got)
	}
	if got := daysBetween(b, a); got != 0 {
		t.Fatalf("daysBetween same day = %d, want 0", got)
	}
}
