package game

import (
	"math"
	mathrand "math/rand"
	"testing"
)

func TestResolveBlackjack(t *testing.T) {
	cases := []struct {
		name           string
		player, dealer int64
		bet            int64
		outcome        string
		payout         int64
	}{
		{"player bust loses even vs dealer bust", 22, 24, 10, "bust", 0},
		{"dealer bust pays double", 18, 23, 10, "win", 20},
		{"higher hand wins", 20, 17, 10, "win", 20},
		{"push returns stake", 19, 19, 10, "push", 10},
		{"lower hand loses", 16, 20, 10, "lose", 0},
	}
	for _, tc := range cases {
		got := resolveBlackjack(tc.player, tc.dealer, tc.bet)
		if got.Outcome != tc.outcome || got.Payout != tc.payout {
			t.Fatalf("%s: got outcome=%s payout=%d, want %s/%d", tc.name, got.Outcome, got.Payout, tc.outcome, tc.payout)
		}
	}
}

func TestDrawBlackjackHandsRanges(t *testing.T) {
	r := mathrand.New(mathrand.NewSource(1))
	for i := 0; i < 1000; i++ {
		player, dealer := drawBlackjackHands(r)
		if player < 16 || player > 22 {
			t.Fatalf("player hand %d out of 16..22", player)
		}
		if dealer < 15 || dealer > 24 {
			t.Fatalf("dealer hand %d out of 15..24", dealer)
		}
	}
}

func TestDrawCrashPointBounds(t *testing.T) {
	r := mathrand.New(mathrand.NewSource(7))
	for i := 0; i < 5000; i++ {
		point := drawCrashPoint(r)
		if point != 0.9 && (point < 1.1 || point > 10.0) {
			t.Fatalf("crash point %v outside 0.9 or [1.1, 10]", point)
		}
		// Two-decimal rounding.
		cents := point * 100
		if math.Abs(cents-math.Round(cents)) > 1e-6 {
			t.Fatalf("crash point %v not rounded to two decimals", point)
		}
	}
}

func TestCrashPayout(t *testing.T) {
	if won, payout := crashPayout(100, 2.0, 2.5); !won || payout != 200 {
		t.Fatalf("surviving round: won=%v payout=%d", won, payout)
	}
	if won, payout := crashPayout(100, 2.0, 2.0); !won || payout != 200 {
		t.Fatalf("crash exactly at target should pay: won=%v payout=%d", won, payout)
	}
	if won, payout := crashPayout(100, 3.0, 2.99); won || payout != 0 {
		t.Fatalf("busted round: won=%v payout=%d", won, payout)
	}
	// Payout truncates.
	if _, payout := crashPayout(7, 1.5, 9); payout != 10 {
		t.Fatalf("floor(7*1.5) = %d, want 10", payout)
	}
}

func TestResolveSlots(t *testing.T) {
	cases := []struct {
		name      string
		spin      [3]string
		bet       int64
		payout    int64
		coinBonus int64
	}{
		{"triple seven", [3]string{"seven", "seven", "seven"}, 10, 200, 2000},
		{"triple banana", [3]string{"banana", "banana", "banana"}, 10, 50, 500},
		{"pair", [3]string{"star", "star", "clover"}, 10, 20, 200},
		{"split pair", [3]string{"star", "clover", "star"}, 10, 20, 200},
		{"no match", [3]string{"star", "clover", "flame"}, 10, 0, 0},
	}
	for _, tc := range cases {
		payout, bonus := resolveSlots(tc.spin, tc.bet)
		if payout != tc.payout || bonus != tc.coinBonus {
			t.Fatalf("%s: got payout=%d bonus=%d, want %d/%d", tc.name, payout, bonus, tc.payout, tc.coinBonus)
		}
	}
}

func TestSlotPaytableCoversAllSymbols(t *testing.T) {
	for _, sym := range slotSymbols {
		if _, ok := slotTriplePays[sym]; !ok {
			t.Fatalf("symbol %q missing from paytable", sym)
		}
	}
	r := mathrand.New(mathrand.NewSource(3))
	for i := 0; i < 100; i++ {
		spin := drawSlots(r)
		for _, sym := range spin {
			if _, ok := slotTriplePays[sym]; !ok {
				t.Fatalf("drew unknown symbol %q", sym)
			}
		}
	}
}
