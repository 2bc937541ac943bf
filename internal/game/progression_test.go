package game

import "testing"

func TestThresholdsMet(t *testing.T) {
	cases := []struct {
		name                       string
		targetCoins                int64
		targetDiamonds             int64
		targetProducers            int64
		coins, diamonds, producers int64
		want                       bool
	}{
		{"single threshold met", 1000, 0, 0, 1000, 0, 0, true},
		{"single threshold unmet", 1000, 0, 0, 999, 0, 0, false},
		{"all thresholds met", 1000, 0, 5, 1500, 0, 5, true},
		{"one of two unmet", 1000, 0, 5, 1500, 0, 0, false},
		{"other of two unmet", 1000, 0, 5, 500, 0, 5, false},
		{"zero thresholds ignored", 0, 10, 0, 0, 10, 0, true},
		{"no thresholds at all", 0, 0, 0, 0, 0, 0, true},
		{"three-way all met", 100, 5, 1, 100, 5, 1, true},
		{"three-way diamonds short", 100, 5, 1, 100, 4, 1, false},
	}
	for _, tc := range cases {
		got := thresholdsMet(tc.targetCoins, tc.targetDiamonds, tc.targetProducers, tc.coins, tc.diamonds, tc.producers)
		if got != tc.want {
			t.Fatalf("%s: thresholdsMet = %v, want %v", tc.name, got, tc.want)
		}
	}
}
