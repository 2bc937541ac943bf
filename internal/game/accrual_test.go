package game

import (
	"errors"
	"math"
	"testing"
)

func TestGateScale(t *testing.T) {
	cases := []struct {
		name              string
		needed, available int64
		want              float64
	}{
		{"no draw", 0, 100, 1},
		{"fully powered", 40, 100, 1},
		{"exactly enough", 40, 40, 1},
		{"quarter power", 40, 10, 0.25},
		{"empty battery", 40, 0, 0},
	}
	for _, tc := range cases {
		if got := gateScale(tc.needed, tc.available); got != tc.want {
			t.Fatalf("%s: gateScale(%d, %d) = %v, want %v", tc.name, tc.needed, tc.available, got, tc.want)
		}
	}
}

func TestPlanAccrual(t *testing.T) {
	// 2 hours, 100 coins/h, 20 draw/h, plenty of electricity.
	plan, err := planAccrual(2, 100, 20, 5000, 1.0, 1.0)
	if err != nil {
		t.Fatalf("planAccrual: %v", err)
	}
	if plan.Coins != 200 {
		t.Fatalf("coins = %d, want 200", plan.Coins)
	}
	if plan.ElectricityUsed != 40 {
		t.Fatalf("electricity used = %d, want 40", plan.ElectricityUsed)
	}
	if plan.WorkedHours != 2 {
		t.Fatalf("worked hours = %v, want 2", plan.WorkedHours)
	}
}

func TestPlanAccrualElectricityGated(t *testing.T) {
	// Needs 40 units but only 10 stored: a quarter of the period runs and
	// the battery drains to zero.
	plan, err := planAccrual(2, 100, 20, 10, 1.0, 1.0)
	if err != nil {
		t.Fatalf("planAccrual: %v", err)
	}
	if plan.WorkedHours != 0.5 {
		t.Fatalf("worked hours = %v, want 0.5", plan.WorkedHours)
	}
	if plan.Coins != 50 {
		t.Fatalf("coins = %d, want 50", plan.Coins)
	}
	if plan.ElectricityUsed != 10 {
		t.Fatalf("electricity used = %d, want 10 (all of it)", plan.ElectricityUsed)
	}
}

func TestPlanAccrualNoElectricity(t *testing.T) {
	_, err := planAccrual(2, 100, 20, 0, 1.0, 1.0)
	if !errors.Is(err, ErrInsufficientResource) {
		t.Fatalf("empty battery with demand should fail, got %v", err)
	}
	if !errors.Is(err, ErrNoElectricity) {
		t.Fatalf("expected ErrNoElectricity, got %v", err)
	}

	// No draw means no demand: an empty battery is fine.
	plan, err := planAccrual(2, 100, 0, 0, 1.0, 1.0)
	if err != nil {
		t.Fatalf("zero-draw plan failed: %v", err)
	}
	if plan.Coins != 200 {
		t.Fatalf("zero-draw coins = %d, want 200", plan.Coins)
	}
}

func TestPlanAccrualRequirementTruncates(t *testing.T) {
	// 0.04h at 20 draw/h needs 0.8 units, which truncates to 0: the
	// window runs free.
	plan, err := planAccrual(0.04, 100, 20, 100, 1.0, 1.0)
	if err != nil {
		t.Fatalf("planAccrual: %v", err)
	}
	if plan.ElectricityUsed != 0 {
		t.Fatalf("sub-unit requirement burned %d electricity, want 0", plan.ElectricityUsed)
	}
	if plan.WorkedHours != 0.04 {
		t.Fatalf("worked hours = %v, want full 0.04", plan.WorkedHours)
	}

	// And a free window does not fail even on an empty battery.
	if _, err := planAccrual(0.04, 100, 20, 0, 1.0, 1.0); err != nil {
		t.Fatalf("free window on empty battery failed: %v", err)
	}
}

func TestPlanAccrualMultipliers(t *testing.T) {
	plan, err := planAccrual(1, 100, 0, 0, 1.2, 1.5)
	if err != nil {
		t.Fatalf("planAccrual: %v", err)
	}
	if plan.Coins != 180 {
		t.Fatalf("coins with multipliers = %d, want 180", plan.Coins)
	}
	if plan.ElectricityUsed != 0 {
		t.Fatalf("zero-draw producers should not burn electricity, used %d", plan.ElectricityUsed)
	}
}

func TestDiamondWhole(t *testing.T) {
	whole, frac := diamondWhole(2.75)
	if whole != 2 || math.Abs(frac-0.75) > 1e-9 {
		t.Fatalf("diamondWhole(2.75) = %d, %v", whole, frac)
	}
	whole, frac = diamondWhole(0.3)
	if whole != 0 || math.Abs(frac-0.3) > 1e-9 {
		t.Fatalf("diamondWhole(0.3) = %d, %v", whole, frac)
	}
}
