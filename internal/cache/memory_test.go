package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryGetSetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.Get(ctx, "missing"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
	if err := m.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := m.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("get after set: %q, %v", got, err)
	}
	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	if err := m.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := m.Get(ctx, "k"); err != nil {
		t.Fatalf("fresh entry should hit: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expired entry should miss, got %v", err)
	}
}

func TestGetOrSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	calls := 0
	fill := func(context.Context) ([]byte, error) {
		calls++
		return []byte("filled"), nil
	}
	got, err := GetOrSet(ctx, m, "k", time.Minute, fill)
	if err != nil || string(got) != "filled" {
		t.Fatalf("first fill: %q, %v", got, err)
	}
	got, err = GetOrSet(ctx, m, "k", time.Minute, fill)
	if err != nil || string(got) != "filled" {
		t.Fatalf("cached read: %q, %v", got, err)
	}
	if calls != 1 {
		t.Fatalf("fill ran %d times, want 1", calls)
	}

	_, err = GetOrSet(ctx, m, "bad", time.Minute, func(context.Context) ([]byte, error) {
		return nil, errors.New("boom")
	})
	if err == nil {
		t.Fatalf("fill error should propagate")
	}
}
