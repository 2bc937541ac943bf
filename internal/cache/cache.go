// Package cache provides a small TTL cache behind one interface, with an
// in-process implementation for single-node deploys and a Redis one for
// shared deploys.
package cache

import (
	"context"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache: miss")

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// GetOrSet returns the cached value for key, filling it from fn on a miss.
// Fill errors propagate; cache write errors do not.
func GetOrSet(ctx context.Context, c Cache, key string, ttl time.Duration, fn func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if v, err := c.Get(ctx, key); err == nil {
		return v, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		return nil, err
	}
	v, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	_ = c.Set(ctx, key, v, ttl)
	return v, nil
}
