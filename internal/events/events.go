// Package events carries post-commit change notifications out of the game
// engine. The engine publishes after a unit of work commits; caching layers
// subscribe and evict. Publishing is fire-and-forget: the engine never fails
// an operation because a notification could not be delivered.
package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const Channel = "minegrid.events"

type Publisher interface {
	Publish(ctx context.Context, event string)
}

func PlayerChanged(playerID int64) string {
	return fmt.Sprintf("player:%d", playerID)
}

func MarketChanged() string {
	return "market"
}

func AuctionChanged(auctionID int64) string {
	return fmt.Sprintf("auction:%d", auctionID)
}

func ShopChanged() string {
	return "shop"
}

func LeaderboardChanged() string {
	return "leaderboard"
}

// RedisPublisher fans events out over a pub/sub channel.
type RedisPublisher struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedisPublisher(client *redis.Client, logger *slog.Logger) *RedisPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPublisher{client: client, log: logger}
}

func (p *RedisPublisher) Publish(ctx context.Context, event string) {
	if err := p.client.Publish(ctx, Channel, event).Err(); err != nil {
		p.log.Warn("event publish failed", "event", event, "err", err)
	}
}

// NopPublisher drops all events; used when no cache layer is deployed.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string) {}
