package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"stock-scannerv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// Stream trimming: enough to replay a few days of alerts per symbol.
	signalStreamMaxLen = 1000
	defaultLatestTTL   = 30 * time.Minute
)

// PublisherConfig configures the Redis publisher.
type PublisherConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Publisher writes confirmed signals and notification intents to Redis
// so dashboards and downstream consumers can subscribe to them live.
type Publisher struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// New creates a new Redis Publisher and pings the server.
func New(cfg PublisherConfig) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{client: client}, nil
}

// PublishIntent writes a delivered notification intent to Redis:
// SET latest per symbol, XADD to the symbol's signal stream, and
// PUBLISH for live subscribers. All three go in one pipeline.
func (p *Publisher) PublishIntent(ctx context.Context, intent model.NotificationIntent) error {
	jsonData := string(intent.JSON())

	latestKey := "signal:latest:" + string(intent.Symbol)
	streamKey := "signal:" + string(intent.Symbol)

	pipe := p.client.Pipeline()
	pipe.Set(ctx, latestKey, jsonData, defaultLatestTTL)
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: streamKey,
		MaxLen: signalStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": jsonData},
	})
	pipe.Publish(ctx, intent.PubSubChannel(), jsonData)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish %s: %w", intent.Symbol, err)
	}
	return nil
}

// PublishScanStatus publishes a lightweight scan heartbeat for dashboards.
func (p *Publisher) PublishScanStatus(ctx context.Context, payload string) {
	if err := p.client.Publish(ctx, "pub:scan:status", payload).Err(); err != nil {
		log.Printf("[redis] scan status publish error: %v", err)
	}
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
