package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"stock-scannerv1/internal/model"
)

// unreachablePublisher returns a Publisher whose client can never connect,
// so every publish attempt fails without needing a Redis server.
func unreachablePublisher() *Publisher {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:0",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	return &Publisher{client: client}
}

func testIntent(sym model.Symbol) model.NotificationIntent {
	return model.NotificationIntent{
		ID:            "test-" + string(sym),
		Symbol:        sym,
		SignalDetails: "test",
	}
}

func TestBufferedPublisher_BuffersWhileOpen(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	bp := NewBufferedPublisher(context.Background(), unreachablePublisher(), cb, 10)

	buffered := 0
	bp.OnBuffer = func() { buffered++ }

	// First publish trips the breaker; its error surfaces to the caller.
	if err := bp.PublishIntent(testIntent("AAPL")); err == nil {
		t.Fatal("expected a publish error while tripping the breaker")
	}
	if cb.CurrentState() != StateOpen {
		t.Fatalf("expected Open after first failure, got %v", cb.CurrentState())
	}

	// With the breaker open, publishes are absorbed into the buffer.
	if err := bp.PublishIntent(testIntent("MSFT")); err != nil {
		t.Fatalf("expected buffered publish to return nil, got %v", err)
	}
	if err := bp.PublishIntent(testIntent("NVDA")); err != nil {
		t.Fatalf("expected buffered publish to return nil, got %v", err)
	}

	if buffered != 2 {
		t.Errorf("expected OnBuffer fired twice, got %d", buffered)
	}
	if got := bp.PendingCount(); got != 2 {
		t.Errorf("expected 2 pending intents, got %d", got)
	}
}

func TestBufferedPublisher_DropsOldestWhenFull(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	bp := NewBufferedPublisher(context.Background(), unreachablePublisher(), cb, 2)

	bp.PublishIntent(testIntent("AAPL")) // trips the breaker
	bp.PublishIntent(testIntent("MSFT"))
	bp.PublishIntent(testIntent("NVDA"))
	bp.PublishIntent(testIntent("TSLA")) // displaces MSFT

	if got := bp.PendingCount(); got != 2 {
		t.Errorf("expected buffer capped at 2, got %d", got)
	}
}

func TestBufferedPublisher_FlushReportsCount(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	bp := NewBufferedPublisher(context.Background(), unreachablePublisher(), cb, 10)

	bp.PublishIntent(testIntent("AAPL")) // trips the breaker
	bp.PublishIntent(testIntent("MSFT"))

	flushCount := -1
	bp.OnFlush = func(count int) { flushCount = count }

	// Redis is still unreachable, so the replay delivers nothing, but the
	// callback must fire and the buffer must drain.
	bp.flush()

	if flushCount != 0 {
		t.Errorf("expected OnFlush(0) against unreachable redis, got %d", flushCount)
	}
	if got := bp.PendingCount(); got != 0 {
		t.Errorf("expected empty buffer after flush, got %d", got)
	}
}

func TestBufferedPublisher_FlushSkipsWhenEmpty(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	bp := NewBufferedPublisher(context.Background(), unreachablePublisher(), cb, 10)

	called := false
	bp.OnFlush = func(int) { called = true }
	bp.flush()

	if called {
		t.Error("OnFlush must not fire with nothing buffered")
	}
}
