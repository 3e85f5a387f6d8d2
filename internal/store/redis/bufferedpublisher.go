package redis

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"stock-scannerv1/internal/model"
)

// BufferedPublisher wraps a Publisher with a circuit breaker.
// While the circuit is open, intents are buffered locally and replayed
// once the circuit closes again, so a Redis outage never blocks a scan
// or loses a confirmed signal.
type BufferedPublisher struct {
	pub *Publisher
	cb  *CircuitBreaker
	ctx context.Context

	mu     sync.Mutex
	buffer [][]byte
	maxBuf int

	// Callbacks
	OnBuffer func()          // called when an intent is buffered (for metrics)
	OnFlush  func(count int) // called after flushing buffered intents
}

// NewBufferedPublisher creates a BufferedPublisher wrapping the given Publisher.
func NewBufferedPublisher(ctx context.Context, p *Publisher, cb *CircuitBreaker, maxBufferSize int) *BufferedPublisher {
	if maxBufferSize <= 0 {
		maxBufferSize = 1000
	}
	bp := &BufferedPublisher{
		pub:    p,
		cb:     cb,
		ctx:    ctx,
		buffer: make([][]byte, 0, 64),
		maxBuf: maxBufferSize,
	}

	// Flush on circuit close, chaining any existing callback.
	prevCallback := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prevCallback != nil {
			prevCallback(from, to)
		}
		if to == StateClosed {
			go bp.flush()
		}
	}

	return bp
}

// PublishIntent publishes an intent through the circuit breaker.
// If the circuit is open, the intent is buffered locally.
func (bp *BufferedPublisher) PublishIntent(intent model.NotificationIntent) error {
	err := bp.cb.Execute(func() error {
		return bp.pub.PublishIntent(bp.ctx, intent)
	})
	if err == ErrCircuitOpen {
		bp.bufferIntent(intent)
		return nil // buffered, not lost
	}
	return err
}

func (bp *BufferedPublisher) bufferIntent(intent model.NotificationIntent) {
	data, err := json.Marshal(intent)
	if err != nil {
		log.Printf("[buffered-publisher] marshal error: %v", err)
		return
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()

	if len(bp.buffer) >= bp.maxBuf {
		// Buffer full, drop oldest
		bp.buffer = bp.buffer[1:]
	}
	bp.buffer = append(bp.buffer, data)

	if bp.OnBuffer != nil {
		bp.OnBuffer()
	}
}

// flush replays all buffered intents through the underlying publisher.
func (bp *BufferedPublisher) flush() {
	bp.mu.Lock()
	if len(bp.buffer) == 0 {
		bp.mu.Unlock()
		return
	}
	toFlush := bp.buffer
	bp.buffer = make([][]byte, 0, 64)
	bp.mu.Unlock()

	flushed := 0
	for _, data := range toFlush {
		var intent model.NotificationIntent
		if json.Unmarshal(data, &intent) != nil {
			continue
		}
		if err := bp.pub.PublishIntent(bp.ctx, intent); err != nil {
			log.Printf("[buffered-publisher] replay error for %s: %v", intent.Symbol, err)
			continue
		}
		flushed++
	}

	log.Printf("[buffered-publisher] flushed %d buffered intents", flushed)
	if bp.OnFlush != nil {
		bp.OnFlush(flushed)
	}
}

// PendingCount returns the number of buffered intents waiting to be flushed.
func (bp *BufferedPublisher) PendingCount() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.buffer)
}

// Underlying returns the wrapped publisher for direct access.
func (bp *BufferedPublisher) Underlying() *Publisher {
	return bp.pub
}
