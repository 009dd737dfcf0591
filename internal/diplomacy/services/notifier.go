package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go-concord/internal/diplomacy/models"

	"github.com/google/uuid"
)

// Notifier accepts committed domain events. Notify must never block the caller.
type Notifier interface {
	Notify(ctx context.Context, event models.Event)
}

// EventSink delivers a single event to an external transport
type EventSink interface {
	Publish(ctx context.Context, event models.Event) error
}

// AsyncNotifier queues events in a bounded buffer and delivers them to a sink
// from one background goroutine. Events that do not fit are dropped and logged.
type AsyncNotifier struct {
	sink           EventSink
	queue          chan models.Event
	done           chan struct{}
	publishTimeout time.Duration

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	sent    atomic.Int64
}

// NewAsyncNotifier starts the delivery goroutine; call Close to drain it
func NewAsyncNotifier(sink EventSink, buffer int) *AsyncNotifier {
	if buffer < 1 {
		buffer = 1
	}
	n := &AsyncNotifier{
		sink:           sink,
		queue:          make(chan models.Event, buffer),
		done:           make(chan struct{}),
		publishTimeout: 5 * time.Second,
	}
	go n.run()
	return n
}

func (n *AsyncNotifier) Notify(ctx context.Context, event models.Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		n.drop(ctx, event, "notifier closed")
		return
	}
	select {
	case n.queue <- event:
	default:
		n.drop(ctx, event, "event buffer full")
	}
}

func (n *AsyncNotifier) drop(ctx context.Context, event models.Event, reason string) {
	n.dropped.Add(1)
	slog.WarnContext(ctx, "Dropping diplomacy event",
		"event_id", event.ID,
		"event_type", event.Type,
		"reason", reason)
}

func (n *AsyncNotifier) run() {
	defer close(n.done)
	for event := range n.queue {
		ctx, cancel := context.WithTimeout(context.Background(), n.publishTimeout)
		if err := n.sink.Publish(ctx, event); err != nil {
			slog.Error("Failed to publish diplomacy event",
				"event_id", event.ID,
				"event_type", event.Type,
				"error", err)
		} else {
			n.sent.Add(1)
		}
		cancel()
	}
}

// Close stops accepting events and waits for queued ones to be delivered
func (n *AsyncNotifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()

	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notifier drain: %w", ctx.Err())
	}
}

// Dropped returns the number of events discarded since start
func (n *AsyncNotifier) Dropped() int64 {
	return n.dropped.Load()
}

// Sent returns the number of events delivered successfully
func (n *AsyncNotifier) Sent() int64 {
	return n.sent.Load()
}

// Pending returns the number of events waiting for delivery
func (n *AsyncNotifier) Pending() int {
	return len(n.queue)
}

// publishClient is satisfied by database.Redis
type publishClient interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisPublisher publishes JSON encoded events on a pub/sub channel
type RedisPublisher struct {
	client  publishClient
	channel string
}

func NewRedisPublisher(client publishClient, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", event.ID, err)
	}
	return p.client.Publish(ctx, p.channel, payload)
}

// LogPublisher writes events to the structured log
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, event models.Event) error {
	slog.InfoContext(ctx, "Diplomacy event",
		"event_id", event.ID,
		"event_type", event.Type,
		"teams", event.Teams())
	return nil
}
