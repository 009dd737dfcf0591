package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go-concord/internal/diplomacy/models"

	"github.com/google/uuid"
)

// Locker serializes mutations on a key. Lock blocks until the key is free or
// ctx is done; the returned func releases the lock and is safe to call once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

func pairLockKey(key models.PairKey) string {
	return "diplomacy:pair:" + string(key)
}

func allianceLockKey(id string) string {
	return "diplomacy:alliance:" + id
}

// LocalLocker is an in-process Locker built on one-slot channels per key
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*localSlot
}

type localSlot struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*localSlot)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &localSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, slot, false)
		return nil, fmt.Errorf("lock %s: %w", key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, slot, true) })
	}, nil
}

func (l *LocalLocker) release(key string, slot *localSlot, held bool) {
	if held {
		<-slot.ch
	}
	l.mu.Lock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
	l.mu.Unlock()
}

// lockClient is the subset of database.Redis the distributed locker needs
type lockClient interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// RedisLocker is a distributed Locker using SET NX with a per-holder token
type RedisLocker struct {
	client     lockClient
	ttl        time.Duration
	retryDelay time.Duration
	maxDelay   time.Duration
}

func NewRedisLocker(client lockClient, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client:     client,
		ttl:        ttl,
		retryDelay: 20 * time.Millisecond,
		maxDelay:   250 * time.Millisecond,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.New().String()
	delay := l.retryDelay

	for {
		acquired, err := l.client.AcquireLock(ctx, key, token, l.ttl)
		if err != nil {
			return nil, err
		}
		if acquired {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("lock %s: %w", key, ctx.Err())
		case <-timer.C:
		}
		if delay *= 2; delay > l.maxDelay {
			delay = l.maxDelay
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := l.client.ReleaseLock(ctx, key, token); err != nil {
				slog.Warn("Failed to release diplomacy lock, it will expire by TTL", "key", key, "error", err)
			}
		})
	}, nil
}
