package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotObtained is returned when a lock is still held by someone else after all retries
var ErrNotObtained = errors.New("lock not obtained")

// Lock is a held lock
type Lock interface {
	Release(ctx context.Context) error
}

// Locker hands out exclusive locks by key
type Locker interface {
	Obtain(ctx context.Context, key string) (Lock, error)
}

// OpportunityKey is the lock key serializing writes to one opportunity's amount
func OpportunityKey(orgID, opportunityID uuid.UUID) string {
	return fmt.Sprintf("pipeline:opportunity:%s:%s", orgID, opportunityID)
}

// RedisLocker is a Locker shared by every API instance, backed by redislock
type RedisLocker struct {
	client  *redislock.Client
	ttl     time.Duration
	retries int
}

// NewRedisLocker creates a distributed locker. Locks expire after ttl if never released.
func NewRedisLocker(rdb redis.UniversalClient, ttl time.Duration, retries int) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{client: redislock.New(rdb), ttl: ttl, retries: retries}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string) (Lock, error) {
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.ExponentialBackoff(20*time.Millisecond, 500*time.Millisecond), l.retries),
	}

	lk, err := l.client.Obtain(ctx, key, l.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	return redisLock{lk}, nil
}

type redisLock struct {
	lock *redislock.Lock
}

func (l redisLock) Release(ctx context.Context) error {
	err := l.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}

// MemoryLocker serializes by key inside one process. Used when Redis is not configured.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]*slot)}
}

// Obtain waits for key until ctx is done
func (l *MemoryLocker) Obtain(ctx context.Context, key string) (Lock, error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		return &memoryLock{locker: l, key: key, slot: s}, nil
	case <-ctx.Done():
		l.unref(key, s)
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
}

func (l *MemoryLocker) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

type memoryLock struct {
	locker *MemoryLocker
	key    string
	slot   *slot
	once   sync.Once
}

func (l *memoryLock) Release(context.Context) error {
	l.once.Do(func() {
		<-l.slot.ch
		l.locker.unref(l.key, l.slot)
	})
	return nil
}
