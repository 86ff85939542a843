package core

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginThrottle locks a client out after repeated login failures.
type LoginThrottle interface {
	// Locked returns how long key stays locked; zero when login may proceed.
	Locked(ctx context.Context, key string) (time.Duration, error)
	// Fail records a failure and returns the attempts left before lockout.
	Fail(ctx context.Context, key string) (int, error)
	// Reset forgets failures for key after a successful login.
	Reset(ctx context.Context, key string) error
}

// NewLoginThrottle picks the backend named by cfg.LoginThrottle.
func NewLoginThrottle(cfg Config, client *redis.Client) LoginThrottle {
	window := time.Duration(cfg.LoginWindowSeconds) * time.Second
	if cfg.LoginThrottle == "redis" && client != nil {
		return NewRedisLoginThrottle(client, cfg.LoginMaxAttempts, window)
	}
	return NewMemoryLoginThrottle(cfg.LoginMaxAttempts, window)
}

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// MemoryLoginThrottle keeps counters in process memory.
type MemoryLoginThrottle struct {
	maxAttempts int
	window      time.Duration
	now         func() time.Time

	mu       sync.Mutex
	attempts map[string]*attemptState
}

func NewMemoryLoginThrottle(maxAttempts int, window time.Duration) *MemoryLoginThrottle {
	return &MemoryLoginThrottle{
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
		attempts:    make(map[string]*attemptState),
	}
}

func (m *MemoryLoginThrottle) Locked(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.attempts[key]
	if !ok {
		return 0, nil
	}
	now := m.now()
	if !now.Before(state.lockedUntil) {
		return 0, nil
	}
	return state.lockedUntil.Sub(now), nil
}

func (m *MemoryLoginThrottle) Fail(_ context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.pruneLocked(now)
	state, ok := m.attempts[key]
	if !ok || now.Sub(state.firstAttempt) > m.window {
		state = &attemptState{firstAttempt: now}
		m.attempts[key] = state
	}

	state.count++
	if state.count >= m.maxAttempts {
		state.lockedUntil = now.Add(m.window)
		state.count = m.maxAttempts
	}
	return max(m.maxAttempts-state.count, 0), nil
}

// pruneLocked drops states whose window and lockout have both passed. Caller holds m.mu.
func (m *MemoryLoginThrottle) pruneLocked(now time.Time) {
	for key, state := range m.attempts {
		if now.Sub(state.firstAttempt) > m.window && !now.Before(state.lockedUntil) {
			delete(m.attempts, key)
		}
	}
}

func (m *MemoryLoginThrottle) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attempts, key)
	return nil
}

// RedisLoginThrottle shares counters between API instances.
type RedisLoginThrottle struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
}

func NewRedisLoginThrottle(client *redis.Client, maxAttempts int, window time.Duration) *RedisLoginThrottle {
	return &RedisLoginThrottle{client: client, maxAttempts: maxAttempts, window: window}
}

func throttleCountKey(key string) string { return "login:fail:" + key }
func throttleLockKey(key string) string  { return "login:lock:" + key }

func (t *RedisLoginThrottle) Locked(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := t.client.TTL(ctx, throttleLockKey(key)).Result()
	if err != nil {
		return 0, err
	}
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

// Fail increments the counter and refreshes its expiry in one MULTI, so a counter
// never outlives the window without a failure.
func (t *RedisLoginThrottle) Fail(ctx context.Context, key string) (int, error) {
	var incr *redis.IntCmd
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, throttleCountKey(key))
		pipe.Expire(ctx, throttleCountKey(key), t.window)
		return nil
	})
	if err != nil {
		return 0, err
	}
	count := incr.Val()
	if count >= int64(t.maxAttempts) {
		if err := t.client.Set(ctx, throttleLockKey(key), strconv.FormatInt(count, 10), t.window).Err(); err != nil {
			return 0, err
		}
		if err := t.client.Del(ctx, throttleCountKey(key)).Err(); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return t.maxAttempts - int(count), nil
}

func (t *RedisLoginThrottle) Reset(ctx context.Context, key string) error {
	return t.client.Del(ctx, throttleCountKey(key), throttleLockKey(key)).Err()
}
