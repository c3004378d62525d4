package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// Memory is a process-local limiter for deployments without Redis.
type Memory struct {
	mu       sync.Mutex
	store    limiter.Store
	limiters map[limiter.Rate]*limiter.Limiter
}

// NewMemory returns an in-memory limiter.
func NewMemory() *Memory {
	return &Memory{
		store:    memory.NewStore(),
		limiters: make(map[limiter.Rate]*limiter.Limiter),
	}
}

func (m *Memory) limiterFor(rate limiter.Rate) *limiter.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.limiters[rate]
	if !ok {
		l = limiter.New(m.store, rate)
		m.limiters[rate] = l
	}
	return l
}

// Allow counts an event for key in a fixed window of the given size.
func (m *Memory) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}
	rate := limiter.Rate{Period: window, Limit: int64(max)}
	// rates share one store, so the key carries the rate
	res, err := m.limiterFor(rate).Get(ctx, fmt.Sprintf("%d/%s:%s", max, window, key))
	if err != nil {
		return false, 0, time.Now().Add(window), fmt.Errorf("ratelimit: %w", err)
	}
	return !res.Reached, int(res.Remaining), time.Unix(res.Reset, 0), nil
}
