package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	count   int64
	resetAt time.Time
}

// MemoryCounter keeps windows in process memory. It is suitable for a
// single server instance only.
type MemoryCounter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewMemoryCounter creates an empty in-memory counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{buckets: make(map[string]*bucket)}
}

// Increment implements Counter.
func (c *MemoryCounter) Increment(_ context.Context, key string, window time.Duration, now time.Time) (int64, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{resetAt: now.Add(window)}
		c.buckets[key] = b
	}
	b.count++
	return b.count, b.resetAt, nil
}

// Prune drops windows that have expired by now.
func (c *MemoryCounter) Prune(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, b := range c.buckets {
		if !now.Before(b.resetAt) {
			delete(c.buckets, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of live windows.
func (c *MemoryCounter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buckets)
}

// Run prunes expired windows every interval until ctx is done.
func (c *MemoryCounter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.Prune(now)
		}
	}
}
