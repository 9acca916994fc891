package cache

import (
	"context"
	"sync"
	"time"

	"github.com/bloopsocial/bloop/internal/realtime"
)

type entry struct {
	n       int
	expires time.Time
}

// MemoryCache keeps unread counts in process memory
type MemoryCache struct {
	mu  sync.RWMutex
	m   map[string]entry
	ttl time.Duration
	now func() time.Time
}

var _ realtime.UnreadCache = (*MemoryCache)(nil)

// NewMemoryCache creates a cache whose entries live for ttl
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		m:   make(map[string]entry),
		ttl: ttl,
		now: time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, userID string) (int, bool, error) {
	c.mu.RLock()
	e, ok := c.m[userID]
	c.mu.RUnlock()
	if !ok {
		return 0, false, nil
	}
	if c.now().After(e.expires) {
		c.mu.Lock()
		delete(c.m, userID)
		c.mu.Unlock()
		return 0, false, nil
	}
	return e.n, true, nil
}

func (c *MemoryCache) Set(_ context.Context, userID string, n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[userID] = entry{n: n, expires: c.now().Add(c.ttl)}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, userID)
	return nil
}
