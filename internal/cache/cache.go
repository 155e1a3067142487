package cache

import (
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/hpungsan/qsyntax/internal/session"
)

const (
	DefaultSize = 50
	DefaultTTL  = 5 * time.Minute
)

type entry struct {
	response string
	storedAt time.Time
}

// ResponseCache maps normalized prompts to model replies.
// It holds at most size entries and evicts the oldest-inserted one first.
// Expired entries are invisible to Get but stay until evicted.
type ResponseCache struct {
	mu      sync.Mutex
	entries *orderedmap.OrderedMap[string, entry]
	size    int
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a ResponseCache.
type Option func(*ResponseCache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *ResponseCache) { c.now = now }
}

// New returns an empty cache. Non-positive arguments fall back to the defaults.
func New(size int, ttl time.Duration, opts ...Option) *ResponseCache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &ResponseCache{
		entries: orderedmap.New[string, entry](),
		size:    size,
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached reply for text if it was stored less than ttl ago.
func (c *ResponseCache) Get(text string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Get(session.Normalize(text))
	if !ok || c.now().Sub(e.storedAt) >= c.ttl {
		return "", false
	}
	return e.response, true
}

// Set stores response under the normalized text. Re-setting a present key
// refreshes it in place and keeps its insertion position.
func (c *ResponseCache) Set(text, response string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := session.Normalize(text)
	if _, present := c.entries.Get(key); !present {
		for c.entries.Len() >= c.size {
			oldest := c.entries.Oldest()
			if oldest == nil {
				break
			}
			c.entries.Delete(oldest.Key)
		}
	}
	c.entries.Set(key, entry{response: response, storedAt: c.now()})
}

// Len returns the number of stored entries, expired ones included.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}
