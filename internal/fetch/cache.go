package fetch

import (
	"context"
	"sync"
)

// Cache memoises page bodies by URL for the lifetime of one run.
// Adapters that share an endpoint trigger a single network fetch.
// There is no eviction: the key space is the fixed set of source URLs.
type Cache struct {
	fetcher Fetcher

	mu      sync.Mutex
	entries map[string]*entry
	fetches int
}

type entry struct {
	ready chan struct{}
	body  string
	err   error
}

// NewCache creates an empty cache backed by f.
func NewCache(f Fetcher) *Cache {
	return &Cache{fetcher: f, entries: make(map[string]*entry)}
}

// Get returns the body for req.URL, fetching it on first use.
// Concurrent callers for the same URL wait on the same fetch. A failed
// fetch is not cached, so a later call performs a new attempt.
func (c *Cache) Get(ctx context.Context, req Request) (string, error) {
	c.mu.Lock()
	if e, ok := c.entries[req.URL]; ok {
		c.mu.Unlock()
		select {
		case <-e.ready:
			return e.body, e.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	e := &entry{ready: make(chan struct{})}
	c.entries[req.URL] = e
	c.fetches++
	c.mu.Unlock()

	e.body, e.err = c.fetcher.Fetch(ctx, req)
	if e.err != nil {
		c.mu.Lock()
		delete(c.entries, req.URL)
		c.mu.Unlock()
	}
	close(e.ready)
	return e.body, e.err
}

// Fetches returns how many network fetches the cache has issued.
func (c *Cache) Fetches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}

// Len returns the number of cached bodies.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		select {
		case <-e.ready:
			if e.err == nil {
				n++
			}
		default:
		}
	}
	return n
}
