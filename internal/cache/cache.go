// Package cache is a get/set-with-TTL cache for backend read models.
//
// Expiry is lazy: a Get that finds an entry older than its TTL deletes it and
// reports a miss in the same call. There is no background sweep.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNotFound is returned by backends for a missing key.
var ErrNotFound = errors.New("cache entry not found")

// Entry is one stored value. Data is the JSON encoding of the cached value.
type Entry struct {
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	TTL       time.Duration   `json:"ttl"`
}

// Expired reports whether the entry is past its TTL at now.
// An entry aged exactly TTL is still valid.
func (e Entry) Expired(now time.Time) bool {
	return now.Sub(e.Timestamp) > e.TTL
}

// Backend stores entries. Implementations need not be safe for concurrent use;
// Cache serializes access.
type Backend interface {
	Get(key string) (Entry, error)
	Put(e Entry) error
	Delete(key string) error
	Clear() error
	Close() error
}

// Cache wraps a Backend with TTL semantics and JSON encoding.
type Cache struct {
	mu      sync.Mutex
	backend Backend
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache over backend.
func New(backend Backend, opts ...Option) (*Cache, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	c := &Cache{backend: backend, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Open returns a cache persisted at path, or an in-memory cache when path is empty.
func Open(path string, opts ...Option) (*Cache, error) {
	if path == "" {
		return New(NewMemory(), opts...)
	}
	b, err := OpenBolt(path)
	if err != nil {
		return nil, err
	}
	return New(b, opts...)
}

// Get decodes the live entry for key into out and reports whether it was found.
// An expired entry is removed and reported as a miss.
func (c *Cache) Get(key string, out any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, err := c.backend.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if e.Expired(c.now()) {
		if err := c.backend.Delete(key); err != nil {
			return false, fmt.Errorf("cache evict %s: %w", key, err)
		}
		return false, nil
	}

	if err := json.Unmarshal(e.Data, out); err != nil {
		// An undecodable entry is as good as absent.
		_ = c.backend.Delete(key)
		return false, nil
	}
	return true, nil
}

// Set stores v under key for ttl.
func (c *Cache) Set(key string, v any, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("cache set %s: ttl must be positive, got %s", key, ttl)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend.Put(Entry{Key: key, Data: data, Timestamp: c.now(), TTL: ttl})
}

// Delete removes key. Deleting a missing key is not an error.
func (c *Cache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend.Delete(key)
}

// Clear removes every entry.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend.Clear()
}

// Close releases the backend.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend.Close()
}
