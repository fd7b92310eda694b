package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type memEntry struct {
	data    []byte
	expires time.Time // zero means no expiry
}

// Memory is a process-local Cache. Values are stored JSON-encoded so callers
// see the same copy semantics as with Redis.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memEntry), now: time.Now}
}

func (c *Memory) Get(_ context.Context, key string, dest any) error {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		return ErrMiss
	}
	if err := json.Unmarshal(e.data, dest); err != nil {
		return fmt.Errorf("decode cached %s: %w", key, err)
	}
	return nil
}

func (c *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}

	e := memEntry{data: data}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

func (c *Memory) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}
