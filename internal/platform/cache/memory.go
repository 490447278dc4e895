package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memItem struct {
	data    []byte
	expires time.Time
}

// MemoryCache is the in-process fallback used when REDIS_URL is unset.
// Values are stored encoded so callers never share mutable state.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]memItem
	now   func() time.Time
}

func NewMemory() *MemoryCache {
	return &MemoryCache{items: make(map[string]memItem), now: time.Now}
}

func (m *MemoryCache) Get(_ context.Context, key string, dst interface{}) error {
	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()

	if !ok {
		return ErrMiss
	}
	if !item.expires.IsZero() && !m.now().Before(item.expires) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return ErrMiss
	}
	return json.Unmarshal(item.data, dst)
}

func (m *MemoryCache) Set(_ context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := encode(v)
	if err != nil {
		return err
	}
	item := memItem{data: data}
	if ttl > 0 {
		item.expires = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.items[key] = item
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.items, k)
	}
	m.mu.Unlock()
	return nil
}
