package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Memory is an in-process Cache used when Redis is not configured and in
// tests. Reads never extend an entry's lifetime.
type Memory struct {
	items *ttlcache.Cache[string, []byte]
}

// NewMemory starts the expired entry sweeper. Close stops it.
func NewMemory() *Memory {
	items := ttlcache.New[string, []byte](
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go items.Start()
	return &Memory{items: items}
}

func (m *Memory) Close() error {
	m.items.Stop()
	return nil
}

// itemTTL maps a non-positive ttl to an entry that never expires.
func itemTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttlcache.NoTTL
	}
	return ttl
}

func cloneBytes(value []byte) []byte {
	out := make([]byte, len(value))
	copy(out, value)
	return out
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	item := m.items.Get(key)
	if item == nil {
		return nil, false, nil
	}
	return cloneBytes(item.Value()), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.items.Set(key, cloneBytes(value), itemTTL(ttl))
	return nil
}

func (m *Memory) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	_, found := m.items.GetOrSet(key, cloneBytes(value), ttlcache.WithTTL[string, []byte](itemTTL(ttl)))
	return !found, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.items.Delete(key)
	return nil
}
