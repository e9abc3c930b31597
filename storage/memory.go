package storage

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore keeps entries in process memory. It backs tests and
// short-lived CLI sessions.
type MemoryStore struct {
	mu     sync.RWMutex
	cache  *ttlcache.Cache[string, string]
	closed bool
	stop   sync.Once
}

// NewMemoryStore creates a MemoryStore and starts its expiry loop.
func NewMemoryStore() *MemoryStore {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, string](),
	)

	go cache.Start()

	return &MemoryStore{cache: cache}
}

func memoryTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttlcache.NoTTL
	}
	return ttl
}

// Get implements Store.Get.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", false, ErrClosed
	}

	item := s.cache.Get(key)
	if item == nil {
		return "", false, nil
	}
	return item.Value(), true, nil
}

// GetMany implements Store.GetMany.
func (s *MemoryStore) GetMany(_ context.Context, keys ...string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	out := make(map[string]string, len(keys))
	for _, key := range keys {
		if item := s.cache.Get(key); item != nil {
			out[key] = item.Value()
		}
	}
	return out, nil
}

// SetMany implements Store.SetMany.
func (s *MemoryStore) SetMany(_ context.Context, entries map[string]string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	for key, value := range entries {
		s.cache.Set(key, value, memoryTTL(ttl))
	}
	return nil
}

// DeleteMany implements Store.DeleteMany.
func (s *MemoryStore) DeleteMany(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	for _, key := range keys {
		s.cache.Delete(key)
	}
	return nil
}

// Len returns the number of live entries.
func (s *MemoryStore) Len() int {
	return s.cache.Len()
}

// Close stops the expiry loop. The store is unusable afterwards.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.stop.Do(s.cache.Stop)
	return nil
}

var _ Store = (*MemoryStore)(nil)
