package ratelimit

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounterStore implements CounterStore with an in-process map.
// Suitable for single-instance deployments and testing. Expired
// counters are reset lazily on access and swept periodically.
type MemoryCounterStore struct {
	mu        sync.Mutex
	counters  map[string]*counter
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMemoryCounterStore creates an in-memory counter store and starts
// its background sweep goroutine.
func NewMemoryCounterStore() *MemoryCounterStore {
	store := &MemoryCounterStore{
		counters: make(map[string]*counter),
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.sweepLoop()

	return store
}

// Incr increments the counter for key within the window.
// A counter whose window has elapsed restarts from zero.
func (s *MemoryCounterStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	c, ok := s.counters[key]
	if !ok || now.After(c.expiresAt) {
		c = &counter{expiresAt: now.Add(window)}
		s.counters[key] = c
	}

	c.count++
	return c.count, nil
}

// Close stops the sweep goroutine. Safe to call multiple times.
func (s *MemoryCounterStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *MemoryCounterStore) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryCounterStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, c := range s.counters {
		if now.After(c.expiresAt) {
			delete(s.counters, key)
		}
	}
}

var _ CounterStore = (*MemoryCounterStore)(nil)
