package cache

import (
	"context"
	"log/slog"
	"time"
)

// Cache defines a generic cache interface. Implementations treat backend
// failures as misses; a cache is never the source of truth.
type Cache[T any] interface {
	// Get retrieves a value from the cache
	Get(ctx context.Context, key string) (T, bool)

	// Set stores a value in the cache
	Set(ctx context.Context, key string, data T)

	// Delete removes a key from the cache
	Delete(ctx context.Context, key string)
}

// Recorder receives hit and miss events, labelled by cache name.
type Recorder interface {
	CacheHit(name string)
	CacheMiss(name string)
}

// Instrumented reports hits and misses of an underlying cache.
type Instrumented[T any] struct {
	name     string
	inner    Cache[T]
	recorder Recorder
}

func NewInstrumented[T any](name string, inner Cache[T], recorder Recorder) *Instrumented[T] {
	return &Instrumented[T]{name: name, inner: inner, recorder: recorder}
}

func (c *Instrumented[T]) Get(ctx context.Context, key string) (T, bool) {
	v, ok := c.inner.Get(ctx, key)
	if c.recorder != nil {
		if ok {
			c.recorder.CacheHit(c.name)
		} else {
			c.recorder.CacheMiss(c.name)
		}
	}
	return v, ok
}

func (c *Instrumented[T]) Set(ctx context.Context, key string, data T) {
	c.inner.Set(ctx, key, data)
}

func (c *Instrumented[T]) Delete(ctx context.Context, key string) {
	c.inner.Delete(ctx, key)
}

// Manager handles cache lifecycle and cleanup
type Manager struct {
	caches      []Cleaner
	logger      *slog.Logger
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

// NewManager creates a new cache manager
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:      logger,
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the manager for cleanup
func (m *Manager) Register(cache Cleaner) {
	m.caches = append(m.caches, cache)
}

// StartCleanup begins periodic cleanup of all registered caches
func (m *Manager) StartCleanup(interval time.Duration) {
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.CleanNow(); n > 0 {
				m.logger.Debug("Expired cache entries removed", "count", n)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// CleanNow runs one cleanup pass over every registered cache.
func (m *Manager) CleanNow() int {
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	return total
}

// Stop gracefully stops the cleanup routine. It must only be called after
// StartCleanup.
func (m *Manager) Stop() {
	if m.stopCleanup != nil {
		close(m.stopCleanup)
		<-m.cleanupDone
		m.stopCleanup = nil
	}
}
