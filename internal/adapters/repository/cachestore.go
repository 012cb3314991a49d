package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/breedid/internal/domain/model"
	"github.com/okian/breedid/pkg/logger"
	"github.com/okian/breedid/pkg/metrics"
	"github.com/patrickmn/go-cache"
)

// Default store configuration constants.
const (
	DefaultTTL             = 30 * time.Minute
	DefaultCleanupInterval = time.Minute
)

// CacheStore is a Store backed by go-cache. Sessions slide their expiry on
// every Get; evicted sessions have their pipelines reset so pending runs
// never complete into them.
type CacheStore struct {
	cache   *cache.Cache
	ttl     time.Duration
	cleanup time.Duration
	logger  logger.Logger

	// serializes get-and-touch against delete
	mu sync.Mutex
}

// NewCacheStore creates a session store.
func NewCacheStore(opts ...Option) *CacheStore {
	s := &CacheStore{
		ttl:     DefaultTTL,
		cleanup: DefaultCleanupInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("sessions")
	}
	s.cache = cache.New(s.ttl, s.cleanup)
	s.cache.OnEvicted(s.evicted)
	metrics.UpdateActiveSessions(0)
	return s
}

// Create implements Store.
func (s *CacheStore) Create(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return ErrEmptyID
	}
	if err := s.cache.Add(sess.ID, sess, cache.DefaultExpiration); err != nil {
		return fmt.Errorf("create %s: %w", sess.ID, ErrExists)
	}
	metrics.UpdateActiveSessions(s.cache.ItemCount())
	s.logger.Debug(ctx, "session created", logger.String("session", sess.ID))
	return nil
}

// Get implements Store.
func (s *CacheStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	// Replace fails if the janitor evicted the entry after the lookup.
	if err := s.cache.Replace(id, v, cache.DefaultExpiration); err != nil {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	sess, _ := v.(*Session)
	return sess, nil
}

// Delete implements Store.
func (s *CacheStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(id)
	if !ok {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	if sess, ok := v.(*Session); ok {
		sess.markDeleted()
	}
	s.cache.Delete(id)
	s.logger.Debug(ctx, "session deleted", logger.String("session", id))
	return nil
}

// Count implements Store.
func (s *CacheStore) Count(context.Context) int {
	return s.cache.ItemCount()
}

// Deliver routes a notice to its session's inbox. It satisfies the notice
// dispatcher's sink; notices for gone sessions return ErrNotFound.
func (s *CacheStore) Deliver(_ context.Context, n model.Notice) error {
	v, ok := s.cache.Get(n.SessionID)
	if !ok {
		return fmt.Errorf("deliver %s: %w", n.SessionID, ErrNotFound)
	}
	v.(*Session).Deliver(n)
	return nil
}

// Close resets every live session and empties the store. The store stays usable.
func (s *CacheStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.cache.Items() {
		if sess, ok := item.Object.(*Session); ok {
			sess.markDeleted()
			sess.Pipeline.Reset()
		}
	}
	s.cache.Flush()
	metrics.UpdateActiveSessions(0)
	return nil
}

// Purge removes expired sessions immediately instead of waiting for the janitor.
func (s *CacheStore) Purge() {
	s.cache.DeleteExpired()
}

// evicted runs outside the cache lock for both expiry and Delete.
func (s *CacheStore) evicted(id string, v any) {
	sess, ok := v.(*Session)
	if !ok {
		return
	}
	sess.Pipeline.Reset()
	if !sess.markDeleted() {
		metrics.RecordSessionExpired()
		s.logger.Info(context.Background(), "session expired", logger.String("session", id))
	}
	metrics.UpdateActiveSessions(s.cache.ItemCount())
}
