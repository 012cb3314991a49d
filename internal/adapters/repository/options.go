package repository

import (
	"time"

	"github.com/okian/breedid/pkg/logger"
)

// Option applies a configuration option to the CacheStore.
type Option func(*CacheStore)

// WithTTL sets how long an untouched session lives.
func WithTTL(ttl time.Duration) Option {
	return func(s *CacheStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithCleanupInterval sets how often expired sessions are purged.
func WithCleanupInterval(interval time.Duration) Option {
	return func(s *CacheStore) {
		if interval > 0 {
			s.cleanup = interval
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *CacheStore) {
		if l != nil {
			s.logger = l
		}
	}
}
