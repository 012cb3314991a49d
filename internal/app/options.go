package service

import (
	"time"

	"github.com/okian/breedid/internal/domain/catalog"
	"github.com/okian/breedid/internal/domain/identify"
	"github.com/okian/breedid/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithCatalog replaces the bundled reference catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithMaxUploadBytes sets the image size limit.
func WithMaxUploadBytes(limit int64) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxUploadBytes = limit
		}
	}
}

// WithProcessingDelay sets the simulated identification latency.
func WithProcessingDelay(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.processingDelay = d
		}
	}
}

// WithResultCount sets how many predictions a run returns.
func WithResultCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.resultCount = n
		}
	}
}

// WithRandomSeed makes rankings reproducible. Zero keeps time seeding.
func WithRandomSeed(seed uint64) Option {
	return func(s *Service) {
		s.randomSeed = seed
	}
}

// WithSessionTTL sets the idle lifetime of a session and the purge interval.
func WithSessionTTL(ttl, cleanup time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
		if cleanup > 0 {
			s.sessionCleanup = cleanup
		}
	}
}

// WithNoticeQueueSize sets the notice buffer capacity.
func WithNoticeQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.noticeQueueSize = size
		}
	}
}

// WithNoticeWorkers sets the number of notice dispatchers.
func WithNoticeWorkers(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.noticeWorkers = count
		}
	}
}

// WithWaitTimeout caps how long Identify blocks when asked to wait.
func WithWaitTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.waitTimeout = d
		}
	}
}

// WithScheduler sets the clock used by every session pipeline.
func WithScheduler(sch identify.Scheduler) Option {
	return func(s *Service) {
		if sch != nil {
			s.scheduler = sch
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
