package identify

import (
	"time"

	"github.com/okian/breedid/pkg/logger"
)

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithScheduler sets the clock and timer source.
func WithScheduler(s Scheduler) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.scheduler = s
		}
	}
}

// WithNotifier sets where user-facing notices go.
func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) {
		if n != nil {
			p.notifier = n
		}
	}
}

// WithMaxBytes sets the intake size limit.
func WithMaxBytes(limit int64) Option {
	return func(p *Pipeline) {
		if limit > 0 {
			p.maxBytes = limit
		}
	}
}

// WithDelay sets the simulated processing latency.
func WithDelay(d time.Duration) Option {
	return func(p *Pipeline) {
		if d >= 0 {
			p.delay = d
		}
	}
}

// WithSessionID tags notices and log lines with the owning session.
func WithSessionID(id string) Option {
	return func(p *Pipeline) {
		p.sessionID = id
	}
}

// WithIDGenerator replaces the uuid-based generator for image and preview ids.
func WithIDGenerator(gen func() string) Option {
	return func(p *Pipeline) {
		if gen != nil {
			p.newID = gen
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}
