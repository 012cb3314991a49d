// Package repository holds identification sessions and their notice inboxes.
package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/breedid/internal/domain/identify"
	"github.com/okian/breedid/internal/domain/model"
)

// maxInbox caps undelivered notices per session; older ones are dropped first.
const maxInbox = 32

// Session is one client's identification workspace.
type Session struct {
	ID        string
	CreatedAt time.Time
	Pipeline  *identify.Pipeline

	mu      sync.Mutex
	inbox   []model.Notice
	deleted bool
}

// NewSession wraps a pipeline into a session.
func NewSession(id string, p *identify.Pipeline, createdAt time.Time) *Session {
	return &Session{ID: id, Pipeline: p, CreatedAt: createdAt}
}

// Deliver appends a notice to the inbox.
func (s *Session) Deliver(n model.Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inbox = append(s.inbox, n)
	if over := len(s.inbox) - maxInbox; over > 0 {
		s.inbox = append([]model.Notice(nil), s.inbox[over:]...)
	}
}

// DrainNotices returns and clears pending notices, oldest first.
func (s *Session) DrainNotices() []model.Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.inbox
	s.inbox = nil
	return out
}

// PendingNotices returns the number of undelivered notices.
func (s *Session) PendingNotices() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inbox)
}

func (s *Session) markDeleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.deleted
	s.deleted = true
	return was
}

// Store provides access to live sessions.
type Store interface {
	// Create registers a new session. Returns ErrExists on id collision.
	Create(ctx context.Context, s *Session) error

	// Get returns a live session and extends its lifetime.
	// Returns ErrNotFound if the session is unknown or expired.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete removes a session and resets its pipeline.
	// Returns ErrNotFound if the session is unknown or expired.
	Delete(ctx context.Context, id string) error

	// Count returns the number of live sessions.
	Count(ctx context.Context) int
}
