// Package service wires the catalog, the per-session identification
// pipelines and the notice dispatcher into the operations the HTTP API needs.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/breedid/internal/adapters/mq/queue"
	"github.com/okian/breedid/internal/adapters/mq/worker"
	"github.com/okian/breedid/internal/adapters/repository"
	"github.com/okian/breedid/internal/domain/catalog"
	"github.com/okian/breedid/internal/domain/identify"
	"github.com/okian/breedid/internal/domain/model"
	"github.com/okian/breedid/internal/domain/scoring"
	"github.com/okian/breedid/internal/domain/types"
	"github.com/okian/breedid/pkg/logger"
	"github.com/okian/breedid/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultNoticeQueueSize = 1024
	defaultWaitTimeout     = 10 * time.Second
)

// Service implements the API dependencies for breed identification.
type Service struct {
	mu sync.RWMutex

	// Core components
	catalog  *catalog.Catalog
	ranker   *scoring.RandomRanker
	sessions *repository.CacheStore
	notices  *queue.InMemoryQueue
	pool     *worker.Pool

	// Configuration
	maxUploadBytes  int64
	processingDelay time.Duration
	resultCount     int
	randomSeed      uint64
	sessionTTL      time.Duration
	sessionCleanup  time.Duration
	noticeQueueSize int
	noticeWorkers   int
	waitTimeout     time.Duration
	scheduler       identify.Scheduler

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		catalog:         catalog.Default(),
		maxUploadBytes:  identify.DefaultMaxBytes,
		processingDelay: identify.DefaultDelay,
		resultCount:     scoring.DefaultResultCount,
		sessionTTL:      repository.DefaultTTL,
		sessionCleanup:  repository.DefaultCleanupInterval,
		noticeQueueSize: defaultNoticeQueueSize,
		noticeWorkers:   runtime.NumCPU(),
		waitTimeout:     defaultWaitTimeout,
		scheduler:       identify.RealScheduler{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}

	s.logger.Info(ctx, "starting identification service...")

	rankerOpts := []scoring.Option{scoring.WithResultCount(s.resultCount)}
	if s.randomSeed != 0 {
		rankerOpts = append(rankerOpts, scoring.WithSeed(s.randomSeed))
	}
	s.ranker = scoring.NewRandomRanker(rankerOpts...)
	s.sessions = repository.NewCacheStore(
		repository.WithTTL(s.sessionTTL),
		repository.WithCleanupInterval(s.sessionCleanup),
	)
	s.notices = queue.NewInMemoryQueue(queue.WithCapacity(s.noticeQueueSize))
	s.pool = worker.NewPool(s.noticeWorkers, s.notices, s.sessions)

	// Workers outlive the request context that started them.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "identification service started",
		logger.Int("breeds", s.catalog.Len()),
		logger.Int("noticeWorkers", s.pool.Size()),
		logger.Int64("maxUploadBytes", s.maxUploadBytes),
		logger.Duration("processingDelay", s.processingDelay),
		logger.Duration("sessionTTL", s.sessionTTL),
	)
	return nil
}

// Stop gracefully shuts down the service. Pending runs are cancelled and
// queued notices are drained before it returns.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping identification service...")

	_ = s.sessions.Close()
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "notice pool did not drain", logger.Error(err))
	}
	s.cancel()

	s.started = false
	s.logger.Info(ctx, "identification service stopped")
}

// Search runs a catalog query.
func (s *Service) Search(_ context.Context, term, use string) types.BreedList {
	breeds := s.catalog.Search(term, use)
	metrics.RecordCatalogSearch(len(breeds))
	return types.BreedList{
		Breeds: breeds,
		Total:  s.catalog.Len(),
		Count:  len(breeds),
		Query:  term,
		Use:    use,
	}
}

// Uses lists the distinct primary uses in catalog order.
func (s *Service) Uses(context.Context) []string {
	return s.catalog.PrimaryUses()
}

// Breed resolves one catalog record.
func (s *Service) Breed(_ context.Context, id string) (catalog.BreedRecord, error) {
	return s.catalog.Lookup(id)
}

// MaxUploadBytes returns the configured image size limit.
func (s *Service) MaxUploadBytes() int64 {
	return s.maxUploadBytes
}

// CreateSession opens a new identification session in Idle.
func (s *Service) CreateSession(ctx context.Context) (types.SessionView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return types.SessionView{}, ErrNotStarted
	}

	id := uuid.NewString()
	p := identify.New(s.catalog, s.ranker,
		identify.WithScheduler(s.scheduler),
		identify.WithNotifier(identify.NotifierFunc(s.publish)),
		identify.WithMaxBytes(s.maxUploadBytes),
		identify.WithDelay(s.processingDelay),
		identify.WithSessionID(id),
	)
	sess := repository.NewSession(id, p, s.scheduler.Now())
	if err := s.sessions.Create(ctx, sess); err != nil {
		return types.SessionView{}, fmt.Errorf("create session: %w", err)
	}
	return s.view(sess, false), nil
}

// Session returns the session's current view and drains its pending notices.
func (s *Service) Session(ctx context.Context, id string) (types.SessionView, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return types.SessionView{}, err
	}
	return s.view(sess, true), nil
}

// SubmitImage hands an upload to the session's pipeline. Oversized images
// return an error wrapping identify.ErrFileTooLarge; non-image drops are
// reported as ignored.
func (s *Service) SubmitImage(ctx context.Context, id string, img model.Image, src model.Source) (types.SubmitResult, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return types.SubmitResult{}, err
	}
	accepted, err := sess.Pipeline.SubmitImage(img, src)
	if err != nil {
		return types.SubmitResult{}, fmt.Errorf("submit image: %w", err)
	}
	return types.SubmitResult{
		Accepted: accepted,
		Ignored:  !accepted,
		Session:  s.view(sess, false),
	}, nil
}

// Identify starts a run. With wait it blocks until the run completes or is
// cancelled, the wait timeout passes or ctx ends. A session that is not
// holding a fresh image is left alone and reported as not scheduled.
func (s *Service) Identify(ctx context.Context, id string, wait bool) (types.IdentifyResult, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return types.IdentifyResult{}, err
	}

	done := make(chan identify.Run, 1)
	scheduled := sess.Pipeline.Identify(func(r identify.Run) {
		done <- r
	})
	res := types.IdentifyResult{Scheduled: scheduled}

	if scheduled && wait {
		timer := time.NewTimer(s.waitTimeout)
		defer timer.Stop()
		select {
		case run := <-done:
			res.Completed = !run.Cancelled
			if run.Cancelled {
				s.logger.Debug(ctx, "identify wait ended by cancellation",
					logger.String("session", id), logger.Uint64("runID", run.ID))
			}
		case <-timer.C:
			s.logger.Debug(ctx, "identify wait timed out", logger.String("session", id))
		case <-ctx.Done():
			return types.IdentifyResult{}, fmt.Errorf("identify: %w", ctx.Err())
		}
	}
	if !scheduled || !wait {
		res.Completed = sess.Pipeline.State() == identify.StateResultsReady
	}
	res.Session = s.view(sess, false)
	return res, nil
}

// Preview returns the image payload behind a preview reference.
func (s *Service) Preview(ctx context.Context, id, ref string) ([]byte, string, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, "", err
	}
	data, mediaType, ok := sess.Pipeline.Preview(ref)
	if !ok {
		return nil, "", ErrPreviewNotFound
	}
	return data, mediaType, nil
}

// RemoveImage discards the session's image and results.
func (s *Service) RemoveImage(ctx context.Context, id string) (types.SessionView, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return types.SessionView{}, err
	}
	sess.Pipeline.RemoveImage()
	return s.view(sess, false), nil
}

// Reset returns the session to Idle.
func (s *Service) Reset(ctx context.Context, id string) (types.SessionView, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return types.SessionView{}, err
	}
	sess.Pipeline.Reset()
	return s.view(sess, false), nil
}

// DeleteSession ends a session.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	if err := s.store().Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}

// Report renders the session's ranked results as plain text.
func (s *Service) Report(ctx context.Context, id string) (string, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return "", err
	}
	snap := sess.Pipeline.Snapshot()
	if snap.State != identify.StateResultsReady {
		return "", ErrNoResults
	}

	var b strings.Builder
	b.WriteString("Cattle breed identification report\n")
	fmt.Fprintf(&b, "Session: %s\n", sess.ID)
	if snap.Image != nil {
		fmt.Fprintf(&b, "Image: %s (%s, %d bytes)\n", snap.Image.Filename, snap.Image.MediaType, snap.Image.Size)
	}
	for _, r := range types.RankPredictions(snap.Results) {
		c := r.Characteristics
		fmt.Fprintf(&b, "\n%d. %s  %.0f%% (%s)\n", r.Rank, r.BreedName, r.Confidence*100, r.Tier)
		fmt.Fprintf(&b, "   Origin: %s\n", c.Origin)
		fmt.Fprintf(&b, "   Primary use: %s\n", c.PrimaryUse)
		fmt.Fprintf(&b, "   Average weight: %s\n", c.AverageWeight)
		fmt.Fprintf(&b, "   Distinctive features: %s\n", c.DistinctiveFeatures)
	}
	return b.String(), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":         s.started,
		"breeds":          s.catalog.Len(),
		"maxUploadBytes":  s.maxUploadBytes,
		"processingDelay": s.processingDelay.Milliseconds(),
		"resultCount":     s.resultCount,
		"noticeQueueSize": s.noticeQueueSize,
	}
	if s.started {
		ctx := context.Background()
		active := s.sessions.Count(ctx)
		stats["activeSessions"] = active
		stats["queuedNotices"] = s.notices.Len(ctx)
		stats["noticeWorkers"] = s.pool.Size()
		metrics.UpdateActiveSessions(active)
	}
	return stats
}

func (s *Service) store() *repository.CacheStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions
}

func (s *Service) session(ctx context.Context, id string) (*repository.Session, error) {
	st := s.store()
	if st == nil {
		return nil, ErrNotStarted
	}
	sess, err := st.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return sess, nil
}

// publish is every pipeline's notifier; it never blocks.
func (s *Service) publish(n model.Notice) {
	s.mu.RLock()
	q := s.notices
	s.mu.RUnlock()
	if q == nil {
		return
	}
	if err := q.Enqueue(context.Background(), n); err != nil {
		s.logger.Warn(context.Background(), "notice dropped",
			logger.String("session", n.SessionID),
			logger.String("kind", string(n.Kind)),
			logger.Error(err),
		)
	}
}

func (s *Service) view(sess *repository.Session, drain bool) types.SessionView {
	snap := sess.Pipeline.Snapshot()
	v := types.SessionView{
		ID:        sess.ID,
		State:     snap.State.String(),
		RunID:     snap.RunID,
		CreatedAt: sess.CreatedAt,
		Results:   types.RankPredictions(snap.Results),
	}
	if snap.Image != nil {
		v.Image = &types.ImageView{
			ID:         snap.Image.ID,
			Filename:   snap.Image.Filename,
			MediaType:  snap.Image.MediaType,
			Size:       snap.Image.Size,
			UploadedAt: snap.Image.UploadedAt,
		}
	}
	if snap.PreviewRef != "" {
		v.PreviewURL = "/sessions/" + sess.ID + "/preview/" + snap.PreviewRef
	}
	if drain {
		v.Notices = sess.DrainNotices()
	}
	return v
}
