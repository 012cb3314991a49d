// Package identify implements the mock identification pipeline: image intake,
// validation, simulated asynchronous scoring and result ranking.
//
// A Pipeline is one session's state machine:
//
//	Idle -> ImageSelected -> Processing -> ResultsReady
//
// Reset and RemoveImage return to Idle from any state; SubmitImage replaces
// the image from any state. Every transition bumps a run id, and a scheduled
// completion only applies its results if its run id is still current.
package identify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/breedid/internal/domain/catalog"
	"github.com/okian/breedid/internal/domain/model"
	"github.com/okian/breedid/internal/domain/scoring"
	"github.com/okian/breedid/pkg/logger"
	"github.com/okian/breedid/pkg/metrics"
)

// Default pipeline configuration constants.
const (
	DefaultMaxBytes = 10 * 1024 * 1024
	DefaultDelay    = 3000 * time.Millisecond

	imageMediaPrefix = "image/"
)

// State is a pipeline state.
type State int

// Pipeline states.
const (
	StateIdle State = iota
	StateImageSelected
	StateProcessing
	StateResultsReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateImageSelected:
		return "image_selected"
	case StateProcessing:
		return "processing"
	case StateResultsReady:
		return "results_ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Notifier receives user-facing notices. Implementations must not block.
type Notifier interface {
	Notify(n model.Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(model.Notice)

// Notify calls f(n).
func (f NotifierFunc) Notify(n model.Notice) { f(n) }

type discardNotifier struct{}

func (discardNotifier) Notify(model.Notice) {}

// Run is the outcome of an identification run. A cancelled run carries no
// results; CompletedAt is when it was invalidated.
type Run struct {
	ID          uint64
	Results     []model.Prediction
	Cancelled   bool
	StartedAt   time.Time
	CompletedAt time.Time
}

// ImageInfo describes the held image without its payload.
type ImageInfo struct {
	ID         string
	Filename   string
	MediaType  string
	Size       int64
	UploadedAt time.Time
}

// Snapshot is a consistent copy of the pipeline state for rendering.
// PreviewRef is set in ImageSelected, Processing and ResultsReady;
// Results only in ResultsReady.
type Snapshot struct {
	State      State
	RunID      uint64
	Image      *ImageInfo
	PreviewRef string
	Results    []model.Prediction
}

// Pipeline is the per-session identification state machine. It is safe for
// concurrent use; timer completions and API calls serialize on one mutex.
type Pipeline struct {
	mu sync.Mutex

	catalog   *catalog.Catalog
	ranker    scoring.Ranker
	scheduler Scheduler
	notifier  Notifier
	maxBytes  int64
	delay     time.Duration
	sessionID string
	newID     func() string
	logger    logger.Logger

	state   State
	image   *model.Image
	preview string
	results []model.Prediction
	runID   uint64
	pending Timer
	started time.Time
	onDone  func(Run)
}

// New builds an idle pipeline over cat, ranking with ranker.
func New(cat *catalog.Catalog, ranker scoring.Ranker, opts ...Option) *Pipeline {
	p := &Pipeline{
		catalog:   cat,
		ranker:    ranker,
		scheduler: RealScheduler{},
		notifier:  discardNotifier{},
		maxBytes:  DefaultMaxBytes,
		delay:     DefaultDelay,
		newID:     func() string { return uuid.NewString() },
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Named("pipeline")
	}
	if p.sessionID != "" {
		p.logger = p.logger.With(logger.String("session", p.sessionID))
	}
	return p
}

// SubmitImage offers an image to the pipeline.
//
// Drops whose media type does not start with "image/" are ignored: the call
// returns (false, nil) and nothing changes. Images above the size limit fail
// with a *ValidationError, publish a file-too-large notice and leave the state
// unchanged. Accepted images move the pipeline to ImageSelected, replace any
// previous image and clear previous results.
func (p *Pipeline) SubmitImage(img model.Image, src model.Source) (bool, error) {
	ctx := context.Background()

	if src == model.SourceDrop && !strings.HasPrefix(img.MediaType, imageMediaPrefix) {
		metrics.RecordUploadRejected("not_image")
		p.logger.Debug(ctx, "ignoring non-image drop", logger.String("mediaType", img.MediaType))
		return false, nil
	}

	if img.Size > p.maxBytes {
		metrics.RecordUploadRejected("too_large")
		p.logger.Info(ctx, "rejecting oversized image",
			logger.Int64("size", img.Size),
			logger.Int64("limit", p.maxBytes),
		)
		p.notifier.Notify(model.Notice{
			SessionID:   p.sessionID,
			Kind:        model.NoticeFileTooLarge,
			Title:       "File too large",
			Description: "Please select an image under " + formatLimit(p.maxBytes),
			Destructive: true,
			At:          p.scheduler.Now(),
		})
		return false, &ValidationError{Size: img.Size, Limit: p.maxBytes}
	}

	p.mu.Lock()
	cancelled := p.cancelPendingLocked()
	img.ID = p.newID()
	img.UploadedAt = p.scheduler.Now()
	p.image = &img
	p.preview = p.newID()
	p.results = nil
	p.state = StateImageSelected
	p.mu.Unlock()
	cancelled()

	metrics.RecordUploadAccepted(img.Size)
	p.logger.Debug(ctx, "image selected",
		logger.String("imageID", img.ID),
		logger.String("source", src.String()),
		logger.Int64("size", img.Size),
	)
	return true, nil
}

// Identify schedules an identification run. It only acts in ImageSelected
// and reports whether a run was scheduled. onDone, if non-nil, is called
// exactly once per scheduled run: with the results when they are applied, or
// with Cancelled set when Reset, RemoveImage or a new image invalidates it.
func (p *Pipeline) Identify(onDone func(Run)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateImageSelected {
		return false
	}

	p.runID++
	id := p.runID
	p.started = p.scheduler.Now()
	p.onDone = onDone
	p.state = StateProcessing
	p.pending = p.scheduler.AfterFunc(p.delay, func() {
		p.complete(id)
	})

	metrics.RecordRunStarted()
	p.logger.Debug(context.Background(), "identification scheduled",
		logger.Uint64("runID", id),
		logger.Duration("delay", p.delay),
	)
	return true
}

func (p *Pipeline) complete(id uint64) {
	ctx := context.Background()

	p.mu.Lock()
	if id != p.runID || p.state != StateProcessing {
		p.mu.Unlock()
		metrics.RecordRunStale()
		p.logger.Debug(ctx, "discarding stale completion", logger.Uint64("runID", id))
		return
	}

	results := p.ranker.Rank(p.catalog.All())
	p.results = results
	p.state = StateResultsReady
	p.pending = nil
	onDone := p.onDone
	p.onDone = nil
	run := Run{
		ID:          id,
		Results:     clonePredictions(results),
		StartedAt:   p.started,
		CompletedAt: p.scheduler.Now(),
	}
	p.mu.Unlock()

	metrics.RecordRunCompleted(float64(run.CompletedAt.Sub(run.StartedAt).Milliseconds()))
	for _, r := range run.Results {
		metrics.RecordPrediction(string(scoring.ConfidenceTier(r.Confidence)))
	}
	p.logger.Info(ctx, "identification complete",
		logger.Uint64("runID", id),
		logger.Int("results", len(run.Results)),
	)
	p.notifier.Notify(model.Notice{
		SessionID:   p.sessionID,
		Kind:        model.NoticeIdentificationComplete,
		Title:       "Identification Complete",
		Description: "Found matches for your cattle image",
		At:          run.CompletedAt,
	})
	if onDone != nil {
		onDone(run)
	}
}

// Reset discards image, preview and results and returns to Idle. Any
// in-flight run becomes stale.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	cancelled := p.cancelPendingLocked()
	p.image = nil
	p.preview = ""
	p.results = nil
	p.state = StateIdle
	p.mu.Unlock()

	cancelled()
}

// RemoveImage is Reset under the name the upload view uses.
func (p *Pipeline) RemoveImage() {
	p.Reset()
}

// cancelPendingLocked invalidates the in-flight run, if any. The returned
// func reports the cancellation to the run's waiter and must be called after
// p.mu is released.
func (p *Pipeline) cancelPendingLocked() func() {
	id := p.runID
	p.runID++
	if p.pending != nil {
		p.pending.Stop()
		p.pending = nil
	}
	onDone := p.onDone
	p.onDone = nil
	if onDone == nil {
		return func() {}
	}
	run := Run{
		ID:          id,
		Cancelled:   true,
		StartedAt:   p.started,
		CompletedAt: p.scheduler.Now(),
	}
	return func() { onDone(run) }
}

// State returns the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Snapshot returns a copy of the current state.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Snapshot{State: p.state, RunID: p.runID, PreviewRef: p.preview}
	if p.image != nil {
		s.Image = &ImageInfo{
			ID:         p.image.ID,
			Filename:   p.image.Filename,
			MediaType:  p.image.MediaType,
			Size:       p.image.Size,
			UploadedAt: p.image.UploadedAt,
		}
	}
	if p.state == StateResultsReady {
		s.Results = clonePredictions(p.results)
	}
	return s
}

// Preview returns the held image payload when ref is the current preview reference.
func (p *Pipeline) Preview(ref string) (data []byte, mediaType string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.image == nil || ref == "" || ref != p.preview {
		return nil, "", false
	}
	return p.image.Data, p.image.MediaType, true
}

func clonePredictions(in []model.Prediction) []model.Prediction {
	if in == nil {
		return nil
	}
	out := make([]model.Prediction, len(in))
	copy(out, in)
	return out
}

// formatLimit renders a byte limit in the largest unit that divides it evenly.
func formatLimit(n int64) string {
	const kib, mib = 1024, 1024 * 1024
	switch {
	case n >= mib && n%mib == 0:
		return fmt.Sprintf("%dMB", n/mib)
	case n >= kib && n%kib == 0:
		return fmt.Sprintf("%dKB", n/kib)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
