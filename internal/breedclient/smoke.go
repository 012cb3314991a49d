package breedclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/breedid/internal/domain/scoring"
	"github.com/okian/breedid/internal/domain/types"
	"github.com/okian/breedid/pkg/logger"
)

// Smoke defaults.
const (
	DefaultSmokeRuns    = 20
	DefaultSmokeWorkers = 4
	pollInterval        = 100 * time.Millisecond
)

// syntheticJPEG is a tiny JPEG-looking payload; identification never decodes it.
var syntheticJPEG = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0xff, 0xd9}

// SmokeConfig tunes a smoke run.
type SmokeConfig struct {
	Runs        int // identification round trips
	Workers     int // concurrent sessions
	ResultCount int // expected predictions per run
}

// SmokeStats summarizes a smoke run.
type SmokeStats struct {
	Runs      int
	Passed    int
	Failed    int
	BreedHits map[string]int
	Duration  time.Duration
	Failures  []error
}

// TopBreeds returns breed ids ordered by how often they were predicted.
func (s SmokeStats) TopBreeds() []string {
	ids := make([]string, 0, len(s.BreedHits))
	for id := range s.BreedHits {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if s.BreedHits[ids[i]] != s.BreedHits[ids[j]] {
			return s.BreedHits[ids[i]] > s.BreedHits[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Smoke runs cfg.Runs identifications against the server with a pool of
// workers and checks every result set.
func (c *Client) Smoke(ctx context.Context, cfg SmokeConfig) (SmokeStats, error) {
	if cfg.Runs < 1 {
		cfg.Runs = DefaultSmokeRuns
	}
	if cfg.Workers < 1 {
		cfg.Workers = DefaultSmokeWorkers
	}
	if cfg.ResultCount < 1 {
		cfg.ResultCount = scoring.DefaultResultCount
	}
	start := time.Now()

	if err := c.Health(ctx); err != nil {
		return SmokeStats{}, err
	}
	list, err := c.SearchBreeds(ctx, "", "")
	if err != nil {
		return SmokeStats{}, fmt.Errorf("failed to load catalog: %w", err)
	}
	known := make(map[string]struct{}, len(list.Breeds))
	for _, b := range list.Breeds {
		known[b.ID] = struct{}{}
	}
	expected := min(cfg.ResultCount, len(known))

	c.logger.Info(ctx, "starting smoke run",
		logger.Int("runs", cfg.Runs),
		logger.Int("workers", cfg.Workers),
		logger.Int("catalog", len(known)))

	var (
		passed, failed int64
		mu             sync.Mutex
		hits           = make(map[string]int)
		failures       []error
	)

	jobs := make(chan int, cfg.Workers*2)
	var wg sync.WaitGroup
	for range cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range jobs {
				results, err := c.smokeOnce(ctx, expected, known)
				mu.Lock()
				if err != nil {
					atomic.AddInt64(&failed, 1)
					failures = append(failures, fmt.Errorf("run %d: %w", n, err))
				} else {
					atomic.AddInt64(&passed, 1)
					for _, r := range results {
						hits[r.BreedID]++
					}
				}
				mu.Unlock()
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range cfg.Runs {
			select {
			case <-ctx.Done():
				return
			case jobs <- i + 1:
			}
		}
	}()
	wg.Wait()

	stats := SmokeStats{
		Runs:      int(atomic.LoadInt64(&passed) + atomic.LoadInt64(&failed)),
		Passed:    int(atomic.LoadInt64(&passed)),
		Failed:    int(atomic.LoadInt64(&failed)),
		BreedHits: hits,
		Duration:  time.Since(start),
		Failures:  failures,
	}
	c.logger.Info(ctx, "smoke run finished",
		logger.Int("passed", stats.Passed),
		logger.Int("failed", stats.Failed),
		logger.Duration("duration", stats.Duration))

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if stats.Failed > 0 {
		return stats, errors.Join(failures...)
	}
	return stats, nil
}

// smokeOnce does one create, upload, identify and delete round trip.
func (c *Client) smokeOnce(ctx context.Context, expected int, known map[string]struct{}) ([]types.RankedPrediction, error) {
	view, err := c.CreateSession(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := c.DeleteSession(context.WithoutCancel(ctx), view.ID); err != nil {
			c.logger.Warn(ctx, "failed to delete smoke session", logger.String("session", view.ID), logger.Error(err))
		}
	}()

	name := uuid.NewString() + ".jpg"
	if _, err := c.UploadImage(ctx, view.ID, name, "image/jpeg", bytes.NewReader(syntheticJPEG), "picker"); err != nil {
		return nil, err
	}
	res, err := c.Identify(ctx, view.ID, true)
	if err != nil {
		return nil, err
	}
	if !res.Scheduled {
		return nil, fmt.Errorf("%w: identify was not scheduled in state %s", ErrInvariant, res.Session.State)
	}

	session := res.Session
	for !res.Completed && session.State == "processing" {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
		if session, err = c.Session(ctx, view.ID); err != nil {
			return nil, err
		}
	}
	if session.State != "results_ready" {
		return nil, fmt.Errorf("%w: ended in state %s", ErrInvariant, session.State)
	}
	if err := VerifyResults(session.Results, expected, known); err != nil {
		return nil, err
	}
	return session.Results, nil
}

// VerifyResults checks a ranked result set: the expected count, ranks
// 1..n, distinct catalog breeds, confidences in [0,1] and matching tiers.
func VerifyResults(results []types.RankedPrediction, expected int, known map[string]struct{}) error {
	if len(results) != expected {
		return fmt.Errorf("%w: got %d results, want %d", ErrInvariant, len(results), expected)
	}
	seen := make(map[string]struct{}, len(results))
	for i, r := range results {
		if r.Rank != i+1 {
			return fmt.Errorf("%w: result %d has rank %d", ErrInvariant, i, r.Rank)
		}
		if _, dup := seen[r.BreedID]; dup {
			return fmt.Errorf("%w: breed %s predicted twice", ErrInvariant, r.BreedID)
		}
		seen[r.BreedID] = struct{}{}
		if known != nil {
			if _, ok := known[r.BreedID]; !ok {
				return fmt.Errorf("%w: breed %s not in catalog", ErrInvariant, r.BreedID)
			}
		}
		if r.Confidence < 0 || r.Confidence > 1 {
			return fmt.Errorf("%w: confidence %.3f out of range", ErrInvariant, r.Confidence)
		}
		if want := scoring.ConfidenceTier(r.Confidence); r.Tier != want {
			return fmt.Errorf("%w: tier %s for confidence %.3f, want %s", ErrInvariant, r.Tier, r.Confidence, want)
		}
	}
	return nil
}
