// Package scoring produces the synthetic ranked candidates of an identification run.
//
// Scores are not derived from the image. Candidates are a uniform random
// permutation of the catalog, and confidences are drawn so that their
// expected value falls with rank.
package scoring

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/breedid/internal/domain/catalog"
	"github.com/okian/breedid/internal/domain/model"
)

// Default ranking configuration constants.
const (
	DefaultResultCount = 3
	confidenceMin      = 0.6
	confidenceMax      = 0.95
	rankPenalty        = 0.1
)

// Ranker turns the catalog into ranked predictions.
type Ranker interface {
	Rank(records []catalog.BreedRecord) []model.Prediction
}

// Option applies a configuration option to the RandomRanker.
type Option func(*RandomRanker)

// WithResultCount sets how many candidates a run returns.
func WithResultCount(n int) Option {
	return func(r *RandomRanker) {
		if n > 0 {
			r.resultCount = n
		}
	}
}

// WithSeed makes the ranking reproducible. Zero keeps the clock seed.
func WithSeed(seed uint64) Option {
	return func(r *RandomRanker) {
		if seed != 0 {
			r.rng = newRand(seed)
		}
	}
}

// WithRand injects a random source.
func WithRand(rng *rand.Rand) Option {
	return func(r *RandomRanker) {
		if rng != nil {
			r.rng = rng
		}
	}
}

// RandomRanker implements Ranker with a Fisher-Yates shuffle.
type RandomRanker struct {
	mu          sync.Mutex // guards rng; *rand.Rand is not safe for concurrent use
	rng         *rand.Rand
	resultCount int
}

// NewRandomRanker creates a ranker with configuration options.
func NewRandomRanker(opts ...Option) *RandomRanker {
	r := &RandomRanker{
		rng:         newRand(uint64(time.Now().UnixNano())),
		resultCount: DefaultResultCount,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// ResultCount returns the configured number of candidates per run.
func (r *RandomRanker) ResultCount() int {
	return r.resultCount
}

// Rank permutes records uniformly and scores the first min(resultCount, len) of them.
// Rank i receives clamp(U(0.6, 0.95) - 0.1*i, 0, 1).
func (r *RandomRanker) Rank(records []catalog.BreedRecord) []model.Prediction {
	r.mu.Lock()
	defer r.mu.Unlock()

	perm := make([]catalog.BreedRecord, len(records))
	copy(perm, records)
	for i := len(perm) - 1; i > 0; i-- {
		j := r.rng.IntN(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}

	k := min(r.resultCount, len(perm))
	out := make([]model.Prediction, k)
	for i := range k {
		draw := confidenceMin + r.rng.Float64()*(confidenceMax-confidenceMin)
		out[i] = model.Prediction{
			BreedID:         perm[i].ID,
			BreedName:       perm[i].Name,
			Confidence:      clamp(draw-float64(i)*rankPenalty, 0, 1),
			Characteristics: perm[i].Characteristics,
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
