package cluster

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/ale-nlp/ale/internal/alerr"
	"github.com/ale-nlp/ale/internal/corpus"
	"github.com/ale-nlp/ale/internal/logging"
	"github.com/ale-nlp/ale/internal/vectorize"
	"go.uber.org/zap"
)

// MinK is the smallest number of clusters searched.
const MinK = 2

// Engine fits k-means clusterings of a corpus.
//
// Fitting is expensive and serialized: at most one Cluster call runs the
// fit-and-assign sequence at a time per Engine, and other callers block until
// it completes. There is no timeout and no cancellation once fitting started.
// Share one Engine across all runs of a process; WithSeed derives engines
// for other seeds that keep sharing the lock.
type Engine struct {
	seed    int64
	maxIter int
	logger  *zap.Logger

	mu *sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxIterations bounds Lloyd iterations per fit.
func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxIter = n
		}
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logging.OrNop(l)
	}
}

// NewEngine creates an engine whose fits are seeded with seed.
func NewEngine(seed int64, opts ...Option) *Engine {
	e := &Engine{
		seed:    seed,
		maxIter: DefaultMaxIterations,
		logger:  zap.NewNop(),
		mu:      &sync.Mutex{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithSeed returns an engine seeded with seed that is serialized with e.
func (e *Engine) WithSeed(seed int64) *Engine {
	return &Engine{
		seed:    seed,
		maxIter: e.maxIter,
		logger:  e.logger.With(zap.Int64("seed", seed)),
		mu:      e.mu,
	}
}

// MaxK returns the largest k searched for numLabels labels.
func MaxK(numLabels int) int {
	return max(10, 2*numLabels)
}

// Cluster vectorizes the corpus, selects k by silhouette score over
// [MinK, MaxK(numLabels)] and assigns every document to its nearest centroid.
func (e *Engine) Cluster(ctx context.Context, c corpus.Corpus, v vectorize.Vectorizer, numLabels int) (*Documents, error) {
	texts, err := c.TextsWithIDs()
	if err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}
	if len(texts) < MinK {
		return nil, fmt.Errorf("%w: %d documents, need at least %d", alerr.ErrInsufficientData, len(texts), MinK)
	}

	ids := make([]int, 0, len(texts))
	for id := range texts {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	ordered := make([]string, len(ids))
	for i, id := range ids {
		ordered[i] = texts[id]
	}

	rows, dims, err := vectorize.Rows(ctx, v, ordered)
	if err != nil {
		return nil, fmt.Errorf("vectorizing corpus: %w", err)
	}
	if len(rows) != len(ids) {
		return nil, fmt.Errorf("vectorizer returned %d rows for %d documents", len(rows), len(ids))
	}

	return e.fitAndAssign(ids, newPoints(rows, dims), numLabels)
}

// fitHook, when set, is called as each fit starts; the returned func runs when it ends.
var fitHook func() func()

func (e *Engine) fitAndAssign(ids []int, p *points, numLabels int) (*Documents, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if fitHook != nil {
		defer fitHook()()
	}

	start := time.Now()
	k, score, err := e.selectK(p, numLabels)
	if err != nil {
		return nil, err
	}

	e.logger.Info("k-means clustering started", zap.Int("k", k), zap.Float64("silhouette", score), zap.Int("documents", len(ids)))
	m := fitKMeans(p, k, e.seed, e.maxIter)

	docs := make([]Document, len(ids))
	for i, id := range ids {
		best := nearest(p, i, m.centroids)
		docs[i] = Document{
			ID:       id,
			Cluster:  best,
			Distance: math.Sqrt(p.squaredDistance(i, m.centroids[best])),
		}
	}
	e.logger.Info("k-means clustering done", zap.Int("k", k), zap.Duration("duration", time.Since(start)))

	return NewDocuments(docs, k), nil
}

// selectK returns the first k with the highest silhouette score.
func (e *Engine) selectK(p *points, numLabels int) (int, float64, error) {
	upper := min(MaxK(numLabels), p.len())

	bestK, bestScore := -1, -1.0
	for k := MinK; k <= upper; k++ {
		m := fitKMeans(p, k, e.seed, e.maxIter)
		score, ok := silhouette(p.rows, m.labels, k)
		if !ok {
			e.logger.Debug("silhouette undefined", zap.Int("k", k))
			continue
		}
		e.logger.Debug("silhouette", zap.Int("k", k), zap.Float64("score", score))
		if score > bestScore {
			bestK, bestScore = k, score
		}
	}

	if bestK == -1 {
		return 0, 0, fmt.Errorf("%w: no k in [%d, %d] yields a valid clustering", alerr.ErrInsufficientData, MinK, upper)
	}
	return bestK, bestScore, nil
}
