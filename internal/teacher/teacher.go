// Package teacher implements the sample-selection strategies that decide which
// unlabeled documents are proposed for annotation next.
package teacher

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/ale-nlp/ale/internal/aggregate"
	"github.com/ale-nlp/ale/internal/alerr"
	"github.com/ale-nlp/ale/internal/cluster"
	"github.com/ale-nlp/ale/internal/corpus"
	"github.com/ale-nlp/ale/internal/prediction"
	"github.com/ale-nlp/ale/internal/vectorize"
	"go.uber.org/zap"
)

// Teacher ranks candidate documents and proposes the next ones to annotate.
type Teacher interface {
	// Propose returns at most stepSize ids from candidateIDs, most informative first.
	// budget is the sampling budget of the round: the number of candidates
	// the teacher may run inference on.
	Propose(ctx context.Context, candidateIDs []int, stepSize, budget int) ([]int, error)
}

// Deps holds the collaborators a teacher may be built from.
type Deps struct {
	Corpus     corpus.Corpus
	Predictor  prediction.Predictor
	Engine     *cluster.Engine
	TFIDF      vectorize.Vectorizer
	Embeddings vectorize.Vectorizer

	Seed         int64
	Labels       []string
	Method       aggregate.Method
	OutsideLabel string // excluded from round-robin label turns
	Logger       *zap.Logger
}

// Factory builds a teacher. Cluster-based teachers cluster the corpus here,
// once per run.
type Factory func(ctx context.Context, d Deps) (Teacher, error)

// Strategy names.
const (
	StrategyRandom              = "randomizer"
	StrategyLeastConfidence     = "least-confidence"
	StrategyMargin              = "margin-confidence"
	StrategyEntropy             = "entropy-confidence"
	StrategyRoundRobin          = "round-robin"
	StrategyKMeans              = "k-means"
	StrategyKMeansClusterBased  = "k-means-cluster-based"
	StrategyKMeansEmbeddingBase = "k-means-cluster-based-embedding"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		StrategyRandom:              newRandomFromDeps,
		StrategyLeastConfidence:     newLeastConfidenceFromDeps,
		StrategyMargin:              newMarginFromDeps,
		StrategyEntropy:             newEntropyFromDeps,
		StrategyRoundRobin:          newRoundRobinFromDeps,
		StrategyKMeans:              newKMeansFromDeps,
		StrategyKMeansClusterBased:  newClusterBasedFromDeps,
		StrategyKMeansEmbeddingBase: newClusterBasedEmbeddingFromDeps,
	}
)

// Register adds or replaces a strategy.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Names returns the registered strategy names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the teacher registered under name.
func New(ctx context.Context, name string, d Deps) (Teacher, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown teacher %q (valid: %v)", alerr.ErrInvalidInput, name, Names())
	}
	return f(ctx, d)
}

// sampler draws seeded candidate subsets. Its state advances across rounds.
type sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newSampler(seed int64) *sampler {
	return &sampler{rng: rand.New(rand.NewSource(seed))}
}

// sample returns n distinct candidates, or all of them when n >= len(candidates).
// The result is sorted ascending.
func (s *sampler) sample(candidates []int, n int) []int {
	out := make([]int, 0, min(n, len(candidates)))
	if n >= len(candidates) {
		out = append(out, candidates...)
	} else {
		s.mu.Lock()
		perm := s.rng.Perm(len(candidates))
		s.mu.Unlock()
		for _, i := range perm[:n] {
			out = append(out, candidates[i])
		}
	}
	sort.Ints(out)
	return out
}

// predictCandidates runs inference on a sample of max(budget, stepSize)
// candidates, or on all of them when the pool is smaller.
func predictCandidates(ctx context.Context, p prediction.Predictor, s *sampler, candidates []int, stepSize, budget int) (map[int]prediction.PredictionResult, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: teacher has no predictor", alerr.ErrInvalidInput)
	}
	n := max(budget, stepSize)
	if budget <= 0 || n > len(candidates) {
		n = len(candidates)
	}
	ids := s.sample(candidates, n)
	predictions, err := p.Predict(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("predicting %d candidates: %w", len(ids), err)
	}
	return predictions, nil
}
