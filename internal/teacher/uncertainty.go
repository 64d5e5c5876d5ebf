package teacher

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/ale-nlp/ale/internal/aggregate"
	"github.com/ale-nlp/ale/internal/alerr"
	"github.com/ale-nlp/ale/internal/prediction"
)

// scoreFunc maps one prediction to a document score.
type scoreFunc func(p prediction.PredictionResult, m aggregate.Method) (float64, error)

// Uncertainty is an uncertainty-sampling teacher: it scores every predicted
// candidate and proposes the best stepSize of them.
type Uncertainty struct {
	name        string
	score       scoreFunc
	higherFirst bool
	method      aggregate.Method
	predictor   prediction.Predictor
	sampler     *sampler
}

func newUncertainty(name string, score scoreFunc, higherFirst bool, p prediction.Predictor, m aggregate.Method, seed int64) *Uncertainty {
	return &Uncertainty{
		name:        name,
		score:       score,
		higherFirst: higherFirst,
		method:      m,
		predictor:   p,
		sampler:     newSampler(seed),
	}
}

// NewLeastConfidence ranks by 1 - aggregated top-label confidence, highest first.
func NewLeastConfidence(p prediction.Predictor, m aggregate.Method, seed int64) *Uncertainty {
	return newUncertainty(StrategyLeastConfidence, leastConfidence, true, p, m, seed)
}

// NewMargin ranks by the aggregated gap between the two best labels, smallest first.
func NewMargin(p prediction.Predictor, m aggregate.Method, seed int64) *Uncertainty {
	return newUncertainty(StrategyMargin, margin, false, p, m, seed)
}

// NewEntropy ranks by the aggregated label entropy, highest first.
func NewEntropy(p prediction.Predictor, m aggregate.Method, seed int64) *Uncertainty {
	return newUncertainty(StrategyEntropy, entropy, true, p, m, seed)
}

func newLeastConfidenceFromDeps(_ context.Context, d Deps) (Teacher, error) {
	return NewLeastConfidence(d.Predictor, d.Method, d.Seed), nil
}

func newMarginFromDeps(_ context.Context, d Deps) (Teacher, error) {
	return NewMargin(d.Predictor, d.Method, d.Seed), nil
}

func newEntropyFromDeps(_ context.Context, d Deps) (Teacher, error) {
	return NewEntropy(d.Predictor, d.Method, d.Seed), nil
}

// Propose implements Teacher.
func (u *Uncertainty) Propose(ctx context.Context, candidateIDs []int, stepSize, budget int) ([]int, error) {
	if stepSize <= 0 || len(candidateIDs) == 0 {
		return []int{}, nil
	}
	predictions, err := predictCandidates(ctx, u.predictor, u.sampler, candidateIDs, stepSize, budget)
	if err != nil {
		return nil, err
	}
	return u.Rank(predictions, stepSize)
}

// Rank orders predictions by score and returns the first stepSize ids.
// Ties keep ascending id order. stepSize larger than the number of
// predictions returns every id.
func (u *Uncertainty) Rank(predictions map[int]prediction.PredictionResult, stepSize int) ([]int, error) {
	type scored struct {
		id    int
		score float64
	}

	ids := prediction.SortedIDs(predictions)
	docs := make([]scored, len(ids))
	for i, id := range ids {
		s, err := u.score(predictions[id], u.method)
		if err != nil {
			return nil, fmt.Errorf("%s: scoring document %d: %w", u.name, id, err)
		}
		docs[i] = scored{id: id, score: s}
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if u.higherFirst {
			return docs[i].score > docs[j].score
		}
		return docs[i].score < docs[j].score
	})

	n := min(max(stepSize, 0), len(docs))
	out := make([]int, n)
	for i := range out {
		out[i] = docs[i].id
	}
	return out, nil
}

func leastConfidence(p prediction.PredictionResult, m aggregate.Method) (float64, error) {
	c, err := aggregate.Confidence(p, m)
	if err != nil {
		return 0, err
	}
	return 1 - c, nil
}

// perToken reduces a per-token statistic across the document.
func perToken(p prediction.PredictionResult, m aggregate.Method, f func(prediction.TokenConfidence) float64) (float64, error) {
	tokens := p.TokenConfidences()
	if len(tokens) == 0 {
		return 0, fmt.Errorf("%w: prediction has no tokens", alerr.ErrInvalidInput)
	}
	values := make([]float64, len(tokens))
	for i, tok := range tokens {
		values[i] = f(tok)
	}
	return aggregate.Reduce(values, m)
}

func margin(p prediction.PredictionResult, m aggregate.Method) (float64, error) {
	return perToken(p, m, func(tok prediction.TokenConfidence) float64 {
		sorted := tok.Sorted()
		switch len(sorted) {
		case 0:
			return 0
		case 1:
			return sorted[0]
		}
		return sorted[0] - sorted[1]
	})
}

func entropy(p prediction.PredictionResult, m aggregate.Method) (float64, error) {
	return perToken(p, m, tokenEntropy)
}

// tokenEntropy is the Shannon entropy (nats) of the token's label scores
// normalized to sum to 1. A token without positive scores has entropy 0.
func tokenEntropy(tok prediction.TokenConfidence) float64 {
	// sorted order keeps the float sums reproducible
	scores := tok.Sorted()
	var total float64
	for _, c := range scores {
		if c > 0 {
			total += c
		}
	}
	if total == 0 {
		return 0
	}

	var h float64
	for _, c := range scores {
		if c <= 0 {
			continue
		}
		q := c / total
		h -= q * math.Log(q)
	}
	return h
}
