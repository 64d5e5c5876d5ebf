package teacher

import (
	"context"
	"fmt"
	"sort"

	"github.com/ale-nlp/ale/internal/aggregate"
	"github.com/ale-nlp/ale/internal/prediction"
)

// DefaultOutsideLabel is the NER label for tokens outside any entity.
const DefaultOutsideLabel = "O"

// RoundRobin proposes, label by label in turn, the unselected document with
// the highest aggregated confidence for that label.
type RoundRobin struct {
	labels    []string
	method    aggregate.Method
	predictor prediction.Predictor
	sampler   *sampler
}

// NewRoundRobin creates a round-robin teacher over labels, skipping outside.
func NewRoundRobin(p prediction.Predictor, m aggregate.Method, labels []string, outside string, seed int64) *RoundRobin {
	turns := make([]string, 0, len(labels))
	for _, l := range labels {
		if l != outside {
			turns = append(turns, l)
		}
	}
	return &RoundRobin{
		labels:    turns,
		method:    m,
		predictor: p,
		sampler:   newSampler(seed),
	}
}

func newRoundRobinFromDeps(_ context.Context, d Deps) (Teacher, error) {
	outside := d.OutsideLabel
	if outside == "" {
		outside = DefaultOutsideLabel
	}
	return NewRoundRobin(d.Predictor, d.Method, d.Labels, outside, d.Seed), nil
}

// Propose implements Teacher.
func (r *RoundRobin) Propose(ctx context.Context, candidateIDs []int, stepSize, budget int) ([]int, error) {
	if stepSize <= 0 || len(candidateIDs) == 0 {
		return []int{}, nil
	}
	predictions, err := predictCandidates(ctx, r.predictor, r.sampler, candidateIDs, stepSize, budget)
	if err != nil {
		return nil, err
	}
	return r.Rank(predictions, stepSize)
}

// Rank selects up to stepSize ids by alternating over the labels.
// A label is exhausted once every document carrying it has been selected.
func (r *RoundRobin) Rank(predictions map[int]prediction.PredictionResult, stepSize int) ([]int, error) {
	type scored struct {
		id   int
		conf float64
	}

	ids := prediction.SortedIDs(predictions)
	queues := make([][]scored, len(r.labels))
	for _, id := range ids {
		perLabel, err := aggregate.PerLabel(predictions[id], r.method, r.labels)
		if err != nil {
			return nil, fmt.Errorf("round-robin: scoring document %d: %w", id, err)
		}
		for li, label := range r.labels {
			if c, ok := perLabel[label]; ok {
				queues[li] = append(queues[li], scored{id: id, conf: c})
			}
		}
	}
	for _, q := range queues {
		sort.SliceStable(q, func(i, j int) bool { return q[i].conf > q[j].conf })
	}

	out := make([]int, 0, min(max(stepSize, 0), len(ids)))
	selected := make(map[int]bool, cap(out))
	exhausted := 0
	done := make([]bool, len(queues))

	for len(out) < stepSize && exhausted < len(queues) {
		for li := range queues {
			if len(out) >= stepSize {
				break
			}
			if done[li] {
				continue
			}
			for len(queues[li]) > 0 && selected[queues[li][0].id] {
				queues[li] = queues[li][1:]
			}
			if len(queues[li]) == 0 {
				done[li] = true
				exhausted++
				continue
			}
			id := queues[li][0].id
			queues[li] = queues[li][1:]
			selected[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}
