package teacher

import (
	"context"
	"sort"

	"github.com/ale-nlp/ale/internal/prediction"
)

var nerLabels = []string{"O", "B-PER", "B-ORG"}

// predictionResult builds a result from per-token confidences in nerLabels order.
func predictionResult(rows ...[]float64) prediction.PredictionResult {
	var p prediction.PredictionResult
	for _, row := range rows {
		tok := prediction.TokenConfidence{Labels: map[string]float64{}}
		for i, c := range row {
			tok.Labels[nerLabels[i]] = c
		}
		p.Tokens = append(p.Tokens, tok)
	}
	return p
}

func lcPredictions() map[int]prediction.PredictionResult {
	return map[int]prediction.PredictionResult{
		0: predictionResult([]float64{0.3, 0.2, 0.5}, []float64{0.1, 0.1, 0.5}, []float64{0.4, 0.3, 0.8}),
		1: predictionResult([]float64{0.3, 0.2, 0.4}, []float64{0.1, 0.1, 0.5}, []float64{0.4, 0.3, 0.8}),
		2: predictionResult([]float64{0.3, 0.2, 0.4}, []float64{0.1, 0.1, 0.5}, []float64{0.4, 0.3, 0.8}),
	}
}

func roundRobinPredictions() map[int]prediction.PredictionResult {
	return map[int]prediction.PredictionResult{
		0: predictionResult([]float64{0.3, 0.2, 0.5}, []float64{0.1, 0.1, 0.5}, []float64{0.4, 0.3, 0.8}),
		1: predictionResult([]float64{0.3, 0.3, 0.4}, []float64{0.1, 0.1, 0.5}, []float64{0.4, 0.3, 0.8}),
		2: predictionResult([]float64{0.3, 0.2, 0.4}, []float64{0.1, 0.1, 0.5}, []float64{0.4, 0.3, 0.8}),
	}
}

// recordingPredictor serves fixed predictions and records the requested ids.
type recordingPredictor struct {
	predictions map[int]prediction.PredictionResult
	requested   [][]int
	err         error
}

func (r *recordingPredictor) Predict(_ context.Context, ids []int) (map[int]prediction.PredictionResult, error) {
	r.requested = append(r.requested, append([]int(nil), ids...))
	if r.err != nil {
		return nil, r.err
	}
	out := make(map[int]prediction.PredictionResult, len(ids))
	for _, id := range ids {
		out[id] = r.predictions[id]
	}
	return out, nil
}

func hasDuplicates(ids []int) bool {
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return true
		}
	}
	return false
}

// poolPredictions returns single-token predictions for ids 0..n-1 with
// distinct confidences for every label.
func poolPredictions(n int) map[int]prediction.PredictionResult {
	out := make(map[int]prediction.PredictionResult, n)
	for id := 0; id < n; id++ {
		x := float64(id+1) / float64(n+1)
		out[id] = predictionResult([]float64{1 - x, x / 2, x / 3})
	}
	return out
}

func poolIDs(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return ids
}
