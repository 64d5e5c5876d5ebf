package prediction

import (
	"context"
	"sort"
)

// Predictor returns predictions for the given document ids.
// Implementations fail with alerr.ErrModelUnavailable or alerr.ErrInference.
type Predictor interface {
	Predict(ctx context.Context, ids []int) (map[int]PredictionResult, error)
}

// PredictorFunc adapts a function to the Predictor interface.
type PredictorFunc func(ctx context.Context, ids []int) (map[int]PredictionResult, error)

// Predict implements Predictor.
func (f PredictorFunc) Predict(ctx context.Context, ids []int) (map[int]PredictionResult, error) {
	return f(ctx, ids)
}

// SortedIDs returns the keys of predictions in ascending order.
func SortedIDs(predictions map[int]PredictionResult) []int {
	ids := make([]int, 0, len(predictions))
	for id := range predictions {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
