// Package prediction defines model prediction results and the Predictor adapters
// that produce them.
package prediction

import "sort"

// TokenConfidence holds a token's text and the model's confidence per label.
// Scores need not sum to 1.
type TokenConfidence struct {
	Text   string             `json:"text"`
	Labels map[string]float64 `json:"labels"`
}

// Max returns the highest label confidence of the token, or 0 without labels.
func (t TokenConfidence) Max() float64 {
	first := true
	var best float64
	for _, c := range t.Labels {
		if first || c > best {
			best = c
			first = false
		}
	}
	return best
}

// Sorted returns the label confidences in descending order.
func (t TokenConfidence) Sorted() []float64 {
	out := make([]float64, 0, len(t.Labels))
	for _, c := range t.Labels {
		out = append(out, c)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(out)))
	return out
}

// PredictionResult is a model's output for one document.
type PredictionResult struct {
	// Tokens is set for token-level tasks (NER).
	Tokens []TokenConfidence `json:"tokens,omitempty"`

	// Classes is set for document classification.
	Classes map[string]float64 `json:"classes,omitempty"`
}

// TokenConfidences returns the token sequence scored by the teachers.
// A classification result is treated as a single pseudo-token.
func (p PredictionResult) TokenConfidences() []TokenConfidence {
	if len(p.Tokens) == 0 && len(p.Classes) > 0 {
		return []TokenConfidence{{Labels: p.Classes}}
	}
	return p.Tokens
}
