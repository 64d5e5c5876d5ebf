// Package vectorize turns document texts into vectors for clustering.
package vectorize

import "context"

// Vectorizer maps texts to equally sized vectors, one row per text, in input order.
type Vectorizer interface {
	Vectorize(ctx context.Context, texts []string) ([][]float64, error)
}

// Func adapts a function to the Vectorizer interface.
type Func func(ctx context.Context, texts []string) ([][]float64, error)

// Vectorize implements Vectorizer.
func (f Func) Vectorize(ctx context.Context, texts []string) ([][]float64, error) {
	return f(ctx, texts)
}
