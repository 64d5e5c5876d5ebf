// Package embedding provides dense vector embeddings for document texts.
package embedding

// Embedding represents a vector embedding of one document text.
type Embedding struct {
	Vector []float32
}

// Dimensions returns the dimensionality of the embedding.
func (e Embedding) Dimensions() int {
	return len(e.Vector)
}

// Float64 returns the vector widened to float64 for clustering.
func (e Embedding) Float64() []float64 {
	out := make([]float64, len(e.Vector))
	for i, v := range e.Vector {
		out[i] = float64(v)
	}
	return out
}
