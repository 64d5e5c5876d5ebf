package vectorize

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/ale-nlp/ale/internal/embedding"
	lru "github.com/hashicorp/golang-lru"
)

// DefaultCacheSize is the number of embeddings kept in memory.
const DefaultCacheSize = 100000

// Embedding is a dense vectorizer backed by an embedding provider.
// Vectors are cached by the SHA-256 of the text.
type Embedding struct {
	provider embedding.Provider
	cache    *lru.Cache
}

// NewEmbedding creates an embedding vectorizer with an LRU cache of cacheSize entries.
func NewEmbedding(provider embedding.Provider, cacheSize int) (*Embedding, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}
	return &Embedding{provider: provider, cache: cache}, nil
}

// Vectorize implements Vectorizer.
func (e *Embedding) Vectorize(ctx context.Context, texts []string) ([][]float64, error) {
	rows := make([][]float64, len(texts))
	dims := -1
	for i, text := range texts {
		key := textKey(e.provider.ModelName(), text)
		if v, ok := e.cache.Get(key); ok {
			rows[i] = v.([]float64)
		} else {
			emb, err := e.provider.Embed(ctx, text)
			if err != nil {
				return nil, fmt.Errorf("embedding text %d: %w", i, err)
			}
			rows[i] = emb.Float64()
			e.cache.Add(key, rows[i])
		}

		if dims == -1 {
			dims = len(rows[i])
		} else if len(rows[i]) != dims {
			return nil, fmt.Errorf("embedding text %d: dimension mismatch: got %d, want %d", i, len(rows[i]), dims)
		}
	}
	return rows, nil
}

func textKey(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return fmt.Sprintf("%x", h.Sum(nil))
}
