package cluster

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ale-nlp/ale/internal/alerr"
	"github.com/ale-nlp/ale/internal/corpus"
	"github.com/ale-nlp/ale/internal/vectorize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blobs returns three well separated groups of 2-d points keyed by id.
func blobs() (corpus.Map, map[string][]float64) {
	points := map[string][]float64{
		"a0": {0, 0}, "a1": {0.1, 0}, "a2": {0, 0.1}, "a3": {0.1, 0.1},
		"b0": {10, 10}, "b1": {10.1, 10}, "b2": {10, 10.1}, "b3": {10.2, 10.1},
		"c0": {0, 10}, "c1": {0.1, 10}, "c2": {0, 10.1}, "c3": {0.1, 10.2},
	}
	c := corpus.Map{}
	id := 0
	for _, group := range []string{"a", "b", "c"} {
		for i := 0; i < 4; i++ {
			c[id] = group + string(rune('0'+i))
			id++
		}
	}
	return c, points
}

func lookupVectorizer(points map[string][]float64) vectorize.Vectorizer {
	return vectorize.Func(func(_ context.Context, texts []string) ([][]float64, error) {
		rows := make([][]float64, len(texts))
		for i, t := range texts {
			rows[i] = points[t]
		}
		return rows, nil
	})
}

func TestEngine_Cluster(t *testing.T) {
	c, points := blobs()
	e := NewEngine(4711)

	docs, err := e.Cluster(context.Background(), c, lookupVectorizer(points), 2)
	require.NoError(t, err)

	assert.Equal(t, 3, docs.NumClusters, "three blobs should be found")
	assert.GreaterOrEqual(t, docs.NumClusters, MinK)
	assert.LessOrEqual(t, docs.NumClusters, MaxK(2))
	require.Len(t, docs.Docs, len(c))

	seen := map[int]bool{}
	for _, d := range docs.Docs {
		assert.False(t, seen[d.ID], "document %d assigned twice", d.ID)
		seen[d.ID] = true
		assert.GreaterOrEqual(t, d.Distance, 0.0)
		assert.True(t, d.Cluster >= 0 && d.Cluster < docs.NumClusters)
	}

	// members of one blob share a cluster
	for _, start := range []int{0, 4, 8} {
		group := docs.ByIDs([]int{start, start + 1, start + 2, start + 3})
		for _, d := range group[1:] {
			assert.Equal(t, group[0].Cluster, d.Cluster)
		}
	}
	assert.Equal(t, []int{4, 4, 4}, docs.Sizes())
}

func TestEngine_Deterministic(t *testing.T) {
	c, points := blobs()
	v := lookupVectorizer(points)

	first, err := NewEngine(1).Cluster(context.Background(), c, v, 1)
	require.NoError(t, err)
	second, err := NewEngine(1).Cluster(context.Background(), c, v, 1)
	require.NoError(t, err)

	assert.Equal(t, first.Docs, second.Docs)
}

func TestEngine_InsufficientData(t *testing.T) {
	e := NewEngine(0)
	v := vectorize.Func(func(_ context.Context, texts []string) ([][]float64, error) {
		rows := make([][]float64, len(texts))
		for i := range rows {
			rows[i] = []float64{1, 1}
		}
		return rows, nil
	})

	_, err := e.Cluster(context.Background(), corpus.Map{1: "only"}, v, 3)
	assert.True(t, errors.Is(err, alerr.ErrInsufficientData))

	// identical points never form two clusters
	_, err = e.Cluster(context.Background(), corpus.Map{1: "x", 2: "y", 3: "z"}, v, 3)
	assert.True(t, errors.Is(err, alerr.ErrInsufficientData))
}

func TestEngine_TwoDocuments(t *testing.T) {
	v := vectorize.Func(func(_ context.Context, texts []string) ([][]float64, error) {
		return [][]float64{{0}, {1}}, nil
	})
	docs, err := NewEngine(0).Cluster(context.Background(), corpus.Map{1: "a", 2: "b"}, v, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, docs.NumClusters)
	for _, d := range docs.Docs {
		assert.Equal(t, 0.0, d.Distance)
	}
}

func TestEngine_ConcurrentCallers(t *testing.T) {
	c, points := blobs()
	v := lookupVectorizer(points)
	base := NewEngine(7)

	var active, peak, fits atomic.Int32
	fitHook = func() func() {
		n := active.Add(1)
		fits.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return func() { active.Add(-1) }
	}
	t.Cleanup(func() { fitHook = nil })

	var wg sync.WaitGroup
	results := make([]*Documents, 6)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := base
			if i%2 == 1 {
				e = base.WithSeed(7)
			}
			docs, err := e.Cluster(context.Background(), c, v, 1)
			assert.NoError(t, err)
			results[i] = docs
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(len(results)), fits.Load())
	assert.Equal(t, int32(1), peak.Load(), "fits must never overlap")
	for _, r := range results[1:] {
		assert.Equal(t, results[0].Docs, r.Docs)
	}
}

func TestEngine_WithSeed(t *testing.T) {
	c, points := blobs()
	v := lookupVectorizer(points)
	base := NewEngine(1, WithMaxIterations(50))

	derived := base.WithSeed(99)
	assert.Same(t, base.mu, derived.mu, "derived engines share the fitting lock")
	assert.Equal(t, 50, derived.maxIter)

	got, err := derived.Cluster(context.Background(), c, v, 1)
	require.NoError(t, err)
	want, err := NewEngine(99, WithMaxIterations(50)).Cluster(context.Background(), c, v, 1)
	require.NoError(t, err)
	assert.Equal(t, want.Docs, got.Docs)
}

func TestSilhouette(t *testing.T) {
	rows := []vectorize.SparseVector{
		vectorize.Sparsify([]float64{0}),
		vectorize.Sparsify([]float64{1}),
		vectorize.Sparsify([]float64{10}),
		vectorize.Sparsify([]float64{11}),
	}

	score, ok := silhouette(rows, []int{0, 0, 1, 1}, 2)
	require.True(t, ok)
	// a = 1 for every point; b = 10.5 for the outer points, 9.5 for the inner ones
	want := (2*(10.5-1)/10.5 + 2*(9.5-1)/9.5) / 4
	assert.InDelta(t, want, score, 1e-12)

	_, ok = silhouette(rows, []int{1, 1, 1, 1}, 2)
	assert.False(t, ok)

	score, ok = silhouette(rows, []int{0, 1, 2, 3}, 4)
	require.True(t, ok)
	assert.Equal(t, 0.0, score, "singletons score 0")
}

func TestEngine_SparseVectorizer(t *testing.T) {
	texts := corpus.Map{}
	topics := []string{
		"football match goal striker", "football goal keeper match", "striker goal football league",
		"stock market shares trading", "market shares investor stock", "trading stock investor market",
	}
	for i, text := range topics {
		texts[i] = text
	}

	tfidf := vectorize.NewTFIDF()
	sparse, err := NewEngine(3).Cluster(context.Background(), texts, tfidf, 1)
	require.NoError(t, err)

	// the same rows handed over densely give the same clustering
	dense := vectorize.Func(tfidf.Vectorize)
	want, err := NewEngine(3).Cluster(context.Background(), texts, dense, 1)
	require.NoError(t, err)

	require.Equal(t, want.NumClusters, sparse.NumClusters)
	for i, d := range sparse.Docs {
		assert.Equal(t, want.Docs[i].ID, d.ID)
		assert.Equal(t, want.Docs[i].Cluster, d.Cluster)
		assert.InDelta(t, want.Docs[i].Distance, d.Distance, 1e-9)
	}
}

func TestDocuments_ByIDs(t *testing.T) {
	docs := NewDocuments([]Document{{ID: 1}, {ID: 2, Cluster: 1}, {ID: 3}}, 2)
	got := docs.ByIDs([]int{3, 9, 1})
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].ID)
	assert.Equal(t, 1, got[1].ID)
}

func TestSortByDistance(t *testing.T) {
	docs := []Document{{ID: 3, Distance: 1}, {ID: 1, Distance: 2}, {ID: 2, Distance: 1}}
	SortByDistance(docs)
	assert.Equal(t, []int{1, 2, 3}, []int{docs[0].ID, docs[1].ID, docs[2].ID})
}

func TestMaxK(t *testing.T) {
	assert.Equal(t, 10, MaxK(0))
	assert.Equal(t, 10, MaxK(5))
	assert.Equal(t, 14, MaxK(7))
}
