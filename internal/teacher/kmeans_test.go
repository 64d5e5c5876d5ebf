package teacher

import (
	"context"
	"testing"

	"github.com/ale-nlp/ale/internal/cluster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clustering builds documents with ids 0..n-1, cluster sizes as given and
// distances decreasing with the id inside each cluster.
func clustering(sizes ...int) *cluster.Documents {
	var docs []cluster.Document
	id := 0
	for c, size := range sizes {
		for i := 0; i < size; i++ {
			docs = append(docs, cluster.Document{ID: id, Cluster: c, Distance: float64(100 - id)})
			id++
		}
	}
	return cluster.NewDocuments(docs, len(sizes))
}

func allIDs(d *cluster.Documents) []int {
	ids := make([]int, len(d.Docs))
	for i, doc := range d.Docs {
		ids[i] = doc.ID
	}
	return ids
}

func TestKMeans_Propose(t *testing.T) {
	docs := cluster.NewDocuments([]cluster.Document{
		{ID: 1, Cluster: 0, Distance: 0.5},
		{ID: 2, Cluster: 1, Distance: 0.9},
		{ID: 3, Cluster: 0, Distance: 0.9},
		{ID: 4, Cluster: 1, Distance: 0.1},
	}, 2)

	got, err := NewKMeans(docs).Propose(context.Background(), []int{1, 2, 3, 4}, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 1}, got)

	got, err = NewKMeans(docs).Propose(context.Background(), []int{4, 1}, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4}, got)
}

func TestProposeBalanced_EvenSplit(t *testing.T) {
	docs := clustering(4, 4, 4)
	got := ProposeBalanced(docs, allIDs(docs), 6)

	// two farthest of every cluster
	assert.Equal(t, []int{0, 1, 4, 5, 8, 9}, got)
}

func TestProposeBalanced_Redistributes(t *testing.T) {
	// cluster 0 has a single document, so its share moves to clusters 1 and 2
	docs := clustering(1, 5, 5)
	got := ProposeBalanced(docs, allIDs(docs), 6)

	assert.Len(t, got, 6)
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 6, 7}, got)
}

func TestProposeBalanced_OneByOneTopUp(t *testing.T) {
	// quota 1 per cluster, one document left over: it comes from the first cluster
	docs := clustering(3, 3, 3)
	got := ProposeBalanced(docs, allIDs(docs), 4)
	assert.ElementsMatch(t, []int{0, 1, 3, 6}, got)

	// step smaller than the number of clusters
	got = ProposeBalanced(docs, allIDs(docs), 2)
	assert.ElementsMatch(t, []int{0, 3}, got)
}

func TestProposeBalanced_SkipsEmptyClustersInTopUp(t *testing.T) {
	// after the first pass cluster 0 is empty but not yet exhausted
	docs := clustering(1, 3, 3)
	got := ProposeBalanced(docs, allIDs(docs), 4)
	assert.Len(t, got, 4)
	assert.False(t, hasDuplicates(got))
	assert.Contains(t, got, 0)
}

func TestProposeBalanced_Properties(t *testing.T) {
	layouts := [][]int{{1, 1, 1}, {10, 1, 0, 2}, {7}, {2, 9, 3, 1, 5}, {0, 0, 4}}
	for _, sizes := range layouts {
		docs := clustering(sizes...)
		pool := allIDs(docs)
		for step := 0; step <= len(pool)+3; step++ {
			got := ProposeBalanced(docs, pool, step)
			assert.Len(t, got, min(step, len(pool)), "sizes %v step %d", sizes, step)
			assert.False(t, hasDuplicates(got), "sizes %v step %d", sizes, step)
			assert.Subset(t, pool, got)
		}
	}
}

func TestProposeBalanced_OrderAndCandidates(t *testing.T) {
	docs := clustering(3, 3)
	got := ProposeBalanced(docs, []int{5, 2, 1, 4, 42}, 3)

	// candidates only; unknown ids ignored; descending distance
	assert.Equal(t, []int{1, 2, 4}, got)
}
