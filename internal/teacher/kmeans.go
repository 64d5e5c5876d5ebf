package teacher

import (
	"context"
	"fmt"

	"github.com/ale-nlp/ale/internal/alerr"
	"github.com/ale-nlp/ale/internal/cluster"
	"github.com/ale-nlp/ale/internal/vectorize"
	"go.uber.org/zap"
)

// KMeans proposes the candidates farthest from their cluster centroid.
type KMeans struct {
	docs *cluster.Documents
}

// NewKMeans creates a centroid-distance teacher over a clustering.
func NewKMeans(docs *cluster.Documents) *KMeans {
	return &KMeans{docs: docs}
}

// Propose implements Teacher.
func (k *KMeans) Propose(_ context.Context, candidateIDs []int, stepSize, _ int) ([]int, error) {
	docs := k.docs.ByIDs(candidateIDs)
	cluster.SortByDistance(docs)
	return docIDs(docs[:min(max(stepSize, 0), len(docs))]), nil
}

// ClusterBased spreads each proposal evenly over the clusters.
type ClusterBased struct {
	docs *cluster.Documents
}

// NewClusterBased creates a cluster-balanced teacher over a clustering.
func NewClusterBased(docs *cluster.Documents) *ClusterBased {
	return &ClusterBased{docs: docs}
}

// Propose implements Teacher.
func (c *ClusterBased) Propose(_ context.Context, candidateIDs []int, stepSize, _ int) ([]int, error) {
	return ProposeBalanced(c.docs, candidateIDs, stepSize), nil
}

// ProposeBalanced selects up to stepSize candidates, taking
// stepSize/NumClusters of the farthest-from-centroid documents of every
// cluster. Clusters with too few candidates give all of theirs and drop out,
// and the shortfall is spread over the remaining clusters until stepSize is
// reached or every cluster is exhausted. When the shortfall is smaller than
// the number of remaining clusters, the first clusters in index order give
// one document each.
//
// The result is ordered by descending distance, ties by ascending id.
func ProposeBalanced(docs *cluster.Documents, candidateIDs []int, stepSize int) []int {
	k := docs.NumClusters
	if k == 0 || stepSize <= 0 {
		return []int{}
	}

	queues := make([][]cluster.Document, k)
	seen := make(map[int]bool, len(candidateIDs))
	for _, d := range docs.ByIDs(candidateIDs) {
		if seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		queues[d.Cluster] = append(queues[d.Cluster], d)
	}
	for _, q := range queues {
		cluster.SortByDistance(q)
	}

	var out []cluster.Document
	exhausted := make([]bool, k)
	active := k

	// take moves up to n documents of cluster c to the output. A cluster that
	// cannot fill n is exhausted.
	take := func(c, n int) {
		if len(queues[c]) < n {
			n = len(queues[c])
			exhausted[c] = true
			active--
		}
		out = append(out, queues[c][:n]...)
		queues[c] = queues[c][n:]
	}

	for c := range queues {
		take(c, stepSize/k)
	}

	for len(out) < stepSize && active > 0 {
		shortfall := stepSize - len(out)
		perCluster := shortfall / active
		if perCluster > 0 {
			for c := range queues {
				if !exhausted[c] {
					take(c, perCluster)
				}
			}
			continue
		}

		for c := 0; c < k && shortfall > 0; c++ {
			if exhausted[c] {
				continue
			}
			if len(queues[c]) == 0 {
				exhausted[c] = true
				active--
				continue
			}
			take(c, 1)
			shortfall--
		}
	}

	cluster.SortByDistance(out)
	return docIDs(out)
}

func docIDs(docs []cluster.Document) []int {
	ids := make([]int, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids
}

// clusterCorpus runs the engine over the corpus with the given vectorizer.
func clusterCorpus(ctx context.Context, d Deps, v vectorize.Vectorizer, kind string) (*cluster.Documents, error) {
	if d.Engine == nil || d.Corpus == nil {
		return nil, fmt.Errorf("%w: cluster teachers need a corpus and a clustering engine", alerr.ErrInvalidInput)
	}
	if v == nil {
		return nil, fmt.Errorf("%w: no %s vectorizer configured", alerr.ErrInvalidInput, kind)
	}

	docs, err := d.Engine.Cluster(ctx, d.Corpus, v, len(d.Labels))
	if err != nil {
		return nil, fmt.Errorf("clustering corpus: %w", err)
	}
	if d.Logger != nil {
		d.Logger.Info("corpus clustered", zap.String("vectorizer", kind), zap.Int("clusters", docs.NumClusters), zap.Ints("sizes", docs.Sizes()))
	}
	return docs, nil
}

func newKMeansFromDeps(ctx context.Context, d Deps) (Teacher, error) {
	docs, err := clusterCorpus(ctx, d, d.TFIDF, "tfidf")
	if err != nil {
		return nil, err
	}
	return NewKMeans(docs), nil
}

func newClusterBasedFromDeps(ctx context.Context, d Deps) (Teacher, error) {
	docs, err := clusterCorpus(ctx, d, d.TFIDF, "tfidf")
	if err != nil {
		return nil, err
	}
	return NewClusterBased(docs), nil
}

func newClusterBasedEmbeddingFromDeps(ctx context.Context, d Deps) (Teacher, error) {
	docs, err := clusterCorpus(ctx, d, d.Embeddings, "embedding")
	if err != nil {
		return nil, err
	}
	return NewClusterBased(docs), nil
}
