// Package cluster partitions a corpus with seeded k-means for diversity sampling.
package cluster

import "sort"

// Document is one corpus document with its cluster assignment.
type Document struct {
	ID       int     `json:"id"`
	Cluster  int     `json:"cluster"`
	Distance float64 `json:"distance"` // Euclidean distance to the assigned centroid
}

// Documents is the clustering of a whole corpus.
// Every corpus id appears exactly once.
type Documents struct {
	Docs        []Document `json:"docs"`
	NumClusters int        `json:"num_clusters"`

	byID map[int]int
}

// NewDocuments indexes docs for lookup by id.
func NewDocuments(docs []Document, numClusters int) *Documents {
	d := &Documents{Docs: docs, NumClusters: numClusters, byID: make(map[int]int, len(docs))}
	for i, doc := range docs {
		d.byID[doc.ID] = i
	}
	return d
}

// ByIDs returns the documents for ids, in the order of ids. Unknown ids are skipped.
func (d *Documents) ByIDs(ids []int) []Document {
	out := make([]Document, 0, len(ids))
	for _, id := range ids {
		if i, ok := d.byID[id]; ok {
			out = append(out, d.Docs[i])
		}
	}
	return out
}

// Sizes returns the number of documents per cluster.
func (d *Documents) Sizes() []int {
	sizes := make([]int, d.NumClusters)
	for _, doc := range d.Docs {
		sizes[doc.Cluster]++
	}
	return sizes
}

// SortByDistance orders docs farthest-from-centroid first, ties by ascending id.
func SortByDistance(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Distance != docs[j].Distance {
			return docs[i].Distance > docs[j].Distance
		}
		return docs[i].ID < docs[j].ID
	})
}
