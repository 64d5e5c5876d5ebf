package cluster

import (
	"math"

	"github.com/ale-nlp/ale/internal/vectorize"
)

// silhouette returns the mean silhouette coefficient of labels, and false when
// it is undefined (fewer than two non-empty clusters).
// Points in singleton clusters score 0. Pairwise distances are computed one
// row at a time, so memory stays O(k) on top of the data.
func silhouette(rows []vectorize.SparseVector, labels []int, k int) (float64, bool) {
	sizes := make([]int, k)
	for _, l := range labels {
		sizes[l]++
	}
	nonEmpty := 0
	for _, s := range sizes {
		if s > 0 {
			nonEmpty++
		}
	}
	if nonEmpty < 2 {
		return 0, false
	}

	var total float64
	sums := make([]float64, k)
	for i, li := range labels {
		if sizes[li] == 1 {
			continue
		}
		for c := range sums {
			sums[c] = 0
		}
		for j, lj := range labels {
			if i != j {
				sums[lj] += math.Sqrt(vectorize.SquaredDistance(rows[i], rows[j]))
			}
		}

		a := sums[li] / float64(sizes[li]-1)
		b := math.Inf(1)
		for c, s := range sums {
			if c == li || sizes[c] == 0 {
				continue
			}
			b = math.Min(b, s/float64(sizes[c]))
		}

		if denom := math.Max(a, b); denom > 0 {
			total += (b - a) / denom
		}
	}
	return total / float64(len(labels)), true
}
