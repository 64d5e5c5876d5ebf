package cluster

import (
	"math"
	"math/rand"

	"github.com/ale-nlp/ale/internal/vectorize"
)

// DefaultMaxIterations bounds Lloyd iterations per fit.
const DefaultMaxIterations = 300

// points are the rows being clustered. Rows stay sparse; centroids are dense.
type points struct {
	rows  []vectorize.SparseVector
	norms []float64 // squared L2 norm of each row
	dims  int
}

func newPoints(rows []vectorize.SparseVector, dims int) *points {
	norms := make([]float64, len(rows))
	for i, r := range rows {
		norms[i] = r.SquaredNorm()
	}
	return &points{rows: rows, norms: norms, dims: dims}
}

func (p *points) len() int { return len(p.rows) }

type centroid struct {
	v     []float64
	norm2 float64
}

func newCentroid(v []float64) centroid {
	var n float64
	for _, x := range v {
		n += x * x
	}
	return centroid{v: v, norm2: n}
}

// squaredDistance returns the squared distance of row i to c, expanded as
// |x|² + |c|² - 2x·c so only the non-zero entries of x are visited.
func (p *points) squaredDistance(i int, c centroid) float64 {
	d := p.norms[i] + c.norm2 - 2*p.rows[i].Dot(c.v)
	return math.Max(d, 0)
}

// model is a fitted k-means partition.
type model struct {
	centroids []centroid
	labels    []int
}

// fitKMeans runs k-means++ seeding followed by Lloyd iterations.
// The same seed and data always produce the same partition.
func fitKMeans(p *points, k int, seed int64, maxIter int) *model {
	rng := rand.New(rand.NewSource(seed))
	centroids := seedPlusPlus(p, k, rng)
	labels := make([]int, p.len())
	for i := range labels {
		labels[i] = -1
	}

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i := range labels {
			best := nearest(p, i, centroids)
			if best != labels[i] {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
		centroids = recompute(p, labels, centroids)
	}

	return &model{centroids: centroids, labels: labels}
}

// seedPlusPlus picks k initial centroids with D² weighting.
func seedPlusPlus(p *points, k int, rng *rand.Rand) []centroid {
	centroids := make([]centroid, 0, k)
	first := newCentroid(p.rows[rng.Intn(p.len())].Dense(p.dims))
	centroids = append(centroids, first)

	d2 := make([]float64, p.len())
	for i := range d2 {
		d2[i] = p.squaredDistance(i, first)
	}
	for len(centroids) < k {
		var total float64
		for _, d := range d2 {
			total += d
		}

		next := 0
		if total == 0 {
			// All points coincide with a centroid: pick uniformly.
			next = rng.Intn(p.len())
		} else {
			target := rng.Float64() * total
			var acc float64
			for i, d := range d2 {
				acc += d
				if acc >= target && d > 0 {
					next = i
					break
				}
				next = i
			}
		}

		c := newCentroid(p.rows[next].Dense(p.dims))
		centroids = append(centroids, c)
		for i := range d2 {
			d2[i] = math.Min(d2[i], p.squaredDistance(i, c))
		}
	}
	return centroids
}

// recompute moves each centroid to the mean of its members. An empty cluster
// takes over the point farthest from its own centroid.
func recompute(p *points, labels []int, prev []centroid) []centroid {
	k := len(prev)
	sums := make([][]float64, k)
	counts := make([]int, k)
	for c := range sums {
		sums[c] = make([]float64, p.dims)
	}
	for i, row := range p.rows {
		c := labels[i]
		counts[c]++
		for n, j := range row.Indices {
			sums[c][j] += row.Values[n]
		}
	}

	out := make([]centroid, k)
	for c := range sums {
		if counts[c] == 0 {
			far, farDist := 0, -1.0
			for i := range p.rows {
				if d := p.squaredDistance(i, prev[labels[i]]); d > farDist {
					far, farDist = i, d
				}
			}
			out[c] = newCentroid(p.rows[far].Dense(p.dims))
			continue
		}
		for j := range sums[c] {
			sums[c][j] /= float64(counts[c])
		}
		out[c] = newCentroid(sums[c])
	}
	return out
}

// nearest returns the index of the closest centroid to row i, first one on ties.
func nearest(p *points, i int, centroids []centroid) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := p.squaredDistance(i, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
