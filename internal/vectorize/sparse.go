package vectorize

import (
	"context"
	"sort"
)

// SparseVector holds the non-zero entries of a vector. Indices are ascending
// and Values is aligned with them.
type SparseVector struct {
	Indices []int
	Values  []float64
}

// SparseVectorizer is a Vectorizer whose rows can be produced without
// materializing their zeros. dims is the length of the equivalent dense rows.
type SparseVectorizer interface {
	Vectorizer
	VectorizeSparse(ctx context.Context, texts []string) (rows []SparseVector, dims int, err error)
}

// Sparsify keeps the non-zero entries of row.
func Sparsify(row []float64) SparseVector {
	var v SparseVector
	for j, x := range row {
		if x != 0 {
			v.Indices = append(v.Indices, j)
			v.Values = append(v.Values, x)
		}
	}
	return v
}

// Dense expands v into a slice of length dims.
func (v SparseVector) Dense(dims int) []float64 {
	out := make([]float64, dims)
	for i, j := range v.Indices {
		out[j] = v.Values[i]
	}
	return out
}

// SquaredNorm returns the squared L2 norm of v.
func (v SparseVector) SquaredNorm() float64 {
	var sum float64
	for _, x := range v.Values {
		sum += x * x
	}
	return sum
}

// Dot returns the inner product of v and a dense vector.
func (v SparseVector) Dot(dense []float64) float64 {
	var sum float64
	for i, j := range v.Indices {
		sum += v.Values[i] * dense[j]
	}
	return sum
}

// SquaredDistance returns the squared Euclidean distance between a and b.
func SquaredDistance(a, b SparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(a.Indices) && j < len(b.Indices) {
		switch {
		case a.Indices[i] == b.Indices[j]:
			d := a.Values[i] - b.Values[j]
			sum += d * d
			i++
			j++
		case a.Indices[i] < b.Indices[j]:
			sum += a.Values[i] * a.Values[i]
			i++
		default:
			sum += b.Values[j] * b.Values[j]
			j++
		}
	}
	for ; i < len(a.Indices); i++ {
		sum += a.Values[i] * a.Values[i]
	}
	for ; j < len(b.Indices); j++ {
		sum += b.Values[j] * b.Values[j]
	}
	return sum
}

// Rows vectorizes texts sparsely, using VectorizeSparse when v supports it and
// sparsifying dense rows otherwise.
func Rows(ctx context.Context, v Vectorizer, texts []string) ([]SparseVector, int, error) {
	if sv, ok := v.(SparseVectorizer); ok {
		return sv.VectorizeSparse(ctx, texts)
	}

	dense, err := v.Vectorize(ctx, texts)
	if err != nil {
		return nil, 0, err
	}
	rows := make([]SparseVector, len(dense))
	dims := 0
	for i, row := range dense {
		rows[i] = Sparsify(row)
		dims = max(dims, len(row))
	}
	return rows, dims, nil
}

func sortEntries(v *SparseVector) {
	sort.Sort(byIndex{v})
}

type byIndex struct{ v *SparseVector }

func (b byIndex) Len() int           { return len(b.v.Indices) }
func (b byIndex) Less(i, j int) bool { return b.v.Indices[i] < b.v.Indices[j] }
func (b byIndex) Swap(i, j int) {
	b.v.Indices[i], b.v.Indices[j] = b.v.Indices[j], b.v.Indices[i]
	b.v.Values[i], b.v.Values[j] = b.v.Values[j], b.v.Values[i]
}
