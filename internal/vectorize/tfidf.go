package vectorize

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	porterstemmer "github.com/kiteco/go-porterstemmer"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// TFIDF is a bag-of-words vectorizer: raw term counts weighted by smooth
// inverse document frequency, rows L2-normalized.
type TFIDF struct {
	// MaxFeatures keeps only the most frequent terms when > 0.
	MaxFeatures int

	// Stem applies Porter stemming to tokens.
	Stem bool
}

// NewTFIDF returns a stemming TF-IDF vectorizer with an unbounded vocabulary.
func NewTFIDF() *TFIDF {
	return &TFIDF{Stem: true}
}

// Tokenize normalizes text (NFKC, case folding) and splits it into word tokens.
func (v *TFIDF) Tokenize(text string) []string {
	folded := cases.Fold().String(norm.NFKC.String(text))
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if v.Stem {
			f = porterstemmer.StemString(f)
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// Vectorize implements Vectorizer with dense rows.
func (v *TFIDF) Vectorize(ctx context.Context, texts []string) ([][]float64, error) {
	sparse, dims, err := v.VectorizeSparse(ctx, texts)
	if err != nil {
		return nil, err
	}
	rows := make([][]float64, len(sparse))
	for i, row := range sparse {
		rows[i] = row.Dense(dims)
	}
	return rows, nil
}

// VectorizeSparse implements SparseVectorizer. dims is the vocabulary size.
func (v *TFIDF) VectorizeSparse(_ context.Context, texts []string) ([]SparseVector, int, error) {
	counts := make([]map[string]int, len(texts))
	df := make(map[string]int)
	total := make(map[string]int)

	for i, text := range texts {
		counts[i] = make(map[string]int)
		for _, tok := range v.Tokenize(text) {
			counts[i][tok]++
			total[tok]++
		}
		for tok := range counts[i] {
			df[tok]++
		}
	}

	vocab := v.vocabulary(total)
	index := make(map[string]int, len(vocab))
	for i, term := range vocab {
		index[term] = i
	}

	n := float64(len(texts))
	idf := make([]float64, len(vocab))
	for i, term := range vocab {
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	rows := make([]SparseVector, len(texts))
	for i := range texts {
		var row SparseVector
		for tok, c := range counts[i] {
			j, ok := index[tok]
			if !ok {
				continue
			}
			row.Indices = append(row.Indices, j)
			row.Values = append(row.Values, float64(c)*idf[j])
		}
		sortEntries(&row)
		if norm2 := row.SquaredNorm(); norm2 > 0 {
			l2 := math.Sqrt(norm2)
			for k := range row.Values {
				row.Values[k] /= l2
			}
		}
		rows[i] = row
	}
	return rows, len(vocab), nil
}

// vocabulary returns the sorted term list, capped to MaxFeatures by corpus frequency.
func (v *TFIDF) vocabulary(total map[string]int) []string {
	terms := make([]string, 0, len(total))
	for term := range total {
		terms = append(terms, term)
	}

	if v.MaxFeatures > 0 && len(terms) > v.MaxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if total[terms[i]] != total[terms[j]] {
				return total[terms[i]] > total[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:v.MaxFeatures]
	}

	sort.Strings(terms)
	return terms
}
