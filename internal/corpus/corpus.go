// Package corpus provides read-only access to the unlabeled document texts.
package corpus

import "sort"

// Corpus returns every document text keyed by document id.
// The result must be stable for the duration of one clustering computation.
type Corpus interface {
	TextsWithIDs() (map[int]string, error)
}

// Map is an in-memory corpus.
type Map map[int]string

// TextsWithIDs implements Corpus.
func (m Map) TextsWithIDs() (map[int]string, error) {
	out := make(map[int]string, len(m))
	for id, text := range m {
		out[id] = text
	}
	return out, nil
}

// IDs returns the corpus ids in ascending order.
func IDs(c Corpus) ([]int, error) {
	texts, err := c.TextsWithIDs()
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(texts))
	for id := range texts {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}
