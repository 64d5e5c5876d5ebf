package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ale-nlp/ale/internal/alerr"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading one JSONL line (1MB).
const MaxJSONLLineCapacity = 1024 * 1024

// Record is one line of a JSONL corpus.
type Record struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// JSONL is a corpus stored as {"id": ..., "text": ...} lines.
type JSONL struct {
	Path string
}

// TextsWithIDs implements Corpus. The file is re-read on every call.
func (j JSONL) TextsWithIDs() (map[int]string, error) {
	f, err := os.Open(j.Path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	buf := make([]byte, MaxJSONLLineCapacity)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	texts := make(map[int]string)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("%w: parsing line %d: %v", alerr.ErrInvalidInput, lineNum, err)
		}
		if _, dup := texts[rec.ID]; dup {
			return nil, fmt.Errorf("%w: line %d: duplicate document id %d", alerr.ErrInvalidInput, lineNum, rec.ID)
		}
		texts[rec.ID] = rec.Text
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading corpus file: %w", err)
	}
	return texts, nil
}

// WriteJSONL writes records to path, replacing existing content.
func WriteJSONL(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating corpus file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("writing record %d: %w", i, err)
		}
	}
	return nil
}
