package prediction

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ale-nlp/ale/internal/alerr"
)

// maxLineCapacity is the maximum buffer size for one JSONL line.
const maxLineCapacity = 4 * 1024 * 1024

// FilePredictor serves predictions precomputed into a JSONL file,
// one {"id": ..., "tokens": [...]} object per line.
type FilePredictor struct {
	predictions map[int]PredictionResult
}

type fileRecord struct {
	ID int `json:"id"`
	PredictionResult
}

// LoadFile reads a JSONL prediction file.
func LoadFile(path string) (*FilePredictor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening predictions file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, maxLineCapacity)

	predictions := make(map[int]PredictionResult)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec fileRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		if _, dup := predictions[rec.ID]; dup {
			return nil, fmt.Errorf("line %d: duplicate document id %d", lineNum, rec.ID)
		}
		predictions[rec.ID] = rec.PredictionResult
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading predictions file: %w", err)
	}

	return &FilePredictor{predictions: predictions}, nil
}

// NewStaticPredictor serves the given predictions.
func NewStaticPredictor(predictions map[int]PredictionResult) *FilePredictor {
	return &FilePredictor{predictions: predictions}
}

// Predict implements Predictor.
func (p *FilePredictor) Predict(_ context.Context, ids []int) (map[int]PredictionResult, error) {
	out := make(map[int]PredictionResult, len(ids))
	for _, id := range ids {
		pred, ok := p.predictions[id]
		if !ok {
			return nil, fmt.Errorf("%w: no prediction for document %d", alerr.ErrInference, id)
		}
		out[id] = pred
	}
	return out, nil
}

// IDs returns all document ids with a prediction, ascending.
func (p *FilePredictor) IDs() []int {
	return SortedIDs(p.predictions)
}
