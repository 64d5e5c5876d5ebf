package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ale-nlp/ale/internal/alerr"
	"github.com/ledongthuc/pdf"
)

// PDFDir is a corpus of <id>.pdf files in a directory.
// Files whose base name is not an integer are ignored.
type PDFDir struct {
	Dir string
}

// TextsWithIDs implements Corpus.
func (p PDFDir) TextsWithIDs() (map[int]string, error) {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		return nil, fmt.Errorf("reading corpus directory: %w", err)
	}

	files := make(map[int]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), ".pdf") {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSuffix(name, filepath.Ext(name)))
		if err != nil {
			continue
		}
		if prev, ok := files[id]; ok {
			return nil, fmt.Errorf("%w: %s and %s both map to document id %d", alerr.ErrInvalidInput, prev, name, id)
		}
		files[id] = name
	}

	texts := make(map[int]string, len(files))
	for id, name := range files {
		text, err := extractText(filepath.Join(p.Dir, name))
		if err != nil {
			return nil, fmt.Errorf("extracting %s: %w", name, err)
		}
		texts[id] = text
	}
	return texts, nil
}

// extractText returns the plain text of every page.
func extractText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}
