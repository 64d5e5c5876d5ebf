// Package aggregate collapses per-token label confidences into document-level scores.
package aggregate

import (
	"fmt"
	"strings"

	"github.com/ale-nlp/ale/internal/alerr"
	"github.com/ale-nlp/ale/internal/prediction"
	"github.com/montanaflynn/stats"
)

// Method selects the statistic used to reduce a series of confidences.
type Method int

const (
	Minimum Method = iota
	Maximum
	Average
	Sum
	Std
)

var methodNames = map[Method]string{
	Minimum: "min",
	Maximum: "max",
	Average: "avg",
	Sum:     "sum",
	Std:     "std",
}

var methodAliases = map[string]Method{
	"min": Minimum, "minimum": Minimum,
	"max": Maximum, "maximum": Maximum,
	"avg": Average, "average": Average, "mean": Average,
	"sum": Sum,
	"std": Std, "stddev": Std,
}

// String returns the config name of the method.
func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod parses a config value such as "min" or "AVERAGE".
func ParseMethod(s string) (Method, error) {
	if m, ok := methodAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return m, nil
	}
	return 0, fmt.Errorf("%w: unknown aggregation method %q", alerr.ErrInvalidInput, s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Reduce collapses values with the given method. STD is the population standard deviation.
func Reduce(values []float64, m Method) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("%w: cannot aggregate an empty series", alerr.ErrInvalidInput)
	}

	data := stats.Float64Data(values)
	switch m {
	case Minimum:
		return stats.Min(data)
	case Maximum:
		return stats.Max(data)
	case Average:
		return stats.Mean(data)
	case Sum:
		return stats.Sum(data)
	case Std:
		return stats.StandardDeviationPopulation(data)
	}
	return 0, fmt.Errorf("%w: unknown aggregation method %d", alerr.ErrInvalidInput, int(m))
}

// Confidence returns the document's overall certainty: the highest label
// confidence of every token, reduced across tokens with m.
func Confidence(p prediction.PredictionResult, m Method) (float64, error) {
	tokens := p.TokenConfidences()
	if len(tokens) == 0 {
		return 0, fmt.Errorf("%w: prediction has no tokens", alerr.ErrInvalidInput)
	}

	maxima := make([]float64, len(tokens))
	for i, tok := range tokens {
		maxima[i] = tok.Max()
	}
	return Reduce(maxima, m)
}

// PerLabel reduces each label's confidence across the tokens that carry it.
// Labels missing from every token are absent from the result.
func PerLabel(p prediction.PredictionResult, m Method, labels []string) (map[string]float64, error) {
	tokens := p.TokenConfidences()
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: prediction has no tokens", alerr.ErrInvalidInput)
	}

	out := make(map[string]float64, len(labels))
	for _, label := range labels {
		var series []float64
		for _, tok := range tokens {
			if c, ok := tok.Labels[label]; ok {
				series = append(series, c)
			}
		}
		if len(series) == 0 {
			continue
		}
		v, err := Reduce(series, m)
		if err != nil {
			return nil, fmt.Errorf("aggregating label %s: %w", label, err)
		}
		out[label] = v
	}
	return out, nil
}
