// Package tracking records active-learning runs: their parameters,
// per-round metrics and artifacts.
package tracking

import (
	"context"
	"time"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning  Status = "RUNNING"
	StatusFinished Status = "FINISHED"
	StatusFailed   Status = "FAILED"
)

// Run is one tracked active-learning run.
type Run struct {
	ID         string            `json:"id"`
	Experiment string            `json:"experiment"`
	Name       string            `json:"name"`
	Status     Status            `json:"status"`
	Params     map[string]string `json:"params,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	EndedAt    *time.Time        `json:"ended_at,omitempty"`
}

// Metric is one recorded metric value.
type Metric struct {
	Key   string    `json:"key"`
	Value float64   `json:"value"`
	Step  int       `json:"step"`
	At    time.Time `json:"at"`
}

// Tracker is a record-only sink for runs.
type Tracker interface {
	StartRun(ctx context.Context, experiment, name string) (*Run, error)
	LogParams(ctx context.Context, runID string, params map[string]string) error
	LogMetric(ctx context.Context, runID, key string, value float64, step int) error
	LogArtifact(ctx context.Context, runID, name string, data []byte) error
	EndRun(ctx context.Context, runID string, status Status) error

	// FindRun returns the latest finished run of experiment whose
	// parameters equal params, or nil if there is none.
	FindRun(ctx context.Context, experiment string, params map[string]string) (*Run, error)
	ListRuns(ctx context.Context, experiment string) ([]Run, error)
}

// ParamsMatch reports whether two parameter sets are identical.
func ParamsMatch(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}
