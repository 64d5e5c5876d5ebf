package tracking

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// failingTracker fails every call.
type failingTracker struct{}

var errDown = errors.New("tracking server down")

func (failingTracker) StartRun(context.Context, string, string) (*Run, error) { return nil, errDown }
func (failingTracker) LogParams(context.Context, string, map[string]string) error {
	return errDown
}
func (failingTracker) LogMetric(context.Context, string, string, float64, int) error { return errDown }
func (failingTracker) LogArtifact(context.Context, string, string, []byte) error     { return errDown }
func (failingTracker) EndRun(context.Context, string, Status) error                  { return errDown }
func (failingTracker) FindRun(context.Context, string, map[string]string) (*Run, error) {
	return nil, errDown
}
func (failingTracker) ListRuns(context.Context, string) ([]Run, error) { return nil, errDown }

func TestBestEffort_SwallowsFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	b := NewBestEffort(failingTracker{}, zap.New(core))
	ctx := context.Background()

	assert.Equal(t, "", b.StartRun(ctx, "exp", "run"))
	b.LogParams(ctx, "id", map[string]string{"a": "b"})
	b.LogMetric(ctx, "id", "proposed", 1, 0)
	b.LogArtifact(ctx, "id", "a.json", nil)
	b.EndRun(ctx, "id", StatusFinished)

	assert.Equal(t, 5, logs.FilterMessage("tracking failed").Len())
}

func TestBestEffort_SkipsWithoutRun(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	b := NewBestEffort(failingTracker{}, zap.New(core))

	b.LogMetric(context.Background(), "", "proposed", 1, 0)
	assert.Equal(t, 0, logs.Len())
}

func TestBestEffort_NilTracker(t *testing.T) {
	b := NewBestEffort(nil, nil)
	ctx := context.Background()

	assert.Equal(t, "", b.StartRun(ctx, "exp", "run"))
	b.LogMetric(ctx, "x", "k", 1, 0)
	b.EndRun(ctx, "x", StatusFinished)
}

func TestBestEffort_RecordsThroughSQLite(t *testing.T) {
	s := openTestDB(t)
	b := NewBestEffort(s, nil)
	ctx := context.Background()

	id := b.StartRun(ctx, "exp", "run")
	assert.NotEmpty(t, id)
	b.LogMetric(ctx, id, "proposed", 3, 0)
	b.EndRun(ctx, id, StatusFinished)

	metrics, err := s.Metrics(ctx, id)
	assert.NoError(t, err)
	assert.Len(t, metrics, 1)
}
