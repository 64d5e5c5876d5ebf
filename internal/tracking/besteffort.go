package tracking

import (
	"context"

	"go.uber.org/zap"
)

// BestEffort wraps a Tracker so that recording failures are logged and
// swallowed. A nil inner tracker records nothing.
type BestEffort struct {
	inner  Tracker
	logger *zap.Logger
}

// NewBestEffort wraps t. A nil logger discards the warnings.
func NewBestEffort(t Tracker, logger *zap.Logger) *BestEffort {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BestEffort{inner: t, logger: logger}
}

func (b *BestEffort) warn(op string, err error, fields ...zap.Field) {
	if err != nil {
		b.logger.Warn("tracking failed", append(fields, zap.String("op", op), zap.Error(err))...)
	}
}

// StartRun starts a run and returns its id, or "" if the run could not be started.
func (b *BestEffort) StartRun(ctx context.Context, experiment, name string) string {
	if b.inner == nil {
		return ""
	}
	run, err := b.inner.StartRun(ctx, experiment, name)
	if err != nil {
		b.warn("start_run", err, zap.String("experiment", experiment))
		return ""
	}
	return run.ID
}

// LogParams records params on runID.
func (b *BestEffort) LogParams(ctx context.Context, runID string, params map[string]string) {
	if b.inner == nil || runID == "" {
		return
	}
	b.warn("log_params", b.inner.LogParams(ctx, runID, params), zap.String("run", runID))
}

// LogMetric records one metric value on runID.
func (b *BestEffort) LogMetric(ctx context.Context, runID, key string, value float64, step int) {
	if b.inner == nil || runID == "" {
		return
	}
	b.warn("log_metric", b.inner.LogMetric(ctx, runID, key, value, step), zap.String("run", runID), zap.String("key", key))
}

// LogArtifact stores an artifact on runID.
func (b *BestEffort) LogArtifact(ctx context.Context, runID, name string, data []byte) {
	if b.inner == nil || runID == "" {
		return
	}
	b.warn("log_artifact", b.inner.LogArtifact(ctx, runID, name, data), zap.String("run", runID), zap.String("artifact", name))
}

// EndRun marks runID as ended with status.
func (b *BestEffort) EndRun(ctx context.Context, runID string, status Status) {
	if b.inner == nil || runID == "" {
		return
	}
	b.warn("end_run", b.inner.EndRun(ctx, runID, status), zap.String("run", runID))
}
