// Package proposer drives active-learning rounds under an annotation budget.
package proposer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ale-nlp/ale/internal/alerr"
	"github.com/ale-nlp/ale/internal/teacher"
	"github.com/ale-nlp/ale/internal/tracking"
	"go.uber.org/zap"
)

// State is the position of a controller in its run.
type State string

const (
	StateInitialized     State = "INITIALIZED"
	StateProposing       State = "PROPOSING"
	StateContinuing      State = "CONTINUING"
	StateBudgetExhausted State = "BUDGET_EXHAUSTED"
	StatePoolExhausted   State = "POOL_EXHAUSTED"
)

// Terminal reports whether no further round can run.
func (s State) Terminal() bool {
	return s == StateBudgetExhausted || s == StatePoolExhausted
}

// Budget holds the configured limits of a run.
type Budget struct {
	StepSize         int // documents proposed per round
	SamplingBudget   int // candidates a teacher may run inference on per round
	AnnotationBudget int // total annotated corpus size
}

// Controller proposes documents round by round until the annotation budget
// or the candidate pool is exhausted. It is not safe for concurrent use.
type Controller struct {
	teacher teacher.Teacher
	budget  Budget

	pool       []int
	corpusSize int
	proposed   int
	round      int
	state      State

	logger  *zap.Logger
	tracker *tracking.BestEffort
	runID   string
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTracker records per-round metrics and proposals on runID.
func WithTracker(t *tracking.BestEffort, runID string) Option {
	return func(c *Controller) {
		c.tracker = t
		c.runID = runID
	}
}

// New creates a controller over the candidate pool. corpusSize is the number
// of documents already annotated.
func New(t teacher.Teacher, b Budget, pool []int, corpusSize int, opts ...Option) (*Controller, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: no teacher", alerr.ErrInvalidInput)
	}
	if b.StepSize <= 0 || b.SamplingBudget <= 0 || b.AnnotationBudget <= 0 {
		return nil, fmt.Errorf("%w: step size, sampling budget and annotation budget must be positive (got %d, %d, %d)",
			alerr.ErrInvalidInput, b.StepSize, b.SamplingBudget, b.AnnotationBudget)
	}
	if corpusSize < 0 {
		return nil, fmt.Errorf("%w: negative corpus size %d", alerr.ErrInvalidInput, corpusSize)
	}
	seen := make(map[int]bool, len(pool))
	for _, id := range pool {
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate document %d in pool", alerr.ErrInvalidInput, id)
		}
		seen[id] = true
	}

	c := &Controller{
		teacher:    t,
		budget:     b,
		pool:       append([]int(nil), pool...),
		corpusSize: corpusSize,
		state:      StateInitialized,
		logger:     zap.NewNop(),
		tracker:    tracking.NewBestEffort(nil, nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Pool returns a copy of the remaining candidate ids.
func (c *Controller) Pool() []int { return append([]int(nil), c.pool...) }

// CorpusSize returns the number of annotated documents, initial ones included.
func (c *Controller) CorpusSize() int { return c.corpusSize }

// Proposed returns the number of documents proposed so far.
func (c *Controller) Proposed() int { return c.proposed }

// DetermineStepSize returns the sampling budget and step size of the next
// round. The sampling budget narrows to the candidate pool; the step size
// narrows to the pool, the sampling budget and the annotation budget left.
func (c *Controller) DetermineStepSize(currentCorpusSize int, candidateIDs []int) (samplingBudget, stepSize int) {
	samplingBudget = min(c.budget.SamplingBudget, len(candidateIDs))
	stepSize = min(c.budget.StepSize, c.budget.AnnotationBudget-currentCorpusSize, samplingBudget)
	return samplingBudget, max(stepSize, 0)
}

// RoundResult describes one round.
type RoundResult struct {
	Round          int   `json:"round"`
	IDs            []int `json:"ids"`
	SamplingBudget int   `json:"sampling_budget"`
	StepSize       int   `json:"step_size"`
	State          State `json:"state"`
}

// Round runs one proposal round. When the step size is zero the controller
// becomes terminal without consulting the teacher. Calling Round in a
// terminal state returns an empty result.
func (c *Controller) Round(ctx context.Context) (RoundResult, error) {
	if c.state.Terminal() {
		return RoundResult{Round: c.round, IDs: []int{}, State: c.state}, nil
	}
	c.state = StateProposing

	sb, step := c.DetermineStepSize(c.corpusSize, c.pool)
	res := RoundResult{Round: c.round, SamplingBudget: sb, StepSize: step, IDs: []int{}}
	if step <= 0 {
		c.state = c.exhaustedState()
		res.State = c.state
		c.logger.Info("proposal finished", zap.String("state", string(c.state)), zap.Int("corpus_size", c.corpusSize))
		return res, nil
	}

	ids, err := c.teacher.Propose(ctx, c.Pool(), step, sb)
	if err != nil {
		return res, fmt.Errorf("round %d: %w", c.round, err)
	}
	if err := c.checkProposal(ids); err != nil {
		return res, fmt.Errorf("round %d: %w", c.round, err)
	}
	if len(ids) > step {
		c.logger.Warn("teacher proposed more than the step size", zap.Int("proposed", len(ids)), zap.Int("step_size", step))
		ids = ids[:step]
	}

	c.remove(ids)
	c.corpusSize += len(ids)
	c.proposed += len(ids)
	c.round++

	switch {
	case len(ids) == 0:
		// a teacher that finds nothing to propose ends the run
		c.logger.Warn("teacher proposed no documents", zap.Int("pool", len(c.pool)))
		c.state = StatePoolExhausted
	case c.corpusSize >= c.budget.AnnotationBudget:
		c.state = StateBudgetExhausted
	case len(c.pool) == 0:
		c.state = StatePoolExhausted
	default:
		c.state = StateContinuing
	}

	res.IDs = ids
	res.State = c.state
	c.logger.Info("round proposed",
		zap.Int("round", res.Round),
		zap.Int("step_size", step),
		zap.Int("sampling_budget", sb),
		zap.Int("proposed", len(ids)),
		zap.Int("corpus_size", c.corpusSize),
		zap.String("state", string(c.state)))
	return res, nil
}

func (c *Controller) exhaustedState() State {
	if c.corpusSize >= c.budget.AnnotationBudget {
		return StateBudgetExhausted
	}
	return StatePoolExhausted
}

// checkProposal rejects ids outside the pool and repeated ids.
func (c *Controller) checkProposal(ids []int) error {
	inPool := make(map[int]bool, len(c.pool))
	for _, id := range c.pool {
		inPool[id] = true
	}
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if !inPool[id] {
			return fmt.Errorf("%w: proposed document %d is not in the candidate pool", alerr.ErrInvalidInput, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: document %d proposed twice", alerr.ErrInvalidInput, id)
		}
		seen[id] = true
	}
	return nil
}

func (c *Controller) remove(ids []int) {
	drop := make(map[int]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := c.pool[:0]
	for _, id := range c.pool {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	c.pool = kept
}

// Annotator receives each round's proposal. It is where the orchestrator
// labels the documents and retrains the model before the next round.
type Annotator interface {
	Annotate(ctx context.Context, round int, ids []int) error
}

// AnnotatorFunc adapts a function to Annotator.
type AnnotatorFunc func(ctx context.Context, round int, ids []int) error

// Annotate implements Annotator.
func (f AnnotatorFunc) Annotate(ctx context.Context, round int, ids []int) error {
	return f(ctx, round, ids)
}

// Summary describes a finished run.
type Summary struct {
	Rounds     int   `json:"rounds"`
	Proposed   []int `json:"proposed"`
	CorpusSize int   `json:"corpus_size"`
	Remaining  int   `json:"remaining"`
	State      State `json:"state"`
}

// Run executes rounds until the controller is terminal. Each non-empty
// proposal is passed to a (which may be nil) and recorded on the tracker.
func (c *Controller) Run(ctx context.Context, a Annotator) (Summary, error) {
	sum := Summary{Proposed: []int{}}
	for !c.state.Terminal() {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		res, err := c.Round(ctx)
		if err != nil {
			return sum, err
		}
		if len(res.IDs) == 0 {
			continue
		}

		sum.Rounds++
		sum.Proposed = append(sum.Proposed, res.IDs...)
		c.record(ctx, res)

		if a != nil {
			if err := a.Annotate(ctx, res.Round, res.IDs); err != nil {
				return sum, fmt.Errorf("annotating round %d: %w", res.Round, err)
			}
		}
	}

	sum.CorpusSize = c.corpusSize
	sum.Remaining = len(c.pool)
	sum.State = c.state
	return sum, nil
}

func (c *Controller) record(ctx context.Context, res RoundResult) {
	c.tracker.LogMetric(ctx, c.runID, "proposed", float64(len(res.IDs)), res.Round)
	c.tracker.LogMetric(ctx, c.runID, "corpus_size", float64(c.corpusSize), res.Round)
	c.tracker.LogMetric(ctx, c.runID, "pool_size", float64(len(c.pool)), res.Round)
	c.tracker.LogMetric(ctx, c.runID, "step_size", float64(res.StepSize), res.Round)
	c.tracker.LogMetric(ctx, c.runID, "sampling_budget", float64(res.SamplingBudget), res.Round)

	data, err := json.Marshal(res)
	if err != nil {
		c.logger.Warn("encoding round", zap.Error(err))
		return
	}
	c.tracker.LogArtifact(ctx, c.runID, fmt.Sprintf("round-%03d.json", res.Round), data)
}
