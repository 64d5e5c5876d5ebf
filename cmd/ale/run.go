package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/ale-nlp/ale/internal/config"
	"github.com/ale-nlp/ale/internal/corpus"
	"github.com/ale-nlp/ale/internal/proposer"
	"github.com/ale-nlp/ale/internal/teacher"
	"github.com/ale-nlp/ale/internal/tracking"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runParallel int
	runOut      string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVarP(&runParallel, "parallel", "p", 1, "Number of seeds run concurrently")
	runCmd.Flags().StringVarP(&runOut, "out", "o", "", "Append every round's proposal to this JSONL file")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the active-learning loop for every configured seed",
	Long: `Run the active-learning loop for every seed in experiment.seeds.

Each seed starts from a seeded random sample of experiment.initial_size
annotated documents and proposes rounds with the configured teacher until
the annotation budget or the candidate pool is exhausted. Every round is
recorded in the tracking database.

With tracking.skip_finished, seeds that already have a finished run with
identical parameters are skipped.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

// SeedResult is the outcome of one seed.
type SeedResult struct {
	Seed    int64             `json:"seed"`
	RunID   string            `json:"run_id,omitempty"`
	Skipped bool              `json:"skipped,omitempty"`
	Summary *proposer.Summary `json:"summary,omitempty"`
	Error   string            `json:"error,omitempty"`

	err error
}

// RunResponse is the response for the run command.
type RunResponse struct {
	Experiment string       `json:"experiment"`
	Strategy   string       `json:"strategy"`
	Seeds      []SeedResult `json:"seeds"`
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := mustLoadConfig()
	logger := mustLogger()
	defer logger.Sync()

	if runParallel < 1 {
		exitWithError(ExitError, "--parallel must be at least 1")
	}

	s := mustOpenSession(ctx, cfg, logger)
	db := mustOpenTracker(cfg)
	var tracker tracking.Tracker
	if db != nil {
		defer db.Close()
		tracker = db
	}

	var out *proposalWriter
	if runOut != "" {
		f, err := os.OpenFile(runOut, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			exitWithError(ExitError, "opening output file: %v", err)
		}
		defer f.Close()
		out = &proposalWriter{enc: json.NewEncoder(f)}
	}

	results := make([]SeedResult, len(cfg.Experiment.Seeds))
	var wg sync.WaitGroup
	sem := make(chan struct{}, runParallel)
	for i, seed := range cfg.Experiment.Seeds {
		wg.Add(1)
		go func(idx int, seed int64) {
			defer wg.Done()
			sem <- struct{}{}        // acquire semaphore
			defer func() { <-sem }() // release semaphore
			results[idx] = runSeed(ctx, s, tracker, seed, out)
		}(i, seed)
	}
	wg.Wait()

	resp := RunResponse{Experiment: cfg.Experiment.Name, Strategy: cfg.Teacher.Strategy, Seeds: results}
	if humanOutput {
		printRunHuman(resp)
	} else {
		outputJSON(resp)
	}

	for _, r := range results {
		if r.err != nil {
			os.Exit(exitCodeFor(r.err))
		}
	}
	return nil
}

// runSeed runs the loop for one seed. Failures are reported in the result.
func runSeed(ctx context.Context, s *session, tracker tracking.Tracker, seed int64, out *proposalWriter) SeedResult {
	cfg := s.cfg
	logger := s.logger.With(zap.Int64("seed", seed))
	res := SeedResult{Seed: seed}
	fail := func(err error) SeedResult {
		logger.Error("run failed", zap.Error(err))
		res.err = err
		res.Error = err.Error()
		return res
	}

	params, err := runParams(cfg, seed, logger)
	if err != nil {
		return fail(err)
	}
	if tracker != nil && cfg.Tracking.SkipFinished {
		prev, err := tracker.FindRun(ctx, cfg.Experiment.Name, params)
		if err != nil {
			logger.Warn("looking up finished runs", zap.Error(err))
		} else if prev != nil {
			logger.Info("matching finished run found, skipping", zap.String("run", prev.ID))
			res.RunID = prev.ID
			res.Skipped = true
			return res
		}
	}

	bt := tracking.NewBestEffort(tracker, logger)
	res.RunID = bt.StartRun(ctx, cfg.Experiment.Name, fmt.Sprintf("%s-seed-%d", cfg.Teacher.Strategy, seed))
	bt.LogParams(ctx, res.RunID, params)

	summary, err := proposeSeed(ctx, s, bt, res.RunID, seed, out)
	if err != nil {
		bt.EndRun(ctx, res.RunID, tracking.StatusFailed)
		return fail(err)
	}
	bt.EndRun(ctx, res.RunID, tracking.StatusFinished)
	res.Summary = &summary
	return res
}

func proposeSeed(ctx context.Context, s *session, bt *tracking.BestEffort, runID string, seed int64, out *proposalWriter) (proposer.Summary, error) {
	cfg := s.cfg
	ids, err := corpus.IDs(s.corpus)
	if err != nil {
		return proposer.Summary{}, fmt.Errorf("loading corpus: %w", err)
	}
	initial, pool := splitInitial(ids, cfg.Experiment.InitialSize, seed)
	if data, err := json.Marshal(initial); err == nil {
		bt.LogArtifact(ctx, runID, "initial.json", data)
	}

	deps, err := s.teacherDeps(seed)
	if err != nil {
		return proposer.Summary{}, err
	}
	t, err := teacher.New(ctx, cfg.Teacher.Strategy, deps)
	if err != nil {
		return proposer.Summary{}, fmt.Errorf("creating teacher: %w", err)
	}

	ctrl, err := proposer.New(t, budget(cfg), pool, len(initial),
		proposer.WithLogger(deps.Logger),
		proposer.WithTracker(bt, runID))
	if err != nil {
		return proposer.Summary{}, err
	}

	var annotator proposer.Annotator
	if out != nil {
		annotator = proposer.AnnotatorFunc(func(_ context.Context, round int, ids []int) error {
			return out.write(proposalRecord{Seed: seed, RunID: runID, Round: round, IDs: ids})
		})
	}
	return ctrl.Run(ctx, annotator)
}

func budget(cfg *config.Config) proposer.Budget {
	return proposer.Budget{
		StepSize:         cfg.Experiment.StepSize,
		SamplingBudget:   cfg.Teacher.SamplingBudget,
		AnnotationBudget: cfg.Experiment.AnnotationBudget,
	}
}

// runParams returns the tracked parameters of one seed's run.
func runParams(cfg *config.Config, seed int64, logger *zap.Logger) (map[string]string, error) {
	params, err := cfg.Params(logger)
	if err != nil {
		return nil, err
	}
	params["run.seed"] = strconv.FormatInt(seed, 10)
	return params, nil
}

// splitInitial draws n ids as the initially annotated corpus; the rest form
// the candidate pool. Both are sorted.
func splitInitial(ids []int, n int, seed int64) (initial, pool []int) {
	n = min(max(n, 0), len(ids))
	perm := rand.New(rand.NewSource(seed)).Perm(len(ids))
	initial = make([]int, 0, n)
	pool = make([]int, 0, len(ids)-n)
	for i, p := range perm {
		if i < n {
			initial = append(initial, ids[p])
		} else {
			pool = append(pool, ids[p])
		}
	}
	sort.Ints(initial)
	sort.Ints(pool)
	return initial, pool
}

type proposalRecord struct {
	Seed  int64  `json:"seed"`
	RunID string `json:"run_id,omitempty"`
	Round int    `json:"round"`
	IDs   []int  `json:"ids"`
}

// proposalWriter appends proposals as JSONL; safe for concurrent seeds.
type proposalWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (w *proposalWriter) write(r proposalRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(r); err != nil {
		return fmt.Errorf("writing proposal: %w", err)
	}
	return nil
}

func printRunHuman(resp RunResponse) {
	outputHuman("Experiment: %s (teacher: %s)\n\n", resp.Experiment, resp.Strategy)
	for _, r := range resp.Seeds {
		switch {
		case r.Skipped:
			outputHuman("seed %d: skipped, finished run %s exists\n", r.Seed, r.RunID)
		case r.Error != "":
			outputHuman("seed %d: FAILED: %s\n", r.Seed, r.Error)
		default:
			outputHuman("seed %d: %d rounds, %d proposed, corpus %d, %d left in pool (%s)\n",
				r.Seed, r.Summary.Rounds, len(r.Summary.Proposed), r.Summary.CorpusSize, r.Summary.Remaining, r.Summary.State)
		}
	}
}
