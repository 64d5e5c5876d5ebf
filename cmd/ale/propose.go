package main

import (
	"context"
	"os"

	"github.com/ale-nlp/ale/internal/corpus"
	"github.com/ale-nlp/ale/internal/proposer"
	"github.com/ale-nlp/ale/internal/teacher"
	"github.com/spf13/cobra"
)

var (
	proposeIDs        string
	proposeCandidates string
	proposeSeedFlag   int64
	proposeCorpusSize int
	proposeStrategy   string
)

func init() {
	rootCmd.AddCommand(proposeCmd)

	proposeCmd.Flags().StringVar(&proposeIDs, "ids", "", "Candidate document ids, comma separated")
	proposeCmd.Flags().StringVar(&proposeCandidates, "candidates", "", "File with candidate document ids (comma or whitespace separated)")
	proposeCmd.Flags().Int64Var(&proposeSeedFlag, "seed", 0, "Seed (default: first configured seed)")
	proposeCmd.Flags().IntVar(&proposeCorpusSize, "corpus-size", -1, "Documents annotated so far (default: experiment.initial_size)")
	proposeCmd.Flags().StringVarP(&proposeStrategy, "teacher", "t", "", "Teacher strategy (default: teacher.strategy)")
}

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Propose the next documents to annotate",
	Long: `Run a single proposal round over a candidate pool.

The pool is given with --ids or --candidates; without either, every corpus
document is a candidate. The step size and sampling budget are derived from
the configured budget and --corpus-size, the number of documents annotated
so far.`,
	Args: cobra.NoArgs,
	RunE: runPropose,
}

func runPropose(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := mustLoadConfig()
	logger := mustLogger()
	defer logger.Sync()

	if proposeStrategy != "" {
		cfg.Teacher.Strategy = proposeStrategy
	}
	seed := cfg.Experiment.Seeds[0]
	if cmd.Flags().Changed("seed") {
		seed = proposeSeedFlag
	}
	corpusSize := cfg.Experiment.InitialSize
	if proposeCorpusSize >= 0 {
		corpusSize = proposeCorpusSize
	}

	s := mustOpenSession(ctx, cfg, logger)
	pool := mustCandidates(s)

	deps, err := s.teacherDeps(seed)
	if err != nil {
		exitWithErr("configuring teacher", err)
	}
	t, err := teacher.New(ctx, cfg.Teacher.Strategy, deps)
	if err != nil {
		exitWithErr("creating teacher", err)
	}
	ctrl, err := proposer.New(t, budget(cfg), pool, corpusSize, proposer.WithLogger(logger))
	if err != nil {
		exitWithErr("creating controller", err)
	}

	res, err := ctrl.Round(ctx)
	if err != nil {
		exitWithErr("proposing", err)
	}

	if humanOutput {
		outputHuman("Round %d: step size %d, sampling budget %d (%s)\n", res.Round, res.StepSize, res.SamplingBudget, res.State)
		outputHuman("Proposed: %s\n", formatIDs(res.IDs, 50))
	} else {
		outputJSON(res)
	}
	return nil
}

// mustCandidates returns the candidate pool from the flags, exits on error.
func mustCandidates(s *session) []int {
	switch {
	case proposeIDs != "":
		ids, err := parseIDs(proposeIDs)
		if err != nil {
			exitWithError(ExitDataError, "parsing --ids: %v", err)
		}
		return ids
	case proposeCandidates != "":
		data, err := os.ReadFile(proposeCandidates)
		if err != nil {
			exitWithError(ExitError, "reading candidates: %v", err)
		}
		ids, err := parseIDs(string(data))
		if err != nil {
			exitWithError(ExitDataError, "parsing %s: %v", proposeCandidates, err)
		}
		return ids
	default:
		ids, err := corpus.IDs(s.corpus)
		if err != nil {
			exitWithErr("loading corpus", err)
		}
		return ids
	}
}
