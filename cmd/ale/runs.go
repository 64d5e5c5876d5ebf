package main

import (
	"context"
	"sort"
	"time"

	"github.com/ale-nlp/ale/internal/tracking"
	"github.com/spf13/cobra"
)

var (
	runsDB         string
	runsExperiment string
)

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsShowCmd)

	runsCmd.PersistentFlags().StringVar(&runsDB, "db", "", "Tracking database (default: tracking.db from --config)")
	runsCmd.Flags().StringVarP(&runsExperiment, "experiment", "e", "", "Only list runs of this experiment")
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List tracked runs",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run's parameters and metrics",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

// RunsResponse is the response for the runs command.
type RunsResponse struct {
	Runs  []tracking.Run `json:"runs"`
	Total int            `json:"total"`
}

// RunDetailResponse is the response for the runs show command.
type RunDetailResponse struct {
	Run     tracking.Run      `json:"run"`
	Metrics []tracking.Metric `json:"metrics"`
}

// mustOpenRunsDB opens the tracking database named by --db or the config.
func mustOpenRunsDB() *tracking.SQLite {
	path := runsDB
	if path == "" {
		path = mustLoadConfig().Tracking.DB
	}
	db, err := tracking.OpenSQLite(path)
	if err != nil {
		exitWithError(ExitError, "opening tracking database: %v", err)
	}
	return db
}

func runRuns(cmd *cobra.Command, args []string) error {
	db := mustOpenRunsDB()
	defer db.Close()

	runs, err := db.ListRuns(context.Background(), runsExperiment)
	if err != nil {
		exitWithError(ExitError, "listing runs: %v", err)
	}
	if runs == nil {
		runs = []tracking.Run{}
	}

	if humanOutput {
		if len(runs) == 0 {
			outputHuman("No runs found.\n")
			return nil
		}
		for _, r := range runs {
			outputHuman("%s  %-9s %s / %s  started %s\n", r.ID, r.Status, r.Experiment, r.Name, r.StartedAt.Format(time.RFC3339))
		}
		return nil
	}
	return outputJSON(RunsResponse{Runs: runs, Total: len(runs)})
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	db := mustOpenRunsDB()
	defer db.Close()

	runs, err := db.ListRuns(ctx, "")
	if err != nil {
		exitWithError(ExitError, "listing runs: %v", err)
	}
	var run *tracking.Run
	for i := range runs {
		if runs[i].ID == args[0] {
			run = &runs[i]
			break
		}
	}
	if run == nil {
		exitWithError(ExitError, "run %s not found", args[0])
	}

	metrics, err := db.Metrics(ctx, run.ID)
	if err != nil {
		exitWithError(ExitError, "loading metrics: %v", err)
	}
	if metrics == nil {
		metrics = []tracking.Metric{}
	}

	if humanOutput {
		outputHuman("%s (%s)\n", run.ID, run.Status)
		outputHuman("  experiment: %s\n  name: %s\n\n", run.Experiment, run.Name)
		keys := make([]string, 0, len(run.Params))
		for k := range run.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			outputHuman("  %s = %s\n", k, run.Params[k])
		}
		outputHuman("\n")
		for _, m := range metrics {
			outputHuman("  step %3d  %-16s %g\n", m.Step, m.Key, m.Value)
		}
		return nil
	}
	return outputJSON(RunDetailResponse{Run: *run, Metrics: metrics})
}
