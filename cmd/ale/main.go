// Package main provides the ale CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/ale-nlp/ale/internal/config"
	"github.com/ale-nlp/ale/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	configPath  string
	logLevel    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ale",
	Short: "Active-learning proposal engine",
	Long: `ale selects which unlabeled documents to send to annotators next.

A teacher strategy ranks the candidate pool using model predictions
(uncertainty sampling, round-robin over labels) or corpus structure
(k-means diversity sampling), and a budget controller drives rounds
until the annotation budget or the pool is exhausted.

Experiments are described by a YAML file (--config). Runs, parameters
and per-round metrics are recorded in a SQLite tracking database.
All commands output JSON by default; use --human for text.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Load .env file if present (for ALE_PREDICTOR_URL and friends)
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "ale.yml", "Experiment configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.Version = Version
}

// mustLoadConfig loads the experiment configuration, exits on error.
func mustLoadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}

// mustLogger builds the stderr logger, exits on error.
func mustLogger() *zap.Logger {
	logger, err := logging.New(logging.Options{Level: logLevel, Human: humanOutput})
	if err != nil {
		exitWithError(ExitConfigError, "invalid --log-level %q: %v", logLevel, err)
	}
	return logger
}
