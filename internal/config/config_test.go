package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ale-nlp/ale/internal/aggregate"
)

// isolate points the global config at an empty directory.
func isolate(t *testing.T) {
	t.Helper()
	ResetGlobalConfigCache()
	t.Cleanup(ResetGlobalConfigCache)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(EnvPredictorURL, "")
	t.Setenv(EnvEmbeddingURL, "")
	t.Setenv(EnvTrackingDB, "")
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "experiment.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
experiment:
  name: conll
  seeds: [1, 2]
  step_size: 20
  annotation_budget: 205
  labels: [O, B-PER, B-ORG]
teacher:
  strategy: least-confidence
  aggregation: AVG
corpus:
  path: data/train.jsonl
predictor:
  url: http://model:8080
  timeout: 90s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Experiment.Name != "conll" {
		t.Errorf("Name = %q, want conll", cfg.Experiment.Name)
	}
	if len(cfg.Experiment.Seeds) != 2 || cfg.Experiment.Seeds[1] != 2 {
		t.Errorf("Seeds = %v, want [1 2]", cfg.Experiment.Seeds)
	}
	if cfg.Experiment.StepSize != 20 {
		t.Errorf("StepSize = %d, want 20", cfg.Experiment.StepSize)
	}
	// unset fields keep their defaults
	if cfg.Teacher.SamplingBudget != 50 {
		t.Errorf("SamplingBudget = %d, want default 50", cfg.Teacher.SamplingBudget)
	}
	if cfg.Embedding.Model != "all-minilm:l6-v2" {
		t.Errorf("Embedding.Model = %q, want default", cfg.Embedding.Model)
	}
	if cfg.Predictor.Timeout != 90*time.Second {
		t.Errorf("Predictor.Timeout = %v, want 90s", cfg.Predictor.Timeout)
	}
	if want := filepath.Join(filepath.Dir(path), "data", "train.jsonl"); cfg.Corpus.Path != want {
		t.Errorf("Corpus.Path = %q, want %q", cfg.Corpus.Path, want)
	}

	m, err := cfg.Method()
	if err != nil || m != aggregate.Average {
		t.Errorf("Method() = %v, %v; want avg", m, err)
	}
}

func TestLoad_Errors(t *testing.T) {
	isolate(t)

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"zero step", "experiment:\n  step_size: 0\n", "step_size"},
		{"negative budget", "experiment:\n  annotation_budget: -1\n", "annotation_budget"},
		{"zero sampling budget", "teacher:\n  sampling_budget: 0\n", "sampling_budget"},
		{"unknown method", "teacher:\n  aggregation: median\n", "aggregation"},
		{"empty strategy", "teacher:\n  strategy: ''\n", "strategy"},
		{"no seeds", "experiment:\n  seeds: []\n", "seeds"},
		{"bad format", "corpus:\n  format: csv\n", "corpus.format"},
		{"malformed yaml", "experiment: [\n", "parsing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load() expected error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v is not ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	isolate(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	isolate(t)
	t.Setenv(EnvPredictorURL, "http://predictor:9000")
	t.Setenv(EnvTrackingDB, "/tmp/runs.db")

	cfg, err := Load(writeConfig(t, "predictor:\n  url: http://file:1\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Predictor.URL != "http://predictor:9000" {
		t.Errorf("Predictor.URL = %q, want env value", cfg.Predictor.URL)
	}
	if cfg.Tracking.DB != "/tmp/runs.db" {
		t.Errorf("Tracking.DB = %q, want env value", cfg.Tracking.DB)
	}
	if cfg.Embedding.URL != "http://localhost:11434" {
		t.Errorf("Embedding.URL = %q, want default", cfg.Embedding.URL)
	}
}

func TestValidate_Default(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}
