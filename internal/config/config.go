// Package config loads experiment configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ale-nlp/ale/internal/aggregate"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a configuration value is missing or out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is one active-learning experiment.
type Config struct {
	Experiment ExperimentConfig `yaml:"experiment"`
	Teacher    TeacherConfig    `yaml:"teacher"`
	Clustering ClusteringConfig `yaml:"clustering"`
	Predictor  PredictorConfig  `yaml:"predictor"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Corpus     CorpusConfig     `yaml:"corpus"`
	Tracking   TrackingConfig   `yaml:"tracking"`
}

// ExperimentConfig holds the budget of the active-learning loop.
type ExperimentConfig struct {
	Name             string   `yaml:"name"`
	Seeds            []int64  `yaml:"seeds"`
	StepSize         int      `yaml:"step_size"`
	AnnotationBudget int      `yaml:"annotation_budget"`
	InitialSize      int      `yaml:"initial_size"` // documents annotated before the first round
	Labels           []string `yaml:"labels"`
}

// TeacherConfig selects the sampling strategy.
type TeacherConfig struct {
	Strategy       string `yaml:"strategy"`
	SamplingBudget int    `yaml:"sampling_budget"`
	Aggregation    string `yaml:"aggregation"`
	OutsideLabel   string `yaml:"outside_label"`
}

// ClusteringConfig configures the k-means teachers.
type ClusteringConfig struct {
	MaxIterations   int  `yaml:"max_iterations"`
	MaxFeatures     int  `yaml:"max_features"` // TF-IDF vocabulary cap, 0 = unlimited
	DisableStemming bool `yaml:"disable_stemming"`
}

// PredictorConfig points at the model. File takes precedence over URL.
type PredictorConfig struct {
	URL       string        `yaml:"url"`
	File      string        `yaml:"file"`
	BatchSize int           `yaml:"batch_size"`
	RateLimit float64       `yaml:"rate_limit"` // requests per second
	Timeout   time.Duration `yaml:"timeout"`
}

// EmbeddingConfig configures the embedding vectorizer.
type EmbeddingConfig struct {
	URL        string        `yaml:"url"`
	Model      string        `yaml:"model"`
	Dimensions int           `yaml:"dimensions"`
	CacheSize  int           `yaml:"cache_size"`
	RateLimit  float64       `yaml:"rate_limit"`
	Timeout    time.Duration `yaml:"timeout"`
}

// CorpusConfig locates the unlabeled texts.
type CorpusConfig struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

// Corpus formats.
const (
	FormatJSONL = "jsonl"
	FormatPDF   = "pdf"
)

// TrackingConfig configures run tracking.
type TrackingConfig struct {
	DB           string `yaml:"db"`
	Disabled     bool   `yaml:"disabled"`
	SkipFinished bool   `yaml:"skip_finished"` // skip seeds with a finished run of identical params
}

// Environment overrides.
const (
	EnvPredictorURL = "ALE_PREDICTOR_URL"
	EnvEmbeddingURL = "ALE_EMBEDDING_URL"
	EnvTrackingDB   = "ALE_TRACKING_DB"
)

// Default returns the configuration used for every field a file leaves unset.
func Default() *Config {
	return &Config{
		Experiment: ExperimentConfig{
			Name:             "ale",
			Seeds:            []int64{4711},
			StepSize:         10,
			AnnotationBudget: 200,
		},
		Teacher: TeacherConfig{
			Strategy:       "randomizer",
			SamplingBudget: 50,
			Aggregation:    "min",
			OutsideLabel:   "O",
		},
		Clustering: ClusteringConfig{
			MaxIterations: 300,
		},
		Predictor: PredictorConfig{
			BatchSize: 256,
			RateLimit: 5,
			Timeout:   5 * time.Minute,
		},
		Embedding: EmbeddingConfig{
			URL:       "http://localhost:11434",
			Model:     "all-minilm:l6-v2",
			CacheSize: 100000,
			RateLimit: 50,
			Timeout:   30 * time.Second,
		},
		Corpus: CorpusConfig{
			Format: FormatJSONL,
		},
		Tracking: TrackingConfig{
			DB: "ale-tracking.db",
		},
	}
}

// Load reads the YAML file at path over the defaults and the global config,
// applies environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	global, err := LoadGlobalConfig()
	if err != nil {
		return nil, err
	}
	global.apply(cfg)

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, path, err)
	}
	cfg.Corpus.Path = resolvePath(filepath.Dir(path), cfg.Corpus.Path)
	cfg.Predictor.File = resolvePath(filepath.Dir(path), cfg.Predictor.File)

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolvePath makes a relative path relative to the config file's directory.
func resolvePath(dir, path string) string {
	if path == "" {
		return ""
	}
	path = ExpandTilde(path)
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// ApplyEnv overrides endpoints and the tracking database from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvPredictorURL); v != "" {
		c.Predictor.URL = v
	}
	if v := os.Getenv(EnvEmbeddingURL); v != "" {
		c.Embedding.URL = v
	}
	if v := os.Getenv(EnvTrackingDB); v != "" {
		c.Tracking.DB = v
	}
}

// Method returns the parsed aggregation method.
func (c *Config) Method() (aggregate.Method, error) {
	m, err := aggregate.ParseMethod(c.Teacher.Aggregation)
	if err != nil {
		return 0, fmt.Errorf("%w: teacher.aggregation: %v", ErrInvalidConfig, err)
	}
	return m, nil
}

// Validate checks that the configuration describes a runnable experiment.
func (c *Config) Validate() error {
	var problems []string
	if len(c.Experiment.Seeds) == 0 {
		problems = append(problems, "experiment.seeds must not be empty")
	}
	if c.Experiment.StepSize <= 0 {
		problems = append(problems, fmt.Sprintf("experiment.step_size must be positive, got %d", c.Experiment.StepSize))
	}
	if c.Experiment.AnnotationBudget <= 0 {
		problems = append(problems, fmt.Sprintf("experiment.annotation_budget must be positive, got %d", c.Experiment.AnnotationBudget))
	}
	if c.Experiment.InitialSize < 0 {
		problems = append(problems, fmt.Sprintf("experiment.initial_size must not be negative, got %d", c.Experiment.InitialSize))
	}
	if c.Teacher.SamplingBudget <= 0 {
		problems = append(problems, fmt.Sprintf("teacher.sampling_budget must be positive, got %d", c.Teacher.SamplingBudget))
	}
	if strings.TrimSpace(c.Teacher.Strategy) == "" {
		problems = append(problems, "teacher.strategy must not be empty")
	}
	if _, err := aggregate.ParseMethod(c.Teacher.Aggregation); err != nil {
		problems = append(problems, fmt.Sprintf("teacher.aggregation: %v", err))
	}
	switch c.Corpus.Format {
	case FormatJSONL, FormatPDF:
	default:
		problems = append(problems, fmt.Sprintf("corpus.format must be %q or %q, got %q", FormatJSONL, FormatPDF, c.Corpus.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
