package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ale-nlp/ale/internal/alerr"
	"github.com/ale-nlp/ale/internal/cluster"
	"github.com/ale-nlp/ale/internal/config"
	"github.com/ale-nlp/ale/internal/corpus"
	"github.com/ale-nlp/ale/internal/embedding"
	"github.com/ale-nlp/ale/internal/prediction"
	"github.com/ale-nlp/ale/internal/teacher"
	"github.com/ale-nlp/ale/internal/tracking"
	"github.com/ale-nlp/ale/internal/vectorize"
	"go.uber.org/zap"
)

// openCorpus returns the configured corpus adapter.
func openCorpus(cfg *config.Config) (corpus.Corpus, error) {
	if cfg.Corpus.Path == "" {
		return nil, fmt.Errorf("%w: corpus.path is not set", config.ErrInvalidConfig)
	}
	if cfg.Corpus.Format == config.FormatPDF {
		return corpus.PDFDir{Dir: cfg.Corpus.Path}, nil
	}
	return corpus.JSONL{Path: cfg.Corpus.Path}, nil
}

// openPredictor returns the configured predictor, or nil if none is configured.
func openPredictor(cfg *config.Config) (prediction.Predictor, error) {
	switch {
	case cfg.Predictor.File != "":
		p, err := prediction.LoadFile(cfg.Predictor.File)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", alerr.ErrInvalidInput, err)
		}
		return p, nil
	case cfg.Predictor.URL != "":
		opts := []prediction.HTTPOption{prediction.WithHTTPClient(&http.Client{Timeout: cfg.Predictor.Timeout})}
		if cfg.Predictor.BatchSize > 0 {
			opts = append(opts, prediction.WithBatchSize(cfg.Predictor.BatchSize))
		}
		if cfg.Predictor.RateLimit > 0 {
			opts = append(opts, prediction.WithRateLimit(cfg.Predictor.RateLimit))
		}
		return prediction.NewHTTPPredictor(cfg.Predictor.URL, opts...), nil
	default:
		return nil, nil
	}
}

// newTFIDF returns the TF-IDF vectorizer configured for clustering.
func newTFIDF(cfg *config.Config) *vectorize.TFIDF {
	v := vectorize.NewTFIDF()
	v.MaxFeatures = cfg.Clustering.MaxFeatures
	v.Stem = !cfg.Clustering.DisableStemming
	return v
}

// newEmbeddings returns the embedding vectorizer backed by Ollama.
func newEmbeddings(cfg *config.Config) (*vectorize.Embedding, *embedding.OllamaProvider, error) {
	opts := []embedding.OllamaOption{
		embedding.WithBaseURL(cfg.Embedding.URL),
		embedding.WithModel(cfg.Embedding.Model),
		embedding.WithDimensions(cfg.Embedding.Dimensions),
	}
	if cfg.Embedding.Timeout > 0 {
		opts = append(opts, embedding.WithTimeout(cfg.Embedding.Timeout))
	}
	if cfg.Embedding.RateLimit > 0 {
		opts = append(opts, embedding.WithRateLimit(cfg.Embedding.RateLimit))
	}
	provider := embedding.NewOllamaProvider(opts...)
	v, err := vectorize.NewEmbedding(provider, cfg.Embedding.CacheSize)
	if err != nil {
		return nil, nil, err
	}
	return v, provider, nil
}

// mustValidateEmbeddingModel checks that the embedding model is served.
func mustValidateEmbeddingModel(ctx context.Context, provider *embedding.OllamaProvider) {
	hasModel, err := provider.HasModel(ctx)
	if err != nil {
		exitWithErr("checking embedding model", err)
	}
	if !hasModel {
		exitWithError(ExitModelError, "embedding model %q not found\n\nRun 'ollama pull %s' to download it.", provider.ModelName(), provider.ModelName())
	}
}

// session holds the collaborators shared by every run of one process.
type session struct {
	cfg       *config.Config
	logger    *zap.Logger
	corpus    corpus.Corpus
	predictor prediction.Predictor
	tfidf     *vectorize.TFIDF
	embedding *vectorize.Embedding
	provider  *embedding.OllamaProvider
	engine    *cluster.Engine // one fitting lock per process
}

// mustOpenSession builds the collaborators for cfg, exits on error.
func mustOpenSession(ctx context.Context, cfg *config.Config, logger *zap.Logger) *session {
	c, err := openCorpus(cfg)
	if err != nil {
		exitWithErr("opening corpus", err)
	}
	p, err := openPredictor(cfg)
	if err != nil {
		exitWithErr("opening predictor", err)
	}
	s := &session{
		cfg:       cfg,
		logger:    logger,
		corpus:    c,
		predictor: p,
		tfidf:     newTFIDF(cfg),
		engine: cluster.NewEngine(0,
			cluster.WithMaxIterations(cfg.Clustering.MaxIterations),
			cluster.WithLogger(logger)),
	}

	if cfg.Teacher.Strategy == teacher.StrategyKMeansEmbeddingBase {
		s.embedding, s.provider, err = newEmbeddings(cfg)
		if err != nil {
			exitWithErr("creating embedding vectorizer", err)
		}
		mustValidateEmbeddingModel(ctx, s.provider)
	}
	return s
}

// teacherDeps returns the dependencies of the configured teacher for one seed.
func (s *session) teacherDeps(seed int64) (teacher.Deps, error) {
	method, err := s.cfg.Method()
	if err != nil {
		return teacher.Deps{}, err
	}
	d := teacher.Deps{
		Corpus:       s.corpus,
		Predictor:    s.predictor,
		Engine:       s.engine.WithSeed(seed),
		TFIDF:        s.tfidf,
		Seed:         seed,
		Labels:       s.cfg.Experiment.Labels,
		Method:       method,
		OutsideLabel: s.cfg.Teacher.OutsideLabel,
		Logger:       s.logger.With(zap.Int64("seed", seed)),
	}
	if s.embedding != nil {
		d.Embeddings = s.embedding
	}
	return d, nil
}

// mustOpenTracker opens the tracking database, or returns nil when tracking
// is disabled. The caller is responsible for calling Close() on the result.
func mustOpenTracker(cfg *config.Config) *tracking.SQLite {
	if cfg.Tracking.Disabled {
		return nil
	}
	db, err := tracking.OpenSQLite(cfg.Tracking.DB)
	if err != nil {
		exitWithError(ExitError, "opening tracking database: %v", err)
	}
	return db
}
