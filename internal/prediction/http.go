package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ale-nlp/ale/internal/alerr"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the timeout for a single predict request.
	DefaultTimeout = 5 * time.Minute

	// DefaultBatchSize is the number of ids sent per request.
	DefaultBatchSize = 256

	// DefaultRateLimit is the number of requests per second sent to the model server.
	DefaultRateLimit = 5.0

	apiPathPredict = "/predict"
)

// HTTPPredictor requests predictions from a model server.
type HTTPPredictor struct {
	baseURL   string
	batchSize int
	client    *http.Client
	limiter   *rate.Limiter
}

// HTTPOption configures an HTTPPredictor.
type HTTPOption func(*HTTPPredictor)

// WithBatchSize sets how many ids are sent per request.
func WithBatchSize(n int) HTTPOption {
	return func(p *HTTPPredictor) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithRateLimit sets the maximum requests per second.
func WithRateLimit(perSecond float64) HTTPOption {
	return func(p *HTTPPredictor) {
		if perSecond > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(p *HTTPPredictor) {
		p.client = hc
	}
}

// NewHTTPPredictor creates a predictor for the model server at baseURL.
func NewHTTPPredictor(baseURL string, opts ...HTTPOption) *HTTPPredictor {
	p := &HTTPPredictor{
		baseURL:   baseURL,
		batchSize: DefaultBatchSize,
		client:    &http.Client{Timeout: DefaultTimeout},
		limiter:   rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type predictRequest struct {
	IDs []int `json:"ids"`
}

type predictResponse struct {
	Predictions map[string]PredictionResult `json:"predictions"`
}

// Predict implements Predictor. Every requested id must be present in the response.
func (p *HTTPPredictor) Predict(ctx context.Context, ids []int) (map[int]PredictionResult, error) {
	out := make(map[int]PredictionResult, len(ids))
	for start := 0; start < len(ids); start += p.batchSize {
		end := min(start+p.batchSize, len(ids))
		if err := p.predictBatch(ctx, ids[start:end], out); err != nil {
			return nil, err
		}
	}

	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("%w: no prediction for document %d", alerr.ErrInference, id)
		}
	}
	return out, nil
}

func (p *HTTPPredictor) predictBatch(ctx context.Context, ids []int, out map[int]PredictionResult) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	body, err := json.Marshal(predictRequest{IDs: ids})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+apiPathPredict, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: sending request: %v", alerr.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return fmt.Errorf("%w: model server returned status %d", alerr.ErrModelUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: model server returned status %d: %s", alerr.ErrInference, resp.StatusCode, readBody(resp.Body))
	}

	var result predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("%w: decoding response: %v", alerr.ErrInference, err)
	}

	for key, pred := range result.Predictions {
		id, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("%w: invalid document id %q", alerr.ErrInference, key)
		}
		out[id] = pred
	}
	return nil
}

func readBody(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return fmt.Sprintf("(failed to read response body: %v)", err)
	}
	return string(data)
}
