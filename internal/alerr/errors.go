// Package alerr defines the error classes shared across the proposal engine.
package alerr

import "errors"

// Error classes. Wrap them with fmt.Errorf("...: %w", ErrX) and test with errors.Is.
var (
	// ErrInvalidInput indicates a request that has no safe default,
	// e.g. an empty token list or a random sample larger than the pool.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientData indicates clustering could not find a valid k.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrModelUnavailable indicates the predictor or embedding model could not be reached.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrInference indicates the model was reached but returned an unusable result.
	ErrInference = errors.New("inference error")
)
