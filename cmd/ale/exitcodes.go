package main

import (
	"errors"

	"github.com/ale-nlp/ale/internal/alerr"
	"github.com/ale-nlp/ale/internal/config"
)

// Exit codes
const (
	ExitSuccess          = 0 // Success
	ExitError            = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError      = 2 // Configuration error (missing or invalid config file)
	ExitDataError        = 3 // Data error (malformed corpus or predictions, invalid proposal)
	ExitInsufficientData = 4 // Clustering found no valid number of clusters
	ExitModelError       = 5 // Predictor or embedding model unavailable or failing
)

// exitCodeFor classifies an error returned by the core packages.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, config.ErrInvalidConfig):
		return ExitConfigError
	case errors.Is(err, alerr.ErrInsufficientData):
		return ExitInsufficientData
	case errors.Is(err, alerr.ErrModelUnavailable), errors.Is(err, alerr.ErrInference):
		return ExitModelError
	case errors.Is(err, alerr.ErrInvalidInput):
		return ExitDataError
	default:
		return ExitError
	}
}
