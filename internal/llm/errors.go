package llm

import "errors"

var (
	errMissingAPIKey   = errors.New("API key not configured")
	errEmptyCompletion = errors.New("no completion returned")
)
