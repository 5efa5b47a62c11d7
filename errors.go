package sentsplit

import "errors"

// Sentinel errors for conditions callers may need to handle differently.
var (
	// ErrModelNotFound indicates the model file does not exist.
	ErrModelNotFound = errors.New("sentsplit: model file not found")

	// ErrInvalidModel indicates the model file exists but is malformed.
	ErrInvalidModel = errors.New("sentsplit: invalid model format")

	// ErrTokenizerFailed indicates tokenizer initialization failed.
	ErrTokenizerFailed = errors.New("sentsplit: tokenizer initialization failed")

	// ErrGPUUnavailable indicates a GPU was required but cannot be used.
	ErrGPUUnavailable = errors.New("sentsplit: GPU required but not available")
)
