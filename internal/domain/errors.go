package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// These errors are shared by the judge client, the orchestrator and the
// daemon so that every layer can classify failures with errors.Is.
// -----------------------------------------------------------------------------

// Taxonomy
var (
	// ErrTransport means the judge or content service could not be reached
	// or answered with a server error. Nothing is retried automatically.
	ErrTransport = errors.New("judge unavailable")

	// ErrValidation means a request was rejected client-side before any
	// network call was made.
	ErrValidation = errors.New("validation failed")
)

// Problem errors
var (
	ErrProblemNotFound     = errors.New("problem not found")
	ErrLanguageUnavailable = errors.New("language not available for problem")
	ErrTemplateNotReady    = errors.New("template not ready")
)

// Assessment errors
var (
	ErrRunInProgress    = errors.New("run already in progress")
	ErrSubmitInProgress = errors.New("submission already in progress")
	ErrNotAllPassed     = errors.New("all test cases must pass before submitting")
	ErrCooldownActive   = errors.New("submission cooldown active")
	ErrSessionNotOpen   = errors.New("session not open")
	ErrEmptyInput       = errors.New("custom input is empty")
	ErrSuperseded       = errors.New("result superseded by a newer request")
	ErrInvalidTab       = errors.New("unknown console tab")
)
