package snag

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the capture engine.
var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrNotInitialized = errors.New("capture not initialized")
	ErrSubmitFailed   = errors.New("report submission failed")
)

// SubmitError describes a submission the ingestion endpoint rejected. Code
// and Message are filled from the endpoint's structured error body when one
// is present. It unwraps to ErrSubmitFailed so callers can branch on the
// sentinel without losing the response detail.
type SubmitError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *SubmitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("submission failed with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("submission failed with status %d", e.StatusCode)
}

func (e *SubmitError) Unwrap() error {
	return ErrSubmitFailed
}
