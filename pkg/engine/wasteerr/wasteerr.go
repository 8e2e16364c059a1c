// Package wasteerr defines the engine error taxonomy.
package wasteerr

import (
	"errors"
	"fmt"
)

// Sentinel errors. HTTP handlers map these onto status codes; everything
// else inside the engine matches with errors.Is.
var (
	// ErrNotFound: an executor target is missing by both primary and
	// natural key, or a recommendation id does not exist.
	ErrNotFound = errors.New("resource_not_found")

	// ErrInvalidTransition: a recommendation state machine violation.
	ErrInvalidTransition = errors.New("invalid_state_transition")

	// ErrMissingRecommendation: an action requires a detail key that the
	// caller did not supply (recommendedInstanceType, recommendedTimeout).
	ErrMissingRecommendation = errors.New("missing_recommendation")

	// ErrUnknownAction: executor dispatch failure.
	ErrUnknownAction = errors.New("unknown_action")

	// ErrUnknownScenario: detection dispatch failure.
	ErrUnknownScenario = errors.New("unknown_scenario")

	// ErrStore: the underlying store failed; always wraps the original.
	ErrStore = errors.New("store_error")
)

// Storef wraps a store failure with context.
func Storef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStore, fmt.Sprintf(format, args...))
}

// NotFoundf wraps ErrNotFound with the identifier that missed.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// InvalidTransitionf wraps ErrInvalidTransition with the attempted move.
func InvalidTransitionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}
