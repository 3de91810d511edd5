package ai

import "errors"

var (
	// ErrIdleTimeout is returned when an engine produced no output within
	// the request's idle timeout.
	ErrIdleTimeout = errors.New("engine idle timeout")

	// ErrCredentialRequired is returned when a provider that needs a
	// credential is asked for an engine without one.
	ErrCredentialRequired = errors.New("credential required")

	// ErrEmptyResponse is returned when an engine finished without
	// producing any choice or candidate.
	ErrEmptyResponse = errors.New("engine returned no response")
)
