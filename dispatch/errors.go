package dispatch

import "errors"

var (
	// ErrProviderRequired is returned when an AI provider is not provided.
	ErrProviderRequired = errors.New("AI provider required")

	// ErrCredentialsRequired is returned when a credential holder is not provided.
	ErrCredentialsRequired = errors.New("credential holder required")

	// ErrLockTimeout is returned when the registry lock could not be
	// acquired within the configured timeout.
	ErrLockTimeout = errors.New("registry lock timeout")

	// ErrStopped is returned when the dispatcher has been stopped.
	ErrStopped = errors.New("dispatcher stopped")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("dispatcher already started")

	// ErrInvalidOption is returned when an option value is out of range.
	ErrInvalidOption = errors.New("invalid option")

	// ErrWorkerPanic wraps a panic recovered inside a worker.
	ErrWorkerPanic = errors.New("worker panic")
)
