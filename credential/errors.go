package credential

import "errors"

var (
	// ErrNotFound is returned when a source has no credential to offer.
	ErrNotFound = errors.New("credential not found")

	// ErrNameRequired is returned when a named source is built without a name.
	ErrNameRequired = errors.New("credential name required")

	// ErrAPIRequired is returned when a source is built without its backing client.
	ErrAPIRequired = errors.New("credential backend required")

	// ErrInvalidMaxAttempts is returned when Resolve is called with maxAttempts <= 0.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)
