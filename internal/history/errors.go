package history

import "errors"

var (
	// ErrInvalidQuery is returned for history queries without an appliance.
	ErrInvalidQuery = errors.New("history: invalid query")

	// ErrInvalidRetention is returned when pruning with a non-positive age.
	ErrInvalidRetention = errors.New("history: retention must be positive")
)
