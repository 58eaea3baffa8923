package appliance

import "errors"

var (
	// ErrInvalidPayload is returned when an item payload cannot be decoded.
	ErrInvalidPayload = errors.New("appliance: invalid item payload")
)
