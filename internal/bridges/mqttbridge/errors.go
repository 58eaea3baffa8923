package mqttbridge

import "errors"

var (
	// ErrInvalidCommand is returned for a command that cannot be decoded or
	// lacks a required field.
	ErrInvalidCommand = errors.New("mqttbridge: invalid command")

	// ErrUnknownAction is returned for an action the bridge does not handle.
	ErrUnknownAction = errors.New("mqttbridge: unknown action")
)
