package mqttbridge

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/homeconnect-core/internal/appliance"
	"github.com/nerrad567/homeconnect-core/internal/audit"
)

// Command actions.
const (
	ActionSetProperty    = audit.ActionSetProperty
	ActionSelectProgram  = audit.ActionSelectProgram
	ActionStartProgram   = audit.ActionStartProgram
	ActionStopProgram    = audit.ActionStopProgram
	ActionExecuteCommand = audit.ActionExecuteCommand
	ActionRun            = audit.ActionRun
	ActionPause          = audit.ActionPause
	ActionPower          = audit.ActionPower
)

// Response error codes.
const (
	CodeInvalid     = "invalid_command"
	CodeNotFound    = "not_found"
	CodeRejected    = "rejected"
	CodeRemoteError = "remote_error"
	CodeFailed      = "failed"
)

// CommandMessage is received on {prefix}/appliance/{haId}/command.
type CommandMessage struct {
	// ID is echoed in the response for correlation.
	ID string `json:"id"`

	Action string `json:"action"`

	// Key is the property, program or command key, depending on Action.
	Key string `json:"key,omitempty"`

	// Value is the property value for set_property and a bool for power.
	// It is decoded like event payloads, so integers stay int64.
	Value json.RawMessage `json:"value,omitempty"`
	Unit  string          `json:"unit,omitempty"`

	// Options accompany select_program and start_program.
	Options []OptionItem `json:"options,omitempty"`
}

// OptionItem is one program option in a command.
type OptionItem struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
	Unit  string          `json:"unit,omitempty"`
}

// value decodes Value. A missing or null value is an invalid command.
func (c CommandMessage) value() (any, error) {
	return decodeValue(c.Value, "value")
}

func (c CommandMessage) records() ([]appliance.Record, error) {
	if len(c.Options) == 0 {
		return nil, nil
	}
	out := make([]appliance.Record, 0, len(c.Options))
	for _, o := range c.Options {
		if o.Key == "" {
			return nil, fmt.Errorf("%w: option key is required", ErrInvalidCommand)
		}
		v, err := decodeValue(o.Value, "option "+o.Key)
		if err != nil {
			return nil, err
		}
		out = append(out, appliance.Record{Key: o.Key, Value: v, Unit: o.Unit})
	}
	return out, nil
}

func decodeValue(raw json.RawMessage, what string) (any, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s is required", ErrInvalidCommand, what)
	}
	v, err := appliance.DecodeValue(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidCommand, what, err)
	}
	if v == nil {
		return nil, fmt.Errorf("%w: %s is required", ErrInvalidCommand, what)
	}
	return v, nil
}

// ResponseMessage is published to {prefix}/appliance/{haId}/response.
type ResponseMessage struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Code      string    `json:"code,omitempty"`
	RemoteKey string    `json:"remote_key,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StateMessage is the retained payload of {prefix}/appliance/{haId}/state.
type StateMessage struct {
	appliance.Snapshot
	PublishedAt time.Time `json:"published_at"`
}
