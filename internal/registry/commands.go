package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/nerrad567/homeconnect-core/internal/appliance"
)

// ProgramActivity is the tri-state answer of ProgramRunning.
type ProgramActivity string

const (
	ProgramActive   ProgramActivity = "running"
	ProgramInactive ProgramActivity = "idle"
	ProgramUnknown  ProgramActivity = "unknown"
)

// Commands never touch local state. Errors from the REST client
// (*homeconnect.APIError, *homeconnect.ParseError) are returned unchanged
// and requests are attempted even when the appliance is disconnected.

// SetProperty writes a setting or a program option, chosen by the key's
// namespace. Options go to the active program while one is running and to
// the selected program otherwise. Status keys are read-only.
func (r *Registry) SetProperty(ctx context.Context, haID, key string, value any, unit string) error {
	e, err := r.lookup(haID)
	if err != nil {
		return err
	}

	switch keyKind(key) {
	case "Setting":
		return r.client.SetSetting(ctx, haID, key, value)
	case "Option":
		if programActive(e.state.Value(appliance.KeyOperationState)) {
			return r.client.SetActiveProgramOption(ctx, haID, key, value, unit)
		}
		return r.client.SetSelectedProgramOption(ctx, haID, key, value, unit)
	case "Status":
		return fmt.Errorf("%w: %s", ErrReadOnlyProperty, key)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedKey, key)
	}
}

// keyKind returns the namespace segment of a key such as
// "BSH.Common.Setting.PowerState" ("Setting").
func keyKind(key string) string {
	parts := strings.Split(key, ".")
	if len(parts) < 3 {
		return ""
	}
	return parts[len(parts)-2]
}

// SelectProgram selects program key without starting it.
func (r *Registry) SelectProgram(ctx context.Context, haID, key string, options []appliance.Record) error {
	if _, err := r.lookup(haID); err != nil {
		return err
	}
	return r.client.SelectProgram(ctx, haID, key, options)
}

// StartProgram starts program key.
func (r *Registry) StartProgram(ctx context.Context, haID, key string, options []appliance.Record) error {
	if _, err := r.lookup(haID); err != nil {
		return err
	}
	return r.client.StartProgram(ctx, haID, key, options)
}

// StopActiveProgram stops the running program.
func (r *Registry) StopActiveProgram(ctx context.Context, haID string) error {
	if _, err := r.lookup(haID); err != nil {
		return err
	}
	return r.client.StopActiveProgram(ctx, haID)
}

// ExecuteCommand triggers command key.
func (r *Registry) ExecuteCommand(ctx context.Context, haID, key string) error {
	if _, err := r.lookup(haID); err != nil {
		return err
	}
	return r.client.ExecuteCommand(ctx, haID, key)
}

// RunProgram starts the selected program when the appliance allows a
// remote start, its door is closed or locked and it is Ready or Finished.
// A paused program is resumed instead.
func (r *Registry) RunProgram(ctx context.Context, haID string) error {
	e, err := r.lookup(haID)
	if err != nil {
		return err
	}
	snap := e.state.Snapshot()
	op := snap.Value(appliance.KeyOperationState)

	if op == appliance.OperationPause {
		return r.client.ExecuteCommand(ctx, haID, appliance.CommandResumeProgram)
	}

	remoteStart, _ := snap.Value(appliance.KeyRemoteStartAllowed).(bool) //nolint:errcheck // unknown means not allowed
	door := snap.Value(appliance.KeyDoorState)
	doorShut := door == appliance.DoorClosed || door == appliance.DoorLocked
	ready := op == appliance.OperationReady || op == appliance.OperationFinished

	if !remoteStart || !doorShut || !ready {
		return fmt.Errorf("%w: remote start allowed=%t, door=%v, operation=%v",
			ErrProgramNotStartable, remoteStart, door, op)
	}

	program, _ := snap.Value(appliance.KeySelectedProgram).(string) //nolint:errcheck // checked below
	if program == "" {
		return ErrNoSelectedProgram
	}
	return r.client.StartProgram(ctx, haID, program, nil)
}

// PauseProgram pauses the running program.
func (r *Registry) PauseProgram(ctx context.Context, haID string) error {
	e, err := r.lookup(haID)
	if err != nil {
		return err
	}
	if e.state.Value(appliance.KeyOperationState) != appliance.OperationRun {
		return ErrProgramNotRunning
	}
	return r.client.ExecuteCommand(ctx, haID, appliance.CommandPauseProgram)
}

// ProgramRunning reports whether a program is running. Run and DelayedStart
// count as running, the other known operation states as idle, and a missing
// or unrecognised state as unknown.
func (r *Registry) ProgramRunning(haID string) (ProgramActivity, error) {
	e, err := r.lookup(haID)
	if err != nil {
		return ProgramUnknown, err
	}

	switch e.state.Value(appliance.KeyOperationState) {
	case appliance.OperationRun, appliance.OperationDelayedStart:
		return ProgramActive, nil
	case appliance.OperationReady, appliance.OperationFinished, appliance.OperationPause,
		appliance.OperationInactive, appliance.OperationActionRequired,
		appliance.OperationError, appliance.OperationAborting:
		return ProgramInactive, nil
	default:
		return ProgramUnknown, nil
	}
}

// SetPower switches the appliance on, or off using the PowerState value
// its type supports.
func (r *Registry) SetPower(ctx context.Context, haID string, on bool) error {
	e, err := r.lookup(haID)
	if err != nil {
		return err
	}

	value := appliance.PowerOn
	if !on {
		value = e.state.Capabilities().PowerOff
		if value == "" {
			return fmt.Errorf("%w: %s", ErrPowerUnsupported, e.state.Type())
		}
	}
	return r.client.SetSetting(ctx, haID, appliance.KeyPowerState, value)
}

func programActive(op any) bool {
	switch op {
	case appliance.OperationRun, appliance.OperationPause, appliance.OperationDelayedStart:
		return true
	}
	return false
}
