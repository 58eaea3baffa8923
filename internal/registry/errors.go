package registry

import "errors"

// Domain errors for the registry package.
var (
	// ErrApplianceNotFound is returned for a haId the registry does not know.
	ErrApplianceNotFound = errors.New("registry: appliance not found")

	// ErrPropertyNotFound is returned when an appliance has no record for a key.
	ErrPropertyNotFound = errors.New("registry: property not found")

	// ErrReadOnlyProperty is returned when writing a status key.
	ErrReadOnlyProperty = errors.New("registry: property is read-only")

	// ErrUnsupportedKey is returned when a key is neither a setting nor an option.
	ErrUnsupportedKey = errors.New("registry: unsupported property key")

	// ErrNoSelectedProgram is returned by RunProgram when nothing is selected.
	ErrNoSelectedProgram = errors.New("registry: no program selected")

	// ErrProgramNotStartable is returned by RunProgram when the appliance
	// state does not allow a remote start or resume.
	ErrProgramNotStartable = errors.New("registry: program cannot be started")

	// ErrProgramNotRunning is returned by PauseProgram when nothing runs.
	ErrProgramNotRunning = errors.New("registry: program not running")

	// ErrPowerUnsupported is returned by SetPower for appliances that cannot
	// be switched off remotely.
	ErrPowerUnsupported = errors.New("registry: power off not supported")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("registry: already started")
)
