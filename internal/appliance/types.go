package appliance

// Type identifies the kind of appliance reported by the remote API.
type Type string

// Known appliance types. Anything else parses to TypeGeneric.
const (
	TypeWasher        Type = "Washer"
	TypeDryer         Type = "Dryer"
	TypeWasherDryer   Type = "WasherDryer"
	TypeDishwasher    Type = "Dishwasher"
	TypeRefrigerator  Type = "Refrigerator"
	TypeFreezer       Type = "Freezer"
	TypeFridgeFreezer Type = "FridgeFreezer"
	TypeWineCooler    Type = "WineCooler"
	TypeOven          Type = "Oven"
	TypeCoffeeMaker   Type = "CoffeeMaker"
	TypeHood          Type = "Hood"
	TypeHob           Type = "Hob"
	TypeGeneric       Type = "Generic"
)

// ParseType maps a remote type string to a Type.
// Unknown strings map to TypeGeneric rather than failing.
func ParseType(s string) Type {
	t := Type(s)
	if _, ok := capabilityTable[t]; ok && t != TypeGeneric {
		return t
	}
	return TypeGeneric
}

// Known reports whether t is one of the explicitly supported types.
func (t Type) Known() bool {
	_, ok := capabilityTable[t]
	return ok && t != TypeGeneric
}

func (t Type) String() string { return string(t) }

// Descriptor is one entry of the remote homeappliances list.
type Descriptor struct {
	HaID      string `json:"haId"`
	Name      string `json:"name"`
	Brand     string `json:"brand"`
	VIB       string `json:"vib"`
	ENumber   string `json:"enumber"`
	Type      string `json:"type"`
	Connected bool   `json:"connected"`
}

// Property keys used by the synchronization core.
const (
	KeyDoorState            = "BSH.Common.Status.DoorState"
	KeyRemoteStartAllowed   = "BSH.Common.Status.RemoteControlStartAllowed"
	KeyOperationState       = "BSH.Common.Status.OperationState"
	KeyProgramProgress      = "BSH.Common.Option.ProgramProgress"
	KeyRemainingProgramTime = "BSH.Common.Option.RemainingProgramTime"
	KeySelectedProgram      = "BSH.Common.Root.SelectedProgram"
	KeyActiveProgram        = "BSH.Common.Root.ActiveProgram"
	KeyPowerState           = "BSH.Common.Setting.PowerState"
	KeyProgramFinished      = "BSH.Common.Event.ProgramFinished"

	KeyWasherTemperature = "LaundryCare.Washer.Option.Temperature"
	KeyWasherSpinSpeed   = "LaundryCare.Washer.Option.SpinSpeed"
	KeyDryerDryingTarget = "LaundryCare.Dryer.Option.DryingTarget"

	KeyLighting                = "Cooking.Common.Setting.Lighting"
	KeyLightingBrightness      = "Cooking.Common.Setting.LightingBrightness"
	KeyAmbientLightEnabled     = "BSH.Common.Setting.AmbientLightEnabled"
	KeyAmbientLightBrightness  = "BSH.Common.Setting.AmbientLightBrightness"
	KeyAmbientLightColor       = "BSH.Common.Setting.AmbientLightColor"
	KeyAmbientLightCustomColor = "BSH.Common.Setting.AmbientLightCustomColor"
)

// Enumerated values seen in status and event payloads.
const (
	DoorOpen   = "BSH.Common.EnumType.DoorState.Open"
	DoorClosed = "BSH.Common.EnumType.DoorState.Closed"
	DoorLocked = "BSH.Common.EnumType.DoorState.Locked"

	PowerOn      = "BSH.Common.EnumType.PowerState.On"
	PowerOff     = "BSH.Common.EnumType.PowerState.Off"
	PowerStandby = "BSH.Common.EnumType.PowerState.Standby"

	OperationInactive       = "BSH.Common.EnumType.OperationState.Inactive"
	OperationReady          = "BSH.Common.EnumType.OperationState.Ready"
	OperationDelayedStart   = "BSH.Common.EnumType.OperationState.DelayedStart"
	OperationRun            = "BSH.Common.EnumType.OperationState.Run"
	OperationPause          = "BSH.Common.EnumType.OperationState.Pause"
	OperationActionRequired = "BSH.Common.EnumType.OperationState.ActionRequired"
	OperationFinished       = "BSH.Common.EnumType.OperationState.Finished"
	OperationError          = "BSH.Common.EnumType.OperationState.Error"
	OperationAborting       = "BSH.Common.EnumType.OperationState.Aborting"

	EventPresent = "BSH.Common.EnumType.EventPresentState.Present"
	EventOff     = "BSH.Common.EnumType.EventPresentState.Off"
)

// Command keys.
const (
	CommandPauseProgram  = "BSH.Common.Command.PauseProgram"
	CommandResumeProgram = "BSH.Common.Command.ResumeProgram"
)
