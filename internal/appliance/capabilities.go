package appliance

// Capabilities describes what the core does for one appliance type.
type Capabilities struct {
	// SelectedProgram enables fetching the selected program during a full refresh.
	SelectedProgram bool

	// SelectedOptions are option keys of the selected program fetched one by
	// one during a full refresh.
	SelectedOptions []string

	// PowerOff is the PowerState value used to switch the appliance off.
	// Empty means the appliance cannot be switched off remotely.
	PowerOff string

	// ExtraKeys are seeded alongside the common baseline keys.
	ExtraKeys []string
}

var (
	washerOptions = []string{KeyWasherTemperature, KeyWasherSpinSpeed}
	dryerOptions  = []string{KeyDryerDryingTarget}
	hoodLighting  = []string{
		KeyLighting, KeyLightingBrightness,
		KeyAmbientLightEnabled, KeyAmbientLightBrightness,
		KeyAmbientLightColor, KeyAmbientLightCustomColor,
	}
)

var capabilityTable = map[Type]Capabilities{
	TypeWasher: {
		SelectedProgram: true,
		SelectedOptions: washerOptions,
		PowerOff:        PowerOff,
		ExtraKeys:       washerOptions,
	},
	TypeDryer: {
		SelectedProgram: true,
		SelectedOptions: dryerOptions,
		PowerOff:        PowerOff,
		ExtraKeys:       dryerOptions,
	},
	TypeWasherDryer: {
		SelectedProgram: true,
		SelectedOptions: append(append([]string{}, washerOptions...), dryerOptions...),
		PowerOff:        PowerOff,
		ExtraKeys:       append(append([]string{}, washerOptions...), dryerOptions...),
	},
	TypeDishwasher:    {PowerOff: PowerOff},
	TypeOven:          {PowerOff: PowerStandby},
	TypeCoffeeMaker:   {PowerOff: PowerStandby},
	TypeHood:          {PowerOff: PowerOff, ExtraKeys: hoodLighting},
	TypeHob:           {},
	TypeRefrigerator:  {},
	TypeFreezer:       {},
	TypeFridgeFreezer: {},
	TypeWineCooler:    {},
	TypeGeneric:       {},
}

// CapabilitiesFor returns the capability entry for t, falling back to the
// Generic entry for unknown types. The returned slices must not be modified.
func CapabilitiesFor(t Type) Capabilities {
	if c, ok := capabilityTable[t]; ok {
		return c
	}
	return capabilityTable[TypeGeneric]
}

// baselineKeys are present on every appliance from construction.
var baselineKeys = []string{
	KeyDoorState,
	KeyRemoteStartAllowed,
	KeyOperationState,
	KeyProgramProgress,
	KeyRemainingProgramTime,
	KeySelectedProgram,
}

// BaselineKeys returns the keys seeded for an appliance of type t.
func BaselineKeys(t Type) []string {
	extra := CapabilitiesFor(t).ExtraKeys
	keys := make([]string, 0, len(baselineKeys)+len(extra))
	keys = append(keys, baselineKeys...)
	return append(keys, extra...)
}
