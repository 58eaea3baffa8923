package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/homeconnect-core/internal/appliance"
	"github.com/nerrad567/homeconnect-core/internal/homeconnect"
)

// newCommandRegistry builds a registry whose appliances are registered
// without running consumers, so state can be arranged directly.
func newCommandRegistry(t *testing.T, client *fakeClient) *Registry {
	t.Helper()
	r := New(client)
	states, err := r.ListAppliances(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range states {
		r.entries[s.HaID()] = &entry{state: s}
		r.order = append(r.order, s.HaID())
	}
	return r
}

func merge(t *testing.T, r *Registry, haID string, records ...appliance.Record) {
	t.Helper()
	s, err := r.Appliance(haID)
	if err != nil {
		t.Fatal(err)
	}
	s.Merge(records...)
}

func TestCommands_PassThrough(t *testing.T) {
	ctx := context.Background()
	cotton := "LaundryCare.Washer.Program.Cotton"

	tests := []struct {
		name string
		run  func(r *Registry) error
		want call
	}{
		{
			name: "setting",
			run: func(r *Registry) error {
				return r.SetProperty(ctx, hoodID, appliance.KeyLighting, true, "")
			},
			want: call{method: "SetSetting", haID: hoodID, key: appliance.KeyLighting, value: true},
		},
		{
			name: "option on selected program",
			run: func(r *Registry) error {
				return r.SetProperty(ctx, washerID, appliance.KeyWasherTemperature, "LaundryCare.Washer.EnumType.Temperature.GC40", "")
			},
			want: call{method: "SetSelectedProgramOption", haID: washerID, key: appliance.KeyWasherTemperature, value: "LaundryCare.Washer.EnumType.Temperature.GC40"},
		},
		{
			name: "select program",
			run:  func(r *Registry) error { return r.SelectProgram(ctx, washerID, cotton, nil) },
			want: call{method: "SelectProgram", haID: washerID, key: cotton},
		},
		{
			name: "start program",
			run:  func(r *Registry) error { return r.StartProgram(ctx, washerID, cotton, nil) },
			want: call{method: "StartProgram", haID: washerID, key: cotton},
		},
		{
			name: "stop program",
			run:  func(r *Registry) error { return r.StopActiveProgram(ctx, washerID) },
			want: call{method: "StopActiveProgram", haID: washerID},
		},
		{
			name: "execute command",
			run:  func(r *Registry) error { return r.ExecuteCommand(ctx, washerID, appliance.CommandPauseProgram) },
			want: call{method: "ExecuteCommand", haID: washerID, key: appliance.CommandPauseProgram},
		},
		{
			name: "power on",
			run:  func(r *Registry) error { return r.SetPower(ctx, washerID, true) },
			want: call{method: "SetSetting", haID: washerID, key: appliance.KeyPowerState, value: appliance.PowerOn},
		},
		{
			name: "power off uses the type's off value",
			run:  func(r *Registry) error { return r.SetPower(ctx, hoodID, false) },
			want: call{method: "SetSetting", haID: hoodID, key: appliance.KeyPowerState, value: appliance.PowerOff},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeClient(testDescriptors()...)
			r := newCommandRegistry(t, client)
			before, _ := r.Snapshot(tt.want.haID) //nolint:errcheck // haID is registered

			if err := tt.run(r); err != nil {
				t.Fatalf("error = %v", err)
			}

			calls := client.recorded()
			if len(calls) != 1 || calls[0] != tt.want {
				t.Errorf("calls = %+v, want [%+v]", calls, tt.want)
			}
			after, _ := r.Snapshot(tt.want.haID) //nolint:errcheck // haID is registered
			if diff := after.Diff(before); len(diff) != 0 {
				t.Errorf("command mutated local state: %v", diff)
			}
		})
	}
}

func TestSetProperty_OptionOnActiveProgram(t *testing.T) {
	client := newFakeClient(testDescriptors()...)
	r := newCommandRegistry(t, client)
	merge(t, r, washerID, appliance.Record{Key: appliance.KeyOperationState, Value: appliance.OperationRun})

	if err := r.SetProperty(context.Background(), washerID, appliance.KeyWasherSpinSpeed, "LaundryCare.Washer.EnumType.SpinSpeed.RPM800", ""); err != nil {
		t.Fatal(err)
	}
	if calls := client.recorded(); len(calls) != 1 || calls[0].method != "SetActiveProgramOption" {
		t.Errorf("calls = %+v, want SetActiveProgramOption", calls)
	}
}

func TestSetProperty_Rejected(t *testing.T) {
	client := newFakeClient(testDescriptors()...)
	r := newCommandRegistry(t, client)
	ctx := context.Background()

	tests := []struct {
		name string
		haID string
		key  string
		want error
	}{
		{"status key", washerID, appliance.KeyDoorState, ErrReadOnlyProperty},
		{"unknown namespace", washerID, "BSH.Common.Root.SelectedProgram", ErrUnsupportedKey},
		{"short key", washerID, "Power", ErrUnsupportedKey},
		{"unknown appliance", "nope", appliance.KeyPowerState, ErrApplianceNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.SetProperty(ctx, tt.haID, tt.key, 1, ""); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
	if calls := client.recorded(); len(calls) != 0 {
		t.Errorf("rejected writes reached the client: %+v", calls)
	}
}

func TestSetProperty_RemoteErrorLeavesStateUnchanged(t *testing.T) {
	const initFailed = "SDK.Error.HomeAppliance.Connection.Initialization.Failed"

	tests := []struct {
		name string
		haID string
	}{
		{"connected washer", washerID},
		// Disconnected appliances are still attempted.
		{"disconnected hob", hobID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeClient(testDescriptors()...)
			client.cmdErr = &homeconnect.APIError{Status: 409, Key: initFailed}
			r := newCommandRegistry(t, client)
			merge(t, r, tt.haID,
				appliance.Record{Key: appliance.KeyPowerState, Value: appliance.PowerStandby},
				appliance.Record{Key: appliance.KeyOperationState, Value: appliance.OperationReady},
			)
			before, err := r.Snapshot(tt.haID)
			if err != nil {
				t.Fatal(err)
			}

			err = r.SetProperty(context.Background(), tt.haID, appliance.KeyPowerState, appliance.PowerOn, "")

			var apiErr *homeconnect.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *homeconnect.APIError", err)
			}
			if apiErr.Key != initFailed {
				t.Errorf("Key = %q, want %q", apiErr.Key, initFailed)
			}
			if len(client.recorded()) != 1 {
				t.Error("request was not attempted")
			}

			after, err := r.Snapshot(tt.haID)
			if err != nil {
				t.Fatal(err)
			}
			if diff := after.Diff(before); len(diff) != 0 {
				t.Errorf("failed command changed local state: %v", diff)
			}
			if after.Connected != before.Connected {
				t.Errorf("Connected = %t, want %t", after.Connected, before.Connected)
			}
		})
	}
}

func TestSetPower_Unsupported(t *testing.T) {
	client := newFakeClient(testDescriptors()...)
	r := newCommandRegistry(t, client)

	if err := r.SetPower(context.Background(), hobID, false); !errors.Is(err, ErrPowerUnsupported) {
		t.Errorf("error = %v, want ErrPowerUnsupported", err)
	}
}

func TestRunProgram(t *testing.T) {
	cotton := "LaundryCare.Washer.Program.Cotton"
	startable := []appliance.Record{
		{Key: appliance.KeyRemoteStartAllowed, Value: true},
		{Key: appliance.KeyDoorState, Value: appliance.DoorClosed},
		{Key: appliance.KeyOperationState, Value: appliance.OperationReady},
		{Key: appliance.KeySelectedProgram, Value: cotton},
	}

	tests := []struct {
		name     string
		records  []appliance.Record
		wantErr  error
		wantCall call
	}{
		{
			name:     "starts selected program",
			records:  startable,
			wantCall: call{method: "StartProgram", haID: washerID, key: cotton},
		},
		{
			name: "finished and locked",
			records: append(append([]appliance.Record{}, startable...),
				appliance.Record{Key: appliance.KeyDoorState, Value: appliance.DoorLocked},
				appliance.Record{Key: appliance.KeyOperationState, Value: appliance.OperationFinished}),
			wantCall: call{method: "StartProgram", haID: washerID, key: cotton},
		},
		{
			name:     "resumes when paused",
			records:  []appliance.Record{{Key: appliance.KeyOperationState, Value: appliance.OperationPause}},
			wantCall: call{method: "ExecuteCommand", haID: washerID, key: appliance.CommandResumeProgram},
		},
		{
			name: "door open",
			records: append(append([]appliance.Record{}, startable...),
				appliance.Record{Key: appliance.KeyDoorState, Value: appliance.DoorOpen}),
			wantErr: ErrProgramNotStartable,
		},
		{
			name: "remote start not allowed",
			records: append(append([]appliance.Record{}, startable...),
				appliance.Record{Key: appliance.KeyRemoteStartAllowed, Value: false}),
			wantErr: ErrProgramNotStartable,
		},
		{
			name:    "state unknown",
			wantErr: ErrProgramNotStartable,
		},
		{
			name: "nothing selected",
			records: append(append([]appliance.Record{}, startable...),
				appliance.Record{Key: appliance.KeySelectedProgram, Value: ""}),
			wantErr: ErrNoSelectedProgram,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeClient(testDescriptors()...)
			r := newCommandRegistry(t, client)
			merge(t, r, washerID, tt.records...)

			err := r.RunProgram(context.Background(), washerID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				if len(client.recorded()) != 0 {
					t.Error("refused run reached the client")
				}
				return
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if calls := client.recorded(); len(calls) != 1 || calls[0] != tt.wantCall {
				t.Errorf("calls = %+v, want [%+v]", calls, tt.wantCall)
			}
		})
	}
}

func TestPauseProgram(t *testing.T) {
	client := newFakeClient(testDescriptors()...)
	r := newCommandRegistry(t, client)
	ctx := context.Background()

	if err := r.PauseProgram(ctx, washerID); !errors.Is(err, ErrProgramNotRunning) {
		t.Errorf("pause while idle error = %v", err)
	}

	merge(t, r, washerID, appliance.Record{Key: appliance.KeyOperationState, Value: appliance.OperationRun})
	if err := r.PauseProgram(ctx, washerID); err != nil {
		t.Fatal(err)
	}
	want := call{method: "ExecuteCommand", haID: washerID, key: appliance.CommandPauseProgram}
	if calls := client.recorded(); len(calls) != 1 || calls[0] != want {
		t.Errorf("calls = %+v, want [%+v]", calls, want)
	}
}

func TestProgramRunning(t *testing.T) {
	tests := []struct {
		op   any
		want ProgramActivity
	}{
		{appliance.OperationRun, ProgramActive},
		{appliance.OperationDelayedStart, ProgramActive},
		{appliance.OperationPause, ProgramInactive},
		{appliance.OperationFinished, ProgramInactive},
		{appliance.OperationError, ProgramInactive},
		{nil, ProgramUnknown},
		{"BSH.Common.EnumType.OperationState.Mystery", ProgramUnknown},
	}

	for _, tt := range tests {
		r := newCommandRegistry(t, newFakeClient(testDescriptors()...))
		merge(t, r, washerID, appliance.Record{Key: appliance.KeyOperationState, Value: tt.op})

		got, err := r.ProgramRunning(washerID)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("ProgramRunning(%v) = %s, want %s", tt.op, got, tt.want)
		}
	}

	r := newCommandRegistry(t, newFakeClient())
	if _, err := r.ProgramRunning(washerID); !errors.Is(err, ErrApplianceNotFound) {
		t.Errorf("unknown appliance error = %v", err)
	}
}

func TestKeyKind(t *testing.T) {
	tests := map[string]string{
		appliance.KeyPowerState:        "Setting",
		appliance.KeyWasherTemperature: "Option",
		appliance.KeyDoorState:         "Status",
		"Power":                        "",
	}
	for key, want := range tests {
		if got := keyKind(key); got != want {
			t.Errorf("keyKind(%q) = %q, want %q", key, got, want)
		}
	}
}
