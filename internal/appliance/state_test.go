package appliance

import (
	"sync"
	"testing"
)

func washerDescriptor() Descriptor {
	return Descriptor{
		HaID:      "SIEMENS-WM14T6H0-000000000001",
		Name:      "Washer",
		Brand:     "Siemens",
		VIB:       "WM14T6H0",
		ENumber:   "WM14T6H0/01",
		Type:      "Washer",
		Connected: true,
	}
}

func TestNew_SeedsBaseline(t *testing.T) {
	s := New(washerDescriptor())

	for _, key := range BaselineKeys(TypeWasher) {
		rec, ok := s.Property(key)
		if !ok {
			t.Errorf("baseline key %s missing", key)
			continue
		}
		if rec.Known() {
			t.Errorf("baseline key %s = %v, want unknown", key, rec.Value)
		}
	}

	if !s.IsConnected() {
		t.Error("IsConnected() = false, want descriptor value true")
	}
	if s.Type() != TypeWasher {
		t.Errorf("Type() = %v, want Washer", s.Type())
	}
}

func TestNew_UnknownTypeIsGeneric(t *testing.T) {
	s := New(Descriptor{HaID: "X", Type: "Toaster"})

	if s.Type() != TypeGeneric {
		t.Errorf("Type() = %v, want Generic", s.Type())
	}
	if _, ok := s.Property(KeyOperationState); !ok {
		t.Error("generic appliance should still carry baseline keys")
	}
}

func TestMerge_LastWriteWins(t *testing.T) {
	s := New(washerDescriptor())

	events := [][]Record{
		{{Key: KeyOperationState, Value: OperationReady}, {Key: KeyDoorState, Value: DoorOpen}},
		{{Key: KeyOperationState, Value: OperationRun}},
		{{Key: KeyDoorState, Value: DoorClosed}, {Key: KeyOperationState, Value: OperationPause}},
	}
	for _, ev := range events {
		s.Merge(ev...)
	}

	if got := s.Value(KeyOperationState); got != OperationPause {
		t.Errorf("OperationState = %v, want %v", got, OperationPause)
	}
	if got := s.Value(KeyDoorState); got != DoorClosed {
		t.Errorf("DoorState = %v, want %v", got, DoorClosed)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	s := New(washerDescriptor())
	status := []Record{
		{Key: KeyOperationState, Value: OperationRun},
		{Key: KeyProgramProgress, Value: int64(42), Unit: "%"},
	}

	if !s.Merge(status...) {
		t.Fatal("first Merge() reported no change")
	}
	once := s.Snapshot()

	if s.Merge(status...) {
		t.Error("second Merge() of identical records reported a change")
	}
	twice := s.Snapshot()

	if diff := twice.Diff(once); len(diff) != 0 {
		t.Errorf("replay changed keys %v", diff)
	}
}

func TestMerge_UnitChangeIsAChange(t *testing.T) {
	s := New(washerDescriptor())
	s.Merge(Record{Key: KeyWasherTemperature, Value: int64(40), Unit: "°C"})

	if !s.Merge(Record{Key: KeyWasherTemperature, Value: int64(40), Unit: "°F"}) {
		t.Error("unit change not reported")
	}
}

func TestSetConnected(t *testing.T) {
	s := New(Descriptor{HaID: "X", Type: "Oven"})

	if s.SetConnected(false) {
		t.Error("SetConnected(false) on disconnected state reported change")
	}
	if !s.SetConnected(true) {
		t.Error("SetConnected(true) did not report change")
	}
	if !s.IsConnected() {
		t.Error("IsConnected() = false after SetConnected(true)")
	}
}

func TestSnapshot_IsIsolated(t *testing.T) {
	s := New(washerDescriptor())
	s.Merge(Record{Key: KeyOperationState, Value: OperationRun, Meta: map[string]any{"level": "hint"}})

	snap := s.Snapshot()
	snap.Properties[KeyOperationState].Meta["level"] = "mutated"
	snap.Properties["injected"] = Record{Key: "injected"}

	rec, _ := s.Property(KeyOperationState)
	if rec.Meta["level"] != "hint" {
		t.Errorf("meta leaked through snapshot: %v", rec.Meta["level"])
	}
	if _, ok := s.Property("injected"); ok {
		t.Error("snapshot map shares storage with state")
	}
}

func TestProgramFinished(t *testing.T) {
	tests := []struct {
		name    string
		records []Record
		want    bool
	}{
		{"present", []Record{{Key: KeyProgramFinished, Value: EventPresent}}, true},
		{"off", []Record{{Key: KeyProgramFinished, Value: EventOff}}, false},
		{"other event", []Record{{Key: "BSH.Common.Event.AlarmClockElapsed", Value: EventPresent}}, false},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProgramFinished(tt.records); got != tt.want {
				t.Errorf("ProgramFinished() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSnapshot_Diff(t *testing.T) {
	s := New(washerDescriptor())
	before := s.Snapshot()

	s.Merge(
		Record{Key: KeyOperationState, Value: OperationRun},
		Record{Key: "BSH.Common.Status.LocalControlActive", Value: true},
	)
	after := s.Snapshot()

	got := after.Diff(before)
	want := []string{"BSH.Common.Status.LocalControlActive", KeyOperationState}
	if len(got) != len(want) {
		t.Fatalf("Diff() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Diff()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestState_ConcurrentAccess(t *testing.T) {
	s := New(washerDescriptor())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 500 {
			s.Merge(Record{Key: KeyProgramProgress, Value: int64(i % 100)})
		}
	}()
	go func() {
		defer wg.Done()
		for range 500 {
			_ = s.Snapshot()
			_ = s.IsConnected()
		}
	}()
	wg.Wait()
}

func TestApplyProgramFinished(t *testing.T) {
	s := New(washerDescriptor())
	s.Merge(Record{Key: KeyProgramProgress, Value: int64(87), Unit: "%"})

	if !s.ApplyProgramFinished() {
		t.Fatal("ApplyProgramFinished() = false, want change")
	}
	if v := s.Value(KeyProgramProgress); v != int64(100) {
		t.Errorf("progress = %v, want 100", v)
	}
	if v := s.Value(KeyRemainingProgramTime); v != int64(0) {
		t.Errorf("remaining = %v, want 0", v)
	}
	if s.ApplyProgramFinished() {
		t.Error("second ApplyProgramFinished() reported a change")
	}
}
