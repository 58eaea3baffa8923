package appliance

import (
	"maps"
	"sort"
	"sync"
	"time"
)

// State is the live mirror of one appliance.
//
// Writes come from the single stream consumer that owns the appliance, so
// merges for one appliance are applied in arrival order. Reads may happen
// from any goroutine.
//
// Thread Safety: All methods are safe for concurrent use.
type State struct {
	desc Descriptor
	typ  Type
	caps Capabilities

	mu        sync.RWMutex
	connected bool
	props     map[string]Record
	updatedAt time.Time
}

// New creates the state for desc with every baseline key seeded as unknown.
func New(desc Descriptor) *State {
	typ := ParseType(desc.Type)
	s := &State{
		desc:      desc,
		typ:       typ,
		caps:      CapabilitiesFor(typ),
		connected: desc.Connected,
		props:     make(map[string]Record),
	}
	for _, key := range BaselineKeys(typ) {
		s.props[key] = Record{Key: key}
	}
	return s
}

// HaID returns the stable remote identifier.
func (s *State) HaID() string { return s.desc.HaID }

// Type returns the parsed appliance type.
func (s *State) Type() Type { return s.typ }

// Capabilities returns the capability entry for the appliance type.
func (s *State) Capabilities() Capabilities { return s.caps }

// Descriptor returns the descriptor the state was created from.
// Its Connected field reflects list time, not the current state.
func (s *State) Descriptor() Descriptor { return s.desc }

// IsConnected reports whether the appliance is currently reachable.
func (s *State) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// SetConnected updates the connectivity flag and reports whether it changed.
func (s *State) SetConnected(connected bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected == connected {
		return false
	}
	s.connected = connected
	s.updatedAt = time.Now()
	return true
}

// Merge applies records last-write-wins per key and reports whether any
// observable value changed. Applying the same records twice leaves the
// state unchanged the second time.
func (s *State) Merge(records ...Record) bool {
	if len(records) == 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for _, rec := range records {
		if rec.Key == "" {
			continue
		}
		if prev, ok := s.props[rec.Key]; !ok || !prev.sameValue(rec) {
			changed = true
		}
		s.props[rec.Key] = rec.clone()
	}
	if changed {
		s.updatedAt = time.Now()
	}
	return changed
}

// Property returns the record for key.
func (s *State) Property(key string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.props[key]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// Value returns the value for key, or nil when unknown or absent.
func (s *State) Value(key string) any {
	rec, _ := s.Property(key) //nolint:errcheck // absent key yields nil value
	return rec.Value
}

// Snapshot returns a deep copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	props := make(map[string]Record, len(s.props))
	for k, rec := range s.props {
		props[k] = rec.clone()
	}

	return Snapshot{
		HaID:       s.desc.HaID,
		Name:       s.desc.Name,
		Brand:      s.desc.Brand,
		VIB:        s.desc.VIB,
		ENumber:    s.desc.ENumber,
		Type:       s.typ,
		Connected:  s.connected,
		Properties: props,
		UpdatedAt:  s.updatedAt,
	}
}

// ApplyProgramFinished marks the program as complete and reports whether
// that changed anything.
func (s *State) ApplyProgramFinished() bool {
	return s.Merge(ProgramCompleteRecords()...)
}

// ProgramFinished reports whether records carry the program-finished event
// in the present state.
func ProgramFinished(records []Record) bool {
	for _, rec := range records {
		if rec.Key == KeyProgramFinished && rec.StringValue() == EventPresent {
			return true
		}
	}
	return false
}

// ProgramCompleteRecords are merged when a program finishes, because the
// remote does not reliably send the final progress and remaining time.
func ProgramCompleteRecords() []Record {
	return []Record{
		{Key: KeyProgramProgress, Value: int64(100), Unit: "%"},
		{Key: KeyRemainingProgramTime, Value: int64(0), Unit: "seconds"},
	}
}

// Snapshot is an immutable copy of an appliance's state.
type Snapshot struct {
	HaID       string            `json:"ha_id"`
	Name       string            `json:"name"`
	Brand      string            `json:"brand"`
	VIB        string            `json:"vib"`
	ENumber    string            `json:"enumber"`
	Type       Type              `json:"type"`
	Connected  bool              `json:"connected"`
	Properties map[string]Record `json:"properties"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Value returns the value for key, or nil.
func (s Snapshot) Value(key string) any {
	return s.Properties[key].Value
}

// Keys returns the property keys in sorted order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.Properties))
	for k := range s.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Diff lists the keys whose value or unit differ between prev and s,
// including keys present in only one of them.
func (s Snapshot) Diff(prev Snapshot) []string {
	seen := maps.Clone(prev.Properties)
	if seen == nil {
		seen = map[string]Record{}
	}

	var keys []string
	for k, rec := range s.Properties {
		old, ok := seen[k]
		delete(seen, k)
		if !ok || !old.sameValue(rec) {
			keys = append(keys, k)
		}
	}
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
