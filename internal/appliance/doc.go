// Package appliance holds the in-memory mirror of one Home Connect appliance.
//
// A State is created from the remote appliance descriptor, seeded with a
// fixed set of baseline property keys, and then mutated only by the event
// stream consumer that owns it. Readers get deep copies via Snapshot, so
// they never observe a half-applied merge.
//
// # Key Types
//
//   - Type: closed set of appliance types plus Generic for anything unknown
//   - Capabilities: per-type table driving refresh and power handling
//   - Record: one property (key, scalar value, optional unit, metadata)
//   - State: synchronized property map with the connectivity flag
//   - Snapshot: immutable copy handed to collaborators
//
// # Invariants
//
//   - Every baseline key is present from construction, with a nil value
//     until the remote reports one.
//   - IsConnected is the only source of availability. It is never derived
//     from property values.
package appliance
