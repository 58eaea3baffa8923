// Package history records appliance property changes.
//
// A Recorder subscribes to the registry, diffs each appliance snapshot
// against the last one it saw and hands every changed key to its sinks:
//
//   - SQLiteRepository keeps an audit trail in the property_history table.
//   - InfluxSink writes numeric and boolean values as telemetry points.
//
// Diffing runs on the recorder's own goroutine so registry notification
// is never slowed by disk or network writes.
package history
