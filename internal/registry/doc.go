// Package registry owns the set of appliances known to the core.
//
// A Registry lists appliances through the REST client once at start, runs one
// stream.Consumer per appliance and fans change notifications out to
// subscribers. Commands are passed straight through to the REST client; the
// registry never mutates appliance state on their behalf, the resulting
// changes arrive later on the event stream.
//
// # Notification
//
// Notifications are per appliance, not per key. A subscriber receives the
// haId and re-reads whatever it needs:
//
//	unsubscribe := reg.Subscribe("", func(haID string) {
//	    snap, _ := reg.Snapshot(haID)
//	    render(snap)
//	})
//	defer unsubscribe()
//
// Callbacks run synchronously on the consumer goroutine of the appliance,
// in registration order. A slow subscriber delays that appliance's stream,
// so subscribers doing I/O should hand work off to their own goroutine.
package registry
