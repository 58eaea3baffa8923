// Package watchdog provides a resettable liveness timer.
//
// A Watchdog calls its expiry callback when no Reset arrives within the
// interval, then re-arms, so continued silence fires once per interval.
// Pause suspends it entirely (Reset is ignored while paused) and Resume
// restarts a fresh countdown. Stop is a scoped shutdown: it blocks until
// the timer goroutine has exited, after which the callback never runs.
//
// The stream consumer owns one Watchdog per appliance and resets it on
// every event, including keep-alives.
package watchdog
