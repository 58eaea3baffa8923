package watchdog

import (
	"sync"
	"sync/atomic"
	"time"
)

// Watchdog fires a callback when it is not reset within an interval.
//
// Thread Safety: All methods are safe for concurrent use. Reset, Pause and
// Resume never block and may be called from the expiry callback. Stop must
// not be called from the expiry callback.
type Watchdog struct {
	interval time.Duration
	onExpire func()

	mu       sync.Mutex
	paused   bool
	deadline time.Time
	started  bool

	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	expirations atomic.Int64
}

// Option configures a Watchdog.
type Option func(*Watchdog)

// WithPaused creates the watchdog in the paused state.
func WithPaused() Option {
	return func(w *Watchdog) { w.paused = true }
}

// New creates a stopped watchdog. Call Start to begin the countdown.
func New(interval time.Duration, onExpire func(), opts ...Option) *Watchdog {
	if onExpire == nil {
		onExpire = func() {}
	}
	w := &Watchdog{
		interval: interval,
		onExpire: onExpire,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Interval returns the configured interval.
func (w *Watchdog) Interval() time.Duration { return w.interval }

// Start launches the timer goroutine. The countdown starts now unless the
// watchdog is paused. Calling Start again, or after Stop, does nothing.
func (w *Watchdog) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case <-w.done:
		return
	default:
	}
	if w.started {
		return
	}
	w.started = true
	w.deadline = time.Now().Add(w.interval)

	w.wg.Add(1)
	go w.run()
}

// Reset restarts the countdown. It has no effect while paused.
func (w *Watchdog) Reset() {
	w.mu.Lock()
	if !w.paused {
		w.deadline = time.Now().Add(w.interval)
	}
	w.mu.Unlock()
	w.signal()
}

// Pause suspends the watchdog; it will not fire until resumed.
func (w *Watchdog) Pause() {
	w.mu.Lock()
	w.paused = true
	w.mu.Unlock()
	w.signal()
}

// Resume leaves the paused state with a fresh countdown.
func (w *Watchdog) Resume() {
	w.mu.Lock()
	w.paused = false
	w.deadline = time.Now().Add(w.interval)
	w.mu.Unlock()
	w.signal()
}

// Paused reports whether the watchdog is suspended.
func (w *Watchdog) Paused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.paused
}

// Expirations returns how many times the callback has been invoked.
func (w *Watchdog) Expirations() int64 {
	return w.expirations.Load()
}

// Stop terminates the watchdog and blocks until the timer goroutine has
// exited. A callback already running is waited for. Stop is idempotent.
func (w *Watchdog) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		close(w.done)
		w.mu.Unlock()
	})
	w.wg.Wait()
}

func (w *Watchdog) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Watchdog) run() {
	defer w.wg.Done()

	timer := time.NewTimer(w.interval)
	defer timer.Stop()

	for {
		var timerC <-chan time.Time

		if w.expired() {
			w.expirations.Add(1)
			w.onExpire()
			continue
		}

		w.mu.Lock()
		if !w.paused {
			timer.Reset(time.Until(w.deadline))
			timerC = timer.C
		}
		w.mu.Unlock()

		select {
		case <-w.done:
			return
		case <-w.wake:
		case <-timerC:
		}
		timer.Stop()
	}
}

// expired reports whether the deadline has passed and, if so, re-arms it.
func (w *Watchdog) expired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case <-w.done:
		return false
	default:
	}
	if w.paused || time.Now().Before(w.deadline) {
		return false
	}
	w.deadline = time.Now().Add(w.interval)
	return true
}
