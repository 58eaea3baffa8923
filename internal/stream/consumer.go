package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/homeconnect-core/internal/appliance"
	"github.com/nerrad567/homeconnect-core/internal/homeconnect"
	"github.com/nerrad567/homeconnect-core/internal/watchdog"
)

// Phase is the state of a consumer's stream state machine.
type Phase string

const (
	PhaseDisconnected     Phase = "disconnected"
	PhaseConnecting       Phase = "connecting"
	PhaseConnected        Phase = "connected"
	PhaseReauthenticating Phase = "reauthenticating"
	PhaseBackoff          Phase = "backoff"
	PhaseTerminated       Phase = "terminated"
	PhaseStopped          Phase = "stopped"
)

// API is the part of the REST client a consumer needs.
// *homeconnect.Client implements it.
type API interface {
	OpenEvents(ctx context.Context, haID string) (io.ReadCloser, error)
	RefreshToken(ctx context.Context, failedAccessToken string) error
	GetAppliance(ctx context.Context, haID string) (appliance.Descriptor, error)
	GetStatus(ctx context.Context, haID string) ([]appliance.Record, error)
	GetSettings(ctx context.Context, haID string) ([]appliance.Record, error)
	GetSelectedProgram(ctx context.Context, haID string) (homeconnect.Program, error)
	GetSelectedProgramOption(ctx context.Context, haID, key string) (appliance.Record, error)
}

// Notifier receives per-appliance change notifications.
type Notifier interface {
	Notify(haID string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(haID string)

// Notify calls f(haID).
func (f NotifierFunc) Notify(haID string) { f(haID) }

// Logger defines the logging interface used by consumers.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config controls liveness and reconnection.
type Config struct {
	// WatchdogTimeout is the silence interval before the watchdog fires.
	WatchdogTimeout time.Duration

	// ReadTimeout closes a stream on which nothing arrived for this long.
	// 0 disables it.
	ReadTimeout time.Duration

	// Reconnect enables reopening the stream after a failure.
	Reconnect bool

	InitialDelay time.Duration
	MaxDelay     time.Duration

	// MaxAttempts limits consecutive failed reconnects. 0 means unlimited.
	MaxAttempts int

	// ReconnectOnWatchdog closes the stream when the watchdog fires so
	// that it is reopened. Requires Reconnect.
	ReconnectOnWatchdog bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		WatchdogTimeout:     300 * time.Second,
		ReadTimeout:         120 * time.Second,
		Reconnect:           true,
		InitialDelay:        time.Second,
		MaxDelay:            time.Minute,
		ReconnectOnWatchdog: true,
	}
}

// Stats holds operational counters of one consumer.
type Stats struct {
	Phase            Phase     `json:"phase"`
	Events           uint64    `json:"events"`
	Reconnects       uint64    `json:"reconnects"`
	Reauths          uint64    `json:"reauths"`
	WatchdogExpiries int64     `json:"watchdog_expiries"`
	LastEvent        time.Time `json:"last_event,omitzero"`
	LastError        string    `json:"last_error,omitempty"`
}

// Consumer keeps one appliance's state synchronized with its event stream.
//
// Thread Safety: All exported methods are safe for concurrent use. State
// merges happen only on the consumer goroutine, in stream order.
type Consumer struct {
	state    *appliance.State
	api      API
	notifier Notifier
	cfg      Config
	logger   Logger
	watchdog *watchdog.Watchdog

	mu           sync.Mutex
	phase        Phase
	lastErr      error
	cancel       context.CancelFunc
	cancelStream context.CancelCauseFunc
	started      bool
	done         chan struct{}
	stopOnce     sync.Once

	events     atomic.Uint64
	reconnects atomic.Uint64
	reauths    atomic.Uint64
	lastEvent  atomic.Int64
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(c *Consumer) { c.logger = l }
}

// New creates a consumer for state. notifier may be nil.
func New(state *appliance.State, api API, notifier Notifier, cfg Config, opts ...Option) *Consumer {
	if notifier == nil {
		notifier = NotifierFunc(func(string) {})
	}
	c := &Consumer{
		state:    state,
		api:      api,
		notifier: notifier,
		cfg:      cfg,
		logger:   noopLogger{},
		phase:    PhaseDisconnected,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.watchdog = watchdog.New(cfg.WatchdogTimeout, c.onWatchdogExpired, watchdog.WithPaused())
	return c
}

// HaID returns the identifier of the consumed appliance.
func (c *Consumer) HaID() string { return c.state.HaID() }

// Watchdog exposes the appliance's watchdog for inspection.
func (c *Consumer) Watchdog() *watchdog.Watchdog { return c.watchdog }

// Start launches the consumer goroutine. It returns immediately; calling
// it again has no effect.
func (c *Consumer) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true

	ctx, c.cancel = context.WithCancel(ctx)
	c.watchdog.Start()
	go c.run(ctx)
}

// Stop cancels the consumer, closes the stream, stops the watchdog and
// blocks until all of them have exited.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		cancel, started := c.cancel, c.started
		c.started = true // blocks any later Start
		c.mu.Unlock()

		if started && cancel != nil {
			cancel()
			<-c.done
		} else {
			close(c.done)
		}
		c.watchdog.Stop()
		c.setPhase(PhaseStopped, nil)
	})
}

// Done is closed when the consumer goroutine has exited.
func (c *Consumer) Done() <-chan struct{} { return c.done }

// Phase returns the current state machine phase.
func (c *Consumer) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Err returns the most recent stream failure, if any.
func (c *Consumer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Stats returns a snapshot of the consumer's counters.
func (c *Consumer) Stats() Stats {
	c.mu.Lock()
	phase, lastErr := c.phase, c.lastErr
	c.mu.Unlock()

	s := Stats{
		Phase:            phase,
		Events:           c.events.Load(),
		Reconnects:       c.reconnects.Load(),
		Reauths:          c.reauths.Load(),
		WatchdogExpiries: c.watchdog.Expirations(),
	}
	if ts := c.lastEvent.Load(); ts != 0 {
		s.LastEvent = time.Unix(0, ts)
	}
	if lastErr != nil {
		s.LastError = lastErr.Error()
	}
	return s
}

func (c *Consumer) setPhase(p Phase, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = p
	if err != nil {
		c.lastErr = err
	}
}

func (c *Consumer) run(ctx context.Context) {
	defer close(c.done)

	haID := c.state.HaID()
	c.logger.Info("event stream consumer started", "ha_id", haID)

	if c.state.IsConnected() {
		c.refresh(ctx)
		c.watchdog.Resume()
	}

	bo := newBackoff(c.cfg.InitialDelay, c.cfg.MaxDelay)
	attempts := 0
	resync := false
	reauthed := false

	for {
		received, err := c.consume(ctx, resync)
		if ctx.Err() != nil {
			c.logger.Info("event stream consumer stopped", "ha_id", haID)
			return
		}

		var expired *homeconnect.TokenExpiredError
		if errors.As(err, &expired) {
			if reauthed && !received {
				c.terminate(fmt.Errorf("%w: event stream refused a freshly refreshed token", homeconnect.ErrUnauthorized))
				return
			}
			if !c.reauthenticate(ctx, expired.AccessToken) {
				return
			}
			reauthed = true
			continue
		}

		reauthed = false
		resync = true
		if received {
			bo.reset()
			attempts = 0
		}

		if !c.cfg.Reconnect {
			c.terminate(err)
			return
		}
		attempts++
		if c.cfg.MaxAttempts > 0 && attempts > c.cfg.MaxAttempts {
			c.terminate(fmt.Errorf("%w after %d attempts: %w", ErrReconnectExhausted, c.cfg.MaxAttempts, err))
			return
		}

		delay := bo.next()
		c.setPhase(PhaseBackoff, err)
		c.logger.Warn("event stream failed, reconnecting",
			"ha_id", haID,
			"attempt", attempts,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		c.reconnects.Add(1)
	}
}

// reauthenticate refreshes the token after a 401 on the stream. The
// appliance is not reported as disconnected. It returns false when the
// consumer must terminate.
func (c *Consumer) reauthenticate(ctx context.Context, failedToken string) bool {
	c.setPhase(PhaseReauthenticating, nil)
	c.logger.Info("event stream token expired, refreshing", "ha_id", c.state.HaID())

	if err := c.api.RefreshToken(ctx, failedToken); err != nil {
		if ctx.Err() != nil {
			return false
		}
		c.terminate(err)
		return false
	}
	c.reauths.Add(1)
	return true
}

// terminate ends the consumer after an unrecoverable failure.
func (c *Consumer) terminate(err error) {
	c.logger.Error("event stream consumer terminated", "ha_id", c.state.HaID(), "error", err)
	c.setPhase(PhaseTerminated, err)
	c.watchdog.Pause()
	if c.state.SetConnected(false) {
		c.notifier.Notify(c.state.HaID())
	}
}

// consume opens the stream and applies events until it fails. received
// reports whether at least one event arrived.
func (c *Consumer) consume(ctx context.Context, resync bool) (received bool, err error) {
	streamCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	c.mu.Lock()
	c.cancelStream = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.cancelStream = nil
		c.mu.Unlock()
	}()

	c.setPhase(PhaseConnecting, nil)
	body, err := c.api.OpenEvents(streamCtx, c.state.HaID())
	if err != nil {
		if cause := context.Cause(streamCtx); cause != nil && ctx.Err() == nil {
			return false, cause
		}
		return false, err
	}
	defer body.Close()

	if resync {
		c.resync(ctx)
	}
	if c.state.IsConnected() {
		c.setPhase(PhaseConnected, nil)
	} else {
		c.setPhase(PhaseDisconnected, nil)
	}

	var idle *time.Timer
	if c.cfg.ReadTimeout > 0 {
		idle = time.AfterFunc(c.cfg.ReadTimeout, func() { cancel(ErrReadTimeout) })
		defer idle.Stop()
	}

	dec := NewDecoder(body)
	for {
		ev, err := dec.Next()
		if err != nil {
			if cause := context.Cause(streamCtx); cause != nil && ctx.Err() == nil {
				return received, cause
			}
			if errors.Is(err, io.EOF) {
				return received, ErrStreamClosed
			}
			return received, fmt.Errorf("%w: %w", ErrStream, err)
		}

		if idle != nil {
			idle.Reset(c.cfg.ReadTimeout)
		}
		received = true
		c.handle(ctx, ev)
	}
}

// handle applies one event to the appliance state.
func (c *Consumer) handle(ctx context.Context, ev Event) {
	haID := c.state.HaID()

	switch ev.Type {
	case KindKeepAlive:
		c.watchdog.Reset()

	case KindConnected:
		c.logger.Info("appliance connected", "ha_id", haID)
		c.state.SetConnected(true)
		c.setPhase(PhaseConnected, nil)
		c.notifier.Notify(haID)
		c.refresh(ctx)
		c.watchdog.Resume()

	case KindDisconnected:
		c.logger.Info("appliance disconnected", "ha_id", haID)
		c.state.SetConnected(false)
		c.watchdog.Pause()
		c.setPhase(PhaseDisconnected, nil)
		c.notifier.Notify(haID)

	case KindNotify, KindStatus, KindEvent:
		records, err := appliance.DecodeItems(ev.Data)
		if err != nil {
			c.logger.Warn("malformed event payload", "ha_id", haID, "kind", ev.Type, "error", err)
		}
		changed := c.state.Merge(records...)
		if ev.Type == KindEvent && appliance.ProgramFinished(records) {
			changed = c.state.ApplyProgramFinished() || changed
		}
		c.watchdog.Reset()
		if changed {
			c.notifier.Notify(haID)
		}

	default:
		c.logger.Warn("ignoring unrecognized event", "ha_id", haID, "kind", ev.Type)
		return
	}

	c.events.Add(1)
	c.lastEvent.Store(time.Now().UnixNano())
}

// resync runs after the stream is reopened. CONNECTED and DISCONNECTED
// events sent while it was down are lost, so connectivity is read back from
// the appliance descriptor before the state refresh. When the descriptor
// cannot be fetched the current flag is kept.
func (c *Consumer) resync(ctx context.Context) {
	haID := c.state.HaID()

	desc, err := c.api.GetAppliance(ctx, haID)
	if err != nil {
		c.logger.Debug("connectivity refresh failed", "ha_id", haID, "error", err)
	} else if c.state.SetConnected(desc.Connected) {
		c.logger.Info("appliance connectivity changed while the stream was down",
			"ha_id", haID,
			"connected", desc.Connected,
		)
		c.notifier.Notify(haID)
	}

	if !c.state.IsConnected() {
		c.watchdog.Pause()
		return
	}
	c.refresh(ctx)
	c.watchdog.Resume()
}

// refresh pulls the state the remote does not push on connect. Each step
// is best-effort; failures are logged and the remaining steps still run.
func (c *Consumer) refresh(ctx context.Context) {
	haID := c.state.HaID()
	caps := c.state.Capabilities()
	changed := false

	if records, err := c.api.GetStatus(ctx, haID); err != nil {
		c.logger.Debug("status refresh failed", "ha_id", haID, "error", err)
	} else {
		changed = c.state.Merge(records...) || changed
	}

	if records, err := c.api.GetSettings(ctx, haID); err != nil {
		c.logger.Debug("settings refresh failed", "ha_id", haID, "error", err)
	} else {
		changed = c.state.Merge(records...) || changed
	}

	if caps.SelectedProgram {
		if program, err := c.api.GetSelectedProgram(ctx, haID); err != nil {
			c.logger.Debug("selected program refresh failed", "ha_id", haID, "error", err)
		} else {
			changed = c.state.Merge(appliance.Record{Key: appliance.KeySelectedProgram, Value: program.Key}) || changed
		}
	}

	for _, key := range caps.SelectedOptions {
		if rec, err := c.api.GetSelectedProgramOption(ctx, haID, key); err != nil {
			c.logger.Debug("selected option refresh failed", "ha_id", haID, "key", key, "error", err)
		} else {
			changed = c.state.Merge(rec) || changed
		}
	}

	if changed {
		c.notifier.Notify(haID)
	}
}

func (c *Consumer) onWatchdogExpired() {
	c.logger.Warn("server connection lost", "ha_id", c.state.HaID(), "timeout", c.cfg.WatchdogTimeout)

	if !c.cfg.ReconnectOnWatchdog || !c.cfg.Reconnect {
		return
	}
	c.mu.Lock()
	cancel := c.cancelStream
	c.mu.Unlock()
	if cancel != nil {
		cancel(ErrWatchdogExpired)
	}
}
