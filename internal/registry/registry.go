package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/homeconnect-core/internal/appliance"
	"github.com/nerrad567/homeconnect-core/internal/homeconnect"
	"github.com/nerrad567/homeconnect-core/internal/stream"
)

// Logger defines the logging interface used by the Registry.
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

// Client is the REST surface the registry uses.
// *homeconnect.Client implements it.
type Client interface {
	stream.API

	GetAppliances(ctx context.Context) ([]appliance.Descriptor, error)
	SetSetting(ctx context.Context, haID, key string, value any) error
	SetSelectedProgramOption(ctx context.Context, haID, key string, value any, unit string) error
	SetActiveProgramOption(ctx context.Context, haID, key string, value any, unit string) error
	SelectProgram(ctx context.Context, haID, key string, options []appliance.Record) error
	StartProgram(ctx context.Context, haID, key string, options []appliance.Record) error
	StopActiveProgram(ctx context.Context, haID string) error
	ExecuteCommand(ctx context.Context, haID, key string) error

	GetStatusKey(ctx context.Context, haID, key string) (appliance.Record, error)
	GetSetting(ctx context.Context, haID, key string) (appliance.Record, error)
	GetPrograms(ctx context.Context, haID string) ([]homeconnect.Program, error)
	GetAvailablePrograms(ctx context.Context, haID string) ([]homeconnect.Program, error)
	GetAvailableProgram(ctx context.Context, haID, key string) (homeconnect.Program, error)
	GetActiveProgram(ctx context.Context, haID string) (homeconnect.Program, error)
	GetCommands(ctx context.Context, haID string) ([]homeconnect.Command, error)
}

// Callback receives the haId of an appliance whose state changed.
type Callback func(haID string)

type subscriber struct {
	id   uint64
	haID string // empty matches every appliance
	cb   Callback
}

type entry struct {
	state    *appliance.State
	consumer *stream.Consumer
}

// Registry holds every appliance of the account and its stream consumer.
//
// All public methods are thread-safe.
type Registry struct {
	client    Client
	streamCfg stream.Config
	logger    Logger

	mu      sync.RWMutex
	order   []string
	entries map[string]*entry
	started bool

	subMu   sync.RWMutex
	subs    []subscriber
	nextSub uint64
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger. It is also handed to every consumer.
func WithLogger(l Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithStreamConfig sets the liveness and reconnect settings of the consumers.
func WithStreamConfig(cfg stream.Config) Option {
	return func(r *Registry) { r.streamCfg = cfg }
}

// New creates an empty registry. Call Start to populate it.
func New(client Client, opts ...Option) *Registry {
	r := &Registry{
		client:    client,
		streamCfg: stream.DefaultConfig(),
		logger:    noopLogger{},
		entries:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ListAppliances fetches the appliance list with one REST call and maps
// each descriptor into a fresh state seeded with its baseline keys.
// Unknown types become Generic. The registry itself is not modified.
func (r *Registry) ListAppliances(ctx context.Context) ([]*appliance.State, error) {
	descs, err := r.client.GetAppliances(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing appliances: %w", err)
	}

	states := make([]*appliance.State, 0, len(descs))
	for _, d := range descs {
		s := appliance.New(d)
		if !s.Type().Known() {
			r.logger.Info("unknown appliance type, using generic", "ha_id", d.HaID, "type", d.Type)
		}
		states = append(states, s)
	}
	return states, nil
}

// Start lists the appliances and starts one consumer per appliance.
// The consumers run until Stop is called or ctx is cancelled.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.started = true
	r.mu.Unlock()

	states, err := r.ListAppliances(ctx)
	if err != nil {
		r.mu.Lock()
		r.started = false
		r.mu.Unlock()
		return err
	}

	r.mu.Lock()
	for _, s := range states {
		haID := s.HaID()
		if _, dup := r.entries[haID]; dup {
			r.logger.Warn("duplicate appliance in list, ignoring", "ha_id", haID)
			continue
		}
		c := stream.New(s, r.client, r, r.streamCfg, stream.WithLogger(r.logger))
		r.entries[haID] = &entry{state: s, consumer: c}
		r.order = append(r.order, haID)
	}
	entries := r.snapshotEntries()
	r.mu.Unlock()

	for _, e := range entries {
		e.consumer.Start(ctx)
	}

	r.logger.Info("appliance registry started", "count", len(entries))
	return nil
}

// Stop stops every consumer and waits for them to exit.
func (r *Registry) Stop() {
	r.mu.RLock()
	entries := r.snapshotEntries()
	r.mu.RUnlock()

	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.consumer.Stop()
		}()
	}
	wg.Wait()

	r.logger.Info("appliance registry stopped", "count", len(entries))
}

// snapshotEntries returns the entries in list order. Caller holds r.mu.
func (r *Registry) snapshotEntries() []*entry {
	out := make([]*entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

func (r *Registry) lookup(haID string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[haID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrApplianceNotFound, haID)
	}
	return e, nil
}

// Subscribe registers cb for change notifications of haID, or of every
// appliance when haID is empty. The returned function removes the
// subscription and may be called more than once.
func (r *Registry) Subscribe(haID string, cb Callback) (unsubscribe func()) {
	r.subMu.Lock()
	r.nextSub++
	id := r.nextSub
	r.subs = append(r.subs, subscriber{id: id, haID: haID, cb: cb})
	r.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.subMu.Lock()
			defer r.subMu.Unlock()
			for i, s := range r.subs {
				if s.id == id {
					r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Notify delivers a change of haID to every matching subscriber,
// synchronously and in registration order. Consumers call it after each
// merge that changed state.
func (r *Registry) Notify(haID string) {
	r.subMu.RLock()
	targets := make([]Callback, 0, len(r.subs))
	for _, s := range r.subs {
		if s.haID == "" || s.haID == haID {
			targets = append(targets, s.cb)
		}
	}
	r.subMu.RUnlock()

	for _, cb := range targets {
		r.deliver(cb, haID)
	}
}

// deliver isolates the consumer goroutine from a panicking subscriber.
func (r *Registry) deliver(cb Callback, haID string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("subscriber panicked", "ha_id", haID, "panic", rec)
		}
	}()
	cb(haID)
}

// Appliances returns the states of all appliances in list order.
func (r *Registry) Appliances() []*appliance.State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*appliance.State, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].state)
	}
	return out
}

// Appliance returns the state of haID.
func (r *Registry) Appliance(haID string) (*appliance.State, error) {
	e, err := r.lookup(haID)
	if err != nil {
		return nil, err
	}
	return e.state, nil
}

// Snapshot returns a copy of the state of haID.
func (r *Registry) Snapshot(haID string) (appliance.Snapshot, error) {
	e, err := r.lookup(haID)
	if err != nil {
		return appliance.Snapshot{}, err
	}
	return e.state.Snapshot(), nil
}

// GetProperty returns the record for key on haID. Baseline keys exist from
// the start with a nil value until the remote reports them.
func (r *Registry) GetProperty(haID, key string) (appliance.Record, error) {
	e, err := r.lookup(haID)
	if err != nil {
		return appliance.Record{}, err
	}
	rec, ok := e.state.Property(key)
	if !ok {
		return appliance.Record{}, fmt.Errorf("%w: %s", ErrPropertyNotFound, key)
	}
	return rec, nil
}

// Stats returns the consumer counters of every appliance keyed by haId.
func (r *Registry) Stats() map[string]stream.Stats {
	r.mu.RLock()
	entries := r.snapshotEntries()
	r.mu.RUnlock()

	out := make(map[string]stream.Stats, len(entries))
	for _, e := range entries {
		out[e.state.HaID()] = e.consumer.Stats()
	}
	return out
}
