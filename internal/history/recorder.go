package history

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/homeconnect-core/internal/appliance"
	"github.com/nerrad567/homeconnect-core/internal/registry"
)

const (
	defaultQueueSize = 256
	sinkTimeout      = 5 * time.Second
)

// Change is one property transition of one appliance.
type Change struct {
	HaID string         `json:"ha_id"`
	Type appliance.Type `json:"type"`
	Key  string         `json:"key"`
	Old  any            `json:"old"`
	New  any            `json:"new"`
	Unit string         `json:"unit,omitempty"`
	At   time.Time      `json:"at"`
}

// Sink receives changes from a Recorder.
type Sink interface {
	Record(ctx context.Context, c Change) error
}

// Source is the registry surface the recorder needs.
type Source interface {
	Subscribe(haID string, cb registry.Callback) (unsubscribe func())
	Appliances() []*appliance.State
	Snapshot(haID string) (appliance.Snapshot, error)
}

// Logger defines the logging interface used by the recorder.
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

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithSink adds a sink. Sinks receive changes in the order they were added.
func WithSink(s Sink) RecorderOption {
	return func(r *Recorder) { r.sinks = append(r.sinks, s) }
}

// WithLogger sets the logger.
func WithLogger(l Logger) RecorderOption {
	return func(r *Recorder) { r.logger = l }
}

// WithQueueSize sets how many notifications may wait for the worker.
func WithQueueSize(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.queueSize = n
		}
	}
}

// Recorder turns registry notifications into Changes.
//
// A notification that finds the queue full is dropped. Nothing is lost
// beyond timing: the next notification for the same appliance diffs
// against the last snapshot the worker processed.
type Recorder struct {
	source    Source
	sinks     []Sink
	logger    Logger
	queueSize int

	queueMu sync.RWMutex
	queue   chan string
	closed  bool

	// last is owned by the worker goroutine after Start.
	last map[string]appliance.Snapshot

	unsubscribe func()
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	startOnce   sync.Once
	stopOnce    sync.Once

	changes atomic.Uint64
	dropped atomic.Uint64
}

// NewRecorder creates a recorder over source.
func NewRecorder(source Source, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		source:    source,
		logger:    noopLogger{},
		queueSize: defaultQueueSize,
		last:      make(map[string]appliance.Snapshot),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.queue = make(chan string, r.queueSize)
	return r
}

// Start records the current snapshots as the baseline and begins
// following the registry. Baseline values are not reported as changes.
func (r *Recorder) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		r.ctx, r.cancel = context.WithCancel(context.WithoutCancel(ctx))

		for _, s := range r.source.Appliances() {
			r.last[s.HaID()] = s.Snapshot()
		}
		r.unsubscribe = r.source.Subscribe("", r.enqueue)

		r.wg.Add(1)
		go r.run()
		r.logger.Info("history recorder started", "sinks", len(r.sinks), "appliances", len(r.last))
	})
}

// Stop detaches from the registry, processes queued notifications and
// waits for the worker. Safe to call more than once.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		if r.unsubscribe != nil {
			r.unsubscribe()
		}

		r.queueMu.Lock()
		r.closed = true
		close(r.queue)
		r.queueMu.Unlock()

		r.wg.Wait()
		if r.cancel != nil {
			r.cancel()
		}
		r.logger.Info("history recorder stopped", "changes", r.changes.Load(), "dropped", r.dropped.Load())
	})
}

// Changes returns how many changes have been handed to the sinks.
func (r *Recorder) Changes() uint64 { return r.changes.Load() }

// Dropped returns how many notifications found the queue full.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

func (r *Recorder) enqueue(haID string) {
	r.queueMu.RLock()
	defer r.queueMu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- haID:
	default:
		r.dropped.Add(1)
		r.logger.Warn("history queue full, notification dropped", "ha_id", haID)
	}
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for haID := range r.queue {
		r.process(haID)
	}
}

func (r *Recorder) process(haID string) {
	snap, err := r.source.Snapshot(haID)
	if err != nil {
		r.logger.Debug("history snapshot unavailable", "ha_id", haID, "error", err)
		return
	}

	prev := r.last[haID]
	r.last[haID] = snap

	at := time.Now().UTC()
	for _, c := range Diff(prev, snap, at) {
		r.changes.Add(1)
		for _, sink := range r.sinks {
			ctx, cancel := context.WithTimeout(r.ctx, sinkTimeout)
			if err := sink.Record(ctx, c); err != nil {
				r.logger.Warn("recording property change failed", "ha_id", c.HaID, "key", c.Key, "error", err)
			}
			cancel()
		}
	}
}

// Diff returns the changes between two snapshots of the same appliance,
// sorted by key. Keys that are unknown on both sides are skipped.
func Diff(prev, next appliance.Snapshot, at time.Time) []Change {
	keys := next.Diff(prev)
	out := make([]Change, 0, len(keys))
	for _, key := range keys {
		oldRec := prev.Properties[key]
		newRec, present := next.Properties[key]
		if oldRec.Value == nil && newRec.Value == nil {
			continue
		}
		unit := newRec.Unit
		if !present {
			unit = oldRec.Unit
		}
		out = append(out, Change{
			HaID: next.HaID,
			Type: next.Type,
			Key:  key,
			Old:  oldRec.Value,
			New:  newRec.Value,
			Unit: unit,
			At:   at,
		})
	}
	return out
}
