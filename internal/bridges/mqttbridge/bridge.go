package mqttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/homeconnect-core/internal/appliance"
	"github.com/nerrad567/homeconnect-core/internal/audit"
	"github.com/nerrad567/homeconnect-core/internal/homeconnect"
	"github.com/nerrad567/homeconnect-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/homeconnect-core/internal/registry"
)

const commandTimeout = 30 * time.Second

// Logger defines the logging interface used by the bridge.
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

// MQTTClient is the broker surface the bridge needs. *mqtt.Client
// implements it.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// Registry is the appliance surface the bridge needs. *registry.Registry
// implements it.
type Registry interface {
	Subscribe(haID string, cb registry.Callback) (unsubscribe func())
	Appliances() []*appliance.State
	Snapshot(haID string) (appliance.Snapshot, error)

	SetProperty(ctx context.Context, haID, key string, value any, unit string) error
	SelectProgram(ctx context.Context, haID, key string, options []appliance.Record) error
	StartProgram(ctx context.Context, haID, key string, options []appliance.Record) error
	StopActiveProgram(ctx context.Context, haID string) error
	ExecuteCommand(ctx context.Context, haID, key string) error
	RunProgram(ctx context.Context, haID string) error
	PauseProgram(ctx context.Context, haID string) error
	SetPower(ctx context.Context, haID string, on bool) error
}

// AuditLog records executed commands. *audit.SQLiteRepository implements it.
type AuditLog interface {
	Create(ctx context.Context, e *audit.Entry) error
}

// Options configures a Bridge.
type Options struct {
	Client   MQTTClient
	Registry Registry
	Topics   mqtt.Topics
	QoS      byte

	// HealthInterval is the bridge status period. Default 30s.
	HealthInterval time.Duration
	ClientID       string
	Logger         Logger

	// Audit is optional.
	Audit AuditLog
}

// Bridge connects the registry to MQTT.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	client   MQTTClient
	registry Registry
	topics   mqtt.Topics
	qos      byte
	logger   Logger
	audit    AuditLog
	health   *HealthReporter

	pendingMu sync.Mutex
	pending   map[string]struct{}
	wake      chan struct{}

	unsubscribe func()
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	startOnce   sync.Once
	stopOnce    sync.Once

	published atomic.Uint64
	commands  atomic.Uint64
	failures  atomic.Uint64
}

// New creates a bridge. Call Start to begin mirroring.
func New(opts Options) (*Bridge, error) {
	if opts.Client == nil || opts.Registry == nil {
		return nil, errors.New("mqttbridge: client and registry are required")
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Topics.Prefix == "" {
		opts.Topics = mqtt.NewTopics("")
	}

	b := &Bridge{
		client:   opts.Client,
		registry: opts.Registry,
		topics:   opts.Topics,
		qos:      opts.QoS,
		logger:   opts.Logger,
		audit:    opts.Audit,
		pending:  make(map[string]struct{}),
		wake:     make(chan struct{}, 1),
	}
	b.health = NewHealthReporter(HealthReporterConfig{
		Publisher: opts.Client,
		Topic:     opts.Topics.BridgeStatus(),
		QoS:       opts.QoS,
		ClientID:  opts.ClientID,
		Interval:  opts.HealthInterval,
		Counts:    b.applianceCounts,
		Logger:    opts.Logger,
	})
	return b, nil
}

// Start subscribes to commands and registry changes, publishes the current
// state of every appliance and begins health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	var err error
	b.startOnce.Do(func() {
		b.ctx, b.cancel = context.WithCancel(ctx)

		if err = b.client.Subscribe(b.topics.AllApplianceCommands(), b.qos, b.handleMessage); err != nil {
			err = fmt.Errorf("subscribing to commands: %w", err)
			return
		}

		b.unsubscribe = b.registry.Subscribe("", b.enqueue)
		for _, s := range b.registry.Appliances() {
			b.enqueue(s.HaID())
		}

		b.wg.Add(1)
		go b.publishLoop()
		b.health.Start(b.ctx)

		b.logger.Info("mqtt bridge started", "topic", b.topics.AllApplianceCommands())
	})
	return err
}

// Stop detaches from the registry and publishes a final stopping status.
// Pending state publishes are dropped. Safe to call more than once.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		if b.unsubscribe != nil {
			b.unsubscribe()
		}
		if b.cancel != nil {
			b.cancel()
		}
		b.wg.Wait()
		b.health.Stop()
		if b.client.IsConnected() {
			if err := b.client.Unsubscribe(b.topics.AllApplianceCommands()); err != nil {
				b.logger.Debug("unsubscribing commands failed", "error", err)
			}
		}
		b.logger.Info("mqtt bridge stopped")
	})
}

// enqueue marks haID for publishing. It never blocks, so it is safe to run
// on the consumer goroutine.
func (b *Bridge) enqueue(haID string) {
	b.pendingMu.Lock()
	b.pending[haID] = struct{}{}
	b.pendingMu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bridge) publishLoop() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case <-b.wake:
		}

		b.pendingMu.Lock()
		batch := b.pending
		b.pending = make(map[string]struct{}, len(batch))
		b.pendingMu.Unlock()

		for haID := range batch {
			if err := b.publishState(haID); err != nil {
				b.failures.Add(1)
				b.logger.Warn("publishing appliance state failed", "ha_id", haID, "error", err)
			}
		}
	}
}

func (b *Bridge) publishState(haID string) error {
	snap, err := b.registry.Snapshot(haID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(StateMessage{Snapshot: snap, PublishedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	if err := b.client.Publish(b.topics.ApplianceState(haID), payload, b.qos, true); err != nil {
		return err
	}
	b.published.Add(1)
	return nil
}

// handleMessage is the MQTT handler for appliance command topics.
func (b *Bridge) handleMessage(topic string, payload []byte) error {
	haID, leaf, ok := b.topics.ParseAppliance(topic)
	if !ok || leaf != "command" {
		return fmt.Errorf("%w: unexpected topic %s", ErrInvalidCommand, topic)
	}

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.respond(haID, CommandMessage{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err))
		return nil
	}

	b.commands.Add(1)
	b.logger.Info("received command", "ha_id", haID, "id", cmd.ID, "action", cmd.Action, "key", cmd.Key)

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	err := b.execute(ctx, haID, cmd)
	b.respond(haID, cmd, err)
	b.record(haID, cmd, err)
	return nil
}

// record writes the command to the audit log, if one is configured.
// Unknown actions are not recorded.
func (b *Bridge) record(haID string, cmd CommandMessage, err error) {
	if b.audit == nil || errors.Is(err, ErrUnknownAction) {
		return
	}
	e := audit.NewEntry(audit.SourceMQTT, cmd.Action, haID, cmd.Key, "", err)
	if cmd.ID != "" {
		e.Details = map[string]any{"request_id": cmd.ID}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if aErr := b.audit.Create(ctx, e); aErr != nil {
		b.logger.Warn("recording command audit failed", "ha_id", haID, "error", aErr)
	}
}

func (b *Bridge) execute(ctx context.Context, haID string, cmd CommandMessage) error {
	needKey := func() error {
		if cmd.Key == "" {
			return fmt.Errorf("%w: %s requires key", ErrInvalidCommand, cmd.Action)
		}
		return nil
	}

	switch cmd.Action {
	case ActionSetProperty:
		if err := needKey(); err != nil {
			return err
		}
		value, err := cmd.value()
		if err != nil {
			return err
		}
		return b.registry.SetProperty(ctx, haID, cmd.Key, value, cmd.Unit)
	case ActionSelectProgram, ActionStartProgram:
		if err := needKey(); err != nil {
			return err
		}
		options, err := cmd.records()
		if err != nil {
			return err
		}
		if cmd.Action == ActionSelectProgram {
			return b.registry.SelectProgram(ctx, haID, cmd.Key, options)
		}
		return b.registry.StartProgram(ctx, haID, cmd.Key, options)
	case ActionStopProgram:
		return b.registry.StopActiveProgram(ctx, haID)
	case ActionExecuteCommand:
		if err := needKey(); err != nil {
			return err
		}
		return b.registry.ExecuteCommand(ctx, haID, cmd.Key)
	case ActionRun:
		return b.registry.RunProgram(ctx, haID)
	case ActionPause:
		return b.registry.PauseProgram(ctx, haID)
	case ActionPower:
		v, err := cmd.value()
		if err != nil {
			return err
		}
		on, ok := v.(bool)
		if !ok {
			return fmt.Errorf("%w: power requires a boolean value", ErrInvalidCommand)
		}
		return b.registry.SetPower(ctx, haID, on)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
}

func (b *Bridge) respond(haID string, cmd CommandMessage, err error) {
	resp := ResponseMessage{
		ID:        cmd.ID,
		Action:    cmd.Action,
		Success:   err == nil,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		resp.Error = err.Error()
		resp.Code, resp.RemoteKey = classify(err)
		b.logger.Warn("command failed", "ha_id", haID, "id", cmd.ID, "action", cmd.Action, "error", err)
	}

	payload, mErr := json.Marshal(resp)
	if mErr != nil {
		b.logger.Error("encoding response failed", "error", mErr)
		return
	}
	if pErr := b.client.Publish(b.topics.ApplianceResponse(haID), payload, b.qos, false); pErr != nil {
		b.logger.Warn("publishing response failed", "ha_id", haID, "error", pErr)
	}
}

// classify maps an error to a response code and, for remote failures, the
// remote error key.
func classify(err error) (code, remoteKey string) {
	var apiErr *homeconnect.APIError
	switch {
	case errors.Is(err, ErrInvalidCommand), errors.Is(err, ErrUnknownAction),
		errors.Is(err, registry.ErrReadOnlyProperty), errors.Is(err, registry.ErrUnsupportedKey):
		return CodeInvalid, ""
	case errors.Is(err, registry.ErrApplianceNotFound):
		return CodeNotFound, ""
	case errors.Is(err, registry.ErrProgramNotStartable), errors.Is(err, registry.ErrProgramNotRunning),
		errors.Is(err, registry.ErrNoSelectedProgram), errors.Is(err, registry.ErrPowerUnsupported):
		return CodeRejected, ""
	case errors.As(err, &apiErr):
		return CodeRemoteError, apiErr.Key
	case errors.Is(err, homeconnect.ErrParse):
		return CodeRemoteError, ""
	default:
		return CodeFailed, ""
	}
}

func (b *Bridge) applianceCounts() (total, connected int) {
	for _, s := range b.registry.Appliances() {
		total++
		if s.IsConnected() {
			connected++
		}
	}
	return total, connected
}

// Metrics holds bridge counters.
type Metrics struct {
	StatesPublished uint64 `json:"states_published"`
	Commands        uint64 `json:"commands"`
	PublishFailures uint64 `json:"publish_failures"`
	Connected       bool   `json:"connected"`
}

// GetMetrics returns the current counters.
func (b *Bridge) GetMetrics() Metrics {
	return Metrics{
		StatesPublished: b.published.Load(),
		Commands:        b.commands.Load(),
		PublishFailures: b.failures.Load(),
		Connected:       b.client.IsConnected(),
	}
}
