package mqttbridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/homeconnect-core/internal/infrastructure/mqtt"
)

const defaultHealthInterval = 30 * time.Second

// HealthPublisher publishes health messages. Typically the MQTT client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	Publisher HealthPublisher
	Topic     string
	QoS       byte
	ClientID  string

	// Interval is how often to publish. Default 30 seconds.
	Interval time.Duration

	// Counts reports the number of appliances and how many are connected.
	Counts func() (total, connected int)

	Logger Logger
}

// HealthReporter publishes a retained bridge status periodically.
type HealthReporter struct {
	cfg       HealthReporterConfig
	startTime time.Time

	done     chan struct{}
	wg       sync.WaitGroup
	started  bool
	startMu  sync.Mutex
	stopOnce sync.Once
}

// NewHealthReporter creates a reporter. Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultHealthInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	return &HealthReporter{
		cfg:       cfg,
		startTime: time.Now(),
		done:      make(chan struct{}),
	}
}

// Start publishes the current status and then one every interval until
// ctx is cancelled or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.startMu.Lock()
	defer h.startMu.Unlock()
	if h.started {
		return
	}
	h.started = true

	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends reporting and publishes a final stopping status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown
		h.publish(mqtt.StatusStopping, "bridge stopping")
	})
}

// PublishNow publishes the current status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publish(status, reason)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.cfg.Logger.Warn("failed to publish initial bridge status", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.cfg.Logger.Warn("failed to publish bridge status", "error", err)
			}
		}
	}
}

// determineStatus is degraded while appliances exist but none is connected.
func (h *HealthReporter) determineStatus() (status, reason string) {
	if h.cfg.Counts == nil {
		return mqtt.StatusOnline, ""
	}
	total, connected := h.cfg.Counts()
	if total > 0 && connected == 0 {
		return mqtt.StatusDegraded, "no appliance connected"
	}
	return mqtt.StatusOnline, ""
}

func (h *HealthReporter) publish(status, reason string) error {
	if h.cfg.Publisher == nil || !h.cfg.Publisher.IsConnected() {
		return mqtt.ErrNotConnected
	}

	msg := mqtt.StatusPayload{
		Status:        status,
		ClientID:      h.cfg.ClientID,
		Reason:        reason,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	}
	if h.cfg.Counts != nil {
		msg.Appliances, msg.Connected = h.cfg.Counts()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return h.cfg.Publisher.Publish(h.cfg.Topic, payload, h.cfg.QoS, true)
}
