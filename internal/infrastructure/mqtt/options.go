package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/homeconnect-core/internal/infrastructure/config"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 1000 // milliseconds
	defaultKeepAlive         = 60 * time.Second

	maxQoS        = 2
	tlsMinVersion = tls.VersionTLS12
)

// Bridge status values published to Topics.BridgeStatus.
const (
	StatusOnline   = "online"
	StatusDegraded = "degraded"
	StatusStopping = "stopping"
	StatusOffline  = "offline"
)

// StatusPayload is the body of the bridge status topic.
type StatusPayload struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`

	// Filled by the bridge's periodic report.
	Appliances    int   `json:"appliances,omitempty"`
	Connected     int   `json:"connected,omitempty"`
	UptimeSeconds int64 `json:"uptime_seconds,omitempty"`
}

// buildClientOptions creates paho options from config: broker URL
// (tcp:// or ssl://), client ID, credentials, auto-reconnect bounds and TLS.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	return opts
}

// configureLWT makes the broker publish a retained offline status if the
// bridge disappears without a clean disconnect.
func configureLWT(opts *pahomqtt.ClientOptions, topics Topics, clientID string) {
	opts.SetWill(topics.BridgeStatus(), string(statusPayload(StatusPayload{
		Status:   StatusOffline,
		ClientID: clientID,
		Reason:   "unexpected_disconnect",
	})), 1, true)
}

// statusPayload stamps p with the current time and encodes it.
func statusPayload(p StatusPayload) []byte {
	p.Timestamp = time.Now().UTC().Format(time.RFC3339)
	data, _ := json.Marshal(p) //nolint:errcheck // plain struct always encodes
	return data
}
