package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/homeconnect-core/internal/stream"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	MQTT          *MQTTMetrics     `json:"mqtt,omitempty"`
	Appliances    ApplianceMetrics `json:"appliances"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// ApplianceMetrics aggregates appliance connectivity and event stream
// counters across the registry.
type ApplianceMetrics struct {
	Total      int                  `json:"total"`
	Connected  int                  `json:"connected"`
	ByPhase    map[stream.Phase]int `json:"by_phase"`
	Events     uint64               `json:"events"`
	Reconnects uint64               `json:"reconnects"`
	Reauths    uint64               `json:"reauths"`
	Expiries   int64                `json:"watchdog_expiries"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		Appliances: s.applianceMetrics(),
	}

	if s.mqtt != nil {
		metrics.MQTT = &MQTTMetrics{Connected: s.mqtt.IsConnected()}
	}

	writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) applianceMetrics() ApplianceMetrics {
	m := ApplianceMetrics{ByPhase: make(map[stream.Phase]int)}
	for _, st := range s.registry.Appliances() {
		m.Total++
		if st.IsConnected() {
			m.Connected++
		}
	}
	for _, st := range s.registry.Stats() {
		m.ByPhase[st.Phase]++
		m.Events += st.Events
		m.Reconnects += st.Reconnects
		m.Reauths += st.Reauths
		m.Expiries += st.WatchdogExpiries
	}
	return m
}
