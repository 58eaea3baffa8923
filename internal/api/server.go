package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/homeconnect-core/internal/appliance"
	"github.com/nerrad567/homeconnect-core/internal/audit"
	"github.com/nerrad567/homeconnect-core/internal/history"
	"github.com/nerrad567/homeconnect-core/internal/homeconnect"
	"github.com/nerrad567/homeconnect-core/internal/infrastructure/config"
	"github.com/nerrad567/homeconnect-core/internal/infrastructure/logging"
	"github.com/nerrad567/homeconnect-core/internal/registry"
	"github.com/nerrad567/homeconnect-core/internal/stream"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Registry is the appliance surface the API serves. *registry.Registry
// implements it.
type Registry interface {
	Subscribe(haID string, cb registry.Callback) (unsubscribe func())
	Appliances() []*appliance.State
	Snapshot(haID string) (appliance.Snapshot, error)
	GetProperty(haID, key string) (appliance.Record, error)
	ProgramRunning(haID string) (registry.ProgramActivity, error)
	Stats() map[string]stream.Stats

	FetchStatus(ctx context.Context, haID, key string) (appliance.Record, error)
	FetchSetting(ctx context.Context, haID, key string) (appliance.Record, error)
	Programs(ctx context.Context, haID string, available bool) ([]homeconnect.Program, error)
	AvailableProgram(ctx context.Context, haID, key string) (homeconnect.Program, error)
	ActiveProgram(ctx context.Context, haID string) (homeconnect.Program, error)
	Commands(ctx context.Context, haID string) ([]homeconnect.Command, error)

	SetProperty(ctx context.Context, haID, key string, value any, unit string) error
	SelectProgram(ctx context.Context, haID, key string, options []appliance.Record) error
	StartProgram(ctx context.Context, haID, key string, options []appliance.Record) error
	StopActiveProgram(ctx context.Context, haID string) error
	ExecuteCommand(ctx context.Context, haID, key string) error
	RunProgram(ctx context.Context, haID string) error
	PauseProgram(ctx context.Context, haID string) error
	SetPower(ctx context.Context, haID string, on bool) error
}

// HistoryReader serves property history queries. *history.SQLiteRepository
// implements it.
type HistoryReader interface {
	List(ctx context.Context, haID, key string, limit int) ([]history.Entry, error)
}

// AuditLog records and lists appliance commands. *audit.SQLiteRepository
// implements it.
type AuditLog interface {
	Create(ctx context.Context, e *audit.Entry) error
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// Connectivity reports whether an optional dependency is reachable.
// *mqtt.Client and *influxdb.Client implement it.
type Connectivity interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Registry Registry
	History  HistoryReader // optional: history endpoint returns 503 without it
	Audit    AuditLog      // optional: commands are not audited without it
	MQTT     Connectivity  // optional: reported by /metrics
	Version  string
}

// Server is the local HTTP API.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	registry  Registry
	history   HistoryReader
	audit     AuditLog
	mqtt      Connectivity
	version   string
	startTime time.Time

	server      *http.Server
	addr        net.Addr
	hub         *Hub
	tickets     *ticketStore
	unsubscribe func()
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, registry); history, audit and MQTT are optional
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("appliance registry is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		registry:  deps.Registry,
		history:   deps.History,
		audit:     deps.Audit,
		mqtt:      deps.MQTT,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.WS, deps.Logger),
		tickets:   newTicketStore(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, relays registry notifications to WebSocket
// clients and launches the HTTP listener in a background goroutine. The
// listener is bound before Start returns, so a port conflict is reported
// here.
//
// Parameters:
//   - ctx: Parent context for the hub and ticket cleanup goroutines
//
// Returns:
//   - error: If the listener cannot be bound
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding API listener: %w", err)
	}

	s.addr = ln.Addr()

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.cleanTicketsLoop(srvCtx)
	s.unsubscribe = s.registry.Subscribe("", s.broadcastChange)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var serveErr error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			serveErr = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			serveErr = s.server.Serve(ln)
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", serveErr)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

// broadcastChange runs on the notifying consumer goroutine. Hub sends never
// block.
func (s *Server) broadcastChange(haID string) {
	if s.hub.ClientCount() == 0 {
		return
	}
	snap, err := s.registry.Snapshot(haID)
	if err != nil {
		return
	}
	s.hub.Broadcast(WSTypeApplianceChanged, haID, snap)
}
