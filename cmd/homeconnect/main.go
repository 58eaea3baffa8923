// homeconnect-core keeps a local, live mirror of Home Connect appliances.
//
// It authenticates against the Home Connect cloud API, follows one event
// stream per appliance and serves the synchronized state over a local
// HTTP/WebSocket API and an MQTT bridge, optionally recording property
// history in SQLite and InfluxDB.
//
// Usage:
//
//	homeconnect                       run the service
//	homeconnect token [flags]         mint a bearer token for the local API
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/oauth2"

	"github.com/nerrad567/homeconnect-core/internal/api"
	"github.com/nerrad567/homeconnect-core/internal/audit"
	"github.com/nerrad567/homeconnect-core/internal/auth"
	"github.com/nerrad567/homeconnect-core/internal/bridges/mqttbridge"
	"github.com/nerrad567/homeconnect-core/internal/history"
	"github.com/nerrad567/homeconnect-core/internal/homeconnect"
	"github.com/nerrad567/homeconnect-core/internal/infrastructure/config"
	"github.com/nerrad567/homeconnect-core/internal/infrastructure/database"
	"github.com/nerrad567/homeconnect-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/homeconnect-core/internal/infrastructure/logging"
	"github.com/nerrad567/homeconnect-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/homeconnect-core/internal/registry"
	"github.com/nerrad567/homeconnect-core/internal/stream"
	"github.com/nerrad567/homeconnect-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// retentionInterval is how often expired history rows are pruned.
const retentionInterval = time.Hour

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	if len(os.Args) > 1 && os.Args[1] == "token" {
		err = runToken(os.Args[2:], os.Stdout)
	} else {
		err = run(ctx)
	}
	if err != nil {
		cancel()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // Linear start-up sequence with optional components
	log := logging.Default()
	log.Info("starting homeconnect-core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Database
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	applied, err := db.Migrate(ctx, migrations.FS)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete", "applied", applied)

	// Retention loops stop before the database closes.
	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()

	// Every command from the API or the MQTT bridge is audited.
	auditRepo := audit.NewSQLiteRepository(db.DB)
	if cfg.History.RetentionDays > 0 {
		go runAuditRetention(bgCtx, auditRepo, cfg.GetHistoryRetention(), log.Component("audit"))
	}

	// Home Connect account
	tokenRepo := auth.NewTokenRepository(db.DB)
	initial, err := initialToken(ctx, cfg.HomeConnect, tokenRepo)
	if err != nil {
		return err
	}
	store := auth.NewStore(auth.ClientConfig{
		ClientID:     cfg.HomeConnect.ClientID,
		ClientSecret: cfg.HomeConnect.ClientSecret,
		RedirectURL:  cfg.HomeConnect.RedirectURL,
		Scopes:       strings.Fields(cfg.HomeConnect.Scope),
		BaseURL:      cfg.BaseURL(),
	}, initial, auth.WithLogger(log.Component("auth")))
	store.OnTokenUpdated(auth.PersistOnUpdate(tokenRepo, cfg.HomeConnect.ClientID, log.Component("auth")))

	client := homeconnect.New(cfg.BaseURL(), store,
		homeconnect.WithTimeout(cfg.GetRequestTimeout()),
		homeconnect.WithLogger(log.Component("homeconnect")),
	)
	log.Info("home connect client ready", "base_url", client.BaseURL())

	// Appliance registry
	reg := registry.New(client,
		registry.WithLogger(log.Component("registry")),
		registry.WithStreamConfig(streamConfig(cfg)),
	)
	if startErr := reg.Start(ctx); startErr != nil {
		return fmt.Errorf("starting appliance registry: %w", startErr)
	}
	defer func() {
		log.Info("stopping appliance registry")
		reg.Stop()
	}()
	log.Info("appliance registry started", "appliances", len(reg.Appliances()))

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Property history (optional)
	var historyRepo *history.SQLiteRepository
	if cfg.History.Enabled || influxClient != nil {
		var sinks []history.RecorderOption
		if cfg.History.Enabled {
			historyRepo = history.NewSQLiteRepository(db.DB)
			sinks = append(sinks, history.WithSink(historyRepo))
		}
		if influxClient != nil {
			sinks = append(sinks, history.WithSink(history.NewInfluxSink(influxClient)))
		}
		recorder := history.NewRecorder(reg, append(sinks, history.WithLogger(log.Component("history")))...)
		recorder.Start(ctx)
		defer func() {
			log.Info("stopping history recorder")
			recorder.Stop()
		}()

		if historyRepo != nil && cfg.History.RetentionDays > 0 {
			go historyRepo.RunRetention(bgCtx, cfg.GetHistoryRetention(), retentionInterval, log.Component("history"))
		}
		log.Info("history recorder started",
			"sqlite", historyRepo != nil,
			"influxdb", influxClient != nil,
			"retention_days", cfg.History.RetentionDays,
		)
	}

	// MQTT bridge (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		bridge, bridgeErr := mqttbridge.New(mqttbridge.Options{
			Client:   mqttClient,
			Registry: reg,
			Topics:   mqttClient.Topics(),
			QoS:      mqttClient.QoS(),
			ClientID: cfg.MQTT.Broker.ClientID,
			Logger:   log.Component("mqttbridge"),
			Audit:    auditRepo,
		})
		if bridgeErr != nil {
			return fmt.Errorf("creating MQTT bridge: %w", bridgeErr)
		}
		if startErr := bridge.Start(ctx); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping MQTT bridge")
			bridge.Stop()
		}()
		log.Info("MQTT bridge started", "prefix", mqttClient.Topics().Prefix)
	} else {
		log.Info("MQTT bridge disabled")
	}

	// Local API (optional)
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log.Component("api"),
			Registry: reg,
			Audit:    auditRepo,
			Version:  version,
		}
		// Assigned only when present: a nil pointer in an interface is not nil.
		if historyRepo != nil {
			deps.History = historyRepo
		}
		if mqttClient != nil {
			deps.MQTT = mqttClient
		}

		server, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API, MQTT bridge, MQTT,
	// history recorder, InfluxDB, registry, database.
	log.Info("homeconnect-core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HOMECONNECT_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HOMECONNECT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// initialToken picks the token the store starts from. A refresh token in
// the configuration wins over the persisted one so that an account can be
// re-linked without touching the database.
func initialToken(ctx context.Context, cfg config.HomeConnectConfig, repo auth.TokenRepository) (*oauth2.Token, error) {
	if cfg.RefreshToken != "" {
		return &oauth2.Token{RefreshToken: cfg.RefreshToken}, nil
	}

	tok, err := repo.Load(ctx, cfg.ClientID)
	if errors.Is(err, auth.ErrTokenNotFound) {
		return nil, fmt.Errorf("%w: set homeconnect.refresh_token or HOMECONNECT_REFRESH_TOKEN", auth.ErrNoRefreshToken)
	}
	if err != nil {
		return nil, fmt.Errorf("loading persisted token: %w", err)
	}
	return tok, nil
}

// streamConfig converts the second-based YAML settings.
func streamConfig(cfg *config.Config) stream.Config {
	return stream.Config{
		WatchdogTimeout:     cfg.GetWatchdogTimeout(),
		ReadTimeout:         cfg.GetStreamReadTimeout(),
		Reconnect:           cfg.Stream.Reconnect.Enabled,
		InitialDelay:        cfg.GetReconnectInitialDelay(),
		MaxDelay:            cfg.GetReconnectMaxDelay(),
		MaxAttempts:         cfg.Stream.Reconnect.MaxAttempts,
		ReconnectOnWatchdog: cfg.Stream.ReconnectOnWatchdog,
	}
}

// runAuditRetention prunes the command audit hourly until ctx is done.
func runAuditRetention(ctx context.Context, repo *audit.SQLiteRepository, retention time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()
	for {
		n, err := repo.Prune(ctx, retention)
		switch {
		case err != nil && ctx.Err() == nil:
			log.Warn("pruning command audit failed", "error", err)
		case n > 0:
			log.Info("pruned command audit", "rows", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// runToken mints a bearer token for the local API, signed with the
// configured secret, and prints it to out.
func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(out)
	subject := fs.String("subject", "homeconnect-cli", "token subject")
	scope := fs.String("scope", string(auth.ScopeRead), "comma-separated scopes: read, control")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var scopes []auth.Scope
	for _, s := range strings.Split(*scope, ",") {
		switch sc := auth.Scope(strings.TrimSpace(s)); sc {
		case auth.ScopeRead, auth.ScopeControl:
			scopes = append(scopes, sc)
		default:
			return fmt.Errorf("unknown scope %q", s)
		}
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Security.JWT.Secret == "" {
		return errors.New("security.jwt.secret is not configured")
	}

	tok, err := auth.GenerateAccessToken(*subject, scopes, cfg.Security.JWT.Secret, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, tok)
	return nil
}
