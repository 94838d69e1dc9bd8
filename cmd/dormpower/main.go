// Dorm Power Backend
//
// This is the main entry point for the dorm power-strip backend. It
// bridges MQTT-connected power strips to an HTTP/WebSocket API:
//   - Device registry with connectivity tracking and offline causes
//   - Command lifecycle with ack tracking and timeout sweeps
//   - Telemetry aggregation (SQLite system of record, optional
//     InfluxDB mirror for long retention)
//   - Live event push over WebSocket
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/Evildoersudo/back-end/migrations"

	"github.com/Evildoersudo/back-end/internal/api"
	"github.com/Evildoersudo/back-end/internal/auth"
	"github.com/Evildoersudo/back-end/internal/bridge"
	"github.com/Evildoersudo/back-end/internal/command"
	"github.com/Evildoersudo/back-end/internal/device"
	"github.com/Evildoersudo/back-end/internal/infrastructure/config"
	"github.com/Evildoersudo/back-end/internal/infrastructure/database"
	"github.com/Evildoersudo/back-end/internal/infrastructure/influxdb"
	"github.com/Evildoersudo/back-end/internal/infrastructure/logging"
	"github.com/Evildoersudo/back-end/internal/infrastructure/mqtt"
	"github.com/Evildoersudo/back-end/internal/telemetry"
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

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting dorm power backend",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories and domain services
	devices := device.NewSQLiteRepository(db)
	statuses := device.NewStatusSQLiteRepository(db)
	tracker := device.NewTracker(devices, statuses, cfg.OnlineTimeout())
	samples := telemetry.NewSQLiteRepository(db)
	aggregator := telemetry.NewAggregator(samples)
	ledger := command.NewLedger(db, cfg.CmdTimeout())
	reasons := device.NewReasonStore()

	// Seed the default strips so a fresh install has something to show
	if seedErr := device.EnsureSeedData(ctx, devices, statuses, time.Now()); seedErr != nil {
		return fmt.Errorf("seeding devices: %w", seedErr)
	}

	// Auth service and default admin account
	users := auth.NewSQLiteUserRepository(db)
	authSvc := auth.NewService(users, cfg.Security.Admin)
	if adminErr := authSvc.EnsureDefaultAdmin(ctx); adminErr != nil {
		return fmt.Errorf("ensuring default admin: %w", adminErr)
	}

	// Sweep commands that expired while the backend was down
	if swept, sweepErr := ledger.SweepTimeouts(ctx); sweepErr != nil {
		log.Warn("initial timeout sweep failed", "error", sweepErr)
	} else if swept > 0 {
		log.Info("expired stale commands on startup", "count", swept)
	}

	// Connect to MQTT broker (optional)
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
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional telemetry mirror)
	var influxClient *influxdb.Client
	var mirror bridge.Mirror
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		mirror = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	// WebSocket hub and event fan-out
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	fanout := bridge.NewFanout(cfg.Bridge.EventQueueSize, hub, log)
	defer func() {
		log.Info("closing event fan-out", "dropped", fanout.Dropped())
		fanout.Close()
	}()

	// MQTT bridge
	br := bridge.New(bridge.Options{
		Bus:           busClient(mqttClient),
		Enabled:       cfg.MQTT.Enabled,
		QoS:           byte(cfg.MQTT.QoS),
		Topics:        mqtt.Topics{Prefix: cfg.MQTT.TopicPrefix},
		DB:            db,
		OnlineTimeout: cfg.OnlineTimeout(),
		Reasons:       reasons,
		Fanout:        fanout,
		Mirror:        mirror,
		Logger:        log,
	})
	if startErr := br.Start(); startErr != nil {
		return fmt.Errorf("starting bridge: %w", startErr)
	}

	// HTTP API server
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		DB:          db,
		Tracker:     tracker,
		Devices:     devices,
		Statuses:    statuses,
		Telemetry:   aggregator,
		Samples:     samples,
		Ledger:      ledger,
		Bus:         br,
		Auth:        authSvc,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()
	log.Info("API server started",
		"addr", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Event fan-out
	// 3. InfluxDB (if enabled)
	// 4. MQTT (if enabled)
	// 5. Database

	log.Info("dorm power backend stopped")
	return nil
}

// busClient converts the optional MQTT client to the bridge interface
// without a typed-nil slipping into the interface value.
func busClient(c *mqtt.Client) bridge.BusClient {
	if c == nil {
		return nil
	}
	return c
}

// getConfigPath returns the configuration file path.
// Uses DORMPOWER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DORMPOWER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when their subsystem is disabled.
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
