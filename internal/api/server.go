package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Evildoersudo/back-end/internal/auth"
	"github.com/Evildoersudo/back-end/internal/command"
	"github.com/Evildoersudo/back-end/internal/device"
	"github.com/Evildoersudo/back-end/internal/infrastructure/config"
	"github.com/Evildoersudo/back-end/internal/infrastructure/database"
	"github.com/Evildoersudo/back-end/internal/infrastructure/logging"
	"github.com/Evildoersudo/back-end/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// CommandBus is the slice of the device bridge the API needs: publishing
// commands, reporting bus health, and emitting synthetic events when a
// publish fails. *bridge.Bridge satisfies it.
type CommandBus interface {
	Enabled() bool
	Connected() bool
	PublishCommand(deviceID string, payload interface{}) error
	Reason(deviceID string) string
	Emit(event interface{})
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Security    config.SecurityConfig
	Logger      *logging.Logger
	DB          *database.DB
	Tracker     *device.Tracker
	Devices     device.Repository
	Statuses    device.StatusRepository
	Telemetry   *telemetry.Aggregator
	Samples     telemetry.Repository
	Ledger      *command.Ledger
	Bus         CommandBus
	Auth        *auth.Service
	ExternalHub *Hub // If set, the server uses this hub instead of creating its own
	Version     string
}

// Server is the HTTP API server for the dorm power backend.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	db          *database.DB
	tracker     *device.Tracker
	devices     device.Repository
	statuses    device.StatusRepository
	telemetry   *telemetry.Aggregator
	samples     telemetry.Repository
	ledger      *command.Ledger
	bus         CommandBus
	auth        *auth.Service
	version     string
	server      *http.Server
	hub         *Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels background goroutines on Close()
	now         func() time.Time
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("database is required")
	}
	if deps.Tracker == nil {
		return nil, fmt.Errorf("device tracker is required")
	}
	if deps.Devices == nil || deps.Statuses == nil {
		return nil, fmt.Errorf("device repositories are required")
	}
	if deps.Telemetry == nil {
		return nil, fmt.Errorf("telemetry aggregator is required")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("command ledger is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("auth service is required")
	}
	// Bus is optional; command submission fails cleanly when it is absent.

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		db:        deps.DB,
		tracker:   deps.Tracker,
		devices:   deps.Devices,
		statuses:  deps.Statuses,
		telemetry: deps.Telemetry,
		samples:   deps.Samples,
		ledger:    deps.Ledger,
		bus:       deps.Bus,
		auth:      deps.Auth,
		version:   deps.Version,
		now:       time.Now,
	}

	// Use an externally-provided hub if available (needed when the bridge
	// fan-out is wired to the hub before the server is created).
	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	}

	return s, nil
}

// SetClock overrides the time source. Intended for tests.
func (s *Server) SetClock(now func() time.Time) {
	s.now = now
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, and launches the HTTP
// listener in a background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	// Create WebSocket hub (unless one was injected externally)
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
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

// handleHealth reports process liveness together with bus connectivity so
// the dashboard can surface a degraded-mode banner.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	busEnabled := false
	busConnected := false
	if s.bus != nil {
		busEnabled = s.bus.Enabled()
		busConnected = s.bus.Connected()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":             true,
		"version":        s.version,
		"mqtt_enabled":   busEnabled,
		"mqtt_connected": busConnected,
		"database_url":   s.db.Path(),
	})
}
