package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-telemetry/internal/actor"
	"github.com/nerrad567/gray-logic-telemetry/internal/audit"
	"github.com/nerrad567/gray-logic-telemetry/internal/bridges/sensor"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-telemetry/internal/iot"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Core is the part of iot.Client the API needs.
type Core interface {
	TrackDevice(ctx context.Context, groupID, deviceID string) (*actor.Ref[iot.DeviceCommand], error)
	ListDevices(ctx context.Context, groupID string) ([]string, error)
	RecordTemperature(ctx context.Context, groupID, deviceID string, value float64) error
	ReadTemperature(ctx context.Context, groupID, deviceID string) (iot.Temperature, error)
	RequestAllTemperatures(ctx context.Context, groupID string, timeout time.Duration) (map[string]iot.Reading, error)
	PassivateDevice(groupID, deviceID string) error
	PassivateGroup(groupID string) error
}

// HealthChecker is implemented by infrastructure clients (database, MQTT,
// InfluxDB) whose state is reported by the health endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// BridgeMetricsProvider exposes sensor bridge counters to /metrics.
type BridgeMetricsProvider interface {
	Metrics() sensor.Metrics
}

// ConnectionStatus reports whether a broker connection is up.
type ConnectionStatus interface {
	IsConnected() bool
}

// PoolStats exposes database connection pool statistics.
type PoolStats interface {
	Stats() sql.DBStats
}

// DropCounter is implemented by the buffered event exporters.
type DropCounter interface {
	Dropped() uint64
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config config.APIConfig
	WS     config.WebSocketConfig
	Query  config.QueryConfig
	Logger *logging.Logger
	Core   Core

	// Optional
	Audit       audit.Repository
	Health      map[string]HealthChecker // keyed by component name
	MQTT        ConnectionStatus
	DB          PoolStats
	Bridge      BridgeMetricsProvider
	Exporters   map[string]DropCounter // keyed by exporter name
	ExternalHub *Hub // If set, the server uses this hub instead of creating its own
	Version     string
}

// Server is the HTTP API server of the telemetry core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	queryCfg  config.QueryConfig
	logger    *logging.Logger
	core      Core
	auditRepo audit.Repository
	health    map[string]HealthChecker
	mqtt      ConnectionStatus
	db        PoolStats
	bridge    BridgeMetricsProvider
	exporters map[string]DropCounter
	version   string
	startTime time.Time

	server      *http.Server
	hub         *Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, core client) plus optional ones
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Core == nil {
		return nil, fmt.Errorf("core client is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		queryCfg:  deps.Query,
		logger:    deps.Logger,
		core:      deps.Core,
		auditRepo: deps.Audit,
		health:    deps.Health,
		mqtt:      deps.MQTT,
		db:        deps.DB,
		bridge:    deps.Bridge,
		exporters: deps.Exporters,
		version:   deps.Version,
		startTime: time.Now(),
	}

	// The hub is usually created before the server so the device manager
	// can publish into it.
	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	} else {
		s.hub = NewHub(deps.WS, deps.Logger)
	}

	return s, nil
}

// Hub returns the WebSocket hub. It implements iot.EventSink.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub (unless injected) and launches the HTTP
// listener in a background goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Parent of the hub's lifetime
//
// Returns:
//   - error: Always nil; listener errors are logged
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
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
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

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
