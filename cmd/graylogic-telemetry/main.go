// Gray Logic Telemetry - temperature device registry
//
// This is the main entry point for the telemetry core. It tracks temperature
// sensors in groups, answers aggregate group queries with a deadline, and
// exposes the registry over HTTP, WebSocket and MQTT.
//
// Every group and device is a single-writer actor; see internal/iot.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-telemetry/internal/actor"
	"github.com/nerrad567/gray-logic-telemetry/internal/api"
	"github.com/nerrad567/gray-logic-telemetry/internal/audit"
	"github.com/nerrad567/gray-logic-telemetry/internal/bridges/sensor"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-telemetry/internal/iot"
	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
	"github.com/nerrad567/gray-logic-telemetry/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// drainTimeout bounds how long each buffered exporter may flush on shutdown.
const drainTimeout = 5 * time.Second

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
//
// Components are started so that every event sink exists before the device
// manager is spawned. Deferred cleanups therefore run in the shutdown order:
// API, sensor bridge, actor system, hub, MQTT publisher, MQTT, InfluxDB,
// audit recorder, database.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Telemetry",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := config.PathFromEnv()
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

	health := make(map[string]api.HealthChecker)
	exporters := make(map[string]api.DropCounter)
	var sinks iot.MultiSink

	// Database and audit trail (optional)
	var db *database.DB
	var auditRepo audit.Repository
	if cfg.Database.Enabled {
		db, err = database.Open(ctx, cfg.Database)
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

		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database migrations complete")
		health["database"] = db

		if cfg.Audit.Enabled {
			repo := audit.NewSQLiteRepository(db.DB)
			recorder := audit.NewRecorder(repo, cfg.Audit.BufferSize, log.Component("audit"))
			recorder.Start()
			defer func() {
				log.Info("flushing audit recorder")
				drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
				defer cancel()
				if closeErr := recorder.Close(drainCtx); closeErr != nil {
					log.Error("error closing audit recorder", "error", closeErr)
				}
			}()
			auditRepo = repo
			sinks = append(sinks, recorder)
			exporters["audit"] = recorder
			log.Info("audit recorder started", "buffer_size", cfg.Audit.BufferSize)
		}
	} else {
		log.Info("database disabled")
	}

	// InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxLog := log.Component("influxdb")
		history, openErr := influxdb.Open(cfg.InfluxDB, func(err error) {
			influxLog.Error("InfluxDB write error", "error", err)
		})
		if openErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", openErr)
		}
		defer func() {
			log.Info("flushing InfluxDB history")
			if closeErr := history.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		health["influxdb"] = history
		sinks = append(sinks, telemetry.NewInfluxSink(history))
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// MQTT (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttLog := log.Component("mqtt")
		mqttClient, err = mqtt.Connect(ctx, cfg.MQTT, mqtt.Hooks{
			Logger: mqttLog,
			OnConnect: func() {
				mqttLog.Info("MQTT session established")
			},
			OnDisconnect: func(err error) {
				mqttLog.Warn("MQTT disconnected", "error", err)
			},
		})
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		health["mqtt"] = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		if cfg.MQTT.Bridge.PublishResults {
			publisher := telemetry.NewMQTTPublisher(mqttClient, 0, log.Component("mqtt-publisher"))
			publisher.Start()
			defer func() {
				drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
				defer cancel()
				if closeErr := publisher.Close(drainCtx); closeErr != nil {
					log.Error("error closing MQTT publisher", "error", closeErr)
				}
			}()
			sinks = append(sinks, publisher)
			exporters["mqtt_publisher"] = publisher
		}
	} else {
		log.Info("MQTT disabled")
	}

	// WebSocket hub: a sink of the manager, so it outlives the actor system
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	go hub.Run(hubCtx)
	sinks = append(sinks, hub)

	// Actor system and device manager
	sys := actor.NewSystem("telemetry", log.Component("actor"))
	defer func() {
		log.Info("stopping actor system")
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
		defer cancel()
		if stopErr := sys.Shutdown(stopCtx); stopErr != nil {
			log.Error("actor system did not stop cleanly", "error", stopErr)
		}
	}()
	manager := iot.SpawnManager(sys, iot.ManagerConfig{
		DefaultQueryTimeout: cfg.Query.DefaultTimeout,
		MaxQueryTimeout:     cfg.Query.MaxTimeout,
		Events:              sinks,
	})
	core := iot.NewClient(manager)
	log.Info("device manager started",
		"default_query_timeout", cfg.Query.DefaultTimeout,
		"max_query_timeout", cfg.Query.MaxTimeout,
	)

	// Sensor bridge (optional)
	var bridgeMetrics api.BridgeMetricsProvider
	if mqttClient != nil && cfg.MQTT.Bridge.Ingest {
		bridge, bridgeErr := startSensorBridge(cfg, mqttClient, core, log)
		if bridgeErr != nil {
			return fmt.Errorf("starting sensor bridge: %w", bridgeErr)
		}
		defer func() {
			log.Info("stopping sensor bridge")
			bridge.Stop()
		}()
		bridgeMetrics = bridge
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, health); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// HTTP API
	deps := api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Query:       cfg.Query,
		Logger:      log.Component("api"),
		Core:        core,
		Audit:       auditRepo,
		Health:      health,
		Bridge:      bridgeMetrics,
		Exporters:   exporters,
		ExternalHub: hub,
		Version:     version,
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	if db != nil {
		deps.DB = db
	}
	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// startSensorBridge creates the MQTT sensor bridge and subscribes it.
func startSensorBridge(cfg *config.Config, mqttClient *mqtt.Client, core *iot.Client, log *logging.Logger) (*sensor.Bridge, error) {
	bridge, err := sensor.NewBridge(sensor.BridgeOptions{
		MQTTClient:          mqttClient,
		Core:                core,
		QoS:                 byte(cfg.MQTT.QoS), //nolint:gosec // validated to 0..2
		DefaultQueryTimeout: cfg.Query.DefaultTimeout,
		MaxQueryTimeout:     cfg.Query.MaxTimeout,
		Logger:              log.Component("sensor-bridge"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating sensor bridge: %w", err)
	}
	if err := bridge.Start(); err != nil {
		bridge.Stop()
		return nil, err
	}
	return bridge, nil
}

// shutdownTimeout returns the actor shutdown budget, falling back to 10s.
func shutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.Actors.ShutdownTimeout > 0 {
		return cfg.Actors.ShutdownTimeout
	}
	return 10 * time.Second
}

// healthCheck verifies every enabled infrastructure connection.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - checkers: Enabled components keyed by name
//
// Returns:
//   - error: Every failing component, or nil if all healthy
func healthCheck(ctx context.Context, checkers map[string]api.HealthChecker) error {
	var errs []error
	for name, checker := range checkers {
		if err := checker.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
