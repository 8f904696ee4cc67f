// Command meshcore runs the coordination plane's reference node: the
// device and product registries, the admin HTTP/WebSocket API, the
// SQLite audit trail, and (if configured) InfluxDB dispatch telemetry.
//
// It does not speak to any physical device protocol itself — that is
// the job of a gateway process such as cmd/gatewaydemo, which owns a
// serverID and subscribes to dispatch.Handler on this node's behalf.
// meshcore only ever dispatches through the public Message Sender API
// exposed over its admin surface (POST /api/v1/devices/{id}/invoke).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/gridwire/meshcore/migrations"

	"github.com/gridwire/meshcore/internal/api"
	"github.com/gridwire/meshcore/internal/audit"
	"github.com/gridwire/meshcore/internal/coordination"
	"github.com/gridwire/meshcore/internal/device"
	"github.com/gridwire/meshcore/internal/dispatch"
	"github.com/gridwire/meshcore/internal/infrastructure/config"
	"github.com/gridwire/meshcore/internal/infrastructure/database"
	"github.com/gridwire/meshcore/internal/infrastructure/logging"
	"github.com/gridwire/meshcore/internal/metadata"
	"github.com/gridwire/meshcore/internal/product"
	"github.com/gridwire/meshcore/internal/telemetry"
)

// Version information, set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application's actual logic, separated from main so it can
// be exercised from a test with a cancellable context.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting meshcore", "version", version, "commit", commit, "build_date", date)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised", "level", cfg.Logging.Level, "format", cfg.Logging.Format)

	store, err := coordination.Connect(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connecting to coordination store: %w", err)
	}
	store.SetLogger(log)
	defer func() {
		log.Info("closing coordination store")
		if closeErr := store.Close(); closeErr != nil {
			log.Error("error closing coordination store", "error", closeErr)
		}
	}()
	log.Info("coordination store connected", "addr", cfg.Redis.Addr)

	var auditRepo audit.Repository
	var db *database.DB
	if cfg.Security.Audit.Enabled {
		db, err = database.Open(database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening audit database: %w", err)
		}
		defer func() {
			log.Info("closing audit database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing audit database", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("audit database migrated", "path", cfg.Database.Path)

		auditRepo = audit.NewSQLiteRepository(db.DB)
	} else {
		log.Info("audit trail disabled")
	}

	deviceRepo := device.NewCoordinationRepository(store)
	deviceRegistry := device.NewRegistry(deviceRepo, store)
	deviceRegistry.SetLogger(log)
	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", deviceRegistry.Count())

	protocols := metadata.NewStaticProtocolSupports()
	productRegistry := product.NewRegistry(store, protocols)
	productRegistry.SetLogger(log)

	var telemetryClient *telemetry.Client
	if cfg.InfluxDB.Enabled {
		telemetryClient, err = telemetry.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to telemetry backend: %w", err)
		}
		defer func() {
			log.Info("closing telemetry client")
			if closeErr := telemetryClient.Close(); closeErr != nil {
				log.Error("error closing telemetry client", "error", closeErr)
			}
		}()
		telemetryClient.SetOnError(func(writeErr error) {
			log.Error("telemetry write error", "error", writeErr)
		})
		log.Info("telemetry connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("telemetry disabled")
	}

	dispatchConfig := dispatch.Config{
		MaxAwait:          cfg.Dispatch.MaxAwaitDuration(),
		SemaphoreGrace:    cfg.Dispatch.SemaphoreExpiry() - cfg.Dispatch.MaxAwaitDuration(),
		AliveCheckTimeout: cfg.Dispatch.AliveCheckTimeout(),
	}

	apiDeps := api.Deps{
		Config:          cfg.API,
		CORS:            cfg.API.CORS,
		JWT:             cfg.Security.JWT,
		Logger:          log,
		DeviceRegistry:  deviceRegistry,
		ProductRegistry: productRegistry,
		DispatchConfig:  dispatchConfig,
		AuditRepo:       auditRepo,
		Version:         version,
	}
	if telemetryClient != nil {
		apiDeps.Recorder = telemetryClient
	}

	server, err := api.New(apiDeps)
	if err != nil {
		return fmt.Errorf("building admin api: %w", err)
	}

	log.Info("admin api ready", "host", cfg.API.Host, "port", cfg.API.Port)
	log.Info("initialisation complete, serving until shutdown signal")

	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("admin api: %w", startErr)
	}

	log.Info("meshcore stopped")
	return nil
}

// getConfigPath returns the configuration file path, honouring
// MESHCORE_CONFIG if set.
func getConfigPath() string {
	if path := os.Getenv("MESHCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
