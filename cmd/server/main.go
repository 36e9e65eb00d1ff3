// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	_ "rn2903-service/docs"
	"rn2903-service/internal/config"
	"rn2903-service/internal/database"
	"rn2903-service/internal/discovery"
	"rn2903-service/internal/protocol"
	"rn2903-service/internal/repository"
	"rn2903-service/internal/routes"
	"rn2903-service/internal/service"
	"rn2903-service/internal/simulator"
	"rn2903-service/internal/trace"
	"rn2903-service/internal/utils"
)

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	database *database.DB
	migrator *database.Migrator

	registry   *protocol.Registry
	repo       repository.SnapshotRepository
	recorder   *trace.FileRecorder
	bus        *service.EventBus
	advertiser *discovery.Advertiser

	radioService     *service.RadioService
	discoveryService *service.DiscoveryService
	router           *routes.Router

	cancel context.CancelFunc
}

// @title RN2903 Radio Service API
// @version 1.0.0
// @description Control API for a Microchip RN2903 LoRa radio

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8084
// @BasePath /api/v1
func main() {
	configPath := pflag.StringP("config", "c", "", "Configuration file path")
	address := pflag.StringP("address", "a", "", "Radio address, overrides device.address (serial path, tcp://host:port or sim://name)")
	pflag.Parse()

	app, err := NewApplication(*configPath, *address)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication(configPath, address string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if address != "" {
		cfg.Device.Address = address
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "rn2903-service")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeTransports(); err != nil {
		return nil, fmt.Errorf("failed to initialize transports: %w", err)
	}

	if err := app.initializePersistence(); err != nil {
		return nil, fmt.Errorf("failed to initialize persistence: %w", err)
	}

	if err := app.initializeTrace(); err != nil {
		return nil, fmt.Errorf("failed to initialize wire trace: %w", err)
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.initializeServer(); err != nil {
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}

	return app, nil
}

func (app *Application) initializeTransports() error {
	app.registry = protocol.NewRegistry()
	simulator.Register(app.registry)

	app.logger.Info("Transport registry initialized",
		zap.String("address", app.config.Device.Address),
	)
	return nil
}

// initializePersistence opens the snapshot store selected by persistence.driver
func (app *Application) initializePersistence() error {
	if app.config.Persistence.Driver == "file" {
		app.repo = repository.NewFileRepository(app.config.Persistence.Path, app.logger)
		app.logger.Info("Using file snapshot store", zap.String("path", app.config.Persistence.Path))
		return nil
	}

	db, err := database.NewConnection(&app.config.Database, app.config.GetDatabaseDSN(), app.logger)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	app.database = db
	app.migrator = database.NewMigrator(db, app.logger, &app.config.Database)

	if app.config.Database.AutoMigrate {
		if err := app.migrator.Up(); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}

	app.repo = repository.NewSnapshotRepository(db, app.config.Device.Address, app.logger)
	app.logger.Info("Using postgres snapshot history")
	return nil
}

func (app *Application) initializeTrace() error {
	if !app.config.Trace.Enabled {
		return nil
	}
	recorder, err := trace.NewFileRecorder(app.config.Trace.Path)
	if err != nil {
		return err
	}
	app.recorder = recorder
	app.logger.Info("Wire trace enabled", zap.String("path", app.config.Trace.Path))
	return nil
}

func (app *Application) initializeServices() error {
	app.bus = service.NewEventBus(app.logger)

	opts := service.OptionsFromConfig(app.config)
	if app.recorder != nil {
		opts.Recorder = app.recorder
	}
	app.radioService = service.NewRadioService(app.registry, opts, app.repo, app.bus, app.logger)

	app.discoveryService = service.NewDiscoveryService(
		app.config,
		app.registry,
		app.config.Device.Address,
		app.bus,
		app.logger,
	)

	app.logger.Info("Services initialized successfully")
	return nil
}

func (app *Application) initializeServer() error {
	app.router = routes.NewRouter(
		app.config,
		app.logger,
		app.database,
		app.radioService,
		app.discoveryService,
	)

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      app.router.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized", zap.String("address", app.config.GetServerAddr()))
	return nil
}

// Start opens the radio, serves HTTP and blocks until a shutdown signal
func (app *Application) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel

	go app.bus.Start()
	go app.router.WebSocket().Run(ctx)

	// The API stays up when the radio cannot be opened so status and discovery still work.
	report, err := app.radioService.Start(ctx)
	if err != nil {
		app.logger.Error("Radio session not started", zap.Error(err))
	} else {
		app.logger.Info("Radio session started",
			zap.String("firmware", report.Firmware.Banner),
			zap.Int("pull_failures", len(report.PullFailures)),
			zap.Bool("restored", report.Restored),
			zap.Bool("saved_default", report.SavedDefault),
		)
	}

	go func() {
		app.logger.Info("Starting HTTP server", zap.String("address", app.server.Addr))
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.startAdvertiser()
	app.startBackgroundServices(ctx)

	app.waitForShutdown()
	return nil
}

func (app *Application) startAdvertiser() {
	if !app.config.Discovery.Advertise {
		return
	}
	port, err := strconv.Atoi(app.config.Server.Port)
	if err != nil {
		app.logger.Error("Cannot advertise a non-numeric port", zap.String("port", app.config.Server.Port))
		return
	}

	app.advertiser = discovery.NewAdvertiser(app.logger)
	err = app.advertiser.Start(discovery.AdvertiseInfo{
		Instance: app.config.Discovery.ServiceName,
		Port:     port,
		Address:  app.config.Device.Address,
		Firmware: app.config.Session.FirmwareName,
		Version:  app.config.App.Version,
	})
	if err != nil {
		app.logger.Error("mDNS advertisement failed", zap.Error(err))
		app.advertiser = nil
	}
}

func (app *Application) startBackgroundServices(ctx context.Context) {
	if app.migrator != nil && app.config.Database.SnapshotRetention > 0 {
		go app.startSnapshotPruning(ctx)
	}
}

// startSnapshotPruning trims the snapshot history once an hour
func (app *Application) startSnapshotPruning(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	app.logger.Info("Snapshot pruning started", zap.Int("keep", app.config.Database.SnapshotRetention))

	for {
		select {
		case <-ticker.C:
			if _, err := app.migrator.PruneSnapshots(app.config.Database.SnapshotRetention); err != nil {
				app.logger.Error("Failed to prune snapshots", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "rn2903-service")
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if app.advertiser != nil {
		app.advertiser.Stop()
	}

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	if err := app.radioService.Stop(); err != nil {
		app.logger.Error("Radio session close error", zap.Error(err))
	}

	app.cancel()
	app.bus.Stop()

	if app.recorder != nil {
		if err := app.recorder.Close(); err != nil {
			app.logger.Error("Wire trace close error", zap.Error(err))
		}
	}

	if app.database != nil {
		if err := app.database.Close(); err != nil {
			app.logger.Error("Database close error", zap.Error(err))
		}
	}

	app.logger.Info("Application shutdown completed")
	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Fprintf(os.Stderr, "Logger close error: %v\n", err)
	}
}
