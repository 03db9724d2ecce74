package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hamzaKhattat/calllog-production-system/internal/api"
	"github.com/hamzaKhattat/calllog-production-system/internal/config"
	"github.com/hamzaKhattat/calllog-production-system/internal/db"
	"github.com/hamzaKhattat/calllog-production-system/internal/engine"
	"github.com/hamzaKhattat/calllog-production-system/internal/health"
	"github.com/hamzaKhattat/calllog-production-system/internal/matcher"
	"github.com/hamzaKhattat/calllog-production-system/internal/metrics"
	"github.com/hamzaKhattat/calllog-production-system/internal/models"
	"github.com/hamzaKhattat/calllog-production-system/internal/monitor"
	"github.com/hamzaKhattat/calllog-production-system/internal/providers"
	"github.com/hamzaKhattat/calllog-production-system/internal/storage"
	"github.com/hamzaKhattat/calllog-production-system/pkg/logger"
)

var (
	configFile string
	initDB     bool
	serve      bool
	verbose    bool

	// Global services
	cfg         *config.Config
	database    *db.DB
	cache       *db.Cache
	callMonitor *monitor.Monitor
	contacts    *matcher.ContactMatcher
	activities  *matcher.ActivityMatcher
	settings    *storage.Store
	ctrl        *engine.Controller
	apiServer   *api.Server
	healthSvc   *health.HealthService
	metricsSvc  *metrics.PrometheusMetrics
)

func main() {
	flag.StringVar(&configFile, "config", "", "Configuration file path")
	flag.BoolVar(&initDB, "init-db", false, "Initialize database schema")
	flag.BoolVar(&serve, "serve", false, "Run the call logging service")
	flag.BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	flag.Parse()

	// Flags mean server mode; no flags means CLI mode.
	if flag.NFlag() > 0 {
		runServerMode()
		return
	}

	runCLI()
}

func runServerMode() {
	ctx := context.Background()

	var err error
	cfg, err = config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logConfig := logger.Config{
		Level:  cfg.Monitoring.Logging.Level,
		Format: cfg.Monitoring.Logging.Format,
		Output: cfg.Monitoring.Logging.Output,
		File: logger.FileConfig{
			Enabled:    cfg.Monitoring.Logging.File.Enabled,
			Path:       cfg.Monitoring.Logging.File.Path,
			MaxSize:    cfg.Monitoring.Logging.File.MaxSize,
			MaxBackups: cfg.Monitoring.Logging.File.MaxBackups,
			MaxAge:     cfg.Monitoring.Logging.File.MaxAge,
			Compress:   cfg.Monitoring.Logging.File.Compress,
		},
	}
	if verbose {
		logConfig.Level = "debug"
	}
	if err := logger.Init(logConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if err := initializeServices(ctx); err != nil {
		logger.Fatal("Failed to initialize services: ", err)
	}

	if initDB {
		logger.Info("Initializing database schema")
		if err := db.RunMigrations(database.DB); err != nil {
			logger.Fatal("Failed to run migrations: ", err)
		}
		logger.Info("Database initialization completed")
		return
	}

	if serve {
		runService(ctx)
		return
	}

	fmt.Println("Usage:")
	fmt.Println("  calllogger [command] [flags]")
	fmt.Println("  calllogger -serve            # Run the call logging service")
	fmt.Println("  calllogger -init-db          # Initialize database")
	fmt.Println("")
	fmt.Println("Run 'calllogger --help' for more information")
}

func initializeServices(ctx context.Context) error {
	dbConfig := db.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		Username:        cfg.Database.Username,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		RetryAttempts:   cfg.Database.RetryAttempts,
		RetryDelay:      cfg.Database.RetryDelay,
	}
	if err := db.Initialize(dbConfig); err != nil {
		return err
	}
	database = db.GetDB()

	cacheConfig := db.CacheConfig{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
	}
	if err := db.InitializeCache(cacheConfig, "calllogger"); err != nil {
		logger.WithError(err).Warn("Failed to initialize Redis cache, settings will not persist")
	}
	cache = db.GetCache()

	metricsSvc = metrics.NewPrometheusMetrics()

	callMonitor = monitor.New()
	contacts = matcher.NewContactMatcher(database, cache)
	activities = matcher.NewActivityMatcher(database)
	settings = storage.NewStore(cache)

	// Seed the engine's settings key before the controller registers its
	// zero defaults; stored values still win once the store starts.
	settings.Register(cfg.Engine.Name+"Data", models.LoggerSettings{
		AutoLog:      cfg.Engine.AutoLog,
		LogOnRinging: cfg.Engine.LogOnRinging,
	})

	var err error
	ctrl, err = engine.NewController(engine.Config{
		Name:       cfg.Engine.Name,
		Source:     callMonitor,
		Contacts:   contacts,
		Activities: activities,
		Store:      settings,
		Metrics:    metricsSvc,
	})
	if err != nil {
		return err
	}

	if cfg.Providers.Database.Enabled {
		if err := ctrl.AddProvider(providers.NewDatabaseProvider(database)); err != nil {
			return err
		}
	}
	for _, hook := range cfg.Providers.Webhooks {
		p := providers.NewWebhookProvider(providers.WebhookConfig{
			Name:         hook.Name,
			URL:          hook.URL,
			AllowAutoLog: hook.AllowAutoLog,
			Timeout:      hook.Timeout,
		})
		if err := ctrl.AddProvider(p); err != nil {
			return err
		}
	}

	return nil
}

func runService(ctx context.Context) {
	logger.Info("Starting call logging service")

	// Every collaborator event funnels into one state-change evaluation.
	onChange := func() {
		if err := ctrl.OnStateChange(context.Background()); err != nil {
			logger.WithError(err).Warn("Processing pass finished with errors")
		}
	}
	callMonitor.Subscribe(onChange)
	settings.Subscribe(onChange)

	if err := settings.Start(ctx); err != nil {
		logger.Fatal("Failed to start settings store: ", err)
	}
	contacts.SetReady(true)
	activities.SetReady(true)
	onChange()

	if cfg.Monitoring.Health.Enabled {
		healthSvc = health.NewHealthService(cfg.Monitoring.Health.Port)

		healthSvc.RegisterLivenessCheck("database", health.CheckFunc(func(ctx context.Context) error {
			return database.PingContext(ctx)
		}))
		healthSvc.RegisterReadinessCheck("database", health.CheckFunc(func(ctx context.Context) error {
			if !database.IsHealthy() {
				return fmt.Errorf("database not healthy")
			}
			return database.PingContext(ctx)
		}))
		if cache.Available() {
			healthSvc.RegisterReadinessCheck("redis", health.CheckFunc(func(ctx context.Context) error {
				return cache.Ping(ctx)
			}))
		}
		healthSvc.RegisterReadinessCheck("engine", health.CheckFunc(func(ctx context.Context) error {
			if !ctrl.Ready() {
				return fmt.Errorf("engine is %s", ctrl.State())
			}
			return nil
		}))

		go func() {
			if err := healthSvc.Start(); err != nil {
				logger.WithError(err).Error("Health service stopped")
			}
		}()
	}

	if cfg.Monitoring.Metrics.Enabled {
		go func() {
			if err := metricsSvc.ServeHTTP(cfg.Monitoring.Metrics.Port); err != nil {
				logger.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	if cfg.API.Enabled {
		apiServer = api.NewServer(api.Config{
			Port:         cfg.API.Port,
			ReadTimeout:  cfg.API.ReadTimeout,
			WriteTimeout: cfg.API.WriteTimeout,
			Monitor:      callMonitor,
			Engine:       ctrl,
			Contacts:     contacts,
			Activities:   activities,
			Metrics:      metricsSvc,
		})
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.WithError(err).Error("API server stopped")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down")
	if apiServer != nil {
		if err := apiServer.Stop(ctx); err != nil {
			logger.WithError(err).Error("Error stopping API server")
		}
	}
	if healthSvc != nil {
		if err := healthSvc.Stop(); err != nil {
			logger.WithError(err).Error("Error stopping health service")
		}
	}
	logger.Info("Shutdown complete")
}

func runCLI() {
	rootCmd := &cobra.Command{
		Use:   "calllogger",
		Short: "Call reconciliation and auto-log engine",
		Long:  "Reconciles raw telephony events into logical calls and logs them to registered destinations",
	}

	rootCmd.PersistentFlags().String("api", "http://localhost:8080", "Base URL of a running calllogger service")

	rootCmd.AddCommand(
		createSettingsCommands(),
		createProvidersCommand(),
		createCallsCommand(),
		createLogCommand(),
		createContactCommands(),
		createSimulateCommand(),
		createVersionCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
