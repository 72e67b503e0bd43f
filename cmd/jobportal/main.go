package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gartstein/jobportal/internal/jobportal/auth"
	"github.com/gartstein/jobportal/internal/jobportal/config"
	"github.com/gartstein/jobportal/internal/jobportal/controller"
	"github.com/gartstein/jobportal/internal/jobportal/db"
	"github.com/gartstein/jobportal/internal/jobportal/events"
	"github.com/gartstein/jobportal/internal/jobportal/handlers"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const healthInterval = 15 * time.Second

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "jobportal",
		Short:         "Job portal API: job snapshots, lifecycle and statistics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the YAML config file")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the gRPC health endpoint",
			RunE:  func(_ *cobra.Command, _ []string) error { return withApp(runServe) },
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema and exit",
			RunE: func(_ *cobra.Command, _ []string) error {
				return withApp(func(rt *app) error {
					rt.logger.Info("Schema is up to date")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "seed-keys",
			Short: "Create or reset the fixed API keys from the config",
			RunE: func(_ *cobra.Command, _ []string) error {
				return withApp(func(rt *app) error {
					return rt.service.SeedAPIKeys(context.Background(), fixedKeys(rt.cfg))
				})
			},
		},
		&cobra.Command{
			Use:   "consume",
			Short: "Ingest scraper observations from the Kafka ingest topic",
			RunE:  func(_ *cobra.Command, _ []string) error { return withApp(runConsume) },
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles the dependencies every command shares.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	repo     *db.Repository
	producer events.EventProducer
	service  *controller.JobService
}

func withApp(fn func(rt *app) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	repo, err := connectDatabase(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize database", zap.Error(err))
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("Failed to close database", zap.Error(err))
		}
	}()

	producer, err := initProducer(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize Kafka producer", zap.Error(err))
		return err
	}
	defer producer.Close()

	return fn(&app{
		cfg:      cfg,
		logger:   logger,
		repo:     repo,
		producer: producer,
		service:  controller.NewJobService(repo, producer, logger),
	})
}

func runServe(rt *app) error {
	ctx := context.Background()
	if err := rt.service.SeedAPIKeys(ctx, fixedKeys(rt.cfg)); err != nil {
		rt.logger.Error("Failed to seed API keys", zap.Error(err))
		return err
	}

	handler := handlers.NewRouter(
		handlers.NewJobHandler(rt.service, rt.logger),
		auth.NewMiddleware(rt.service, rt.logger),
		rt.cfg.CORSOrigins,
		rt.logger,
	)
	server := handlers.NewServer(rt.cfg.GRPCAddr(), rt.cfg.HTTPAddr(), handler, rt.logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	go server.MonitorHealth(monitorCtx, rt.repo.Ping, healthInterval)

	return waitForShutdown(server, errCh, rt.logger)
}

func runConsume(rt *app) error {
	if !rt.cfg.KafkaEnabled() {
		return fmt.Errorf("KAFKA_BROKERS must be set to consume observations")
	}

	consumer := events.NewConsumer(rt.cfg.KafkaBrokers, rt.cfg.ConsumerGroup, rt.cfg.IngestTopic, rt.logger)
	defer consumer.Close()
	consumer.RegisterHandler(handlers.NewIngestHandler(rt.service, rt.logger).Handle)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt.logger.Info("Consuming observations",
		zap.String("topic", rt.cfg.IngestTopic),
		zap.String("group", rt.cfg.ConsumerGroup),
	)
	return consumer.Run(ctx)
}

// initLogger initializes a Zap production logger at the given level.
func initLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// connectDatabase retries the initial connection with exponential backoff
// for at most DB_CONNECT_TIMEOUT seconds.
func connectDatabase(cfg *config.Config, logger *zap.Logger) (*db.Repository, error) {
	dbCfg := &db.Config{
		Driver:     cfg.DBDriver,
		Host:       cfg.DBHost,
		Port:       cfg.DBPort,
		User:       cfg.DBUser,
		Password:   cfg.DBPassword,
		DBName:     cfg.DBName,
		SSLMode:    cfg.DBSSLMode,
		SQLitePath: cfg.SQLitePath,
		LogQueries: cfg.DBLogQueries,
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = time.Duration(cfg.DBConnectTimeout) * time.Second

	var repo *db.Repository
	err := backoff.RetryNotify(func() error {
		var err error
		repo, err = db.NewRepository(dbCfg)
		return err
	}, policy, func(err error, next time.Duration) {
		logger.Warn("Database not ready, retrying", zap.Error(err), zap.Duration("retry_in", next))
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Database ready", zap.String("driver", cfg.DBDriver))
	return repo, nil
}

// initProducer connects to Kafka when brokers are configured and returns a
// no-op producer otherwise.
func initProducer(cfg *config.Config, logger *zap.Logger) (events.EventProducer, error) {
	if !cfg.KafkaEnabled() {
		logger.Info("Kafka brokers not configured, events are disabled")
		return events.NopProducer{}, nil
	}
	return events.NewProducer(cfg.KafkaBrokers, logger, cfg.Topic)
}

func fixedKeys(cfg *config.Config) []controller.KeySeed {
	return controller.FixedKeys(cfg.APIKeyAdmin, cfg.APIKeyWebscraper, cfg.APIKeyFullread, cfg.APIKeyFrontend)
}

// waitForShutdown blocks until an interrupt, SIGTERM or a server failure,
// then shuts down the servers.
func waitForShutdown(server *handlers.Server, errCh <-chan error, logger *zap.Logger) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case sig := <-stop:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
			server.Stop()
			return err
		}
	}

	server.Stop()
	logger.Info("Servers stopped properly")
	return nil
}
