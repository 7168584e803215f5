package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/labsense-server/internal/api"
	"github.com/labsense-server/internal/cache"
	"github.com/labsense-server/internal/catalog"
	"github.com/labsense-server/internal/config"
	"github.com/labsense-server/internal/database"
	"github.com/labsense-server/internal/domain"
	"github.com/labsense-server/internal/feedback"
	"github.com/labsense-server/internal/repository"
	"github.com/labsense-server/internal/service"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := newLogger(configManager.GetLoggingConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Postgres is only needed for the postgres catalog source and for
	// evaluation/feedback persistence. The other sources run without it.
	var db *database.DB
	if cfg.Catalog.Source == "postgres" || cfg.Database.Host != "" {
		db, err = connectDatabase(ctx, cfg, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		defer db.Close()
	}

	source, err := buildCatalogSource(ctx, cfg, db, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to prepare catalog source")
	}

	provider, err := catalog.NewProvider(ctx, source, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load catalog")
	}
	if cfg.Catalog.ReloadInterval > 0 {
		go provider.RunPeriodicReload(ctx, cfg.Catalog.ReloadInterval)
	}

	signalCache, err := buildCache(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize cache")
	}

	serviceOpts := []service.Option{service.WithCache(signalCache)}
	serverOpts := []api.ServerOption{}
	if db != nil {
		store := repository.NewEvaluationRepository(db.Pool, logger)
		serviceOpts = append(serviceOpts, service.WithStore(store))
		serverOpts = append(serverOpts,
			api.WithEvaluationStore(store),
			api.WithFeedbackStore(feedback.NewPostgresStore(db.Pool)))
	}

	evaluator := service.NewEvaluationService(provider, logger, serviceOpts...)
	server := api.NewServer(cfg, evaluator, provider, logger, serverOpts...)

	logger.WithFields(logrus.Fields{
		"host":           cfg.Server.Host,
		"port":           cfg.Server.Port,
		"catalog_source": cfg.Catalog.Source,
	}).Info("Starting labsense server")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}

func newLogger(cfg *domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	}
	return logger
}

func connectDatabase(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (*database.DB, error) {
	db, err := database.NewConnection(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	runner, err := database.NewMigrator(
		database.ConnectionURL(&cfg.Database), cfg.Database.MigrationsPath, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	defer runner.Close()

	if err := runner.Up(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// buildCatalogSource selects the configured backing store and seeds file
// and database sources with the builtin catalog when they are empty, so a
// fresh deployment serves a usable rule set immediately.
func buildCatalogSource(ctx context.Context, cfg *domain.Config, db *database.DB, logger *logrus.Logger) (catalog.Source, error) {
	switch cfg.Catalog.Source {
	case "sqlite":
		source, err := catalog.NewSQLiteSource(cfg.Catalog.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := seedIfEmpty(ctx, source, logger); err != nil {
			return nil, err
		}
		return source, nil
	case "postgres":
		source := catalog.NewPostgresSource(db.Pool)
		if err := seedIfEmpty(ctx, source, logger); err != nil {
			return nil, err
		}
		return source, nil
	default:
		return catalog.BuiltinSource{}, nil
	}
}

type seedableSource interface {
	catalog.Source
	IsEmpty(ctx context.Context) (bool, error)
	Seed(ctx context.Context, data catalog.Data) error
}

func seedIfEmpty(ctx context.Context, source seedableSource, logger *logrus.Logger) error {
	empty, err := source.IsEmpty(ctx)
	if err != nil {
		return err
	}
	if !empty {
		return nil
	}
	logger.Info("Catalog store is empty, seeding builtin catalog")
	return source.Seed(ctx, catalog.BuiltinData())
}

func buildCache(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (domain.SignalCache, error) {
	if cfg.Cache.RedisURL != "" {
		return cache.NewRedisCache(ctx, cfg.Cache.RedisURL, cfg.Cache.DefaultTTL, logger)
	}
	return cache.NewMemoryCache(cfg.Cache.MemorySize, cfg.Cache.DefaultTTL, logger), nil
}
