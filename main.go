package main

import (
	"context"
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/archgov-inc/archgov-engine/pkg/cache"
	"github.com/archgov-inc/archgov-engine/pkg/config"
	"github.com/archgov-inc/archgov-engine/pkg/database"
	"github.com/archgov-inc/archgov-engine/pkg/handlers"
	"github.com/archgov-inc/archgov-engine/pkg/logging"
	"github.com/archgov-inc/archgov-engine/pkg/middleware"
	"github.com/archgov-inc/archgov-engine/pkg/repositories"
	"github.com/archgov-inc/archgov-engine/pkg/search"
	"github.com/archgov-inc/archgov-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("bind_addr", cfg.BindAddr),
		zap.String("port", cfg.Port),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("redis_host", cfg.Redis.Host),
		zap.String("search_indexer", cfg.Search.IndexerURL))

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database",
			zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	if err := database.RunMigrations(db.SQLDB(), cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations",
			zap.String("error", logging.SanitizeError(err)))
	}

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}
	respCache := cache.NewResponseCache(redisClient, cfg.Redis.ResponseTTLSeconds, logger)

	indexer := search.NewHTTPIndexer(&cfg.Search)
	notifier := search.NewNotifier(indexer, logger)

	assetRepo := repositories.NewAssetRepository(db)

	assetService := services.NewAssetService(assetRepo, notifier, logger)
	relationshipService := services.NewRelationshipService(assetRepo, logger)
	dependencyService := services.NewDependencyService(assetRepo, logger)
	impactService := services.NewImpactService(assetRepo, logger)
	healthService := services.NewHealthService(assetRepo, logger)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(cfg, logger)
	healthHandler.RegisterRoutes(mux)

	assetHandler := handlers.NewAssetHandler(
		assetService,
		relationshipService,
		dependencyService,
		impactService,
		healthService,
		respCache,
		logger,
	)
	assetHandler.RegisterRoutes(mux)

	root := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting archgov-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, root); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
