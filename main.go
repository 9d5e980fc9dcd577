package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/joblens-inc/joblens-engine/pkg/bucketing"
	"github.com/joblens-inc/joblens-engine/pkg/config"
	"github.com/joblens-inc/joblens-engine/pkg/credentials"
	"github.com/joblens-inc/joblens-engine/pkg/database"
	"github.com/joblens-inc/joblens-engine/pkg/handlers"
	"github.com/joblens-inc/joblens-engine/pkg/logging"
	"github.com/joblens-inc/joblens-engine/pkg/middleware"
	"github.com/joblens-inc/joblens-engine/pkg/normalize"
	"github.com/joblens-inc/joblens-engine/pkg/reasoner"
	"github.com/joblens-inc/joblens-engine/pkg/repositories"
	"github.com/joblens-inc/joblens-engine/pkg/scoring"
	"github.com/joblens-inc/joblens-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("scoring_mode", string(cfg.Scoring.Mode)),
		zap.Bool("reasoner_configured", cfg.Reasoner.IsConfigured()),
		zap.String("database", cfg.Database.Database),
		zap.String("database_host", cfg.Database.Host))

	ctx := context.Background()

	// Migrations run over database/sql; the application itself uses pgx.
	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	migrationDB.Close()

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	sourceRepo := repositories.NewSourceRepository(db)
	activityRepo := repositories.NewActivityRepository(db)
	bucketRepo := repositories.NewBucketRepository(db)
	snapshotRepo := repositories.NewSnapshotRepository(db)
	connectionRepo := repositories.NewConnectionRepository(db)

	// Pipeline
	normalizer := normalize.New(activityRepo, cfg.Ingest, logger)
	bucketer := bucketing.New(activityRepo, bucketRepo, logger)
	tracker := scoring.NewTracker()

	reasonerClient, err := reasoner.New(&cfg.Reasoner, logger)
	if err != nil {
		logger.Fatal("Failed to create reasoner client", zap.Error(err))
	}

	// Credentials
	cipher, err := credentials.NewTokenCipher(cfg.CredentialsKey)
	if err != nil {
		logger.Fatal("Failed to create token cipher", zap.Error(err))
	}
	refresher := credentials.NewOAuthRefresher(&cfg.Connectors, logger)
	credentialManager := credentials.NewManager(connectionRepo, cipher, refresher, logger)

	// Services
	ingestService := services.NewIngestService(sourceRepo, snapshotRepo, normalizer, bucketer, logger)
	snapshotService := services.NewSnapshotService(snapshotRepo, sourceRepo, bucketRepo, reasonerClient, tracker, cfg, logger)

	// API routes carry the installation cookie and request logging; health
	// endpoints stay outside the chain so probes never allocate sessions.
	apiMux := http.NewServeMux()
	handlers.NewIngestHandler(ingestService, logger).RegisterRoutes(apiMux)
	handlers.NewSnapshotHandler(snapshotService, logger).RegisterRoutes(apiMux)
	handlers.NewConnectionHandler(credentialManager, connectionRepo, logger).RegisterRoutes(apiMux)

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	var api http.Handler = apiMux
	api = middleware.Installation(sessionStore, logger)(api)
	api = middleware.RequestLogger(logger)(api)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	mux.Handle("/api/", api)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting joblens-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
