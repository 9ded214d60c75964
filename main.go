package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/lucerna-health/lucerna-engine/pkg/adapters/datasource"
	_ "github.com/lucerna-health/lucerna-engine/pkg/adapters/datasource/mssql"
	_ "github.com/lucerna-health/lucerna-engine/pkg/adapters/datasource/postgres"
	"github.com/lucerna-health/lucerna-engine/pkg/catalog"
	"github.com/lucerna-health/lucerna-engine/pkg/config"
	"github.com/lucerna-health/lucerna-engine/pkg/crypto"
	"github.com/lucerna-health/lucerna-engine/pkg/database"
	"github.com/lucerna-health/lucerna-engine/pkg/handlers"
	"github.com/lucerna-health/lucerna-engine/pkg/llm"
	"github.com/lucerna-health/lucerna-engine/pkg/repositories"
	"github.com/lucerna-health/lucerna-engine/pkg/services"
	enginesql "github.com/lucerna-health/lucerna-engine/pkg/sql"

	"github.com/lucerna-health/lucerna-engine/migrations"
)

// Version is set at build time via ldflags.
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

	ctx := context.Background()

	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, migrations.FS, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = migrationDB.Close()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to index store", zap.Error(err))
	}
	defer db.Close()

	encryptor, err := crypto.NewConnectionStringEncryptor(cfg.CustomerCredentialsKey)
	if err != nil {
		logger.Fatal("Failed to initialize credentials encryptor", zap.Error(err))
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Fatal("Failed to load snippet catalog", zap.Error(err))
	}

	customerRepo := repositories.NewCustomerRepository(db, encryptor)
	runRepo := repositories.NewDiscoveryRunRepository(db)
	indexRepo := repositories.NewSemanticIndexRepository(db)
	relationshipRepo := repositories.NewRelationshipRepository(db)

	introspectorFactory := datasource.NewIntrospectorFactory(logger)
	formDiscovery := services.NewFormDiscoveryService(indexRepo, logger)
	relationshipDiscovery := services.NewRelationshipDiscoveryService(relationshipRepo, logger)
	assessmentIndex := services.NewAssessmentIndexService(indexRepo, logger)

	orchestrator := services.NewDiscoveryOrchestrator(
		customerRepo, runRepo, indexRepo,
		formDiscovery, relationshipDiscovery, assessmentIndex,
		introspectorFactory, cfg.Discovery, logger)

	classifier, err := llm.NewIntentClassifier(cfg.LLM, cat.Snippets(), logger)
	if err != nil {
		logger.Fatal("Failed to initialize intent classifier", zap.Error(err))
	}

	pipeline := services.NewQueryPipeline(
		classifier, cat,
		services.NewCompositionValidator(cat, logger),
		enginesql.NewGeneratedSQLValidator(enginesql.NewRegexInspector()),
		cfg.Classifier, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewDiscoveryHandler(orchestrator, logger).RegisterRoutes(mux)
	handlers.NewQueryHandler(pipeline, logger).RegisterRoutes(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting lucerna-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
