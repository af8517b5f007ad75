package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marketmatch/marketmatch/internal/api"
	"github.com/marketmatch/marketmatch/internal/api/middleware"
	"github.com/marketmatch/marketmatch/internal/chunker"
	"github.com/marketmatch/marketmatch/internal/config"
	"github.com/marketmatch/marketmatch/internal/embedding"
	"github.com/marketmatch/marketmatch/internal/generation"
	"github.com/marketmatch/marketmatch/internal/logger"
	"github.com/marketmatch/marketmatch/internal/repository"
	"github.com/marketmatch/marketmatch/internal/service"
	"github.com/marketmatch/marketmatch/internal/storage"
	"github.com/marketmatch/marketmatch/internal/vectorstore"
)

func main() {
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// CONFIG_PATH overrides the config file location for deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	docRepo := repository.NewDocumentRepository(db)
	queryRepo := repository.NewQueryRepository(db)

	settings := config.NewSettings(cfg)
	embedResolver := embedding.NewResolver(cfg.Embedding)
	storeResolver := vectorstore.NewResolver(cfg.VectorStore, settings, embedResolver, docRepo)

	archive, err := storage.NewFromArchiveConfig(cfg.Archive)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize archive storage")
	}
	if archive != nil {
		appLogger.Info("Upload archival enabled")
	}

	generator := generation.NewFromConfig(cfg.Generation)
	if generator == nil {
		appLogger.Warn("No generation API key configured, answers will be degraded context listings")
	}

	ingestService := service.NewIngestService(
		docRepo,
		storeResolver,
		embedResolver,
		archive,
		chunker.Profile{Name: "text", Size: cfg.Chunking.Text.Size, Overlap: cfg.Chunking.Text.Overlap},
		chunker.Profile{Name: "document", Size: cfg.Chunking.Document.Size, Overlap: cfg.Chunking.Document.Overlap},
		appLogger,
	)
	ragService := service.NewRAGService(
		queryRepo,
		storeResolver,
		embedResolver,
		generator,
		cfg.VectorStore.SearchTopK,
		appLogger,
	)
	adminService := service.NewAdminService(settings, storeResolver, embedResolver, docRepo, appLogger)

	router := api.SetupRouter(
		ingestService,
		ragService,
		adminService,
		docRepo,
		cfg.Server.Mode,
		middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	storeResolver.Reset()
	appLogger.Info("Server exited")
}
