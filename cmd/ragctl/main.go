package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/marketmatch/marketmatch/internal/chunker"
	"github.com/marketmatch/marketmatch/internal/config"
	"github.com/marketmatch/marketmatch/internal/embedding"
	"github.com/marketmatch/marketmatch/internal/logger"
	"github.com/marketmatch/marketmatch/internal/repository"
	"github.com/marketmatch/marketmatch/internal/service"
	"github.com/marketmatch/marketmatch/internal/storage"
	"github.com/marketmatch/marketmatch/internal/vectorstore"
)

const usage = `Usage: ragctl [flags] <command>

Commands:
  ingest    Ingest a file (-file) or every .txt/.md file in a directory (-dir)
  status    Print pipeline status
  reindex   Clear the vector store and re-embed every stored chunk
  wipe      Clear the vector store

Flags:
`

func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "text",
		ServiceName: "ragctl",
	})
	logger.SetDefaultLogger(appLogger)

	configPath := flag.String("config", "", "Path to config file")
	filePath := flag.String("file", "", "File to ingest")
	dirPath := flag.String("dir", "", "Directory to ingest")
	title := flag.String("title", "", "Document title override")
	backendType := flag.String("backend", "", "Vector store backend override (local or qdrant)")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	docRepo := repository.NewDocumentRepository(db)
	settings := config.NewSettings(cfg)
	if *backendType != "" {
		if err := settings.Set(config.KeyVectorStoreType, *backendType); err != nil {
			appLogger.WithError(err).Fatal("Invalid backend override")
		}
	}

	embedResolver := embedding.NewResolver(cfg.Embedding)
	storeResolver := vectorstore.NewResolver(cfg.VectorStore, settings, embedResolver, docRepo)
	defer storeResolver.Reset()

	archive, err := storage.NewFromArchiveConfig(cfg.Archive)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize archive storage")
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
	adminService := service.NewAdminService(settings, storeResolver, embedResolver, docRepo, appLogger)

	ctx := context.Background()

	switch command {
	case "ingest":
		runIngest(ctx, ingestService, *filePath, *dirPath, *title)
	case "status":
		runStatus(ctx, adminService)
	case "reindex":
		n, err := adminService.Reindex(ctx)
		if err != nil {
			appLogger.WithError(err).Fatal("Reindex failed")
		}
		fmt.Printf("reindexed %d chunks\n", n)
	case "wipe":
		store, err := storeResolver.Store(ctx)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to resolve vector store")
		}
		if err := store.DeleteAll(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to clear vector store")
		}
		fmt.Println("vector store cleared")
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runIngest(ctx context.Context, ingest *service.IngestService, file, dir, title string) {
	switch {
	case file != "":
		ingestFile(ctx, ingest, file, title)
	case dir != "":
		entries, err := os.ReadDir(dir)
		if err != nil {
			logger.Fatal("Failed to read directory: %v", err)
		}
		count := 0
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ext := strings.ToLower(filepath.Ext(entry.Name()))
			if ext != ".txt" && ext != ".md" {
				continue
			}
			ingestFile(ctx, ingest, filepath.Join(dir, entry.Name()), "")
			count++
		}
		fmt.Printf("ingested %d files\n", count)
	default:
		logger.Fatal("ingest requires -file or -dir")
	}
}

func ingestFile(ctx context.Context, ingest *service.IngestService, path, title string) {
	content, err := os.ReadFile(path)
	if err != nil {
		logger.Fatal("Failed to read %s: %v", path, err)
	}
	result, err := ingest.IngestDocument(ctx, filepath.Base(path), title, "text/plain", content)
	if err != nil {
		logger.Fatal("Failed to ingest %s: %v", path, err)
	}
	fmt.Printf("%s: document %s, %d chunks (%d indexed)\n",
		filepath.Base(path), result.Document.ID, result.ChunksCreated, result.ChunksIndexed)
}

func runStatus(ctx context.Context, admin *service.AdminService) {
	status, err := admin.Status(ctx)
	if err != nil {
		logger.Fatal("Failed to read status: %v", err)
	}
	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		logger.Fatal("Failed to encode status: %v", err)
	}
	fmt.Println(string(out))
}
