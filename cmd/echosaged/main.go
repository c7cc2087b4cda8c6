package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dayaobuxiao/EchoSage/internal/auth"
	"github.com/dayaobuxiao/EchoSage/internal/blob"
	"github.com/dayaobuxiao/EchoSage/internal/config"
	"github.com/dayaobuxiao/EchoSage/internal/embedder"
	"github.com/dayaobuxiao/EchoSage/internal/llm"
	"github.com/dayaobuxiao/EchoSage/internal/manager"
	"github.com/dayaobuxiao/EchoSage/internal/repository"
	"github.com/dayaobuxiao/EchoSage/internal/repository/postgres"
	"github.com/dayaobuxiao/EchoSage/internal/segment"
	"github.com/dayaobuxiao/EchoSage/internal/server"
	"github.com/dayaobuxiao/EchoSage/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

// parseLogLevel maps the configured level name to a slog level. Unknown
// values fall back to info.
func parseLogLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("starting EchoSage",
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
	)

	// Index snapshot store
	var (
		store blob.Store
		err   error
	)
	if cfg.BlobStore == "file" {
		store, err = blob.NewFileStore(filepath.Join(cfg.DataDir, "vectorstores"))
	} else {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("creating data dir: %w", err)
		}
		store, err = blob.NewBoltStore(filepath.Join(cfg.DataDir, "indexes.db"))
	}
	if err != nil {
		return fmt.Errorf("failed to open blob store: %w", err)
	}
	defer store.Close()
	slog.Info("opened blob store", "kind", cfg.BlobStore, "dir", cfg.DataDir)

	// Document registry
	var docs repository.DocumentRepository
	if cfg.DatabaseURL != "" {
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
		docs = postgres.NewDocumentRepo(db)
		slog.Info("connected to PostgreSQL")
	} else {
		docs = repository.NewMemoryRepository()
		slog.Warn("no DATABASE_URL set, using in-memory document registry")
	}

	// Embedding service
	var embed embedder.Embedder
	if cfg.EmbeddingURL != "" {
		embed = embedder.NewHTTPEmbedder(embedder.HTTPConfig{
			BaseURL:   cfg.EmbeddingURL,
			APIKey:    cfg.EmbeddingAPIKey,
			Model:     cfg.EmbeddingModel,
			Dimension: cfg.EmbeddingDimension,
		})
	} else {
		embed = embedder.NewHashEmbedder(0)
		slog.Warn("no EMBEDDING_URL set, using deterministic hash embedder")
	}
	slog.Info("initialized embedder", "model", embed.ModelName())

	// Generation service
	llmClient := llm.NewChatClient(
		llm.WithBaseURL(cfg.LLMURL),
		llm.WithAPIKey(cfg.LLMAPIKey),
		llm.WithModel(cfg.LLMModel),
	)
	slog.Info("initialized LLM client", "model", cfg.LLMModel)

	seg := segment.New(segment.Config{
		Strategy:     cfg.SegmentStrategy,
		TargetWords:  cfg.SegmentTarget,
		MaxWords:     cfg.SegmentMax,
		OverlapWords: cfg.SegmentOverlap,
	})

	mgr := manager.New(embed, seg, store, docs, manager.WithLogger(logger))
	rag := service.NewRAGService(mgr, embed, llmClient,
		service.WithTopK(cfg.TopK),
		service.WithLogger(logger),
	)
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiry)

	srv := server.New(server.Config{
		Port:   cfg.HTTPPort,
		Logger: logger,
	}, mgr, rag, jwtMgr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received signal, shutting down", "signal", sig)
	}

	return srv.Shutdown(ctx)
}
