package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/sepworks/sepd/internal/ai"
	"github.com/sepworks/sepd/internal/config"
	"github.com/sepworks/sepd/internal/db"
	"github.com/sepworks/sepd/internal/filestore"
	"github.com/sepworks/sepd/internal/handler"
	"github.com/sepworks/sepd/internal/job"
	"github.com/sepworks/sepd/internal/middleware"
	"github.com/sepworks/sepd/internal/repo"
	"github.com/sepworks/sepd/internal/schedule"
	"github.com/sepworks/sepd/internal/scrape"
	"github.com/sepworks/sepd/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "sepd",
		Short: "sep mirror server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run sep mirror server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
			return runServer(cfg)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer database.Close()
	if err := db.WaitReady(ctx, database, 5); err != nil {
		return err
	}
	if err := db.ApplyMigrations(database); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	provider, err := ai.NewProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}
	embedder := ai.NewEmbedder(provider, ai.EmbedderConfig{
		Model:         cfg.AI.EmbedModel,
		MaxInputChars: cfg.AI.MaxInputChars,
		MaxRetries:    cfg.AI.MaxRetries,
		CacheSize:     cfg.AI.CacheSize,
		CacheTTL:      time.Duration(cfg.AI.CacheTTLHours) * time.Hour,
	})

	var snapshots filestore.Store
	if cfg.Snapshot.Enable {
		snapshots, err = filestore.New(cfg.Snapshot.Type, cfg.Snapshot.Data)
		if err != nil {
			return fmt.Errorf("init snapshot store: %w", err)
		}
	}

	fetcher := scrape.NewFetcher(time.Duration(cfg.Scraper.TimeoutSeconds)*time.Second, cfg.Scraper.UserAgent)
	scraper := scrape.NewScraper(fetcher)
	entryRepo := repo.NewEntryRepo(database)
	entryService := service.NewEntryService(entryRepo, embedder, scraper, service.NewSnapshotArchiver(snapshots))

	scheduler := schedule.NewCronScheduler()
	if cfg.Jobs.EmbeddingBackfillSpec != "" {
		backfill := job.NewEmbeddingBackfillJob(entryService, cfg.Jobs.EmbeddingBackfillBatch)
		if err := scheduler.AddJob(backfill, cfg.Jobs.EmbeddingBackfillSpec); err != nil {
			return fmt.Errorf("schedule backfill job: %w", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.CORS(cfg.CORSAllow))
	engine.Use(gzip.Gzip(gzip.DefaultCompression))
	handler.RegisterRoutes(engine.Group("/"), handler.RouterDeps{
		Entries: handler.NewEntryHandler(entryService),
	})

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: engine}
	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
