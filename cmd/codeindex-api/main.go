// Command codeindex-api runs the HTTP API: migrations on boot, the
// crawl/upload job scheduler, the stall-recovery and retention sweep,
// and the fiber router with its duplex progress channel.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"codeindex/internal/auth"
	"codeindex/internal/config"
	"codeindex/internal/crawl"
	"codeindex/internal/httpapi"
	"codeindex/internal/jobs"
	"codeindex/internal/llm"
	"codeindex/internal/pipeline"
	"codeindex/internal/progress"
	"codeindex/internal/search"
	"codeindex/internal/snippet"
	"codeindex/internal/store"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg := config.Load(*configPath)
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		log.Printf("invalid configuration: %v", err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))

	if err := store.Migrate(cfg.Database.DSN); err != nil {
		logger.Error("database unreachable or migration failed", "error", err)
		os.Exit(3)
	}

	db, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(3)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	st := store.New(db)

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Error("invalid redis url", "error", err)
			os.Exit(2)
		}
		redisClient = redis.NewClient(opts)
	}

	renderer := crawl.Renderer(crawl.NewHTTPRenderer(time.Duration(cfg.Crawler.TimeoutMs) * time.Millisecond))
	if cfg.Crawler.Renderer == "rod" {
		renderer = crawl.NewRodRenderer(time.Duration(cfg.Crawler.TimeoutMs) * time.Millisecond)
	}

	enricherPool := llm.NewPool(&cfg.LLM)

	pipe := &pipeline.Pipeline{
		Store:    st,
		Enricher: enricherPool,
		Parser:   snippet.Options{MinLength: cfg.Parser.MinSnippetLength, ContextLines: cfg.Parser.ContextLines},
	}

	progressBus := progress.NewBus()

	driver := &crawl.Driver{
		Store:    st,
		Renderer: renderer,
		Pipeline: pipe,
		Progress: progressBus,
		Crawler:  cfg.Crawler,
		Worker:   cfg.Worker,
	}

	scheduler := jobs.NewScheduler(st, driver, pipe, cfg.Worker.MaxConcurrentJobs)
	scheduler.Progress = progressBus

	sweeper := &jobs.Sweeper{
		Scheduler: scheduler,
		Worker:    cfg.Worker,
		Retention: cfg.Retention,
		Logger:    logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sweeper.Start(ctx)
	defer sweeper.Stop()

	searchService := &search.Service{Store: st, Config: cfg.Search}

	var adminKey *auth.APIKeyVerifier
	if cfg.Auth.AdminAPIKey != "" {
		adminKey = &auth.APIKeyVerifier{Hash: auth.HashAPIKey(cfg.Auth.AdminAPIKey)}
	} else {
		adminKey = &auth.APIKeyVerifier{}
	}

	handlers := &httpapi.Handlers{
		Config:    cfg,
		Store:     st,
		Scheduler: scheduler,
		Search:    searchService,
		Progress:  progressBus,
		Pipeline:  pipe,
		AdminKey:  adminKey,
		Redis:     redisClient,
		Logger:    logger,
	}
	httpServer := httpapi.NewServer(handlers)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-sigCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown", "error", err)
		}
	}()

	logger.Info("codeindex-api listening", "host", cfg.Server.Host, "port", cfg.Server.Port)
	if err := httpServer.Listen(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
