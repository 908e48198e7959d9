// Command codeindex-mcp exposes the same ingestion/search/job-control
// operations as cmd/codeindex-api over the Model Context Protocol,
// talking to the same Postgres store. In both the stdio and the
// streamable-HTTP mode it runs the crawl/upload jobs its tools start
// itself, on the scheduler and worker pool built in main.
package main

import (
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/mark3labs/mcp-go/server"

	"codeindex/internal/auth"
	"codeindex/internal/config"
	"codeindex/internal/crawl"
	"codeindex/internal/jobs"
	"codeindex/internal/llm"
	"codeindex/internal/mcpserver"
	"codeindex/internal/pipeline"
	"codeindex/internal/progress"
	"codeindex/internal/search"
	"codeindex/internal/snippet"
	"codeindex/internal/store"
)

const (
	serverName    = "codeindex"
	serverVersion = "0.1.0"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	transport := flag.String("transport", "stdio", "mcp transport: stdio or http")
	addr := flag.String("addr", ":8812", "listen address for the http transport")
	flag.Parse()

	cfg := config.Load(*configPath)
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		log.Printf("invalid configuration: %v", err)
		os.Exit(2)
	}

	if err := store.Migrate(cfg.Database.DSN); err != nil {
		log.Printf("database unreachable or migration failed: %v", err)
		os.Exit(3)
	}

	db, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		log.Printf("open database: %v", err)
		os.Exit(3)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	st := store.New(db)

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Printf("invalid redis url: %v", err)
			os.Exit(2)
		}
		redisClient = redis.NewClient(opts)
	}

	enricherPool := llm.NewPool(&cfg.LLM)
	pipe := &pipeline.Pipeline{
		Store:    st,
		Enricher: enricherPool,
		Parser:   snippet.Options{MinLength: cfg.Parser.MinSnippetLength, ContextLines: cfg.Parser.ContextLines},
	}

	renderer := crawl.Renderer(crawl.NewHTTPRenderer(time.Duration(cfg.Crawler.TimeoutMs) * time.Millisecond))
	if cfg.Crawler.Renderer == "rod" {
		renderer = crawl.NewRodRenderer(time.Duration(cfg.Crawler.TimeoutMs) * time.Millisecond)
	}
	driver := &crawl.Driver{
		Store:    st,
		Renderer: renderer,
		Pipeline: pipe,
		Progress: progress.NewBus(),
		Crawler:  cfg.Crawler,
		Worker:   cfg.Worker,
	}
	scheduler := jobs.NewScheduler(st, driver, pipe, cfg.Worker.MaxConcurrentJobs)
	searchService := &search.Service{Store: st, Config: cfg.Search}

	mcpSrv := (&mcpserver.Server{
		Config:    cfg,
		Store:     st,
		Scheduler: scheduler,
		Search:    searchService,
		Pipeline:  pipe,
	}).Register(serverName, serverVersion)

	switch *transport {
	case "http":
		verifier := &auth.MCPVerifier{Token: cfg.MCP.AuthToken, Redis: redisClient}
		mux := http.NewServeMux()
		mux.Handle("/", requireMCPBearer(verifier, server.NewStreamableHTTPServer(mcpSrv)))
		log.Printf("codeindex-mcp listening on %s (streamable-http)", *addr)
		if err := http.ListenAndServe(*addr, mux); err != nil {
			log.Printf("mcp http server failed: %v", err)
			os.Exit(1)
		}
	default:
		if err := server.ServeStdio(mcpSrv); err != nil {
			log.Printf("mcp stdio server failed: %v", err)
			os.Exit(1)
		}
	}
}

// requireMCPBearer enforces the optional MCP_AUTH_TOKEN bearer check in
// front of the streamable-HTTP transport; the stdio transport has no
// equivalent network boundary to guard, so it goes unauthenticated the
// way a locally spawned subprocess already is.
func requireMCPBearer(verifier *auth.MCPVerifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if verifier.Enabled() {
			token, ok := auth.BearerToken(r.Header.Get("Authorization"))
			if !ok || verifier.Verify(r.Context(), token) != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
