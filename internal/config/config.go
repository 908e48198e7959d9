package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type CrawlerConfig struct {
	MaxDepthDefault      int      `yaml:"maxDepthDefault"`
	MaxConcurrentDefault int      `yaml:"maxConcurrentDefault"`
	UserAgent            string   `yaml:"userAgent"`
	TimeoutMs            int      `yaml:"timeoutMs"`
	QueueCapacity        int      `yaml:"queueCapacity"`
	DefaultURLPatterns   []string `yaml:"defaultUrlPatterns"`
	RespectRobots        bool     `yaml:"respectRobots"`
	// Renderer selects the page fetcher: "http" (default, plain
	// net/http GET) or "rod" (headless Chrome via go-rod, needed for
	// JS-rendered documentation sites).
	Renderer string `yaml:"renderer"`
}

type ParserConfig struct {
	MinSnippetLength int `yaml:"minSnippetLength"`
	ContextLines     int `yaml:"contextLines"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseURL"`
	Model   string `yaml:"model"`
}

type AnthropicConfig struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
}

type GoogleLLMConfig struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
}

// LLMConfig controls the optional enrichment stage. A blank
// DefaultProvider (or a provider missing credentials) disables
// enrichment entirely; the parser-derived snippet is still persisted.
type LLMConfig struct {
	DefaultProvider    string          `yaml:"defaultProvider"`
	OpenAI             OpenAIConfig    `yaml:"openai"`
	Anthropic          AnthropicConfig `yaml:"anthropic"`
	Google             GoogleLLMConfig `yaml:"google"`
	ExtraParams        map[string]any  `yaml:"extraParams"`
	MaxConcurrent      int             `yaml:"maxConcurrent"`
	RequestsPerMinute  int             `yaml:"requestsPerMinute"`
	MaxAttempts        int             `yaml:"maxAttempts"`
	TimeoutMs          int             `yaml:"timeoutMs"`
}

type WorkerConfig struct {
	MaxConcurrentJobs       int `yaml:"maxConcurrentJobs"`
	PollIntervalMs          int `yaml:"pollIntervalMs"`
	MaxConcurrentURLsPerJob int `yaml:"maxConcurrentURLsPerJob"`
	HeartbeatIntervalMs     int `yaml:"heartbeatIntervalMs"`
	StallThresholdMs        int `yaml:"stallThresholdMs"`
}

type SearchConfig struct {
	FallbackThreshold   int `yaml:"fallbackThreshold"`
	MaxFallbackDocuments int `yaml:"maxFallbackDocuments"`
}

type UploadConfig struct {
	MaxSizeMB       int `yaml:"maxSizeMB"`
	MaxConcurrency  int `yaml:"maxConcurrency"`
}

type GitConfig struct {
	Token             string   `yaml:"token"`
	DefaultExcludeDirs []string `yaml:"defaultExcludeDirs"`
}

type MCPConfig struct {
	AuthToken string `yaml:"authToken"`
}

// AuthConfig controls the HTTP surface's optional admin API key. The
// YAML/env value is the raw key; it is hashed once at startup and only
// the hash is held in memory thereafter.
type AuthConfig struct {
	AdminAPIKey string `yaml:"adminApiKey"`
}

// RetentionConfig controls the periodic TTL/cascade cleanup sweep.
type RetentionConfig struct {
	Enabled                bool `yaml:"enabled"`
	JobDays                int  `yaml:"jobDays"`
	CleanupIntervalMinutes int  `yaml:"cleanupIntervalMinutes"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Crawler   CrawlerConfig   `yaml:"crawler"`
	Parser    ParserConfig    `yaml:"parser"`
	LLM       LLMConfig       `yaml:"llm"`
	Worker    WorkerConfig    `yaml:"worker"`
	Search    SearchConfig    `yaml:"search"`
	Upload    UploadConfig    `yaml:"upload"`
	Git       GitConfig       `yaml:"git"`
	MCP       MCPConfig       `yaml:"mcp"`
	Auth      AuthConfig      `yaml:"auth"`
	Retention RetentionConfig `yaml:"retention"`
	LogLevel  string          `yaml:"logLevel"`
}

// Load reads and decodes a YAML config file, exiting the process on
// failure since there is no sensible way to continue without it.
func Load(path string) *Config {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}
	defer f.Close()

	cfg := Default()
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		log.Fatalf("failed to decode config: %v", err)
	}

	return cfg
}

// Default returns a Config pre-populated with conservative defaults,
// so a mostly-empty YAML file still produces a usable configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8811},
		Crawler: CrawlerConfig{
			MaxDepthDefault:      2,
			MaxConcurrentDefault: 5,
			UserAgent:            "codeindex-bot/1.0",
			TimeoutMs:            20000,
			QueueCapacity:        1000,
			RespectRobots:        true,
			Renderer:             "http",
		},
		Parser: ParserConfig{
			MinSnippetLength: 20,
			ContextLines:     3,
		},
		LLM: LLMConfig{
			MaxConcurrent:     4,
			RequestsPerMinute: 60,
			MaxAttempts:       3,
			TimeoutMs:         30000,
		},
		Worker: WorkerConfig{
			MaxConcurrentJobs:       4,
			PollIntervalMs:          2000,
			MaxConcurrentURLsPerJob: 5,
			HeartbeatIntervalMs:     2000,
			StallThresholdMs:        60000,
		},
		Search: SearchConfig{
			FallbackThreshold:    5,
			MaxFallbackDocuments: 10,
		},
		Upload: UploadConfig{
			MaxSizeMB:      50,
			MaxConcurrency: 5,
		},
		Retention: RetentionConfig{
			Enabled:                false,
			JobDays:                90,
			CleanupIntervalMinutes: 60,
		},
		LogLevel: "info",
	}
}

// Validate performs sanity checks so misconfiguration fails fast at
// startup instead of during the first request.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return errors.New("database.dsn must be set")
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.LLM.DefaultProvider))
	switch provider {
	case "":
		// Enrichment disabled entirely (cost guard): allowed.
	case "openai":
		if cfg.LLM.OpenAI.APIKey != "" && cfg.LLM.OpenAI.Model == "" {
			return errors.New("openai llm provider is not fully configured")
		}
	case "anthropic":
		if cfg.LLM.Anthropic.APIKey != "" && cfg.LLM.Anthropic.Model == "" {
			return errors.New("anthropic llm provider is not fully configured")
		}
	case "google":
		if cfg.LLM.Google.APIKey != "" && cfg.LLM.Google.Model == "" {
			return errors.New("google llm provider is not fully configured")
		}
	default:
		return fmt.Errorf("unsupported llm.defaultProvider: %s", provider)
	}

	if cfg.Search.FallbackThreshold < 0 {
		return errors.New("search.fallbackThreshold must be >= 0")
	}

	return nil
}

// ApplyEnv overlays documented environment variables onto an
// already-loaded Config, letting deploy tooling inject secrets and
// per-environment overrides without editing the YAML file.
func (cfg *Config) ApplyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.DefaultProvider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.OpenAI.Model = v
		cfg.LLM.Anthropic.Model = v
		cfg.LLM.Google.Model = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.OpenAI.APIKey = v
		cfg.LLM.Anthropic.APIKey = v
		cfg.LLM.Google.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.OpenAI.BaseURL = v
	}
	if v := os.Getenv("LLM_EXTRA_PARAMS"); v != "" {
		var extra map[string]any
		if err := json.Unmarshal([]byte(v), &extra); err == nil {
			cfg.LLM.ExtraParams = extra
		}
	}
	if v := os.Getenv("GIT_TOKEN"); v != "" {
		cfg.Git.Token = v
	}
	if v := os.Getenv("MCP_AUTH_TOKEN"); v != "" {
		cfg.MCP.AuthToken = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("UPLOAD_MAX_SIZE_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Upload.MaxSizeMB = n
		}
	}
	if v := os.Getenv("UPLOAD_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Upload.MaxConcurrency = n
		}
	}
	if v := os.Getenv("CRAWLER_RENDERER"); v != "" {
		cfg.Crawler.Renderer = v
	}
}

// LLMEnabled reports whether enrichment credentials are configured at
// all. Used by the cost guard in internal/llm.
func (cfg *Config) LLMEnabled() bool {
	switch strings.ToLower(strings.TrimSpace(cfg.LLM.DefaultProvider)) {
	case "openai":
		return cfg.LLM.OpenAI.APIKey != ""
	case "anthropic":
		return cfg.LLM.Anthropic.APIKey != ""
	case "google":
		return cfg.LLM.Google.APIKey != ""
	default:
		return false
	}
}
