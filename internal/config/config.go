package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/pelletier/go-toml/v2"
)

type ServerConfig struct {
	Port              string   `toml:"port" env:"PORT"`
	Mode              string   `toml:"mode" env:"GIN_MODE"`
	MaxQuestionLength int      `toml:"max_question_length" env:"GRAPH_RAG_MAX_QUESTION_LENGTH"`
	RequestTimeoutMS  int      `toml:"request_timeout_ms" env:"GRAPH_RAG_REQUEST_TIMEOUT_MS"`
	AllowedOrigins    []string `toml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

type GraphConfig struct {
	URI              string `toml:"uri" env:"NEO4J_URI"`
	User             string `toml:"user" env:"NEO4J_USER"`
	Password         string `toml:"password" env:"NEO4J_PASSWORD"`
	Database         string `toml:"database" env:"NEO4J_DB"`
	MaxPoolSize      int    `toml:"max_pool_size" env:"NEO4J_MAX_POOL_SIZE"`
	AcquireTimeoutMS int    `toml:"acquire_timeout_ms" env:"NEO4J_ACQUIRE_TIMEOUT_MS"`
	QueryTimeoutMS   int    `toml:"query_timeout_ms" env:"NEO4J_QUERY_TIMEOUT_MS"`
	CreateIndexes    bool   `toml:"create_indexes" env:"NEO4J_CREATE_INDEXES"`
}

type LLMConfig struct {
	Provider         string  `toml:"provider" env:"LLM_PROVIDER"`
	Model            string  `toml:"model" env:"LLM_MODEL"`
	APIKey           string  `toml:"api_key" env:"LLM_API_KEY"`
	BaseURL          string  `toml:"base_url" env:"LLM_BASE_URL"`
	Temperature      float32 `toml:"temperature" env:"LLM_TEMPERATURE"`
	MaxTokens        int     `toml:"max_tokens" env:"LLM_MAX_TOKENS"`
	TimeoutMS        int     `toml:"timeout_ms" env:"LLM_TIMEOUT_MS"`
	MaxAttempts      int     `toml:"max_attempts" env:"LLM_MAX_ATTEMPTS"`
	InitialBackoffMS int     `toml:"initial_backoff_ms" env:"LLM_INITIAL_BACKOFF_MS"`
	MaxBackoffMS     int     `toml:"max_backoff_ms" env:"LLM_MAX_BACKOFF_MS"`

	// Time kept back from the request deadline for writing the answer.
	DeadlineReserveMS int `toml:"deadline_reserve_ms" env:"LLM_DEADLINE_RESERVE_MS"`
}

type RetrievalConfig struct {
	MaxResults   int `toml:"max_results" env:"GRAPH_RAG_MAX_RESULTS"`
	MaxDepth     int `toml:"max_depth" env:"GRAPH_RAG_MAX_HOPS"`
	KeywordLimit int `toml:"keyword_limit" env:"GRAPH_RAG_KEYWORD_LIMIT"`
}

type ContextConfig struct {
	Budget   int    `toml:"budget" env:"GRAPH_RAG_CONTEXT_BUDGET"`
	Unit     string `toml:"unit" env:"GRAPH_RAG_CONTEXT_UNIT"` // chars | tokens
	Encoding string `toml:"encoding" env:"GRAPH_RAG_TOKEN_ENCODING"`
}

type LinkingConfig struct {
	AliasPath           string  `toml:"alias_path" env:"GRAPH_RAG_ALIAS_PATH"`
	BootstrapFromGraph  bool    `toml:"bootstrap_from_graph" env:"GRAPH_RAG_ALIAS_FROM_GRAPH"`
	SimilarityThreshold float64 `toml:"similarity_threshold" env:"GRAPH_RAG_SIMILARITY_THRESHOLD"`
	MaxNGram            int     `toml:"max_ngram" env:"GRAPH_RAG_MAX_NGRAM"`
	MinFuzzyLength      int     `toml:"min_fuzzy_length" env:"GRAPH_RAG_MIN_FUZZY_LENGTH"`
}

type CacheConfig struct {
	Enabled       bool   `toml:"enabled" env:"CACHE_ENABLED"`
	Backend       string `toml:"backend" env:"CACHE_BACKEND"` // memory | redis
	Size          int    `toml:"size" env:"CACHE_SIZE"`
	TTLSeconds    int    `toml:"ttl_seconds" env:"CACHE_TTL_SECONDS"`
	RedisAddr     string `toml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string `toml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `toml:"redis_db" env:"REDIS_DB"`
}

type LoggingConfig struct {
	Level      string `toml:"level" env:"LOG_LEVEL"`
	Format     string `toml:"format" env:"LOG_FORMAT"`
	File       string `toml:"file" env:"LOG_FILE"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

type TracingConfig struct {
	Enabled     bool    `toml:"enabled" env:"OTEL_ENABLED"`
	ServiceName string  `toml:"service_name" env:"OTEL_SERVICE_NAME"`
	Endpoint    string  `toml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	SampleRate  float64 `toml:"sample_rate" env:"OTEL_SAMPLE_RATE"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled" env:"METRICS_ENABLED"`
	Path    string `toml:"path"`
}

type PromptsConfig struct {
	System    string            `toml:"system"`
	Templates map[string]string `toml:"templates"`
}

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Graph     GraphConfig     `toml:"graph"`
	LLM       LLMConfig       `toml:"llm"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Context   ContextConfig   `toml:"context"`
	Linking   LinkingConfig   `toml:"linking"`
	Cache     CacheConfig     `toml:"cache"`
	Logging   LoggingConfig   `toml:"logging"`
	Tracing   TracingConfig   `toml:"tracing"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Prompts   PromptsConfig   `toml:"prompts"`
}

const (
	UnitChars  = "chars"
	UnitTokens = "tokens"
)

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              "8080",
			Mode:              "release",
			MaxQuestionLength: 2000,
			RequestTimeoutMS:  120000,
			AllowedOrigins:    []string{"*"},
		},
		Graph: GraphConfig{
			URI:              "bolt://localhost:7687",
			User:             "neo4j",
			Database:         "neo4j",
			MaxPoolSize:      50,
			AcquireTimeoutMS: 5000,
			QueryTimeoutMS:   10000,
			CreateIndexes:    true,
		},
		LLM: LLMConfig{
			Provider:         "ollama",
			Model:            "llama3.2:3b",
			BaseURL:          "http://localhost:11434",
			Temperature:      0.2,
			MaxTokens:        800,
			TimeoutMS:         30000,
			MaxAttempts:       3,
			InitialBackoffMS:  500,
			MaxBackoffMS:      5000,
			DeadlineReserveMS: 250,
		},
		Retrieval: RetrievalConfig{
			MaxResults:   300,
			MaxDepth:     2,
			KeywordLimit: 25,
		},
		Context: ContextConfig{
			Budget:   6000,
			Unit:     UnitChars,
			Encoding: "cl100k_base",
		},
		Linking: LinkingConfig{
			SimilarityThreshold: 0.85,
			MaxNGram:            4,
			MinFuzzyLength:      5,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			Size:       512,
			TTLSeconds: 600,
			RedisAddr:  "localhost:6379",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Tracing: TracingConfig{
			ServiceName: "graphrag",
			Endpoint:    "localhost:4317",
			SampleRate:  1.0,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Prompts: PromptsConfig{
			System:    DefaultSystemPrompt,
			Templates: DefaultTemplates(),
		},
	}
}

// Load reads the TOML file at path on top of the defaults and then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	// Templates from the file replace defaults key by key.
	defaults := DefaultTemplates()
	if cfg.Prompts.Templates == nil {
		cfg.Prompts.Templates = defaults
	}
	for k, v := range defaults {
		if _, ok := cfg.Prompts.Templates[k]; !ok {
			cfg.Prompts.Templates[k] = v
		}
	}
	if strings.TrimSpace(cfg.Prompts.System) == "" {
		cfg.Prompts.System = DefaultSystemPrompt
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Retrieval.MaxResults < 0 {
		errs = append(errs, fmt.Errorf("retrieval.max_results must be >= 0, got %d", c.Retrieval.MaxResults))
	}
	if c.Retrieval.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("retrieval.max_depth must be >= 0, got %d", c.Retrieval.MaxDepth))
	}
	if c.Context.Budget < 0 {
		errs = append(errs, fmt.Errorf("context.budget must be >= 0, got %d", c.Context.Budget))
	}
	switch c.Context.Unit {
	case UnitChars, UnitTokens:
	default:
		errs = append(errs, fmt.Errorf("context.unit must be %q or %q, got %q", UnitChars, UnitTokens, c.Context.Unit))
	}
	if c.LLM.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("llm.max_attempts must be >= 1, got %d", c.LLM.MaxAttempts))
	}
	if c.LLM.TimeoutMS <= 0 {
		errs = append(errs, fmt.Errorf("llm.timeout_ms must be > 0, got %d", c.LLM.TimeoutMS))
	}
	if c.LLM.DeadlineReserveMS < 0 {
		errs = append(errs, fmt.Errorf("llm.deadline_reserve_ms must be >= 0, got %d", c.LLM.DeadlineReserveMS))
	}
	if need := c.LLM.RetryBudget(); c.Server.RequestTimeoutMS > 0 && ms(c.Server.RequestTimeoutMS) < need {
		errs = append(errs, fmt.Errorf("server.request_timeout_ms (%d) must cover every generation attempt plus backoff, at least %d",
			c.Server.RequestTimeoutMS, need.Milliseconds()))
	}
	if t := c.Linking.SimilarityThreshold; t <= 0 || t > 1 {
		errs = append(errs, fmt.Errorf("linking.similarity_threshold must be in (0, 1], got %v", t))
	}
	if c.Linking.MaxNGram < 1 {
		errs = append(errs, fmt.Errorf("linking.max_ngram must be >= 1, got %d", c.Linking.MaxNGram))
	}
	switch strings.ToLower(c.Cache.Backend) {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("cache.backend must be memory or redis, got %q", c.Cache.Backend))
	}
	return errors.Join(errs...)
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func (c GraphConfig) AcquireTimeout() time.Duration { return ms(c.AcquireTimeoutMS) }
func (c GraphConfig) QueryTimeout() time.Duration   { return ms(c.QueryTimeoutMS) }
func (c LLMConfig) Timeout() time.Duration          { return ms(c.TimeoutMS) }
func (c LLMConfig) InitialBackoff() time.Duration   { return ms(c.InitialBackoffMS) }
func (c LLMConfig) MaxBackoff() time.Duration       { return ms(c.MaxBackoffMS) }
func (c LLMConfig) DeadlineReserve() time.Duration  { return ms(c.DeadlineReserveMS) }

// RetryBudget is the longest generation can take: every attempt timing out,
// the maximum backoff between attempts, and the deadline reserve.
func (c LLMConfig) RetryBudget() time.Duration {
	if c.MaxAttempts < 1 {
		return 0
	}
	n := time.Duration(c.MaxAttempts)
	return n*c.Timeout() + (n-1)*c.MaxBackoff() + c.DeadlineReserve()
}
func (c ServerConfig) RequestTimeout() time.Duration {
	return ms(c.RequestTimeoutMS)
}
func (c CacheConfig) TTL() time.Duration { return time.Duration(c.TTLSeconds) * time.Second }
