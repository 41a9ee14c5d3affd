package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/legojeon/report-coach/internal/domain"
)

// Config holds the report-coach configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	VectorIndex VectorIndexConfig `yaml:"vector_index"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Generation  GenerationConfig  `yaml:"generation"`
	Search      SearchConfig      `yaml:"search"`
	Ingest      IngestConfig      `yaml:"ingest"`
	UsageLog    UsageLogConfig    `yaml:"usage_log"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port              int `yaml:"port"`
	ReadTimeoutSec    int `yaml:"read_timeout_sec"`
	WriteTimeoutSec   int `yaml:"write_timeout_sec"`
	ShutdownSec       int `yaml:"shutdown_timeout_sec"`
	RequestTimeoutSec int `yaml:"request_timeout_sec"`
}

// DatabaseConfig holds Valkey/Redis connection settings.
// The store backs the embedding cache and usage counters, and the vector index when driver is valkey.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// VectorIndexConfig selects and tunes the vector index driver.
type VectorIndexConfig struct {
	Driver          string       `yaml:"driver"` // valkey, qdrant, memory
	Name            string       `yaml:"name"`
	HNSWM           int          `yaml:"hnsw_m"`
	HNSWEFConstruct int          `yaml:"hnsw_ef_construction"`
	HNSWEFSearch    int          `yaml:"hnsw_ef_search"` // memory driver only
	MemoryPath      string       `yaml:"memory_path"`    // memory driver snapshot; empty = not persisted
	Qdrant          QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds Qdrant connection settings.
type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	UseTLS bool   `yaml:"use_tls"`
}

// BudgetConfig holds embedding token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// EmbeddingCacheConfig sizes the two embedding cache tiers.
type EmbeddingCacheConfig struct {
	Enabled bool `yaml:"enabled"`
	LRUSize int  `yaml:"lru_size"`
	TTLSec  int  `yaml:"ttl_sec"` // 0 = no expiry
}

// EmbeddingConfig holds the OpenAI-compatible embedding endpoint settings.
type EmbeddingConfig struct {
	Provider           string               `yaml:"provider"`
	APIKey             string               `yaml:"api_key"`
	BaseURL            string               `yaml:"base_url"`
	Model              string               `yaml:"model"`
	Dimensions         int                  `yaml:"dimensions"` // 0 = provider default
	QueryInstruction   string               `yaml:"query_instruction"`
	PassageInstruction string               `yaml:"passage_instruction"`
	Cache              EmbeddingCacheConfig `yaml:"cache"`
	Budget             BudgetConfig         `yaml:"budget"`
}

// GenerationConfig holds the OpenAI-compatible chat completion settings.
type GenerationConfig struct {
	APIKey       string  `yaml:"api_key"`
	BaseURL      string  `yaml:"base_url"`
	Model        string  `yaml:"model"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float32 `yaml:"temperature"`
	TopP         float32 `yaml:"top_p"`
	TimeoutSec   int     `yaml:"timeout_sec"`
	MaxRetries   int     `yaml:"max_retries"`
	PromptFile   string  `yaml:"prompt_file"`     // empty = built-in template
	Tokenizer    string  `yaml:"tokenizer_model"` // estimate usage when the provider omits it; empty = off
}

// SearchConfig holds retrieval and ranking settings.
type SearchConfig struct {
	OverfetchFactor int            `yaml:"overfetch_factor"`
	DefaultK        int            `yaml:"default_k"`
	MaxK            int            `yaml:"max_k"`
	SnippetLength   int            `yaml:"snippet_length"`
	ImageDir        string         `yaml:"image_dir"`
	Weights         domain.Weights `yaml:"weights"`
}

// IngestConfig holds corpus loading settings.
type IngestConfig struct {
	Dir       string `yaml:"dir"`
	BatchSize int    `yaml:"batch_size"`
	Workers   int    `yaml:"workers"`
}

// UsageLogConfig holds the usage side-channel settings.
type UsageLogConfig struct {
	DSN       string `yaml:"dsn"` // empty = Postgres sink disabled
	QueueSize int    `yaml:"queue_size"`
}

// RateLimitConfig holds per-IP rate limit settings. RPS 0 disables the limiter.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// TelemetryConfig holds OpenTelemetry tracing settings.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	ServiceName  string  `yaml:"service_name"`
	SampleRate   float64 `yaml:"sample_rate"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory is loaded first when present.
func Load(env string) (Config, error) {
	_ = godotenv.Load()

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML bytes, expands ${VAR} references, applies defaults,
// environment overrides and validation.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	cfg := Config{Search: SearchConfig{Weights: domain.DefaultWeights()}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, fmt.Errorf("env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.RequestTimeoutSec <= 0 {
		c.HTTP.RequestTimeoutSec = 45
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.VectorIndex.Driver == "" {
		c.VectorIndex.Driver = "valkey"
	}
	if c.VectorIndex.Name == "" {
		c.VectorIndex.Name = "reports"
	}
	if c.VectorIndex.HNSWM <= 0 {
		c.VectorIndex.HNSWM = 16
	}
	if c.VectorIndex.HNSWEFConstruct <= 0 {
		c.VectorIndex.HNSWEFConstruct = 200
	}
	if c.VectorIndex.Qdrant.Port <= 0 {
		c.VectorIndex.Qdrant.Port = 6334
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Cache.LRUSize <= 0 {
		c.Embedding.Cache.LRUSize = 4096
	}
	if c.Generation.Model == "" {
		c.Generation.Model = "gemini-1.5-flash-latest"
	}
	if c.Generation.MaxTokens <= 0 {
		c.Generation.MaxTokens = 2048
	}
	if c.Generation.TimeoutSec <= 0 {
		c.Generation.TimeoutSec = 20
	}
	if c.Generation.MaxRetries < 0 {
		c.Generation.MaxRetries = 0
	}
	if c.Search.OverfetchFactor <= 0 {
		c.Search.OverfetchFactor = 5
	}
	if c.Search.DefaultK <= 0 {
		c.Search.DefaultK = 10
	}
	if c.Search.MaxK <= 0 {
		c.Search.MaxK = 100
	}
	if c.Search.SnippetLength <= 0 {
		c.Search.SnippetLength = 500
	}
	if c.Ingest.BatchSize <= 0 {
		c.Ingest.BatchSize = 32
	}
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = 4
	}
	if c.UsageLog.QueueSize <= 0 {
		c.UsageLog.QueueSize = 256
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = int(c.RateLimit.RPS) + 1
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "report-coach"
	}
	if c.Telemetry.SampleRate <= 0 {
		c.Telemetry.SampleRate = 1
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.VectorIndex.Driver {
	case "valkey", "redis":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for the %s vector index", c.VectorIndex.Driver)
		}
	case "qdrant":
		if c.VectorIndex.Qdrant.Host == "" {
			return fmt.Errorf("vector_index.qdrant.host is required")
		}
	case "memory":
	default:
		return fmt.Errorf("vector_index.driver must be valkey, redis, qdrant or memory, got %q", c.VectorIndex.Driver)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	switch c.Embedding.Budget.Action {
	case "", "warn", "reject":
	default:
		return fmt.Errorf("embedding.budget.action must be \"warn\" or \"reject\", got %q", c.Embedding.Budget.Action)
	}
	if c.Search.DefaultK > c.Search.MaxK {
		return fmt.Errorf("search.default_k (%d) exceeds search.max_k (%d)", c.Search.DefaultK, c.Search.MaxK)
	}
	if len(c.Search.Weights.SectionWeights) == 0 {
		return fmt.Errorf("search.weights.section_weights must not be empty")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
