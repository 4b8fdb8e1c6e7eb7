// Package config loads skillcourse configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds the skillcourse configuration.
type Config struct {
	Env       string          `yaml:"env" validate:"oneof=local dev prod test"`
	LogLevel  string          `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	Database  DatabaseConfig  `yaml:"database"`
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Recommend RecommendConfig `yaml:"recommend"`
	Sync      SyncConfig      `yaml:"sync"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// DatabaseConfig holds the SQLite catalog settings.
type DatabaseConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// Index backends
const (
	IndexSQLite = "sqlite"
	IndexValkey = "valkey"
	IndexNone   = "none"
)

// IndexConfig selects the embedding index backend.
type IndexConfig struct {
	Backend string       `yaml:"backend" validate:"oneof=sqlite valkey none"`
	Valkey  ValkeyConfig `yaml:"valkey"`
}

// ValkeyConfig holds Valkey connection settings.
type ValkeyConfig struct {
	Addrs     []string `yaml:"addrs"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	IndexName string   `yaml:"index_name"`
	KeyPrefix string   `yaml:"key_prefix"`
}

// EmbeddingConfig holds embedder settings.
type EmbeddingConfig struct {
	Provider        string        `yaml:"provider" validate:"oneof=local openai"`
	Model           string        `yaml:"model"`
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url" validate:"omitempty,url"`
	Dimensions      int           `yaml:"dimensions" validate:"min=0"`
	CacheSize       int           `yaml:"cache_size" validate:"min=0"`
	WeightsPath     string        `yaml:"weights_path"`
	BreakerFailures uint32        `yaml:"breaker_failures"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout"`
}

// RecommendConfig tunes the recommendation service.
type RecommendConfig struct {
	DefaultTopN      int           `yaml:"default_top_n" validate:"min=1"`
	MaxTopN          int           `yaml:"max_top_n" validate:"gtefield=DefaultTopN"`
	CandidateWindow  int           `yaml:"candidate_window" validate:"min=1"`
	IndexOverfetch   int           `yaml:"index_overfetch" validate:"min=1"`
	FailureThreshold int           `yaml:"failure_threshold" validate:"min=1"`
	Workers          int           `yaml:"workers" validate:"min=1"`
	CacheSize        int           `yaml:"cache_size" validate:"min=0"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
}

// SyncConfig tunes index sync.
type SyncConfig struct {
	BatchSize int `yaml:"batch_size" validate:"min=1,max=100"`
	Workers   int `yaml:"workers" validate:"min=1"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Load reads configuration from path. An empty path loads defaults only.
// Environment overrides are applied after the file and before validation.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}

		// Substitute env variables of the form ${VAR}
		data = expandEnvVars(data)

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.ApplyDefaults()
	cfg.ApplyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Env == "" {
		c.Env = "local"
	}
	if c.Database.Path == "" {
		c.Database.Path = "skillcourse.db"
	}
	if c.Index.Backend == "" {
		c.Index.Backend = IndexSQLite
	}
	if c.Index.Valkey.IndexName == "" {
		c.Index.Valkey.IndexName = "skillcourse:courses:idx"
	}
	if c.Index.Valkey.KeyPrefix == "" {
		c.Index.Valkey.KeyPrefix = "skillcourse:"
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "local"
	}
	if c.Embedding.CacheSize == 0 {
		c.Embedding.CacheSize = 10000
	}
	if c.Embedding.BreakerFailures == 0 {
		c.Embedding.BreakerFailures = 5
	}
	if c.Embedding.BreakerTimeout <= 0 {
		c.Embedding.BreakerTimeout = 30 * time.Second
	}
	if c.Recommend.DefaultTopN <= 0 {
		c.Recommend.DefaultTopN = 3
	}
	if c.Recommend.MaxTopN <= 0 {
		c.Recommend.MaxTopN = 50
	}
	if c.Recommend.CandidateWindow <= 0 {
		c.Recommend.CandidateWindow = 150
	}
	if c.Recommend.IndexOverfetch <= 0 {
		c.Recommend.IndexOverfetch = 5
	}
	if c.Recommend.FailureThreshold <= 0 {
		c.Recommend.FailureThreshold = 3
	}
	if c.Recommend.Workers <= 0 {
		c.Recommend.Workers = 8
	}
	if c.Recommend.CacheTTL <= 0 {
		c.Recommend.CacheTTL = 10 * time.Minute
	}
	if c.Sync.BatchSize <= 0 {
		c.Sync.BatchSize = 100
	}
	if c.Sync.Workers <= 0 {
		c.Sync.Workers = 4
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ReadTimeout <= 0 {
		c.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.HTTP.WriteTimeout <= 0 {
		c.HTTP.WriteTimeout = 30 * time.Second
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
}

// ApplyEnv overrides fields from environment variables read with getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("SKILLCOURSE_ENV"); v != "" {
		c.Env = v
	}
	if v := getenv("SKILLCOURSE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv("SKILLCOURSE_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := getenv("SKILLCOURSE_INDEX_BACKEND"); v != "" {
		c.Index.Backend = v
	}
	if v := getenv("SKILLCOURSE_VALKEY_ADDR"); v != "" {
		c.Index.Valkey.Addrs = splitList(v)
	}
	if v := getenv("SKILLCOURSE_EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := getenv("OPENAI_API_KEY"); v != "" && c.Embedding.APIKey == "" {
		c.Embedding.APIKey = v
	}
	if v := getenv("SKILLCOURSE_HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
}

var validate = validator.New()

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	if c.Index.Backend == IndexValkey && len(c.Index.Valkey.Addrs) == 0 {
		return fmt.Errorf("index.valkey.addrs is required for the valkey backend")
	}
	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		return fmt.Errorf("embedding.api_key (or OPENAI_API_KEY) is required for the openai provider")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
