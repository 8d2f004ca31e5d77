package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the finbrief pipeline configuration.
type Config struct {
	HTTP          HTTPConfig                    `yaml:"http"`
	Auth          AuthConfig                    `yaml:"auth"`
	Logging       LoggingConfig                 `yaml:"logging"`
	Collaborators map[string]CollaboratorConfig `yaml:"collaborators"`
	Pipeline      PipelineConfig                `yaml:"pipeline"`
	Retrieval     RetrievalConfig               `yaml:"retrieval"`
	Embedding     EmbeddingConfig               `yaml:"embedding"`
	Synthesis     SynthesisConfig               `yaml:"synthesis"`
	Cache         CacheConfig                   `yaml:"cache"`
	Snapshot      SnapshotConfig                `yaml:"snapshot"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// CollaboratorConfig holds connection settings for one collaborating service.
type CollaboratorConfig struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

// PipelineConfig holds orchestration settings.
type PipelineConfig struct {
	QueryDeadlineMS int                `yaml:"query_deadline_ms"` // wall-clock budget per query
	DefaultSymbols  []string           `yaml:"default_symbols"`
	Portfolio       map[string]float64 `yaml:"portfolio"` // symbol -> weight, for risk analysis
	BundleMaxChars  int                `yaml:"bundle_max_chars"`
}

// RetrievalConfig holds semantic retrieval settings.
type RetrievalConfig struct {
	TopK     int     `yaml:"top_k"`
	MinScore float64 `yaml:"min_score"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
}

// ConfidenceWeights holds the relative weight of each confidence input.
// The three weights should sum to 1.
type ConfidenceWeights struct {
	Coverage  float64 `yaml:"coverage"`
	Retrieval float64 `yaml:"retrieval"`
	Lexical   float64 `yaml:"lexical"`
}

// SynthesisConfig holds language generation and gating settings.
type SynthesisConfig struct {
	APIKey          string            `yaml:"api_key"`
	BaseURL         string            `yaml:"base_url"`
	Model           string            `yaml:"model"`
	MaxTokens       int               `yaml:"max_tokens"`
	MaxAnswerChars  int               `yaml:"max_answer_chars"`
	AcceptThreshold float64           `yaml:"accept_threshold"`
	Weights         ConfidenceWeights `yaml:"confidence_weights"`
}

// CacheConfig holds the optional embedding cache store settings.
type CacheConfig struct {
	Addrs            []string `yaml:"addrs"` // empty = cache disabled
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// SnapshotConfig holds index persistence settings.
type SnapshotConfig struct {
	Path string `yaml:"path"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

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
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Pipeline.QueryDeadlineMS <= 0 {
		c.Pipeline.QueryDeadlineMS = 15000
	}
	if c.Pipeline.BundleMaxChars <= 0 {
		c.Pipeline.BundleMaxChars = 6000
	}
	if len(c.Pipeline.DefaultSymbols) == 0 {
		c.Pipeline.DefaultSymbols = []string{"TSM", "005930.KS", "BABA", "TCEHY", "ASML"}
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 5
	}
	if c.Retrieval.MinScore <= 0 {
		c.Retrieval.MinScore = 0.35
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 384
	}
	if c.Synthesis.MaxTokens <= 0 {
		c.Synthesis.MaxTokens = 512
	}
	if c.Synthesis.MaxAnswerChars <= 0 {
		c.Synthesis.MaxAnswerChars = 2000
	}
	if c.Synthesis.AcceptThreshold <= 0 {
		c.Synthesis.AcceptThreshold = 0.7
	}
	if c.Synthesis.Weights == (ConfidenceWeights{}) {
		c.Synthesis.Weights = ConfidenceWeights{Coverage: 0.4, Retrieval: 0.4, Lexical: 0.2}
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Snapshot.Path == "" {
		c.Snapshot.Path = "data/index.db"
	}
	for name, col := range c.Collaborators {
		if col.TimeoutMS <= 0 {
			col.TimeoutMS = 5000
			c.Collaborators[name] = col
		}
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	w := c.Synthesis.Weights
	sum := w.Coverage + w.Retrieval + w.Lexical
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("synthesis.confidence_weights must sum to 1, got %.3f", sum)
	}
	if w.Coverage < 0 || w.Retrieval < 0 || w.Lexical < 0 {
		return fmt.Errorf("synthesis.confidence_weights must be non-negative")
	}
	if c.Synthesis.AcceptThreshold > 1 {
		return fmt.Errorf("synthesis.accept_threshold must be at most 1, got %.3f", c.Synthesis.AcceptThreshold)
	}
	if c.Retrieval.MinScore > 1 {
		return fmt.Errorf("retrieval.min_score must be at most 1, got %.3f", c.Retrieval.MinScore)
	}
	for name, col := range c.Collaborators {
		if col.BaseURL == "" {
			return fmt.Errorf("collaborators.%s.base_url is required", name)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
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
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
