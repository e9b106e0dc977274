package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the complete inkwell configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
	Rerank    RerankConfig    `yaml:"rerank" json:"rerank"`
	Search    SearchConfig    `yaml:"search" json:"search"`
	Chunking  ChunkingConfig  `yaml:"chunking" json:"chunking"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// EmbeddingConfig configures the embedding gateway.
// The API key is never read from YAML; it comes from INKWELL_API_KEY only.
type EmbeddingConfig struct {
	Endpoint   string `yaml:"endpoint" json:"endpoint"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	APIKey     string `yaml:"-" json:"-"`
}

// RerankConfig configures the rerank gateway.
type RerankConfig struct {
	// Enabled wires the rerank stage into the pipeline. Retrieval works
	// without it; rerank failures degrade to fused order either way.
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Model    string `yaml:"model" json:"model"`
}

// SearchConfig configures the retrieval pipeline defaults. Zero values fall
// back to the engine's built-in defaults at call time.
type SearchConfig struct {
	// Alpha is the vector weight in fusion, 0.0-1.0.
	Alpha float64 `yaml:"alpha" json:"alpha"`

	// TopK is the per-sub-search candidate count before fusion.
	TopK int `yaml:"top_k" json:"top_k"`

	// FinalTopN is the result count after the full pipeline.
	FinalTopN int `yaml:"final_top_n" json:"final_top_n"`

	// MinRelevanceThreshold floors the dynamic threshold filter.
	MinRelevanceThreshold float64 `yaml:"min_relevance_threshold" json:"min_relevance_threshold"`

	// UseMMR enables diversity selection.
	UseMMR bool `yaml:"use_mmr" json:"use_mmr"`

	// MMRLambda trades relevance against diversity, 0.0-1.0.
	MMRLambda float64 `yaml:"mmr_lambda" json:"mmr_lambda"`

	// RecencyBoost scales the corpus-position boost; 0 disables it.
	RecencyBoost float64 `yaml:"recency_boost" json:"recency_boost"`

	// ContextWindow is the neighbor count on each side in context assembly.
	ContextWindow int `yaml:"context_window" json:"context_window"`
}

// ChunkingConfig configures document splitting at ingestion time.
type ChunkingConfig struct {
	Size    int `yaml:"size" json:"size"`
	Overlap int `yaml:"overlap" json:"overlap"`
}

// StorageConfig configures the knowledge base catalog.
type StorageConfig struct {
	// Path is the catalog database file. Empty means
	// ~/.inkwell/knowledge.db.
	Path string `yaml:"path" json:"path"`

	// Watch reloads the catalog when another process modifies it.
	Watch bool `yaml:"watch" json:"watch"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	// File is the log destination. Empty logs to stderr.
	File string `yaml:"file" json:"file"`
	// MaxSizeMB rotates the log file once it grows past this size.
	MaxSizeMB int `yaml:"max_size_mb" json:"max_size_mb"`
}

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Embedding: EmbeddingConfig{
			Endpoint:   "", // empty uses the gateway default
			Model:      "text-embedding-v4",
			Dimensions: 1024,
			BatchSize:  10,
		},
		Rerank: RerankConfig{
			Enabled:  true,
			Endpoint: "",
			Model:    "gte-rerank-v2",
		},
		Search: SearchConfig{
			Alpha:                 0.7,
			TopK:                  20,
			FinalTopN:             5,
			MinRelevanceThreshold: 0.25,
			UseMMR:                false,
			MMRLambda:             0.7,
			RecencyBoost:          0.3,
			ContextWindow:         2,
		},
		Chunking: ChunkingConfig{
			Size:    800,
			Overlap: 144,
		},
		Storage: StorageConfig{
			Path:  defaultCatalogPath(),
			Watch: false,
		},
		Logging: LoggingConfig{
			Level:     "info",
			File:      "",
			MaxSizeMB: 50,
		},
	}
}

func defaultCatalogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".inkwell", "knowledge.db")
	}
	return filepath.Join(home, ".inkwell", "knowledge.db")
}

// UserConfigPath returns the global configuration file path, honoring
// XDG_CONFIG_HOME.
func UserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "inkwell", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "inkwell", "config.yaml")
	}
	return filepath.Join(home, ".config", "inkwell", "config.yaml")
}

// Load builds the configuration in order of increasing precedence:
//
//  1. built-in defaults
//  2. user config (~/.config/inkwell/config.yaml)
//  3. project config (.inkwell.yaml in dir)
//  4. INKWELL_* environment variables
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := UserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}
	for _, name := range []string{".inkwell.yaml", ".inkwell.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			if err := cfg.loadYAML(path); err != nil {
				return nil, err
			}
			break
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// loadYAML merges non-zero values from the file over the current config.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith copies non-zero values from other. A false boolean in a config
// file cannot be distinguished from an unset one, so booleans only merge
// toward true; rerank stays opt-out via the command line.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Embedding.Endpoint != "" {
		c.Embedding.Endpoint = other.Embedding.Endpoint
	}
	if other.Embedding.Model != "" {
		c.Embedding.Model = other.Embedding.Model
	}
	if other.Embedding.Dimensions != 0 {
		c.Embedding.Dimensions = other.Embedding.Dimensions
	}
	if other.Embedding.BatchSize != 0 {
		c.Embedding.BatchSize = other.Embedding.BatchSize
	}

	if other.Rerank.Endpoint != "" {
		c.Rerank.Endpoint = other.Rerank.Endpoint
	}
	if other.Rerank.Model != "" {
		c.Rerank.Model = other.Rerank.Model
	}

	if other.Search.Alpha != 0 {
		c.Search.Alpha = other.Search.Alpha
	}
	if other.Search.TopK != 0 {
		c.Search.TopK = other.Search.TopK
	}
	if other.Search.FinalTopN != 0 {
		c.Search.FinalTopN = other.Search.FinalTopN
	}
	if other.Search.MinRelevanceThreshold != 0 {
		c.Search.MinRelevanceThreshold = other.Search.MinRelevanceThreshold
	}
	if other.Search.UseMMR {
		c.Search.UseMMR = true
	}
	if other.Search.MMRLambda != 0 {
		c.Search.MMRLambda = other.Search.MMRLambda
	}
	if other.Search.RecencyBoost != 0 {
		c.Search.RecencyBoost = other.Search.RecencyBoost
	}
	if other.Search.ContextWindow != 0 {
		c.Search.ContextWindow = other.Search.ContextWindow
	}

	if other.Chunking.Size != 0 {
		c.Chunking.Size = other.Chunking.Size
	}
	if other.Chunking.Overlap != 0 {
		c.Chunking.Overlap = other.Chunking.Overlap
	}

	if other.Storage.Path != "" {
		c.Storage.Path = other.Storage.Path
	}
	if other.Storage.Watch {
		c.Storage.Watch = true
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.File != "" {
		c.Logging.File = other.Logging.File
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
}

// applyEnvOverrides applies INKWELL_* environment variables, the highest
// precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("INKWELL_API_KEY"); v != "" {
		c.Embedding.APIKey = v
	}
	if v := os.Getenv("INKWELL_EMBED_ENDPOINT"); v != "" {
		c.Embedding.Endpoint = v
	}
	if v := os.Getenv("INKWELL_EMBED_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("INKWELL_RERANK_ENDPOINT"); v != "" {
		c.Rerank.Endpoint = v
	}
	if v := os.Getenv("INKWELL_RERANK_MODEL"); v != "" {
		c.Rerank.Model = v
	}
	if v := os.Getenv("INKWELL_DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("INKWELL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("INKWELL_ALPHA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.Alpha = f
		}
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Search.Alpha < 0 || c.Search.Alpha > 1 {
		return fmt.Errorf("search.alpha must be in [0,1], got %v", c.Search.Alpha)
	}
	if c.Search.MMRLambda < 0 || c.Search.MMRLambda > 1 {
		return fmt.Errorf("search.mmr_lambda must be in [0,1], got %v", c.Search.MMRLambda)
	}
	if c.Search.TopK < 0 || c.Search.FinalTopN < 0 {
		return fmt.Errorf("search top_k and final_top_n must not be negative")
	}
	if c.Search.RecencyBoost < 0 {
		return fmt.Errorf("search.recency_boost must not be negative, got %v", c.Search.RecencyBoost)
	}
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, size), got %d", c.Chunking.Overlap)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding.batch_size must be positive, got %d", c.Embedding.BatchSize)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must not be negative, got %d", c.Embedding.Dimensions)
	}
	return nil
}
