// Package config manages configuration for the index, the MeSH
// vocabulary, and retrieval experiment runs.
//
// Configuration precedence, lowest to highest: built-in defaults,
// the JSON config file, environment variables. A missing config file
// is not an error; defaults apply.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config is the root configuration.
type Config struct {
	Index     IndexConfig     `json:"index"`
	MeSH      MeSHConfig      `json:"mesh"`
	Cache     CacheConfig     `json:"cache"`
	Retrieval RetrievalConfig `json:"retrieval"`
	Logging   LoggingConfig   `json:"logging"`
}

// IndexConfig locates the article index and controls ingestion.
type IndexConfig struct {
	// Path is the on-disk bleve index directory.
	Path string `json:"path"`
	// BatchSize is the number of articles per indexing batch.
	BatchSize int `json:"batch_size"`
	// Workers is the number of concurrent ingestion workers.
	Workers int `json:"workers"`
}

// MeSHConfig locates the MeSH vocabulary.
type MeSHConfig struct {
	// TreeFile is the flat "heading;location" tree file.
	TreeFile string `json:"tree_file"`
}

// CacheConfig controls the on-disk leaf result cache.
type CacheConfig struct {
	Enabled   bool   `json:"enabled"`
	Directory string `json:"directory"`
	// BloomCapacity sizes the bloom filter fronting the cache.
	BloomCapacity uint `json:"bloom_capacity"`
	// BloomFalsePositiveRate is the filter's target error rate.
	BloomFalsePositiveRate float64 `json:"bloom_false_positive_rate"`
}

// RetrievalConfig controls decomposed retrieval runs.
type RetrievalConfig struct {
	// Workers bounds concurrent leaf evaluation.
	Workers int `json:"workers"`
	// DateField is the field alias used for topic date windows.
	DateField string `json:"date_field"`
	// IgnoreDates disables topic date restriction.
	IgnoreDates bool `json:"ignore_dates"`
	// Relaxation thresholds for the smooth operators.
	ThetaAND float64 `json:"theta_and"`
	ThetaOR  float64 `json:"theta_or"`
	ThetaNOT float64 `json:"theta_not"`
	// RunDir receives run files from batch experiments.
	RunDir string `json:"run_dir"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
	File   string `json:"file"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Path:      "data/index",
			BatchSize: 500,
			Workers:   4,
		},
		MeSH: MeSHConfig{
			TreeFile: "data/mesh/mtrees2023.bin",
		},
		Cache: CacheConfig{
			Enabled:                false,
			Directory:              "data/cache",
			BloomCapacity:          1_000_000,
			BloomFalsePositiveRate: 0.01,
		},
		Retrieval: RetrievalConfig{
			Workers:   4,
			DateField: "dp",
			ThetaAND:  1.0,
			ThetaOR:   0.0,
			ThetaNOT:  1.0,
			RunDir:    "runs",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "console",
		},
	}
}

// LoadConfig builds a configuration from defaults, an optional JSON
// file, and environment overrides, then validates it.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()
	if configPath != "" {
		if err := config.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}
	config.applyEnvironmentOverrides()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// loadFromFile merges a JSON file over the current values. A missing
// file is ignored so default-only setups work without one.
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, c)
}

func (c *Config) applyEnvironmentOverrides() {
	if val := os.Getenv("BOOLIR_INDEX_PATH"); val != "" {
		c.Index.Path = val
	}
	if val := os.Getenv("BOOLIR_MESH_TREE"); val != "" {
		c.MeSH.TreeFile = val
	}
	if val := os.Getenv("BOOLIR_CACHE_DIR"); val != "" {
		c.Cache.Directory = val
		c.Cache.Enabled = true
	}
	if val := os.Getenv("BOOLIR_WORKERS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Retrieval.Workers = n
		}
	}
	if val := os.Getenv("BOOLIR_IGNORE_DATES"); val != "" {
		c.Retrieval.IgnoreDates = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("BOOLIR_LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
	if val := os.Getenv("BOOLIR_LOG_FORMAT"); val != "" {
		c.Logging.Format = val
	}
}

// Validate checks value ranges. Thresholds are probabilities and the
// worker counts must be usable as semaphore sizes.
func (c *Config) Validate() error {
	if c.Index.BatchSize <= 0 {
		return fmt.Errorf("index batch size must be positive, got %d", c.Index.BatchSize)
	}
	if c.Index.Workers <= 0 {
		return fmt.Errorf("index workers must be positive, got %d", c.Index.Workers)
	}
	if c.Retrieval.Workers <= 0 {
		return fmt.Errorf("retrieval workers must be positive, got %d", c.Retrieval.Workers)
	}
	for name, theta := range map[string]float64{
		"theta_and": c.Retrieval.ThetaAND,
		"theta_or":  c.Retrieval.ThetaOR,
		"theta_not": c.Retrieval.ThetaNOT,
	} {
		if theta < 0 || theta > 1 {
			return fmt.Errorf("%s must be in [0,1], got %f", name, theta)
		}
	}
	if c.Cache.Enabled {
		if c.Cache.Directory == "" {
			return fmt.Errorf("cache directory required when cache is enabled")
		}
		if c.Cache.BloomCapacity == 0 {
			return fmt.Errorf("bloom capacity must be positive")
		}
		if c.Cache.BloomFalsePositiveRate <= 0 || c.Cache.BloomFalsePositiveRate >= 1 {
			return fmt.Errorf("bloom false positive rate must be in (0,1), got %f", c.Cache.BloomFalsePositiveRate)
		}
	}
	return nil
}

// SaveToFile writes the configuration as indented JSON.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetDefaultConfigPath returns the per-user config file location.
func GetDefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return filepath.Join(home, ".boolir", "config.json"), nil
}
