// Package config handles graphkernel configuration via YAML files and environment variables.
//
// Configuration Precedence (highest to lowest):
//  1. Command-line flags (--data-dir, --dense-threshold, etc.)
//  2. Environment variables (GRAPHKERNEL_*)
//  3. Config file (graphkernel.yaml)
//  4. Built-in defaults
//
// Example Usage:
//
//	cfg, err := config.LoadFromFile(config.FindConfigFile())
//	if err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//
// Environment Variables (all use GRAPHKERNEL_ prefix):
//
// Storage:
//   - GRAPHKERNEL_DATA_DIR="./data"
//   - GRAPHKERNEL_IN_MEMORY=false
//   - GRAPHKERNEL_SYNC_WRITES=false
//   - GRAPHKERNEL_LOW_MEMORY=false
//   - GRAPHKERNEL_SCAN_PREFETCH=100
//
// Kernel:
//   - GRAPHKERNEL_DENSE_NODE_THRESHOLD=50
//
// Logging:
//   - GRAPHKERNEL_LOG_LEVEL="info"
//   - GRAPHKERNEL_LOG_FORMAT="text"
//
// Metrics:
//   - GRAPHKERNEL_METRICS_ENABLED=true
//   - GRAPHKERNEL_METRICS_NAMESPACE="graphkernel"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultDenseNodeThreshold is the degree at which a node switches from
// chain walking to group summaries for degree queries.
const DefaultDenseNodeThreshold = 50

// Config holds all graphkernel configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Kernel  KernelConfig  `yaml:"kernel"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// StorageConfig holds entity store settings.
type StorageConfig struct {
	// DataDir is the BadgerDB directory.
	DataDir string `yaml:"data_dir"`
	// InMemory keeps everything in RAM; nothing is persisted.
	InMemory bool `yaml:"in_memory"`
	// SyncWrites forces fsync after each commit.
	SyncWrites bool `yaml:"sync_writes"`
	// LowMemory shrinks Badger's memtables and caches.
	LowMemory bool `yaml:"low_memory"`
	// ScanPrefetch is the value prefetch window used by record scans.
	ScanPrefetch int `yaml:"scan_prefetch"`
}

// KernelConfig holds read path settings.
type KernelConfig struct {
	// DenseNodeThreshold is the degree hint at or above which degree and
	// relationship type queries use relationship group summaries.
	DenseNodeThreshold int `yaml:"dense_node_threshold"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// LoadDefaults returns the built-in defaults.
func LoadDefaults() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir:      "./data",
			ScanPrefetch: 100,
		},
		Kernel: KernelConfig{
			DenseNodeThreshold: DefaultDenseNodeThreshold,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "graphkernel",
		},
	}
}

// LoadFromEnv returns the defaults overridden by environment variables.
func LoadFromEnv() *Config {
	cfg := LoadDefaults()
	applyEnvVars(cfg)
	return cfg
}

// LoadFromFile loads defaults, then the YAML file at configPath (a missing
// or empty path is not an error), then environment variables.
func LoadFromFile(configPath string) (*Config, error) {
	cfg := LoadDefaults()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case os.IsNotExist(err):
			// fall through to env
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	applyEnvVars(cfg)
	return cfg, nil
}

func applyEnvVars(cfg *Config) {
	cfg.Storage.DataDir = getEnv("GRAPHKERNEL_DATA_DIR", cfg.Storage.DataDir)
	cfg.Storage.InMemory = getEnvBool("GRAPHKERNEL_IN_MEMORY", cfg.Storage.InMemory)
	cfg.Storage.SyncWrites = getEnvBool("GRAPHKERNEL_SYNC_WRITES", cfg.Storage.SyncWrites)
	cfg.Storage.LowMemory = getEnvBool("GRAPHKERNEL_LOW_MEMORY", cfg.Storage.LowMemory)
	cfg.Storage.ScanPrefetch = getEnvInt("GRAPHKERNEL_SCAN_PREFETCH", cfg.Storage.ScanPrefetch)

	cfg.Kernel.DenseNodeThreshold = getEnvInt("GRAPHKERNEL_DENSE_NODE_THRESHOLD", cfg.Kernel.DenseNodeThreshold)

	cfg.Logging.Level = getEnv("GRAPHKERNEL_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("GRAPHKERNEL_LOG_FORMAT", cfg.Logging.Format)

	cfg.Metrics.Enabled = getEnvBool("GRAPHKERNEL_METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Namespace = getEnv("GRAPHKERNEL_METRICS_NAMESPACE", cfg.Metrics.Namespace)
}

// Validate checks the configuration for values the components cannot use.
func (c *Config) Validate() error {
	if !c.Storage.InMemory && c.Storage.DataDir == "" {
		return fmt.Errorf("data dir required unless storage is in-memory")
	}
	if c.Storage.ScanPrefetch < 0 {
		return fmt.Errorf("invalid scan prefetch: %d", c.Storage.ScanPrefetch)
	}
	if c.Kernel.DenseNodeThreshold < 1 {
		return fmt.Errorf("invalid dense node threshold: %d", c.Kernel.DenseNodeThreshold)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{DataDir: %s, InMemory: %v, DenseNodeThreshold: %d, Log: %s/%s}",
		c.Storage.DataDir, c.Storage.InMemory,
		c.Kernel.DenseNodeThreshold,
		c.Logging.Level, c.Logging.Format,
	)
}

// FindConfigFile returns the first existing config file among the usual
// locations, or "" when there is none.
func FindConfigFile() string {
	var candidates []string

	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".graphkernel", "config.yaml"))
	}
	candidates = append(candidates, "graphkernel.yaml", "config.yaml")
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "graphkernel", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}
