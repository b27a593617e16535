package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Port       int           `yaml:"port"`
	DataDir    string        `yaml:"data_dir"`
	SchemaPath string        `yaml:"schema"`
	Model      ModelConfig   `yaml:"model"`
	Log        LogConfig     `yaml:"log"`
	Cache      CacheConfig   `yaml:"cache"`
	Batch      BatchConfig   `yaml:"batch"`
	Display    DisplayConfig `yaml:"display"`
	Version    string        `yaml:"-"`
}

// ModelConfig selects the price model. Registry and Name take precedence
// over Path when both are set.
type ModelConfig struct {
	Path     string `yaml:"path"`
	Kind     string `yaml:"kind"`
	Registry string `yaml:"registry"`
	Name     string `yaml:"name"`
	Version  int    `yaml:"version"`
}

// FromRegistry reports whether the model comes from a sqlite registry.
func (m ModelConfig) FromRegistry() bool {
	return m.Registry != "" && m.Name != ""
}

// LogConfig controls the zap logger and file rotation.
type LogConfig struct {
	Level       string `yaml:"level"`
	File        string `yaml:"file"`
	MaxSizeMB   int    `yaml:"max_size_mb"`
	MaxBackups  int    `yaml:"max_backups"`
	MaxAgeDays  int    `yaml:"max_age_days"`
	Development bool   `yaml:"development"`
	// FileOnly keeps stderr clear, for full-screen terminal UIs.
	FileOnly    bool   `yaml:"file_only"`
}

// CacheConfig sizes the prediction cache. Zero disables it.
type CacheConfig struct {
	Size int `yaml:"size"`
}

// BatchConfig bounds concurrent predictions within one batch request.
type BatchConfig struct {
	Workers int `yaml:"workers"`
}

// DisplayConfig formats predicted prices for people.
type DisplayConfig struct {
	Locale string `yaml:"locale"`
	Prefix string `yaml:"prefix"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:    8080,
		DataDir: "./data",
		Model: ModelConfig{
			Name: "laptop-price",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Cache:   CacheConfig{Size: 256},
		Batch:   BatchConfig{Workers: 4},
		Display: DisplayConfig{Locale: "en"},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("could not parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values that cannot be served.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("cache size must not be negative")
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch workers must be at least 1")
	}
	if c.Model.Version < 0 {
		return fmt.Errorf("model version must not be negative")
	}
	return nil
}

// WithModelPack points the model, and the schema when the pack carries
// one, at an extracted model pack.
func (c Config) WithModelPack(dir string) Config {
	c.Model = ModelConfig{Path: filepath.Join(dir, "model.json")}
	if _, err := os.Stat(filepath.Join(dir, "schema.yaml")); err == nil {
		c.SchemaPath = filepath.Join(dir, "schema.yaml")
	}
	return c
}
