// Package config loads pdfup settings from defaults, an optional YAML file
// and command-line flags.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	TargetHTTP  = "http"
	TargetMinio = "minio"
)

// Config is the full client configuration
type Config struct {
	Endpoint string        `yaml:"endpoint"`
	Target   string        `yaml:"target"`
	Timeout  time.Duration `yaml:"timeout"`
	LogLevel string        `yaml:"log_level"`
	NoColor  bool          `yaml:"no_color"`
	Minio    MinioConfig   `yaml:"minio"`
}

// MinioConfig is used when Target is "minio"
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Folder    string `yaml:"folder"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Endpoint: "http://localhost:8000",
		Target:   TargetHTTP,
		LogLevel: "info",
		Minio:    MinioConfig{Secure: true},
	}
}

// Load reads the YAML file at path on top of the defaults. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return LoadFromReader(file)
}

// LoadFromReader parses YAML from r on top of the defaults.
func LoadFromReader(r io.Reader) (Config, error) {
	cfg := Default()
	data, err := io.ReadAll(r)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration can be used.
func (c *Config) Validate() error {
	c.Target = strings.ToLower(strings.TrimSpace(c.Target))
	switch c.Target {
	case TargetHTTP:
		if c.Endpoint == "" {
			return fmt.Errorf("endpoint is required")
		}
	case TargetMinio:
		if c.Minio.Endpoint == "" {
			return fmt.Errorf("minio.endpoint is required when target is minio")
		}
		if c.Minio.Bucket == "" {
			return fmt.Errorf("minio.bucket is required when target is minio")
		}
	default:
		return fmt.Errorf("unknown target %q (want %s or %s)", c.Target, TargetHTTP, TargetMinio)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}
