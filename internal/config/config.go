// Package config loads configuration from environment variables, with
// matcher defaults embedded in defaults.yaml. A .env file is honored when
// present (loaded by the CLI entrypoint).
package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Env      string // "prod" enables JSON logging; anything else is dev
	Server   ServerConfig
	Database DatabaseConfig
	Detector DetectorConfig
	Matcher  MatcherConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Driver       string // "sqlite", "postgres" or "memory"
	URL          string // PostgreSQL connection URL
	Path         string // SQLite database path
	MaxOpenConns int
	MaxIdleConns int
}

type DetectorConfig struct {
	URL          string // face detector service, e.g. http://localhost:8000
	MaxImageSize int    // images larger than this (px) are downscaled before upload
}

// MatcherConfig carries the two decision parameters of the engine. Both are
// deployment configuration, never hard-coded: Tolerance is the maximum face
// distance for a candidate to match at all, AcceptanceThreshold the minimum
// confidence to accept the best match.
type MatcherConfig struct {
	Tolerance           float64 `yaml:"tolerance"`
	AcceptanceThreshold float64 `yaml:"acceptance_threshold"`
	Dim                 int     `yaml:"dim"`
}

type defaults struct {
	Matcher MatcherConfig `yaml:"matcher"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func Load() *Config {
	var d defaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		// Embedded file, so this can only be a build-time mistake.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Env: envString("APP_ENV", "dev"),
		Server: ServerConfig{
			Host: envString("WEB_HOST", "0.0.0.0"),
			Port: envInt("WEB_PORT", 8080),
		},
		Database: DatabaseConfig{
			Driver:       envString("DATABASE_DRIVER", "sqlite"),
			URL:          os.Getenv("DATABASE_URL"),
			Path:         envString("SQLITE_PATH", "attendance.db"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Detector: DetectorConfig{
			URL:          envString("DETECTOR_URL", "http://localhost:8000"),
			MaxImageSize: envInt("DETECTOR_MAX_IMAGE_SIZE", 1600),
		},
		Matcher: MatcherConfig{
			Tolerance:           envFloat("MATCH_TOLERANCE", d.Matcher.Tolerance),
			AcceptanceThreshold: envFloat("MATCH_ACCEPTANCE_THRESHOLD", d.Matcher.AcceptanceThreshold),
			Dim:                 envInt("EMBEDDING_DIM", d.Matcher.Dim),
		},
	}
}
