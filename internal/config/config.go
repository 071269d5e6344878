package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Bastion orchestration server.
type Config struct {
	Port      int
	Version   string
	Database  DatabaseConfig
	Telemetry TelemetryConfig
	Anthropic AnthropicConfig
	Turns     TurnConfig
	Filters   FilterConfig
}

type DatabaseConfig struct {
	// URL is the Postgres connection string for the checkpoint store.
	// Empty runs checkpoints in-process only.
	URL            string
	ConnectRetries int
	HealthInterval time.Duration
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

type AnthropicConfig struct {
	// Enabled requires ANTHROPIC_API_KEY in the environment; the SDK reads
	// the key itself.
	Enabled bool
}

type TurnConfig struct {
	MaxConcurrent int
	MessageWindow int
}

type FilterConfig struct {
	// Tags and Categories are the known filter vocabulary, comma separated
	// in the environment.
	Tags       []string
	Categories []string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:    envInt("BASTION_PORT", 8080),
		Version: envStr("BASTION_VERSION", "0.2.0"),
		Database: DatabaseConfig{
			URL:            envStr("DATABASE_URL", ""),
			ConnectRetries: envInt("DATABASE_CONNECT_RETRIES", 3),
			HealthInterval: time.Duration(envInt("DATABASE_HEALTH_INTERVAL_SECONDS", 30)) * time.Second,
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", true),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "bastion"),
		},
		Anthropic: AnthropicConfig{
			Enabled: os.Getenv("ANTHROPIC_API_KEY") != "",
		},
		Turns: TurnConfig{
			MaxConcurrent: envInt("BASTION_MAX_CONCURRENT_TURNS", 32),
			MessageWindow: envInt("BASTION_MESSAGE_WINDOW", 6),
		},
		Filters: FilterConfig{
			Tags:       envList("BASTION_FILTER_TAGS"),
			Categories: envList("BASTION_FILTER_CATEGORIES"),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
