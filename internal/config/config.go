// Package config loads per-binary service configuration. Configuration
// sources, in priority order: env vars > config file > defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// ServiceConfig holds the configuration shared by the ingest-service,
// query-service, and analytics-worker binaries.
type ServiceConfig struct {
	ListenAddr       string `json:"listen_addr"`
	DatabaseURL      string `json:"database_url"`
	PoolMinConns     int32  `json:"pool_min_conns"`
	PoolMaxConns     int32  `json:"pool_max_conns"`
	WorkerCount      int    `json:"worker_count"`
	LogLevel         string `json:"log_level"`
	OTLPEndpoint     string `json:"otlp_endpoint,omitempty"`
	DriftConfigPath  string `json:"drift_config_path,omitempty"`

	// Alert sinks (spec §6.4): log and database are always on; the rest are
	// independently enabled by the presence of their URL/key.
	WebhookURL          string `json:"webhook_url,omitempty"`
	WebhookSecret       string `json:"webhook_secret,omitempty"`
	SlackWebhookURL      string `json:"slack_webhook_url,omitempty"`
	PagerDutyRoutingKey string `json:"pagerduty_routing_key,omitempty"`
}

// Default returns configuration with sensible defaults.
func Default() ServiceConfig {
	return ServiceConfig{
		ListenAddr:   ":8080",
		DatabaseURL:  "postgres://localhost:5432/observatory?sslmode=disable",
		PoolMinConns: 2,
		PoolMaxConns: 20,
		WorkerCount:  4,
		LogLevel:     "info",
	}
}

// Load reads configuration from a JSON file, then overlays environment
// variable overrides, matching the precedence stated in the package comment.
func Load(path string) (ServiceConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if v := os.Getenv("OBSERVATORY_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("OBSERVATORY_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("OBSERVATORY_POOL_MIN_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PoolMinConns = int32(n)
		}
	}
	if v := os.Getenv("OBSERVATORY_POOL_MAX_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PoolMaxConns = int32(n)
		}
	}
	if v := os.Getenv("OBSERVATORY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("OBSERVATORY_OTLP_ENDPOINT"); v != "" {
		cfg.OTLPEndpoint = v
	}
	if v := os.Getenv("OBSERVATORY_DRIFT_CONFIG_PATH"); v != "" {
		cfg.DriftConfigPath = v
	}
	if v := os.Getenv("OBSERVATORY_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WorkerCount = n
		}
	}
	if v := os.Getenv("OBSERVATORY_WEBHOOK_URL"); v != "" {
		cfg.WebhookURL = v
	}
	if v := os.Getenv("OBSERVATORY_WEBHOOK_SECRET"); v != "" {
		cfg.WebhookSecret = v
	}
	if v := os.Getenv("OBSERVATORY_SLACK_WEBHOOK_URL"); v != "" {
		cfg.SlackWebhookURL = v
	}
	if v := os.Getenv("OBSERVATORY_PAGERDUTY_ROUTING_KEY"); v != "" {
		cfg.PagerDutyRoutingKey = v
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() ServiceConfig {
	cfg, _ := Load("")
	return cfg
}
