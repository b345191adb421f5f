// Package config defines service configuration and its loading layers.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a YAML file and NUTRI_* env vars on top of the defaults.
// - Load errors wrap this package's sentinels.
package config

import (
	"context"
	"runtime"
	"strings"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogJSON switches log output to JSON lines.
	LogJSON bool `koanf:"log_json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Store selects the measurement backend: memory or postgres.
	Store string `koanf:"store"`

	// DatabaseURL is the pgx connection string used when Store is postgres.
	DatabaseURL string `koanf:"database_url"`

	// DBMaxConns and DBMinConns size the pgx pool.
	DBMaxConns int32 `koanf:"db_max_conns"`
	DBMinConns int32 `koanf:"db_min_conns"`

	// ImportQueueSize bounds the in-memory import queue.
	ImportQueueSize int `koanf:"import_queue_size"`

	// ImportWorkers sets the number of import workers.
	ImportWorkers int `koanf:"import_workers"`

	// DedupeSize caps the import dedupe cache. Zero keeps every key.
	DedupeSize int `koanf:"dedupe_size"`

	// AMQPURL enables the RabbitMQ import consumer when non-empty.
	AMQPURL string `koanf:"amqp_url"`

	// AMQPQueue is the queue the consumer reads measurement messages from.
	AMQPQueue string `koanf:"amqp_queue"`

	// ReportMetrics is the comma-separated default series list for reports.
	ReportMetrics string `koanf:"report_metrics"`
}

// New creates a Config with defaults. ctx is reserved for future sources.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:        "info",
		Addr:            ":9080",
		Store:           StoreMemory,
		DBMaxConns:      10,
		DBMinConns:      1,
		ImportQueueSize: 10_000,
		ImportWorkers:   runtime.NumCPU(),
		DedupeSize:      100_000,
		AMQPQueue:       "measurements",
		ReportMetrics:   "weight,bmi,body_fat,waist",
	}
}

// ReportMetricNames splits ReportMetrics into trimmed, non-empty names.
func (c *Config) ReportMetricNames() []string {
	var out []string
	for _, s := range strings.Split(c.ReportMetrics, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
