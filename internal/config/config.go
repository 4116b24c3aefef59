/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseBackend selects the persistence backend.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	DBBackend   DatabaseBackend
	DBDSN       string

	// Timetable source. Branch pages hang off ScheduleURL as /o<N>.html.
	ScheduleSyncEnabled    bool
	ScheduleURL            string
	ScheduleRequestTimeout time.Duration
	ScheduleMaxBadBranches int
	ScheduleTableClass     string
	ScheduleHourClass      string
	ScheduleMinRows        int

	// Real-time source used to rebase the virtual clock.
	ClockSyncEnabled bool
	TimeAPIURL       string
	TimeAPITimeout   time.Duration

	// Resync checkpoints, "HH:MM" or "HH:MM:SS", validated at startup.
	SyncCheckpoints    []string
	SyncAfterCallbacks bool
	StrictOrdering     bool

	// Bell device profile (YAML).
	ProfilePath string

	LogBufferSize int

	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the
// combination.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("BELFRY_ENV", "development"),
		HTTPBind:    getEnv("BELFRY_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("BELFRY_HTTP_PORT", 8080),
		DBBackend:   DatabaseBackend(getEnv("BELFRY_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:       getEnv("BELFRY_DB_DSN", "data/belfry.db"),

		ScheduleSyncEnabled:    getEnvBool("BELFRY_SCHEDULE_SYNC_ENABLED", true),
		ScheduleURL:            getEnv("BELFRY_SCHEDULE_URL", ""),
		ScheduleRequestTimeout: time.Duration(getEnvInt("BELFRY_SCHEDULE_TIMEOUT_SECONDS", 5)) * time.Second,
		ScheduleMaxBadBranches: getEnvInt("BELFRY_SCHEDULE_MAX_BAD_BRANCHES", 3),
		ScheduleTableClass:     getEnv("BELFRY_SCHEDULE_TABLE_CLASS", "tabela"),
		ScheduleHourClass:      getEnv("BELFRY_SCHEDULE_HOUR_CLASS", "g"),
		ScheduleMinRows:        getEnvInt("BELFRY_SCHEDULE_MIN_ROWS", 2),

		ClockSyncEnabled: getEnvBool("BELFRY_CLOCK_SYNC_ENABLED", true),
		TimeAPIURL:       getEnv("BELFRY_TIME_API_URL", "http://worldtimeapi.org/api/ip"),
		TimeAPITimeout:   time.Duration(getEnvInt("BELFRY_TIME_API_TIMEOUT_SECONDS", 5)) * time.Second,

		SyncCheckpoints:    getEnvList("BELFRY_SYNC_CHECKPOINTS", []string{"04:30", "11:00", "16:30"}),
		SyncAfterCallbacks: getEnvBool("BELFRY_SYNC_AFTER_CALLBACKS", false),
		StrictOrdering:     getEnvBool("BELFRY_STRICT_ORDERING", false),

		ProfilePath: getEnv("BELFRY_PROFILE", "data/profile.yml"),

		LogBufferSize: getEnvInt("BELFRY_LOG_BUFFER_SIZE", 1000),

		TracingEnabled:    getEnvBool("BELFRY_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("BELFRY_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("BELFRY_TRACING_SAMPLE_RATE", 1.0),
	}

	switch cfg.DBBackend {
	case DatabasePostgres, DatabaseMySQL, DatabaseSQLite:
	default:
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("BELFRY_DB_DSN must be provided")
	}

	if cfg.ScheduleSyncEnabled && cfg.ScheduleURL == "" {
		return nil, fmt.Errorf("BELFRY_SCHEDULE_URL must be provided when schedule sync is enabled")
	}

	if cfg.LogBufferSize < 1 {
		return nil, fmt.Errorf("BELFRY_LOG_BUFFER_SIZE must be at least 1")
	}

	return cfg, nil
}

// ListenAddr is the HTTP bind address in host:port form.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

// BranchURL builds the timetable page URL for a branch index.
func (c *Config) BranchURL(index int) string {
	return fmt.Sprintf("%s/o%d.html", strings.TrimRight(c.ScheduleURL, "/"), index)
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
