package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all stepflow server configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	DBPath         string `json:"db_path"`
	LogLevel       string `json:"log_level"`
	PoolSize       int    `json:"pool_size"`
	MetricsAddr    string `json:"metrics_addr"`
	RunTimeout     string `json:"run_timeout"`
	StuckThreshold string `json:"stuck_threshold"`
	Scheduler      bool   `json:"scheduler"`
}

func defaultConfig() Config {
	return Config{
		DBPath:    filepath.Join(stepflowDir(), "stepflow.db"),
		LogLevel:  "info",
		PoolSize:  8,
		Scheduler: true,
	}
}

func stepflowDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".stepflow"
	}
	return filepath.Join(home, ".stepflow")
}

func settingsPath() string {
	return filepath.Join(stepflowDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("STEPFLOW_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("STEPFLOW_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("STEPFLOW_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PoolSize = n
		}
	}
	if v := os.Getenv("STEPFLOW_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("STEPFLOW_RUN_TIMEOUT"); v != "" {
		cfg.RunTimeout = v
	}
	if v := os.Getenv("STEPFLOW_STUCK_THRESHOLD"); v != "" {
		cfg.StuckThreshold = v
	}
	if v := os.Getenv("STEPFLOW_SCHEDULER"); v != "" {
		cfg.Scheduler = v == "true" || v == "1"
	}

	return cfg
}

// duration parses a config duration string, returning 0 on empty or invalid.
func duration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
