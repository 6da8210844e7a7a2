package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

var validLanguages = map[string]bool{
	"Spanish": true,
	"French":  true,
	"German":  true,
}

type Config struct {
	// ServiceURL is the base address of the remote dubbing service.
	ServiceURL string `yaml:"service_url"`
	// ListenAddr is where the local control API listens.
	ListenAddr string `yaml:"listen_addr"`
	// PollIntervalMS is the fixed status-poll interval in milliseconds.
	PollIntervalMS int `yaml:"poll_interval_ms"`
	// TickIntervalMS drives the elapsed-time heartbeat in milliseconds.
	TickIntervalMS int `yaml:"tick_interval_ms"`
	// HistoryDBPath enables the SQLite history archive; empty keeps it in memory.
	HistoryDBPath string `yaml:"history_db_path"`
	// HistoryLimit caps the in-memory archive; 0 means unbounded.
	HistoryLimit int `yaml:"history_limit"`
	// DefaultLanguage is used when a submission carries no language.
	DefaultLanguage string `yaml:"default_language"`
	// APIKeys, when non-empty, require X-API-Key on the local API.
	APIKeys []string `yaml:"api_keys"`
	// CORSOrigins are the browser origins allowed to call the local API.
	CORSOrigins []string `yaml:"cors_origins"`
	// DoneWebhookURL, when set, receives the final snapshot of every job.
	DoneWebhookURL string `yaml:"done_webhook_url"`
	// SubmitRateLimit caps job submissions per second per IP; 0 disables it.
	SubmitRateLimit int `yaml:"submit_rate_limit"`
}

// Load builds the configuration from defaults, then the optional YAML file
// named by DUBWATCH_CONFIG, then DUBWATCH_* environment variables. Later
// sources win.
func Load() (*Config, error) {
	cfg := &Config{
		ServiceURL:      "http://localhost:8000",
		ListenAddr:      ":8090",
		PollIntervalMS:  1500,
		TickIntervalMS:  1000,
		DefaultLanguage: "Spanish",
		// The dubbing UI is a dev server on port 3000, same as the
		// service's own CORS allowance.
		CORSOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
	}

	if path := os.Getenv("DUBWATCH_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.ServiceURL = getEnv("DUBWATCH_SERVICE_URL", cfg.ServiceURL)
	cfg.ListenAddr = getEnv("DUBWATCH_LISTEN_ADDR", cfg.ListenAddr)
	cfg.HistoryDBPath = getEnv("DUBWATCH_HISTORY_DB_PATH", cfg.HistoryDBPath)
	cfg.DefaultLanguage = getEnv("DUBWATCH_DEFAULT_LANGUAGE", cfg.DefaultLanguage)
	cfg.DoneWebhookURL = getEnv("DUBWATCH_DONE_WEBHOOK_URL", cfg.DoneWebhookURL)

	var err error
	if cfg.PollIntervalMS, err = getEnvInt("DUBWATCH_POLL_INTERVAL_MS", cfg.PollIntervalMS); err != nil {
		return nil, fmt.Errorf("DUBWATCH_POLL_INTERVAL_MS: %w", err)
	}
	if cfg.TickIntervalMS, err = getEnvInt("DUBWATCH_TICK_INTERVAL_MS", cfg.TickIntervalMS); err != nil {
		return nil, fmt.Errorf("DUBWATCH_TICK_INTERVAL_MS: %w", err)
	}
	if cfg.HistoryLimit, err = getEnvInt("DUBWATCH_HISTORY_LIMIT", cfg.HistoryLimit); err != nil {
		return nil, fmt.Errorf("DUBWATCH_HISTORY_LIMIT: %w", err)
	}
	if cfg.SubmitRateLimit, err = getEnvInt("DUBWATCH_SUBMIT_RATE_LIMIT", cfg.SubmitRateLimit); err != nil {
		return nil, fmt.Errorf("DUBWATCH_SUBMIT_RATE_LIMIT: %w", err)
	}

	if raw := os.Getenv("DUBWATCH_API_KEYS"); raw != "" {
		cfg.APIKeys = splitList(raw)
	}
	if raw := os.Getenv("DUBWATCH_CORS_ORIGINS"); raw != "" {
		cfg.CORSOrigins = splitList(raw)
	}

	if cfg.ServiceURL == "" {
		return nil, errors.New("service URL must not be empty")
	}
	if cfg.PollIntervalMS <= 0 {
		return nil, errors.New("poll interval must be > 0")
	}
	if cfg.TickIntervalMS <= 0 {
		return nil, errors.New("tick interval must be > 0")
	}
	if cfg.HistoryLimit < 0 {
		return nil, errors.New("history limit must be >= 0")
	}
	if !validLanguages[cfg.DefaultLanguage] {
		return nil, fmt.Errorf("default language %q must be one of: Spanish, French, German", cfg.DefaultLanguage)
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}
