package main

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/star/sattrack/internal/auth"
	"github.com/star/sattrack/internal/n2yo"
	"github.com/star/sattrack/internal/notify"
	"github.com/star/sattrack/internal/store"
	"github.com/star/sattrack/internal/tracker"
)

func loadClientConfig(logger *slog.Logger) n2yo.Config {
	cfg := n2yo.Config{
		BaseURL: n2yo.DefaultBaseURL,
		APIKey:  os.Getenv("N2YO_API_KEY"),
		Timeout: n2yo.DefaultTimeout,
	}

	if cfg.APIKey == "" {
		logger.Warn("N2YO_API_KEY is not set, lookups will likely be rejected")
	}

	if v := os.Getenv("SATTRACK_API_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}

	if v := os.Getenv("SATTRACK_FETCH_TIMEOUT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SATTRACK_FETCH_TIMEOUT value, using default", "value", v, "default", 30)
		} else {
			cfg.Timeout = time.Duration(n) * time.Second
		}
	}

	logger.Debug("client config",
		"base_url", cfg.BaseURL,
		"timeout_seconds", cfg.Timeout.Seconds(),
	)

	return cfg
}

func loadTrackerConfig(logger *slog.Logger) tracker.Config {
	cfg := tracker.Config{Workers: 1}

	if v := os.Getenv("SATTRACK_FETCH_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SATTRACK_FETCH_WORKERS value, using default", "value", v, "default", 1)
		} else {
			cfg.Workers = n
		}
	}

	return cfg
}

func loadStoreConfig(logger *slog.Logger) store.Config {
	cfg := store.Config{
		Path:       "data.json",
		MaxBackups: 5,
	}

	if v := os.Getenv("SATTRACK_STORE_PATH"); v != "" {
		cfg.Path = v
	}

	cfg.BackupDir = os.Getenv("SATTRACK_STORE_BACKUP_DIR")

	if v := os.Getenv("SATTRACK_STORE_MAX_BACKUPS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SATTRACK_STORE_MAX_BACKUPS value, using default", "value", v, "default", 5)
		} else {
			cfg.MaxBackups = n
		}
	}

	if v := os.Getenv("SATTRACK_STORE_INDENT"); v != "" {
		indent, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid SATTRACK_STORE_INDENT value, defaulting to false", "value", v)
		} else {
			cfg.Indent = indent
		}
	}

	return cfg
}

func loadNotifyConfig(logger *slog.Logger) notify.Config {
	cfg := notify.Config{
		URL:     os.Getenv("SATTRACK_NATS_URL"),
		Subject: notify.DefaultSubject,
	}

	if v := os.Getenv("SATTRACK_NATS_SUBJECT"); v != "" {
		cfg.Subject = v
	}

	if cfg.URL != "" {
		logger.Debug("notifications enabled", "subject", cfg.Subject)
	}

	return cfg
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("SATTRACK_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("SATTRACK_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("SATTRACK_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("SATTRACK_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

func loadTrustProxy(logger *slog.Logger) bool {
	v := os.Getenv("SATTRACK_TRUST_PROXY")
	if v == "" {
		return false
	}
	trust, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid SATTRACK_TRUST_PROXY value, defaulting to false", "value", v)
		return false
	}
	return trust
}
