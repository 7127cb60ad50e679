// Package config loads Laplace's process-level settings: the pieces that
// live outside any single lapp's config.toml (listen address, the lapps
// directory, the admin token). Follows REPRAM's one-env-var-per-setting
// idiom from cmd/repram/main.go, renamed under a single LAPLACE_ prefix.
package config

import (
	"os"
	"strconv"
)

// Config is the process-wide configuration read once at startup.
type Config struct {
	// HTTPAddr is the outer HTTP layer's listen address, e.g. ":8080".
	HTTPAddr string
	// LappsDir is the root directory Manager.Discover scans for lapp
	// subdirectories.
	LappsDir string
	// AdminToken, when non-empty, gates the management API (spec.md §4.4's
	// update protocol) via a bearer token check.
	AdminToken string
	// MetricsAddr is the Prometheus /metrics listen address.
	MetricsAddr string
	// ShutdownTimeout bounds how long graceful shutdown waits for in-flight
	// requests and loaded lapps to unload.
	ShutdownTimeoutSeconds int
	// SettingsKeyPassphrase, when non-empty, is derived (internal/security.
	// DeriveKey) into the host-wide key that seals each lapp's access_token
	// at rest. Empty means access tokens are stored in plain text.
	SettingsKeyPassphrase string
}

// Load reads Config from the environment, applying the same defaults a
// freshly cloned deployment would want.
func Load() Config {
	return Config{
		HTTPAddr:               envString("LAPLACE_HTTP_ADDR", ":8080"),
		LappsDir:               envString("LAPLACE_LAPPS_DIR", "./lapps"),
		AdminToken:             os.Getenv("LAPLACE_ADMIN_TOKEN"),
		MetricsAddr:            envString("LAPLACE_METRICS_ADDR", ":9100"),
		ShutdownTimeoutSeconds: envInt("LAPLACE_SHUTDOWN_TIMEOUT", 15),
		SettingsKeyPassphrase:  os.Getenv("LAPLACE_SETTINGS_KEY"),
	}
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
