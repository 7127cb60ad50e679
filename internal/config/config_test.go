package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LAPLACE_HTTP_ADDR", "")
	t.Setenv("LAPLACE_LAPPS_DIR", "")
	t.Setenv("LAPLACE_ADMIN_TOKEN", "")
	t.Setenv("LAPLACE_METRICS_ADDR", "")
	t.Setenv("LAPLACE_SHUTDOWN_TIMEOUT", "")

	cfg := Load()
	if cfg.HTTPAddr != ":8080" || cfg.LappsDir != "./lapps" || cfg.MetricsAddr != ":9100" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.AdminToken != "" {
		t.Fatalf("expected empty admin token by default, got %q", cfg.AdminToken)
	}
	if cfg.ShutdownTimeoutSeconds != 15 {
		t.Fatalf("expected default shutdown timeout 15, got %d", cfg.ShutdownTimeoutSeconds)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LAPLACE_HTTP_ADDR", ":9999")
	t.Setenv("LAPLACE_SHUTDOWN_TIMEOUT", "30")

	cfg := Load()
	if cfg.HTTPAddr != ":9999" {
		t.Fatalf("expected overridden http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.ShutdownTimeoutSeconds != 30 {
		t.Fatalf("expected overridden shutdown timeout, got %d", cfg.ShutdownTimeoutSeconds)
	}
}
