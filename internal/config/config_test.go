package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Matcher.Tolerance != 0.6 {
		t.Errorf("Tolerance = %v; want 0.6", cfg.Matcher.Tolerance)
	}
	if cfg.Matcher.AcceptanceThreshold != 70 {
		t.Errorf("AcceptanceThreshold = %v; want 70", cfg.Matcher.AcceptanceThreshold)
	}
	if cfg.Matcher.Dim != 128 {
		t.Errorf("Dim = %d; want 128", cfg.Matcher.Dim)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Driver = %q; want sqlite", cfg.Database.Driver)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d; want 8080", cfg.Server.Port)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MATCH_TOLERANCE", "0.45")
	t.Setenv("MATCH_ACCEPTANCE_THRESHOLD", "80")
	t.Setenv("EMBEDDING_DIM", "512")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/attendance")
	t.Setenv("WEB_PORT", "9090")

	cfg := Load()

	if cfg.Matcher.Tolerance != 0.45 {
		t.Errorf("Tolerance = %v; want 0.45", cfg.Matcher.Tolerance)
	}
	if cfg.Matcher.AcceptanceThreshold != 80 {
		t.Errorf("AcceptanceThreshold = %v; want 80", cfg.Matcher.AcceptanceThreshold)
	}
	if cfg.Matcher.Dim != 512 {
		t.Errorf("Dim = %d; want 512", cfg.Matcher.Dim)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("Driver = %q; want postgres", cfg.Database.Driver)
	}
	if cfg.Database.URL != "postgres://localhost/attendance" {
		t.Errorf("URL = %q", cfg.Database.URL)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d; want 9090", cfg.Server.Port)
	}
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	t.Setenv("WEB_PORT", "not-a-port")
	t.Setenv("MATCH_TOLERANCE", "very loose")
	t.Setenv("EMBEDDING_DIM", "-5")

	cfg := Load()

	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d; want default 8080", cfg.Server.Port)
	}
	if cfg.Matcher.Tolerance != 0.6 {
		t.Errorf("Tolerance = %v; want default 0.6", cfg.Matcher.Tolerance)
	}
	if cfg.Matcher.Dim != 128 {
		t.Errorf("Dim = %d; want default 128", cfg.Matcher.Dim)
	}
}
