package config

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"
)

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "ENVIRONMENT", "DATABASE_URL", "FRONTEND_ORIGIN", "REDIS_URL", "REDIS_PASSWORD",
		"INDEXER_URL", "INDEXER_API_KEY", "INDEXER_TIMEOUT_SECONDS", "DEFAULT_CONTRACTS", "CRON_INTERVAL",
		"CRON_ENABLED", "INFISICAL_CLIENT_ID", "INFISICAL_CLIENT_SECRET"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg := Load(NewViper())

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.FrontendOrigin != "*" {
		t.Errorf("FrontendOrigin = %q, want %q", cfg.FrontendOrigin, "*")
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
	if cfg.IndexerTimeout != 30*time.Second {
		t.Errorf("IndexerTimeout = %v, want 30s", cfg.IndexerTimeout)
	}
	if cfg.CronInterval != 5*time.Minute {
		t.Errorf("CronInterval = %v, want 5m", cfg.CronInterval)
	}
	if cfg.Production() {
		t.Error("Production() = true with default environment")
	}
	if len(cfg.DefaultContracts) != 0 {
		t.Errorf("DefaultContracts = %v, want none", cfg.DefaultContracts)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("ENVIRONMENT", "Production")
	t.Setenv("DATABASE_URL", "postgres://test")
	t.Setenv("FRONTEND_ORIGIN", "http://localhost:3000")
	t.Setenv("INDEXER_URL", "https://indexer.example/")
	t.Setenv("INDEXER_TIMEOUT_SECONDS", "5")
	t.Setenv("DEFAULT_CONTRACTS", " SP1.a, ,SP2.b ")
	t.Setenv("CRON_INTERVAL", "90s")
	t.Setenv("CRON_ENABLED", "false")

	cfg := Load(NewViper())

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want %q", cfg.Port, "9090")
	}
	if !cfg.Production() {
		t.Error("Production() = false, want true")
	}
	if cfg.DatabaseURL != "postgres://test" {
		t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, "postgres://test")
	}
	if cfg.IndexerURL != "https://indexer.example" {
		t.Errorf("IndexerURL = %q", cfg.IndexerURL)
	}
	if cfg.IndexerTimeout != 5*time.Second {
		t.Errorf("IndexerTimeout = %v, want 5s", cfg.IndexerTimeout)
	}
	if strings.Join(cfg.DefaultContracts, ",") != "SP1.a,SP2.b" {
		t.Errorf("DefaultContracts = %v", cfg.DefaultContracts)
	}
	if cfg.CronInterval != 90*time.Second || cfg.CronEnabled {
		t.Errorf("cron = %v enabled=%v", cfg.CronInterval, cfg.CronEnabled)
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level, format string
		debugLogged   bool
		wantPrefix    string
	}{
		{"debug", "json", true, "{"},
		{"info", "text", false, "time="},
		{"nonsense", "", false, "{"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		logger := NewLogger(&buf, tt.level, tt.format)
		logger.Debug("dbg")
		logger.Info("hello")
		out := buf.String()
		if !strings.HasPrefix(out, tt.wantPrefix) {
			t.Errorf("%s/%s: output %q, want prefix %q", tt.level, tt.format, out, tt.wantPrefix)
		}
		if got := strings.Contains(out, "dbg"); got != tt.debugLogged {
			t.Errorf("%s: debug logged = %v, want %v", tt.level, got, tt.debugLogged)
		}
	}
}
