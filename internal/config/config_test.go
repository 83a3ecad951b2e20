package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var keys = []string{
	"PORT", "DB_PATH", "SEED", "CORS_ORIGINS", "ADMIN_KEY", "RELAY_KEY",
	"RANDOM_ORG_API_KEY", "SPEED", "TICK_INTERVAL_MS", "LOG_LEVEL",
	"KEEPER_API_URL", "KEEPER_INTERVAL_SEC", "KEEPER_BATCH",
}

// clearEnv blanks every setting so defaults apply; t.Setenv restores them.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg := Load()
	if cfg.Port != 8080 || cfg.DBPath != "data/neurobank.db" || cfg.Seed != 42 {
		t.Fatalf("server defaults = %+v", cfg)
	}
	if cfg.Speed != 1 || cfg.TickInterval != time.Second || cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("engine defaults = %+v", cfg)
	}
	if cfg.AdminKey != "" || len(cfg.CORSOrigins) != 0 {
		t.Fatalf("auth defaults = %+v", cfg)
	}
	if cfg.KeeperBatch != 10 || cfg.KeeperInterval != 5*time.Minute {
		t.Fatalf("keeper defaults = %+v", cfg)
	}
}

func TestOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("SEED", "7")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("SPEED", "2.5")
	t.Setenv("TICK_INTERVAL_MS", "250")
	t.Setenv("KEEPER_BATCH", "oops")

	cfg := Load()
	if cfg.Port != 9090 || cfg.Seed != 7 || cfg.Speed != 2.5 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.TickInterval != 250*time.Millisecond {
		t.Fatalf("interval = %v", cfg.TickInterval)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("origins = %q", cfg.CORSOrigins)
	}
	if cfg.KeeperBatch != 10 {
		t.Fatalf("bad integer should fall back, got %d", cfg.KeeperBatch)
	}
}

func TestNonPositiveIntervalsFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("TICK_INTERVAL_MS", "0")
	t.Setenv("KEEPER_INTERVAL_SEC", "-5")
	t.Setenv("KEEPER_BATCH", "0")
	t.Setenv("SEED", "0")

	cfg := Load()
	if cfg.TickInterval != time.Second {
		t.Fatalf("tick interval = %v, want default", cfg.TickInterval)
	}
	if cfg.KeeperInterval != 5*time.Minute || cfg.KeeperBatch != 10 {
		t.Fatalf("keeper = %v/%d, want defaults", cfg.KeeperInterval, cfg.KeeperBatch)
	}
	if cfg.Seed != 0 {
		t.Fatalf("seed 0 is meaningful, got %d", cfg.Seed)
	}
}

func TestEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("ADMIN_KEY=from-file\nPORT=7000\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "7100") // already set wins over the file
	os.Unsetenv("ADMIN_KEY") // an empty value still counts as set

	cfg := Load(path)
	if cfg.AdminKey != "from-file" {
		t.Fatalf("admin key = %q", cfg.AdminKey)
	}
	if cfg.Port != 7100 {
		t.Fatalf("port = %d, want env to win", cfg.Port)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
