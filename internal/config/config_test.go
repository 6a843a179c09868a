package config

import (
	"os"
	"testing"
	"time"

	"log/slog"
)

func TestLoadDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Port != defaultPort {
		t.Errorf("expected default port %q, got %q", defaultPort, cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != defaultReadTimeout {
		t.Errorf("expected default read timeout %v, got %v", defaultReadTimeout, cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != defaultWriteTimeout {
		t.Errorf("expected default write timeout %v, got %v", defaultWriteTimeout, cfg.Server.WriteTimeout)
	}
	if cfg.Server.ShutdownTimeout != defaultShutdownTimeout {
		t.Errorf("expected default shutdown timeout %v, got %v", defaultShutdownTimeout, cfg.Server.ShutdownTimeout)
	}
	if cfg.Logging.Level != slog.LevelInfo {
		t.Errorf("expected default log level %v, got %v", slog.LevelInfo, cfg.Logging.Level)
	}
	if cfg.Logging.Format != defaultLogFormat {
		t.Errorf("expected default log format %q, got %q", defaultLogFormat, cfg.Logging.Format)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	clearConfigEnv(t)

	overrides := map[string]string{
		"SERVER_PORT":                     "9090",
		"SERVER_READ_TIMEOUT_SECONDS":     "30",
		"SERVER_WRITE_TIMEOUT_SECONDS":    "45",
		"SERVER_SHUTDOWN_TIMEOUT_SECONDS": "15",
		"LOG_LEVEL":                       "debug",
		"LOG_FORMAT":                      "text",
	}
	for key, value := range overrides {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Port != overrides["SERVER_PORT"] {
		t.Errorf("expected overridden port %q, got %q", overrides["SERVER_PORT"], cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("expected read timeout %v, got %v", 30*time.Second, cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != 45*time.Second {
		t.Errorf("expected write timeout %v, got %v", 45*time.Second, cfg.Server.WriteTimeout)
	}
	if cfg.Server.ShutdownTimeout != 15*time.Second {
		t.Errorf("expected shutdown timeout %v, got %v", 15*time.Second, cfg.Server.ShutdownTimeout)
	}
	if cfg.Logging.Level != slog.LevelDebug {
		t.Errorf("expected log level %v, got %v", slog.LevelDebug, cfg.Logging.Level)
	}
	if cfg.Logging.Format != overrides["LOG_FORMAT"] {
		t.Errorf("expected log format %q, got %q", overrides["LOG_FORMAT"], cfg.Logging.Format)
	}
}

func TestLoadPartialOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("SERVER_READ_TIMEOUT_SECONDS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("expected overridden read timeout %v, got %v", 5*time.Second, cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != defaultWriteTimeout {
		t.Errorf("expected default write timeout %v, got %v", defaultWriteTimeout, cfg.Server.WriteTimeout)
	}
}

func TestLoadGameDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Game.BaseURL != defaultGameBaseURL {
		t.Errorf("base URL = %q", cfg.Game.BaseURL)
	}
	if cfg.Game.WorldID != "1" {
		t.Errorf("world id = %q, want 1", cfg.Game.WorldID)
	}
	if cfg.Game.RankingsInterval != defaultRankingsInterval {
		t.Errorf("rankings interval = %v", cfg.Game.RankingsInterval)
	}
	if cfg.Game.NetworthInterval != defaultNetworthInterval {
		t.Errorf("networth interval = %v", cfg.Game.NetworthInterval)
	}
	if cfg.Auth.SessionTTL != defaultSessionTTL {
		t.Errorf("session TTL = %v", cfg.Auth.SessionTTL)
	}
}

func TestLoadGameOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("KG_RANKINGS_POLL_SECONDS", "600")
	t.Setenv("KG_NW_POLL_SECONDS", "120")
	t.Setenv("KG_TRACKED_KINGDOMS", "Galileo:3334, Avalon:17,")
	t.Setenv("ADMIN_USER_IDS", "42, 99")
	t.Setenv("SESSION_TTL_HOURS", "6")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Game.RankingsInterval != 600*time.Second {
		t.Errorf("rankings interval = %v, want 10m", cfg.Game.RankingsInterval)
	}
	if cfg.Game.NetworthInterval != 120*time.Second {
		t.Errorf("networth interval = %v, want 2m", cfg.Game.NetworthInterval)
	}
	if len(cfg.Game.TrackedKingdoms) != 2 {
		t.Errorf("tracked kingdoms = %v, want 2 entries", cfg.Game.TrackedKingdoms)
	}
	if len(cfg.Auth.AdminUserIDs) != 2 || cfg.Auth.AdminUserIDs[1] != "99" {
		t.Errorf("admin user ids = %v", cfg.Auth.AdminUserIDs)
	}
	if cfg.Auth.SessionTTL != 6*time.Hour {
		t.Errorf("session TTL = %v, want 6h", cfg.Auth.SessionTTL)
	}
}

func TestDatabaseURLFallback(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("POSTGRES_URL", "postgres://fallback/db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Database.URL != "postgres://fallback/db" {
		t.Errorf("database URL = %q, want POSTGRES_URL fallback", cfg.Database.URL)
	}

	t.Setenv("DATABASE_URL", "postgres://primary/db")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Database.URL != "postgres://primary/db" {
		t.Errorf("database URL = %q, want DATABASE_URL to win", cfg.Database.URL)
	}
}

func TestLoadWithInvalidValues(t *testing.T) {
	tests := map[string]string{
		"SERVER_READ_TIMEOUT_SECONDS":     "-1",
		"SERVER_WRITE_TIMEOUT_SECONDS":    "abc",
		"SERVER_SHUTDOWN_TIMEOUT_SECONDS": "3.5",
		"KG_RANKINGS_POLL_SECONDS":        "-30",
		"KG_NW_POLL_SECONDS":              "abc",
		"SESSION_TTL_HOURS":               "0",
		"LOG_LEVEL":                       "verbose",
		"LOG_FORMAT":                      "xml",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv(key, value)

			if _, err := Load(); err == nil {
				t.Fatalf("expected error when %s=%q", key, value)
			}
		})
	}
}

func TestParseLogLevelAliases(t *testing.T) {
	tests := map[string]slog.Level{
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
	}

	for input, expected := range tests {
		level, err := parseLogLevel(input)
		if err != nil {
			t.Fatalf("parseLogLevel(%q) returned error: %v", input, err)
		}

		if level != expected {
			t.Errorf("parseLogLevel(%q) = %v, want %v", input, level, expected)
		}
	}
}

func TestParseSecondsRejectsInvalidInput(t *testing.T) {
	cases := []string{"-1", "abc"}

	for _, input := range cases {
		if _, err := parseSeconds(input); err == nil {
			t.Fatalf("expected error for input %q", input)
		}
	}
}

func TestLoadDoesNotPersistEnvBetweenRuns(t *testing.T) {
	clearConfigEnv(t)

	t.Setenv("SERVER_READ_TIMEOUT_SECONDS", "5")
	if _, err := Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := os.Unsetenv("SERVER_READ_TIMEOUT_SECONDS"); err != nil {
		t.Fatalf("failed to unset env: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.ReadTimeout != defaultReadTimeout {
		t.Errorf("expected default read timeout after reset, got %v", cfg.Server.ReadTimeout)
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"SERVER_PORT",
		"SERVER_READ_TIMEOUT_SECONDS",
		"SERVER_WRITE_TIMEOUT_SECONDS",
		"SERVER_SHUTDOWN_TIMEOUT_SECONDS",
		"LOG_LEVEL",
		"LOG_FORMAT",
		"DATABASE_URL",
		"POSTGRES_URL",
		"MIGRATIONS_DIR",
		"KG_BASE_URL",
		"KG_RANKINGS_URL",
		"KG_WORLD_ID",
		"KG_TOKEN",
		"KG_RANKINGS_POLL_SECONDS",
		"KG_NW_POLL_SECONDS",
		"KG_TRACKED_KINGDOMS",
		"JWT_SECRET",
		"SESSION_TTL_HOURS",
		"ADMIN_USER_IDS",
		"KG_TOKEN_ENCRYPTION_KEY",
		"STATIC_DIR",
	}

	for _, key := range keys {
		t.Setenv(key, "")
	}
}
