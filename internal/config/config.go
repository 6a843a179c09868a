package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server   ServerConfig
	Logging  LoggingConfig
	Database DatabaseConfig
	Game     GameConfig
	Auth     AuthConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// StaticDir serves a frontend build when set; empty disables it.
	StaticDir string
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	URL           string
	MigrationsDir string
}

// GameConfig holds the game API endpoints and polling cadence.
type GameConfig struct {
	BaseURL          string
	RankingsURL      string
	WorldID          string
	Token            string
	RankingsInterval time.Duration
	NetworthInterval time.Duration
	TrackedKingdoms  []string
}

// AuthConfig holds session and admin settings.
type AuthConfig struct {
	JWTSecret          string
	SessionTTL         time.Duration
	AdminUserIDs       []string
	TokenEncryptionKey string
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultGameBaseURL      = "https://www.kingdomgame.net"
	defaultRankingsInterval = 15 * time.Minute
	defaultNetworthInterval = 4 * time.Minute
	defaultSessionTTL       = 24 * time.Hour
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided or invalid.
func Load() (Config, error) {
	// Cloud Run sets PORT, but allow SERVER_PORT override for local dev
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
			StaticDir:       os.Getenv("STATIC_DIR"),
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Database: DatabaseConfig{
			URL:           databaseURL(),
			MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
		},
		Game: GameConfig{
			BaseURL:          getEnv("KG_BASE_URL", defaultGameBaseURL),
			RankingsURL:      os.Getenv("KG_RANKINGS_URL"),
			WorldID:          getEnv("KG_WORLD_ID", "1"),
			Token:            os.Getenv("KG_TOKEN"),
			RankingsInterval: defaultRankingsInterval,
			NetworthInterval: defaultNetworthInterval,
			TrackedKingdoms:  splitList(os.Getenv("KG_TRACKED_KINGDOMS")),
		},
		Auth: AuthConfig{
			JWTSecret:          os.Getenv("JWT_SECRET"),
			SessionTTL:         defaultSessionTTL,
			AdminUserIDs:       splitList(os.Getenv("ADMIN_USER_IDS")),
			TokenEncryptionKey: os.Getenv("KG_TOKEN_ENCRYPTION_KEY"),
		},
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if v := os.Getenv("KG_RANKINGS_POLL_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid KG_RANKINGS_POLL_SECONDS: %w", err)
		}
		cfg.Game.RankingsInterval = d
	}

	if v := os.Getenv("KG_NW_POLL_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid KG_NW_POLL_SECONDS: %w", err)
		}
		cfg.Game.NetworthInterval = d
	}

	if v := os.Getenv("SESSION_TTL_HOURS"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil || hours <= 0 {
			return Config{}, fmt.Errorf("invalid SESSION_TTL_HOURS: must be a positive integer")
		}
		cfg.Auth.SessionTTL = time.Duration(hours) * time.Hour
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	return cfg, nil
}

// databaseURL prefers DATABASE_URL but accepts POSTGRES_URL for parity with
// older deployments.
func databaseURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	return os.Getenv("POSTGRES_URL")
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
