// Package config
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Address        string
	AllowedOrigins []string

	LogLevel  string
	LogFormat string
	LogFile   string

	RegistryFile string

	HealthTimeout        time.Duration
	RemoteCommandTimeout time.Duration
	InspectTimeout       time.Duration
	SSHDialTimeout       time.Duration

	MaxOperationsPerHour int
	StatusWatchInterval  time.Duration

	HistoryDriver    string
	DBPath           string
	DatabaseURL      string
	HistoryRetention time.Duration

	JWTSecret string
}

const (
	HistoryDriverSqlite   = "sqlite"
	HistoryDriverPostgres = "postgres"
)

func Load() *Config {
	godotenv.Load()

	return &Config{
		Address:        getEnv("HTTP_ADDR", ":3000"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogFile:   os.Getenv("LOG_FILE"),

		RegistryFile: getEnv("REGISTRY_FILE", "./applications.yaml"),

		HealthTimeout:        getEnvDuration("HEALTH_TIMEOUT", 5*time.Second),
		RemoteCommandTimeout: getEnvDuration("REMOTE_COMMAND_TIMEOUT", 15*time.Minute),
		InspectTimeout:       getEnvDuration("INSPECT_TIMEOUT", 30*time.Second),
		SSHDialTimeout:       getEnvDuration("SSH_DIAL_TIMEOUT", 10*time.Second),

		MaxOperationsPerHour: getEnvInt("MAX_OPERATIONS_PER_HOUR", 10),
		StatusWatchInterval:  getEnvDuration("STATUS_WATCH_INTERVAL", 0),

		HistoryDriver:    getEnv("HISTORY_DRIVER", HistoryDriverSqlite),
		DBPath:           getEnv("DB_PATH", "./bluegreen.db"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		HistoryRetention: getEnvDuration("HISTORY_RETENTION", 90*24*time.Hour),

		JWTSecret: os.Getenv("JWT_SECRET"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s") and, for compatibility with
// older env files, bare seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}

	if parsed, err := time.ParseDuration(raw); err == nil && parsed >= 0 {
		return parsed
	}

	if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}

	return fallback
}
