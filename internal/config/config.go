package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads a .env file from the working directory when present.
// Variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// applyEnv overrides file settings with CODELAB_* environment variables
func applyEnv(cfg *LocalConfig) {
	cfg.Daemon.Port = getEnvInt("CODELAB_PORT", cfg.Daemon.Port)
	cfg.Daemon.Bind = getEnv("CODELAB_BIND", cfg.Daemon.Bind)
	cfg.Daemon.LogLevel = getEnv("CODELAB_LOG_LEVEL", cfg.Daemon.LogLevel)

	cfg.Judge.BaseURL = strings.TrimRight(getEnv("CODELAB_JUDGE_URL", cfg.Judge.BaseURL), "/")
	cfg.Judge.Token = getEnv("CODELAB_JUDGE_TOKEN", cfg.Judge.Token)
	cfg.Judge.TimeoutSeconds = getEnvInt("CODELAB_JUDGE_TIMEOUT", cfg.Judge.TimeoutSeconds)
	cfg.Judge.MaxConcurrent = getEnvInt("CODELAB_JUDGE_MAX_CONCURRENT", cfg.Judge.MaxConcurrent)
	cfg.Judge.RatePerSecond = getEnvInt("CODELAB_JUDGE_RATE", cfg.Judge.RatePerSecond)

	cfg.Assessment.CooldownSeconds = getEnvInt("CODELAB_COOLDOWN_SECONDS", cfg.Assessment.CooldownSeconds)

	cfg.Storage.Backend = getEnv("CODELAB_STORAGE", cfg.Storage.Backend)
	cfg.Storage.Path = getEnv("CODELAB_STORAGE_PATH", cfg.Storage.Path)
	cfg.Storage.DSN = getEnv("CODELAB_DATABASE_URL", cfg.Storage.DSN)
	cfg.Storage.Redis.Addr = getEnv("CODELAB_REDIS_ADDR", cfg.Storage.Redis.Addr)
	cfg.Storage.Redis.DB = getEnvInt("CODELAB_REDIS_DB", cfg.Storage.Redis.DB)
	cfg.Storage.Redis.Password = getEnv("CODELAB_REDIS_PASSWORD", cfg.Storage.Redis.Password)

	cfg.Events.AMQPURL = getEnv("CODELAB_AMQP_URL", cfg.Events.AMQPURL)

	if getEnvBool("CODELAB_DEBUG", false) {
		cfg.Daemon.LogLevel = "debug"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
