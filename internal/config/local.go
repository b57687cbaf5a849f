package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// LocalConfig holds configuration for the local daemon
type LocalConfig struct {
	Daemon     DaemonConfig     `yaml:"daemon"`
	Judge      JudgeConfig      `yaml:"judge"`
	Assessment AssessmentConfig `yaml:"assessment"`
	Storage    StorageConfig    `yaml:"storage"`
	Events     EventsConfig     `yaml:"events"`
}

// DaemonConfig holds daemon server settings
type DaemonConfig struct {
	Port     int    `yaml:"port"`
	Bind     string `yaml:"bind"`
	LogLevel string `yaml:"log_level"`
}

// JudgeConfig holds settings for the remote content and judge service
type JudgeConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxConcurrent  int    `yaml:"max_concurrent"`
	RatePerSecond  int    `yaml:"rate_per_second"`
	// Languages overrides judge language ids by language id, e.g. python: 71
	Languages map[string]int `yaml:"languages,omitempty"`
	Token     string         `yaml:"-"` // Loaded from secrets.yaml
}

// Timeout returns the per-request timeout
func (j JudgeConfig) Timeout() time.Duration {
	if j.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(j.TimeoutSeconds) * time.Second
}

// AssessmentConfig holds orchestrator settings
type AssessmentConfig struct {
	CooldownSeconds int `yaml:"cooldown_seconds"`
}

// Cooldown returns the submission cooldown window
func (a AssessmentConfig) Cooldown() time.Duration {
	if a.CooldownSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(a.CooldownSeconds) * time.Second
}

// Storage backends
const (
	BackendLocal    = "local"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// StorageConfig selects and configures the durable client storage backend
type StorageConfig struct {
	Backend string      `yaml:"backend"`
	Path    string      `yaml:"path,omitempty"` // local directory or sqlite file
	DSN     string      `yaml:"dsn,omitempty"`  // postgres
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig holds redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
	Password string `yaml:"-"` // Loaded from secrets.yaml
}

// EventsConfig holds event forwarding settings
type EventsConfig struct {
	AMQPURL string `yaml:"amqp_url,omitempty"`
	Queue   string `yaml:"queue"`
}

// SecretsConfig holds credentials loaded from secrets.yaml
type SecretsConfig struct {
	JudgeToken    string `yaml:"judge_token,omitempty"`
	RedisPassword string `yaml:"redis_password,omitempty"`
}

// CodelabDir returns the path to ~/.codelab
func CodelabDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".codelab"), nil
}

// EnsureCodelabDir creates ~/.codelab and subdirectories if they don't exist
func EnsureCodelabDir() (string, error) {
	dir, err := CodelabDir()
	if err != nil {
		return "", err
	}

	subdirs := []string{
		"",
		"logs",
		"store",
	}

	for _, subdir := range subdirs {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}

	return dir, nil
}

// DefaultLocalConfig returns sensible defaults for local mode
func DefaultLocalConfig() *LocalConfig {
	return &LocalConfig{
		Daemon: DaemonConfig{
			Port:     7433,
			Bind:     "127.0.0.1",
			LogLevel: "info",
		},
		Judge: JudgeConfig{
			BaseURL:        "http://localhost:8080/api",
			TimeoutSeconds: 30,
			MaxConcurrent:  4,
			RatePerSecond:  5,
		},
		Assessment: AssessmentConfig{
			CooldownSeconds: 10,
		},
		Storage: StorageConfig{
			Backend: BackendLocal,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "codelab:",
			},
		},
		Events: EventsConfig{
			Queue: "codelab.events",
		},
	}
}

// LoadLocalConfig loads configuration from ~/.codelab/config.yaml and
// applies CODELAB_* environment overrides.
func LoadLocalConfig() (*LocalConfig, error) {
	dir, err := CodelabDir()
	if err != nil {
		return nil, err
	}
	return LoadLocalConfigFrom(dir)
}

// LoadLocalConfigFrom loads config.yaml and secrets.yaml from dir.
func LoadLocalConfigFrom(dir string) (*LocalConfig, error) {
	cfg := DefaultLocalConfig()

	configPath := filepath.Join(dir, "config.yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
		// defaults
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadSecrets(dir, cfg); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}

	applyEnv(cfg)

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = defaultStoragePath(dir, cfg.Storage.Backend)
	}

	return cfg, nil
}

func defaultStoragePath(dir, backend string) string {
	if backend == BackendSQLite {
		return filepath.Join(dir, "store", "codelab.db")
	}
	return filepath.Join(dir, "store")
}

// loadSecrets loads credentials from secrets.yaml
func loadSecrets(dir string, cfg *LocalConfig) error {
	secretsPath := filepath.Join(dir, "secrets.yaml")

	// If secrets file doesn't exist, skip
	if _, err := os.Stat(secretsPath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(secretsPath)
	if err != nil {
		return fmt.Errorf("read secrets: %w", err)
	}

	var secrets SecretsConfig
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return fmt.Errorf("parse secrets: %w", err)
	}

	cfg.Judge.Token = secrets.JudgeToken
	cfg.Storage.Redis.Password = secrets.RedisPassword
	return nil
}

// SaveLocalConfig saves configuration to ~/.codelab/config.yaml
func SaveLocalConfig(cfg *LocalConfig) error {
	dir, err := EnsureCodelabDir()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// SaveSecrets saves credentials to ~/.codelab/secrets.yaml
func SaveSecrets(secrets SecretsConfig) error {
	dir, err := EnsureCodelabDir()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}

	// Write with restricted permissions (owner read/write only)
	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), data, 0600); err != nil {
		return fmt.Errorf("write secrets: %w", err)
	}

	return nil
}
