package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestCodelabDir(t *testing.T) {
	dir, err := CodelabDir()
	require.NoError(t, err)

	assert.Equal(t, ".codelab", filepath.Base(dir))
	assert.True(t, filepath.IsAbs(dir), "absolute path")
}

func TestEnsureCodelabDir(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	dir, err := EnsureCodelabDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpHome, ".codelab"), dir)

	for _, subdir := range []string{"logs", "store"} {
		assert.DirExists(t, filepath.Join(dir, subdir))
	}
}

func TestDefaultLocalConfig(t *testing.T) {
	cfg := DefaultLocalConfig()

	assert.Equal(t, 7433, cfg.Daemon.Port)
	assert.Equal(t, "127.0.0.1", cfg.Daemon.Bind)
	assert.Equal(t, 10, cfg.Assessment.CooldownSeconds)
	assert.Equal(t, BackendLocal, cfg.Storage.Backend)
	assert.Equal(t, "codelab.events", cfg.Events.Queue)
}

func TestDurations(t *testing.T) {
	tests := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"cooldown default", AssessmentConfig{}.Cooldown(), 10 * time.Second},
		{"cooldown set", AssessmentConfig{CooldownSeconds: 3}.Cooldown(), 3 * time.Second},
		{"timeout default", JudgeConfig{}.Timeout(), 30 * time.Second},
		{"timeout set", JudgeConfig{TimeoutSeconds: 5}.Timeout(), 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestLoadSecrets(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := DefaultLocalConfig()

	secretsContent := "judge_token: tok-123\nredis_password: hunter2\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "secrets.yaml"), []byte(secretsContent), 0600))

	require.NoError(t, loadSecrets(tmpDir, cfg))
	assert.Equal(t, "tok-123", cfg.Judge.Token)
	assert.Equal(t, "hunter2", cfg.Storage.Redis.Password)
}

func TestLoadSecrets_NoSecretsFile(t *testing.T) {
	assert.NoError(t, loadSecrets(t.TempDir(), DefaultLocalConfig()))
}

func TestLoadSecrets_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "secrets.yaml"), []byte("invalid: yaml: content:"), 0600))

	assert.Error(t, loadSecrets(tmpDir, DefaultLocalConfig()))
}

func TestLoadLocalConfigFrom_DefaultsWhenNoFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadLocalConfigFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, 7433, cfg.Daemon.Port)
	assert.Equal(t, filepath.Join(dir, "store"), cfg.Storage.Path)
}

func TestLoadLocalConfigFrom_WithConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `daemon:
  port: 9999
  log_level: debug
judge:
  base_url: https://judge.example.com
  languages:
    python: 92
assessment:
  cooldown_seconds: 15
storage:
  backend: sqlite
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644))

	cfg, err := LoadLocalConfigFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Daemon.Port)
	// Unset fields keep their defaults
	assert.Equal(t, "127.0.0.1", cfg.Daemon.Bind)
	assert.Equal(t, 92, cfg.Judge.Languages["python"])
	assert.Equal(t, 15, cfg.Assessment.CooldownSeconds)
	assert.Equal(t, filepath.Join(dir, "store", "codelab.db"), cfg.Storage.Path)
}

func TestLoadLocalConfigFrom_InvalidConfigYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("daemon: [unclosed"), 0644))

	_, err := LoadLocalConfigFrom(dir)
	assert.Error(t, err)
}

func TestSaveLocalConfig(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	cfg := DefaultLocalConfig()
	cfg.Judge.BaseURL = "https://judge.example.com"
	cfg.Judge.Token = "must-not-be-written"

	require.NoError(t, SaveLocalConfig(cfg))

	data, err := os.ReadFile(filepath.Join(tmpHome, ".codelab", "config.yaml"))
	require.NoError(t, err)

	var loaded LocalConfig
	require.NoError(t, yaml.Unmarshal(data, &loaded))
	assert.Equal(t, "https://judge.example.com", loaded.Judge.BaseURL)
	assert.Empty(t, loaded.Judge.Token, "token leaked into config.yaml")
}

func TestSaveSecrets(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	require.NoError(t, SaveSecrets(SecretsConfig{JudgeToken: "tok"}))

	info, err := os.Stat(filepath.Join(tmpHome, ".codelab", "secrets.yaml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	cfg, err := LoadLocalConfigFrom(filepath.Join(tmpHome, ".codelab"))
	require.NoError(t, err)
	assert.Equal(t, "tok", cfg.Judge.Token)
}
