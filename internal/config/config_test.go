package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Server.Port == 0 {
		t.Error("expected Server.Port to be non-zero")
	}
	if cfg.Database.Name == "" {
		t.Error("expected Database.Name to be set")
	}
	if cfg.Log.Level == "" {
		t.Error("expected Log.Level to be set")
	}
	if cfg.Scheduler.TickInterval == 0 {
		t.Error("expected Scheduler.TickInterval to be set")
	}
	if cfg.Scheduler.Concurrency < 1 {
		t.Error("expected Scheduler.Concurrency to be positive")
	}
	if cfg.Content.WelcomeTag == "" {
		t.Error("expected Content.WelcomeTag to be set")
	}
}

func TestConfig_Timeouts(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.AI.Timeout == 0 {
		t.Error("expected AI timeout to be set")
	}
	if cfg.GitHub.Timeout == 0 {
		t.Error("expected GitHub timeout to be set")
	}
	if cfg.CircuitBreaker.ResetTimeout == 0 {
		t.Error("expected circuit breaker reset timeout to be set")
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "bot", Password: "pw", Name: "forem"}
	assert.Equal(t, "host=db user=bot password=pw dbname=forem port=5433 sslmode=disable TimeZone=UTC", d.DSN())

	d.SSLMode = "require"
	assert.Contains(t, d.DSN(), "sslmode=require")
}

func TestSetupAndLoad_FromFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	content := `
scheduler:
  tick_interval: 30s
  batch_size: 10
content:
  index_minimum_score: 7
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	require.NoError(t, Setup(path))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.TickInterval)
	assert.Equal(t, 10, cfg.Scheduler.BatchSize)
	assert.Equal(t, 7, cfg.Content.IndexMinimumScore)
	assert.Equal(t, "debug", cfg.Log.Level)
	// untouched sections keep defaults
	assert.Equal(t, 4, cfg.Scheduler.Concurrency)
	assert.Equal(t, "welcome", cfg.Content.WelcomeTag)
}

func TestSetup_MissingExplicitFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	err := Setup(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		lc     LogConfig
		level  logrus.Level
		isJSON bool
	}{
		{name: "json debug", lc: LogConfig{Level: "debug", Format: "json", Output: "stdout"}, level: logrus.DebugLevel, isJSON: true},
		{name: "text warn", lc: LogConfig{Level: "warn", Format: "text", Output: "stdout"}, level: logrus.WarnLevel},
		{name: "invalid level falls back to info", lc: LogConfig{Level: "loud", Output: "stdout"}, level: logrus.InfoLevel, isJSON: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.lc)
			require.NoError(t, err)
			assert.Equal(t, tt.level, logger.GetLevel())
			_, isJSON := logger.Formatter.(*logrus.JSONFormatter)
			assert.Equal(t, tt.isJSON, isJSON)
		})
	}
}

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "automations.log")
	logger, err := NewLogger(LogConfig{Level: "info", Format: "json", Output: "file", FilePath: path, MaxSize: 1})
	require.NoError(t, err)

	logger.Info("hello")
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
