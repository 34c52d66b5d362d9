package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseConfigDefaults(t *testing.T) {
	cfg := NewBaseConfig("railz-invoices", "railz")

	assert.Equal(t, "railz-invoices", cfg.Name)
	assert.Equal(t, "railz", cfg.Type)
	assert.Equal(t, 1000, cfg.Performance.BatchSize)
	assert.True(t, cfg.Reliability.CircuitBreaker)
	assert.True(t, cfg.Security.EnableTLS)
	assert.NotNil(t, cfg.Security.Credentials)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*BaseConfig)
		wantErr string
	}{
		{"missing name", func(c *BaseConfig) { c.Name = "" }, "name is required"},
		{"missing type", func(c *BaseConfig) { c.Type = "" }, "type is required"},
		{"bad batch size", func(c *BaseConfig) { c.Performance.BatchSize = 0 }, "batch_size"},
		{"bad buffer size", func(c *BaseConfig) { c.Performance.BufferSize = -1 }, "buffer_size"},
		{"bad concurrency", func(c *BaseConfig) { c.Performance.MaxConcurrency = 0 }, "max_concurrency"},
		{"negative retries", func(c *BaseConfig) { c.Reliability.RetryAttempts = -1 }, "retry_attempts"},
		{"negative rate limit", func(c *BaseConfig) { c.Reliability.RateLimitPerSec = -5 }, "rate_limit_per_sec"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewBaseConfig("test", "railz")
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
name: railz-invoices
type: railz
performance:
  batch_size: 50
security:
  credentials:
    client_id: abc123
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	var cfg BaseConfig
	require.NoError(t, Load(path, &cfg))

	assert.Equal(t, "railz-invoices", cfg.Name)
	assert.Equal(t, 50, cfg.Performance.BatchSize)
	assert.Equal(t, "abc123", cfg.Security.Credentials["client_id"])
}

func TestLoadSubstitutesEnvVars(t *testing.T) {
	t.Setenv("RAILZ_CLIENT_ID", "id-from-env")
	t.Setenv("RAILZ_SECRET_KEY", "secret-from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
name: railz-invoices
type: railz
security:
  credentials:
    client_id: ${RAILZ_CLIENT_ID}
    secret_key: ${RAILZ_SECRET_KEY}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	var cfg BaseConfig
	require.NoError(t, Load(path, &cfg))

	assert.Equal(t, "id-from-env", cfg.Security.Credentials["client_id"])
	assert.Equal(t, "secret-from-env", cfg.Security.Credentials["secret_key"])
}

func TestLoadMissingFile(t *testing.T) {
	var cfg BaseConfig
	err := Load(filepath.Join(t.TempDir(), "absent.yaml"), &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")

	cfg := NewBaseConfig("railz-invoices", "railz")
	cfg.Security.Credentials["client_id"] = "abc123"
	require.NoError(t, Save(path, cfg))

	var loaded BaseConfig
	require.NoError(t, Load(path, &loaded))
	assert.Equal(t, cfg.Name, loaded.Name)
	assert.Equal(t, "abc123", loaded.Security.Credentials["client_id"])
}

func TestGetWorkers(t *testing.T) {
	p := PerformanceConfig{Workers: 4}
	assert.Equal(t, 4, p.GetWorkers())

	p.Workers = 0
	assert.Greater(t, p.GetWorkers(), 0)
}

func TestIsRateLimited(t *testing.T) {
	r := ReliabilityConfig{RateLimitPerSec: 0}
	assert.False(t, r.IsRateLimited())
	r.RateLimitPerSec = 10
	assert.True(t, r.IsRateLimited())
}
