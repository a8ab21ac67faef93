package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
eligibility:
  as_of: "2025-07-30"
  min_age_days: 10
  retryable_reasons:
    - keyword: "timely filing"
      label: "timely filing"
      remediation: "Attach proof of timely filing and resubmit"

output:
  type: "s3"
  s3_bucket: "claims-artifacts"
  s3_prefix: "runs/daily"

lock:
  enabled: true
  redis_url: "redis://localhost:6379/0"
  ttl_seconds: 60

notify:
  enabled: true
  from: "pipeline@example.com"
  to: ["billing@example.com"]

log:
  level: "debug"
  redact_phi: false
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	asOf, ok, err := cfg.Eligibility.AsOfDate()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2025, 7, 30, 0, 0, 0, 0, time.UTC), asOf)
	assert.Equal(t, 10, cfg.Eligibility.MinAgeDays)
	require.Len(t, cfg.Eligibility.RetryableReasons, 1)
	assert.Equal(t, "timely filing", cfg.Eligibility.RetryableReasons[0].Keyword)

	assert.Equal(t, "s3", cfg.Output.Type)
	assert.Equal(t, "claims-artifacts", cfg.Output.S3Bucket)
	assert.Equal(t, "runs/daily", cfg.Output.S3Prefix)

	assert.True(t, cfg.Lock.Enabled)
	assert.Equal(t, time.Minute, cfg.Lock.TTL())

	assert.Equal(t, []string{"billing@example.com"}, cfg.Notify.To)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.Redact())
}

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("log:\n  level: warn\n"), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	// Verify defaults are applied
	assert.Equal(t, 7, cfg.Eligibility.MinAgeDays)
	assert.Equal(t, "local", cfg.Output.Type)
	assert.Equal(t, ".", cfg.Output.LocalPath)
	assert.Equal(t, "resubmission_candidates.json", cfg.Output.CandidatesFile)
	assert.Equal(t, "pipeline_metrics.log", cfg.Output.MetricsFile)
	assert.Equal(t, "us-west-2", cfg.Output.AWSRegion)
	assert.Equal(t, 900, cfg.Lock.TTLSeconds)
	assert.True(t, cfg.Log.Redact())

	_, ok, err := cfg.Eligibility.AsOfDate()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadFromEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("output:\n  local_path: ./file-out\n"), 0644))

	t.Setenv("CLAIMS_OUTPUT_DIR", "./env-out")
	t.Setenv("CLAIMS_AS_OF", "2025-01-15")
	t.Setenv("REDIS_URL", "redis://cache:6379")

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	// Environment variables should override file values
	assert.Equal(t, "./env-out", cfg.Output.LocalPath)
	assert.Equal(t, "2025-01-15", cfg.Eligibility.AsOf)
	assert.Equal(t, "redis://cache:6379", cfg.Lock.RedisURL)
}

func TestLoadFromEnv_NoFile(t *testing.T) {
	cfg, err := LoadFromEnv("")
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Output.Type)
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	t.Setenv("CLAIMS_MIN_AGE_DAYS", "soon")
	_, err := LoadFromEnv("")
	assert.Error(t, err)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad as_of", func(c *Config) { c.Eligibility.AsOf = "30/07/2025" }},
		{"s3 without bucket", func(c *Config) { c.Output.Type = "s3" }},
		{"unknown output", func(c *Config) { c.Output.Type = "ftp" }},
		{"notify without recipients", func(c *Config) { c.Notify.Enabled = true; c.Notify.From = "a@example.com" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestGetAWSProfile(t *testing.T) {
	t.Setenv("ECS_CONTAINER_METADATA_URI", "")
	t.Setenv("AWS_EXECUTION_ENV", "")
	t.Setenv("AWS_PROFILE_OVERRIDE", "")
	cfg := OutputConfig{AWSProfile: "claims"}
	assert.Equal(t, "claims", cfg.GetAWSProfile())

	t.Setenv("AWS_PROFILE_OVERRIDE", "iam")
	assert.Equal(t, "", cfg.GetAWSProfile())
}

func TestLoadFromEnv_ValidatesAfterOverrides(t *testing.T) {
	t.Setenv("CLAIMS_OUTPUT_TYPE", "s3")
	t.Setenv("CLAIMS_AS_OF", "not-a-date")

	cfg, err := LoadFromEnv("")
	require.NoError(t, err, "env values are only checked by Validate")
	assert.Error(t, cfg.Validate())

	// command-line overrides win before validation
	cfg.Output.Type = "local"
	cfg.Output.LocalPath = t.TempDir()
	cfg.Eligibility.AsOf = "2025-07-30"
	assert.NoError(t, cfg.Validate())
}
