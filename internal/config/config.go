package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a pipeline run
type Config struct {
	Eligibility EligibilityConfig `yaml:"eligibility"`
	Sources     SourcesConfig     `yaml:"sources"`
	Output      OutputConfig      `yaml:"output"`
	Lock        LockConfig        `yaml:"lock"`
	Notify      NotifyConfig      `yaml:"notify"`
	Log         LogConfig         `yaml:"log"`
}

// EligibilityConfig tunes the resubmission rules.
type EligibilityConfig struct {
	AsOf             string            `yaml:"as_of"` // YYYY-MM-DD; empty means the run's start date
	MinAgeDays       int               `yaml:"min_age_days"`
	RetryableReasons []RetryableReason `yaml:"retryable_reasons"`
}

// RetryableReason is an extra denial keyword, appended after the built-in table.
type RetryableReason struct {
	Keyword     string `yaml:"keyword"`
	Label       string `yaml:"label"`
	Remediation string `yaml:"remediation"`
}

// AsOfDate parses AsOf. ok is false when no date is pinned.
func (c EligibilityConfig) AsOfDate() (t time.Time, ok bool, err error) {
	if strings.TrimSpace(c.AsOf) == "" {
		return time.Time{}, false, nil
	}
	t, err = time.Parse("2006-01-02", strings.TrimSpace(c.AsOf))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("eligibility.as_of: %w", err)
	}
	return t, true, nil
}

// SourcesConfig holds settings for reading s3:// inputs.
type SourcesConfig struct {
	AWSRegion  string `yaml:"aws_region"`
	AWSProfile string `yaml:"aws_profile"` // Empty string uses default credential chain
}

// OutputConfig says where the two artifacts are written.
type OutputConfig struct {
	Type           string `yaml:"type"` // local or s3
	LocalPath      string `yaml:"local_path"`
	S3Bucket       string `yaml:"s3_bucket"`
	S3Prefix       string `yaml:"s3_prefix"`
	AWSRegion      string `yaml:"aws_region"`
	AWSProfile     string `yaml:"aws_profile"`
	CandidatesFile string `yaml:"candidates_file"`
	MetricsFile    string `yaml:"metrics_file"`
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c OutputConfig) GetAWSProfile() string {
	return awsProfile(c.AWSProfile)
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c SourcesConfig) GetAWSProfile() string {
	return awsProfile(c.AWSProfile)
}

func awsProfile(configured string) string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return configured
}

// LockConfig guards against two runs writing the same artifacts.
type LockConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Key         string `yaml:"key"`
	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`
	TTLSeconds  int    `yaml:"ttl_seconds"`
}

// TTL returns the lock TTL as a duration
func (c LockConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// NotifyConfig holds the SES completion notification settings.
type NotifyConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Region    string   `yaml:"region"`
	AccessKey string   `yaml:"access_key"`
	SecretKey string   `yaml:"secret_key"`
	From      string   `yaml:"from"`
	To        []string `yaml:"to"`
	Subject   string   `yaml:"subject"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPHI *bool  `yaml:"redact_phi"`
}

// Redact reports whether PHI redaction is on. It defaults to true.
func (c LogConfig) Redact() bool {
	return c.RedactPHI == nil || *c.RedactPHI
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Eligibility.MinAgeDays == 0 {
		cfg.Eligibility.MinAgeDays = 7
	}
	if cfg.Output.Type == "" {
		cfg.Output.Type = "local"
	}
	if cfg.Output.LocalPath == "" {
		cfg.Output.LocalPath = "."
	}
	if cfg.Output.CandidatesFile == "" {
		cfg.Output.CandidatesFile = "resubmission_candidates.json"
	}
	if cfg.Output.MetricsFile == "" {
		cfg.Output.MetricsFile = "pipeline_metrics.log"
	}
	if cfg.Sources.AWSRegion == "" {
		cfg.Sources.AWSRegion = "us-west-2"
	}
	if cfg.Output.AWSRegion == "" {
		cfg.Output.AWSRegion = cfg.Sources.AWSRegion
	}
	if cfg.Lock.Key == "" {
		cfg.Lock.Key = "claims-pipeline:run"
	}
	if cfg.Lock.TTLSeconds == 0 {
		cfg.Lock.TTLSeconds = 900
	}
	if cfg.Notify.Region == "" {
		cfg.Notify.Region = "us-west-2"
	}
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = "Claims pipeline run {{ run_id }}"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars.
// An empty path skips the YAML file and starts from defaults. The result is
// not validated; callers apply their own overrides and then call Validate.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		var err error
		if cfg, err = Load(path); err != nil {
			return nil, err
		}
	}

	// Override with environment variables if present
	if v := os.Getenv("CLAIMS_AS_OF"); v != "" {
		cfg.Eligibility.AsOf = v
	}
	if v := os.Getenv("CLAIMS_MIN_AGE_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("CLAIMS_MIN_AGE_DAYS: invalid value %q", v)
		}
		cfg.Eligibility.MinAgeDays = n
	}
	if v := os.Getenv("CLAIMS_OUTPUT_TYPE"); v != "" {
		cfg.Output.Type = v
	}
	if v := os.Getenv("CLAIMS_OUTPUT_DIR"); v != "" {
		cfg.Output.LocalPath = v
	}
	if v := os.Getenv("CLAIMS_S3_BUCKET"); v != "" {
		cfg.Output.S3Bucket = v
	}
	if v := os.Getenv("CLAIMS_S3_PREFIX"); v != "" {
		cfg.Output.S3Prefix = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Sources.AWSRegion = v
		cfg.Output.AWSRegion = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Lock.RedisURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Lock.DatabaseURL = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.Notify.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.Notify.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.Notify.Region = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	return cfg, nil
}

// Validate checks values the defaults cannot fix.
func (c *Config) Validate() error {
	if _, _, err := c.Eligibility.AsOfDate(); err != nil {
		return err
	}
	switch c.Output.Type {
	case "local":
	case "s3":
		if c.Output.S3Bucket == "" {
			return fmt.Errorf("output.s3_bucket is required when output.type is s3")
		}
	default:
		return fmt.Errorf("output.type: unknown value %q", c.Output.Type)
	}
	if c.Notify.Enabled && (c.Notify.From == "" || len(c.Notify.To) == 0) {
		return fmt.Errorf("notify.from and notify.to are required when notify is enabled")
	}
	return nil
}
