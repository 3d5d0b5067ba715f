package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetSecretEnv hides every environment variable bound to a secret so the
// caller's shell cannot override file or default values.
func unsetSecretEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"VERIFICATION_TOKEN", "HOTDOG_SLACK_VERIFICATION_TOKEN",
		"ACCESS_TOKEN", "HOTDOG_SLACK_ACCESS_TOKEN",
		"SIGNING_SECRET", "HOTDOG_SLACK_SIGNING_SECRET",
		"ANTHROPIC_API_KEY", "HOTDOG_CLASSIFIER_ANTHROPIC_API_KEY",
		"HOTDOG_ANALYTICS_POSTHOG_API_KEY",
	} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func TestLoad_WithDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, int64(1048576), cfg.Server.MaxBodyBytes)
	assert.Equal(t, "https://slack.com/api/", cfg.Slack.APIURL)
	assert.False(t, cfg.Slack.IgnoreRetries)

	assert.Equal(t, "Hot Dog", cfg.Detection.TargetLabel)
	assert.Equal(t, 80.0, cfg.Detection.MinConfidence)
	assert.Equal(t, int64(5242880), cfg.Detection.MaxImageBytes)
	assert.Equal(t, []string{"image/jpeg", "image/jpg", "image/png"}, cfg.Detection.SupportedTypes)
	assert.Equal(t, "Hotdog ✅", cfg.Detection.PositiveText)
	assert.Equal(t, "Not hotdog ❌", cfg.Detection.NegativeText)

	assert.Equal(t, BackendRekognition, cfg.Classifier.Backend)
	assert.Equal(t, 30*time.Second, cfg.Classifier.Timeout)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 10000, cfg.RateLimit.MaxKeys)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_LegacyEnvNames(t *testing.T) {
	unsetSecretEnv(t)
	t.Setenv("VERIFICATION_TOKEN", "verify-me")
	t.Setenv("ACCESS_TOKEN", "xoxb-legacy")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "verify-me", cfg.Slack.VerificationToken)
	assert.Equal(t, "xoxb-legacy", cfg.Slack.AccessToken)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_PrefixedEnvWins(t *testing.T) {
	unsetSecretEnv(t)
	t.Setenv("VERIFICATION_TOKEN", "legacy")
	t.Setenv("HOTDOG_SLACK_VERIFICATION_TOKEN", "prefixed")
	t.Setenv("HOTDOG_SERVER_PORT", "9090")
	t.Setenv("HOTDOG_DETECTION_MIN_CONFIDENCE", "90.5")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "prefixed", cfg.Slack.VerificationToken)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 90.5, cfg.Detection.MinConfidence)
}

func TestLoad_FromFile(t *testing.T) {
	unsetSecretEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 7000
slack:
  verification_token: file-token
  access_token: xoxb-file
  ignore_retries: true
classifier:
  backend: anthropic
  anthropic:
    api_key: sk-test
ratelimit:
  enabled: true
  backend: redis
  requests: 5
  window: 10s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "file-token", cfg.Slack.VerificationToken)
	assert.True(t, cfg.Slack.IgnoreRetries)
	assert.Equal(t, BackendAnthropic, cfg.Classifier.Backend)
	assert.Equal(t, "sk-test", cfg.Classifier.Anthropic.APIKey)
	assert.Equal(t, RateLimitRedis, cfg.RateLimit.Backend)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.Window)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_SecretEnvOverridesFile(t *testing.T) {
	unsetSecretEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("classifier:\n  anthropic:\n    api_key: sk-file\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-file", cfg.Classifier.Anthropic.APIKey)
	assert.Empty(t, cfg.Slack.SigningSecret)

	t.Setenv("ANTHROPIC_API_KEY", "sk-env")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.Classifier.Anthropic.APIKey)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate_MissingSecrets(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Slack.VerificationToken = ""
	cfg.Slack.AccessToken = ""

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slack.verification_token")
	assert.Contains(t, err.Error(), "slack.access_token")
}

func TestValidate_Detection(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty target", func(c *Config) { c.Detection.TargetLabel = "" }},
		{"confidence above range", func(c *Config) { c.Detection.MinConfidence = 120 }},
		{"non-positive max size", func(c *Config) { c.Detection.MaxImageBytes = 0 }},
		{"no supported types", func(c *Config) { c.Detection.SupportedTypes = nil }},
		{"unknown backend", func(c *Config) { c.Classifier.Backend = "magic" }},
		{"anthropic without key", func(c *Config) { c.Classifier.Backend = BackendAnthropic }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			cfg.Slack.VerificationToken = "v"
			cfg.Slack.AccessToken = "a"
			cfg.Classifier.Anthropic.APIKey = ""
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_RateLimit(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Slack.VerificationToken = "v"
	cfg.Slack.AccessToken = "a"
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.Backend = "memcached"

	assert.Error(t, cfg.Validate())

	cfg.RateLimit.Backend = RateLimitMemory
	cfg.RateLimit.Requests = 0
	assert.Error(t, cfg.Validate())

	cfg.RateLimit.Requests = 10
	assert.NoError(t, cfg.Validate())
}

func TestRedacted(t *testing.T) {
	cfg := Config{}
	cfg.Slack.VerificationToken = "secret"
	cfg.Slack.AccessToken = "xoxb-secret"
	cfg.Detection.SupportedTypes = []string{"image/png"}

	red := cfg.Redacted()

	assert.Equal(t, "********", red.Slack.VerificationToken)
	assert.Equal(t, "********", red.Slack.AccessToken)
	assert.Empty(t, red.Slack.SigningSecret)
	assert.Equal(t, "secret", cfg.Slack.VerificationToken, "original must be untouched")

	red.Detection.SupportedTypes[0] = "changed"
	assert.Equal(t, "image/png", cfg.Detection.SupportedTypes[0])
}
