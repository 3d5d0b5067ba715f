package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"     yaml:"server"`
	Slack      SlackConfig      `mapstructure:"slack"      yaml:"slack"`
	Detection  DetectionConfig  `mapstructure:"detection"  yaml:"detection"`
	Classifier ClassifierConfig `mapstructure:"classifier" yaml:"classifier"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"  yaml:"ratelimit"`
	Analytics  AnalyticsConfig  `mapstructure:"analytics"  yaml:"analytics"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"           yaml:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"   yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"  yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"   yaml:"idle_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
}

// SlackConfig holds the Slack app credentials. VerificationToken and
// AccessToken are read once at startup and never mutated.
type SlackConfig struct {
	VerificationToken string `mapstructure:"verification_token" yaml:"verification_token"`
	AccessToken       string `mapstructure:"access_token"       yaml:"access_token"`
	SigningSecret     string `mapstructure:"signing_secret"     yaml:"signing_secret"`
	APIURL            string `mapstructure:"api_url"            yaml:"api_url"`
	IgnoreRetries     bool   `mapstructure:"ignore_retries"     yaml:"ignore_retries"`
}

type DetectionConfig struct {
	TargetLabel    string   `mapstructure:"target_label"    yaml:"target_label"`
	MinConfidence  float64  `mapstructure:"min_confidence"  yaml:"min_confidence"`
	MaxImageBytes  int64    `mapstructure:"max_image_bytes" yaml:"max_image_bytes"`
	SupportedTypes []string `mapstructure:"supported_types" yaml:"supported_types"`
	PositiveText   string   `mapstructure:"positive_text"   yaml:"positive_text"`
	NegativeText   string   `mapstructure:"negative_text"   yaml:"negative_text"`
}

type ClassifierConfig struct {
	Backend   string          `mapstructure:"backend"   yaml:"backend"`
	Timeout   time.Duration   `mapstructure:"timeout"   yaml:"timeout"`
	AWS       AWSConfig       `mapstructure:"aws"       yaml:"aws"`
	Anthropic AnthropicConfig `mapstructure:"anthropic" yaml:"anthropic"`
}

type AWSConfig struct {
	Region string `mapstructure:"region" yaml:"region"`
}

type AnthropicConfig struct {
	APIKey    string `mapstructure:"api_key"    yaml:"api_key"`
	BaseURL   string `mapstructure:"base_url"   yaml:"base_url"`
	Model     string `mapstructure:"model"      yaml:"model"`
	MaxTokens int64  `mapstructure:"max_tokens" yaml:"max_tokens"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"   yaml:"enabled"`
	Backend  string        `mapstructure:"backend"   yaml:"backend"`
	Requests int           `mapstructure:"requests"  yaml:"requests"`
	Window   time.Duration `mapstructure:"window"    yaml:"window"`
	RedisURL string        `mapstructure:"redis_url" yaml:"redis_url"`
	MaxKeys  int           `mapstructure:"max_keys"  yaml:"max_keys"`
}

type AnalyticsConfig struct {
	PosthogAPIKey   string `mapstructure:"posthog_api_key"  yaml:"posthog_api_key"`
	PosthogEndpoint string `mapstructure:"posthog_endpoint" yaml:"posthog_endpoint"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Classifier backends.
const (
	BackendRekognition = "rekognition"
	BackendAnthropic   = "anthropic"
)

// Rate limiter backends.
const (
	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"
)

// Load reads configuration from defaults, an optional YAML file and the
// environment (HOTDOG_ prefix). The two Slack secrets also honour the bare
// VERIFICATION_TOKEN and ACCESS_TOKEN variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.max_body_bytes", 1048576)
	v.SetDefault("slack.api_url", "https://slack.com/api/")
	v.SetDefault("slack.ignore_retries", false)
	v.SetDefault("detection.target_label", "Hot Dog")
	v.SetDefault("detection.min_confidence", 80.0)
	v.SetDefault("detection.max_image_bytes", 5242880)
	v.SetDefault("detection.supported_types", []string{"image/jpeg", "image/jpg", "image/png"})
	v.SetDefault("detection.positive_text", "Hotdog ✅")
	v.SetDefault("detection.negative_text", "Not hotdog ❌")
	v.SetDefault("classifier.backend", BackendRekognition)
	v.SetDefault("classifier.timeout", "30s")
	v.SetDefault("classifier.aws.region", "us-east-1")
	v.SetDefault("classifier.anthropic.base_url", "https://api.anthropic.com")
	v.SetDefault("classifier.anthropic.model", "claude-sonnet-4-5")
	v.SetDefault("classifier.anthropic.max_tokens", 1024)
	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.backend", RateLimitMemory)
	v.SetDefault("ratelimit.requests", 600)
	v.SetDefault("ratelimit.window", "1m")
	v.SetDefault("ratelimit.redis_url", "redis://localhost:6379/0")
	v.SetDefault("ratelimit.max_keys", 10000)
	v.SetDefault("analytics.posthog_endpoint", "https://us.i.posthog.com")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/hotdog")
	}

	v.SetEnvPrefix("HOTDOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets have no defaults, so they must be bound explicitly to be
	// picked up by Unmarshal.
	bindings := map[string][]string{
		"slack.verification_token":     {"HOTDOG_SLACK_VERIFICATION_TOKEN", "VERIFICATION_TOKEN"},
		"slack.access_token":           {"HOTDOG_SLACK_ACCESS_TOKEN", "ACCESS_TOKEN"},
		"slack.signing_secret":         {"HOTDOG_SLACK_SIGNING_SECRET", "SIGNING_SECRET"},
		"classifier.anthropic.api_key": {"HOTDOG_CLASSIFIER_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"},
		"analytics.posthog_api_key":    {"HOTDOG_ANALYTICS_POSTHOG_API_KEY"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate reports configuration that would prevent the service from
// handling events. Missing Slack credentials are always fatal.
func (c *Config) Validate() error {
	var errs []error

	if c.Slack.VerificationToken == "" {
		errs = append(errs, errors.New("slack.verification_token is required (VERIFICATION_TOKEN)"))
	}
	if c.Slack.AccessToken == "" {
		errs = append(errs, errors.New("slack.access_token is required (ACCESS_TOKEN)"))
	}
	if err := c.ValidateDetection(); err != nil {
		errs = append(errs, err)
	}
	if c.RateLimit.Enabled {
		switch c.RateLimit.Backend {
		case RateLimitMemory, RateLimitRedis:
		default:
			errs = append(errs, fmt.Errorf("unknown ratelimit.backend %q (supported: memory, redis)", c.RateLimit.Backend))
		}
		if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
			errs = append(errs, errors.New("ratelimit.requests and ratelimit.window must be positive"))
		}
	}

	return errors.Join(errs...)
}

// ValidateDetection checks only the settings needed to classify images,
// which is all the offline classify command requires.
func (c *Config) ValidateDetection() error {
	var errs []error

	if c.Detection.TargetLabel == "" {
		errs = append(errs, errors.New("detection.target_label must not be empty"))
	}
	if c.Detection.MinConfidence < 0 || c.Detection.MinConfidence > 100 {
		errs = append(errs, fmt.Errorf("detection.min_confidence %.1f out of range [0, 100]", c.Detection.MinConfidence))
	}
	if c.Detection.MaxImageBytes <= 0 {
		errs = append(errs, errors.New("detection.max_image_bytes must be positive"))
	}
	if len(c.Detection.SupportedTypes) == 0 {
		errs = append(errs, errors.New("detection.supported_types must not be empty"))
	}
	switch c.Classifier.Backend {
	case BackendRekognition:
	case BackendAnthropic:
		if c.Classifier.Anthropic.APIKey == "" {
			errs = append(errs, errors.New("classifier.anthropic.api_key is required for the anthropic backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown classifier.backend %q (supported: rekognition, anthropic)", c.Classifier.Backend))
	}

	return errors.Join(errs...)
}

// Redacted returns a copy of the config with secrets masked, suitable for
// printing.
func (c Config) Redacted() Config {
	c.Slack.VerificationToken = mask(c.Slack.VerificationToken)
	c.Slack.AccessToken = mask(c.Slack.AccessToken)
	c.Slack.SigningSecret = mask(c.Slack.SigningSecret)
	c.Classifier.Anthropic.APIKey = mask(c.Classifier.Anthropic.APIKey)
	c.Analytics.PosthogAPIKey = mask(c.Analytics.PosthogAPIKey)
	c.Detection.SupportedTypes = append([]string(nil), c.Detection.SupportedTypes...)
	return c
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
