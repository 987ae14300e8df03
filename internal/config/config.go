package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"port"`
	ServiceName string `mapstructure:"service_name"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// HyperIoT platform
	HyperIoTBaseURL    string        `mapstructure:"hyperiot_base_url"`
	InsecureSkipVerify bool          `mapstructure:"hyperiot_insecure_skip_verify"`
	RequestTimeout     time.Duration `mapstructure:"hyperiot_request_timeout"`

	// Redis (optional project index backend)
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisPrefix   string `mapstructure:"redis_prefix"`

	// Per-user throttling of plugin calls; needs Redis, 0 disables it
	RateLimitRPS   int `mapstructure:"rate_limit_rps"`
	RateLimitBurst int `mapstructure:"rate_limit_burst"`

	// Canned answers override
	KnowledgePath string `mapstructure:"knowledge_path"`

	// Tracing
	OTLPEndpoint string `mapstructure:"otel_exporter_otlp_endpoint"`
}

var defaults = map[string]any{
	"port":                          "8097",
	"service_name":                  "hyperiot-assistant",
	"log_level":                     "info",
	"log_format":                    "text",
	"hyperiot_base_url":             "https://microservices-test.hyperiot.cloud",
	"hyperiot_insecure_skip_verify": false,
	"hyperiot_request_timeout":      "30s",
	"redis_addr":                    "",
	"redis_password":                "",
	"redis_db":                      0,
	"redis_prefix":                  "hyperiot:projects",
	"rate_limit_rps":                0,
	"rate_limit_burst":              20,
	"knowledge_path":                "",
	"otel_exporter_otlp_endpoint":   "",
}

// Load reads defaults, the optional YAML file at path and the environment,
// in increasing order of precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, def := range defaults {
		v.SetDefault(k, def)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.HyperIoTBaseURL = strings.TrimRight(strings.TrimSpace(cfg.HyperIoTBaseURL), "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.HyperIoTBaseURL)
	if err != nil {
		return fmt.Errorf("invalid hyperiot_base_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid hyperiot_base_url %q", c.HyperIoTBaseURL)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("hyperiot_request_timeout must not be negative")
	}
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("port is required")
	}
	return nil
}

// UseRedis reports whether the project index should be shared through Redis.
func (c *Config) UseRedis() bool {
	return strings.TrimSpace(c.RedisAddr) != ""
}
