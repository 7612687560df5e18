package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file, relative to the working directory.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                   string  `yaml:"port"`
	LogLevel               string  `yaml:"logLevel"`
	RedisAddr              string  `yaml:"redisAddr"`
	RedisPassword          string  `yaml:"redisPassword"`
	QueueName              string  `yaml:"queueName"`
	QueueGroup             string  `yaml:"queueGroup"`
	QueueConcurrency       int     `yaml:"queueConcurrency"`
	QueueMaxRetries        int     `yaml:"queueMaxRetries"`
	QueueRetryDelaySeconds int     `yaml:"queueRetryDelaySeconds"`
	WebhookURL             string  `yaml:"webhookURL"`
	WebhookToken           string  `yaml:"webhookToken"`
	WebhookTimeoutSeconds  int     `yaml:"webhookTimeoutSeconds"`
	RatePerSecond          float64 `yaml:"ratePerSecond"`
	RateBurst              int     `yaml:"rateBurst"`
	JobsToken              string  `yaml:"jobsToken"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = strings.TrimSpace(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("NOTIFIER_QUEUE_NAME"); v != "" {
		cfg.QueueName = v
	}
	if v := os.Getenv("NOTIFIER_QUEUE_GROUP"); v != "" {
		cfg.QueueGroup = v
	}
	if v := os.Getenv("NOTIFIER_QUEUE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.QueueConcurrency = n
		}
	}
	if v := os.Getenv("NOTIFIER_QUEUE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.QueueMaxRetries = n
		}
	}
	if v := os.Getenv("NOTIFIER_QUEUE_RETRY_DELAY_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.QueueRetryDelaySeconds = n
		}
	}
	if v := os.Getenv("NOTIFIER_WEBHOOK_URL"); v != "" {
		cfg.WebhookURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("NOTIFIER_WEBHOOK_TOKEN"); v != "" {
		cfg.WebhookToken = v
	}
	if v := os.Getenv("NOTIFIER_WEBHOOK_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WebhookTimeoutSeconds = n
		}
	}
	if v := os.Getenv("NOTIFIER_RATE_PER_SECOND"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RatePerSecond = n
		}
	}
	if v := os.Getenv("NOTIFIER_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateBurst = n
		}
	}
	if v := os.Getenv("NOTIFIER_JOBS_TOKEN"); v != "" {
		cfg.JobsToken = v
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required (set in config.yaml or REDIS_ADDR)")
	}
	if cfg.QueueConcurrency < 0 || cfg.QueueMaxRetries < 0 || cfg.QueueRetryDelaySeconds < 0 {
		return errors.New("config: queue settings must be >= 0")
	}
	if cfg.WebhookURL != "" {
		u, err := url.Parse(cfg.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.New("config: webhookURL must be an absolute http(s) URL")
		}
	}
	if cfg.WebhookTimeoutSeconds < 0 {
		return errors.New("config: webhookTimeoutSeconds must be >= 0")
	}
	if cfg.RatePerSecond < 0 {
		return errors.New("config: ratePerSecond must be >= 0 (0 disables throttling)")
	}
	if cfg.RateBurst < 0 {
		return errors.New("config: rateBurst must be >= 0")
	}
	return nil
}
