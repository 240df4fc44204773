package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"CONVENE_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"CONVENE_DB_MAX_CONNS" default:"8"`

	ExtractorURL     string        `envconfig:"CONVENE_EXTRACTOR_URL" default:"http://127.0.0.1:8080/api/v1/extract"`
	ExtractorTimeout time.Duration `envconfig:"CONVENE_EXTRACTOR_TIMEOUT" default:"30s"`

	CacheTTL time.Duration `envconfig:"CONVENE_CACHE_TTL" default:"1h"`

	RetryMaxAttempts int           `envconfig:"CONVENE_RETRY_MAX_ATTEMPTS" default:"4"`
	RetryBaseDelay   time.Duration `envconfig:"CONVENE_RETRY_BASE_DELAY" default:"100ms"`
	RetryMaxDelay    time.Duration `envconfig:"CONVENE_RETRY_MAX_DELAY" default:"3s"`
	RetryFactor      float64       `envconfig:"CONVENE_RETRY_FACTOR" default:"2"`

	BreakerFailureThreshold int           `envconfig:"CONVENE_BREAKER_FAILURE_THRESHOLD" default:"5"`
	BreakerResetTimeout     time.Duration `envconfig:"CONVENE_BREAKER_RESET_TIMEOUT" default:"30s"`

	AutoMergeThreshold  float64 `envconfig:"CONVENE_AUTO_MERGE_THRESHOLD" default:"0.85"`
	ReviewThreshold     float64 `envconfig:"CONVENE_REVIEW_THRESHOLD" default:"0.5"`
	DomainOverride      bool    `envconfig:"CONVENE_DOMAIN_OVERRIDE" default:"true"`
	BlockingKeyLength   int     `envconfig:"CONVENE_BLOCKING_KEY_LENGTH" default:"4"`
	ConfidenceThreshold float64 `envconfig:"CONVENE_CONFIDENCE_THRESHOLD" default:"0.7"`

	WorkerCount int           `envconfig:"CONVENE_WORKER_COUNT" default:"4"`
	QueueDepth  int           `envconfig:"CONVENE_QUEUE_DEPTH" default:"256"`
	JobTimeout  time.Duration `envconfig:"CONVENE_JOB_TIMEOUT" default:"5m"`

	KafkaBrokers     string `envconfig:"CONVENE_KAFKA_BROKERS" default:""`
	KafkaTopicPrefix string `envconfig:"CONVENE_KAFKA_TOPIC_PREFIX" default:"convene"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("CONVENE_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("CONVENE_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("CONVENE_DB_MIN_CONNS (%d) cannot exceed CONVENE_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if strings.TrimSpace(c.ExtractorURL) == "" {
		return fmt.Errorf("CONVENE_EXTRACTOR_URL is required")
	}
	if c.ExtractorTimeout <= 0 {
		return fmt.Errorf("CONVENE_EXTRACTOR_TIMEOUT must be > 0")
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("CONVENE_RETRY_MAX_ATTEMPTS must be >= 1")
	}
	if c.RetryBaseDelay <= 0 || c.RetryMaxDelay < c.RetryBaseDelay {
		return fmt.Errorf("retry delays must satisfy 0 < base <= max")
	}
	if c.RetryFactor < 1 {
		return fmt.Errorf("CONVENE_RETRY_FACTOR must be >= 1")
	}
	if c.BreakerFailureThreshold < 1 {
		return fmt.Errorf("CONVENE_BREAKER_FAILURE_THRESHOLD must be >= 1")
	}
	if c.BreakerResetTimeout <= 0 {
		return fmt.Errorf("CONVENE_BREAKER_RESET_TIMEOUT must be > 0")
	}
	if c.ReviewThreshold < 0 || c.ReviewThreshold > 1 {
		return fmt.Errorf("CONVENE_REVIEW_THRESHOLD must be within [0,1]")
	}
	if c.AutoMergeThreshold < c.ReviewThreshold || c.AutoMergeThreshold > 1 {
		return fmt.Errorf("CONVENE_AUTO_MERGE_THRESHOLD must be within [review_threshold,1]")
	}
	if c.BlockingKeyLength < 1 {
		return fmt.Errorf("CONVENE_BLOCKING_KEY_LENGTH must be >= 1")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONVENE_CONFIDENCE_THRESHOLD must be within [0,1]")
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("CONVENE_WORKER_COUNT must be >= 1")
	}
	if c.QueueDepth < 1 {
		return fmt.Errorf("CONVENE_QUEUE_DEPTH must be >= 1")
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("CONVENE_JOB_TIMEOUT must be > 0")
	}
	return nil
}

// KafkaBrokerList splits CONVENE_KAFKA_BROKERS into unique broker addresses.
func (c *Config) KafkaBrokerList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.KafkaBrokers, ",")
	brokers := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		broker := strings.TrimSpace(part)
		if broker == "" {
			continue
		}
		if _, exists := seen[broker]; exists {
			continue
		}
		seen[broker] = struct{}{}
		brokers = append(brokers, broker)
	}
	return brokers
}
