package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Etcd      EtcdConfig      `mapstructure:"etcd"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Model     ModelConfig     `mapstructure:"model"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// AuthConfig represents authentication configuration
type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`  // Enable/disable API key authentication
	APIKeys []string `mapstructure:"api_keys"` // List of valid API keys
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host        string `mapstructure:"host"`          // Bind address
	HTTPPort    int    `mapstructure:"http_port"`     // HTTP server port
	BodyLimitMB int    `mapstructure:"body_limit_mb"` // Max request body (CSV uploads)
}

// StorageConfig represents project store configuration
type StorageConfig struct {
	Type        string `mapstructure:"type"`        // file (default), memory, redis, etcd
	DataDir     string `mapstructure:"data_dir"`    // Uploaded CSVs, model artifacts and the file store
	Compression string `mapstructure:"compression"` // none, snappy (redis and etcd values)

	RedisURL    string `mapstructure:"redis_url"`
	RedisPrefix string `mapstructure:"redis_prefix"`
	EtcdPrefix  string `mapstructure:"etcd_prefix"`
}

// EtcdConfig represents etcd configuration
type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
}

// QueueConfig represents lifecycle event publishing configuration
type QueueConfig struct {
	Type     string `mapstructure:"type"`     // none (default), memory, nats, redis, kafka
	URL      string `mapstructure:"url"`      // Queue server URL (e.g., nats://localhost:4222, redis://localhost:6379)
	Username string `mapstructure:"username"` // Optional authentication
	Password string `mapstructure:"password"` // Optional authentication
	Subject  string `mapstructure:"subject"`  // Subject / stream / topic prefix (default: "chaoscast")

	// Redis-specific options
	RedisDB int `mapstructure:"redis_db"`

	// Kafka-specific options
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
}

// AnalyticsConfig holds preprocessing defaults
type AnalyticsConfig struct {
	Strategy         string  `mapstructure:"strategy"`          // cusum, recency
	BackWindow       int     `mapstructure:"back_window"`       // Look-back for change-point search
	SegmentLength    int     `mapstructure:"segment_length"`    // Tail length for recency and fallback
	Tolerance        float64 `mapstructure:"tolerance"`         // Duration band half-width
	CUSUMDrift       float64 `mapstructure:"cusum_drift"`       // k
	CUSUMThreshold   float64 `mapstructure:"cusum_threshold"`   // h
	ReestimateWindow int     `mapstructure:"reestimate_window"` // Samples for the re-estimated mean
	Baseline         string  `mapstructure:"baseline"`          // running, global
	SampleLimit      int     `mapstructure:"sample_limit"`      // Max points returned for plots
}

// ModelConfig holds training defaults
type ModelConfig struct {
	Type         string  `mapstructure:"type"` // mlp, cnn, rnn
	Window       int     `mapstructure:"window"`
	Horizon      int     `mapstructure:"horizon"`
	Epochs       int     `mapstructure:"epochs"`
	BatchSize    int     `mapstructure:"batch_size"`
	LearningRate float64 `mapstructure:"learning_rate"`
	Seed         int64   `mapstructure:"seed"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, file path
	TimeFormat string `mapstructure:"time_format"` // RFC3339, Unix, Kitchen
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}

	if c.Storage.Type == "etcd" {
		if err := c.Etcd.Validate(); err != nil {
			return fmt.Errorf("etcd config: %w", err)
		}
	}

	if err := c.Queue.Validate(); err != nil {
		return fmt.Errorf("queue config: %w", err)
	}

	if err := c.Analytics.Validate(); err != nil {
		return fmt.Errorf("analytics config: %w", err)
	}

	if err := c.Model.Validate(); err != nil {
		return fmt.Errorf("model config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (c *ServerConfig) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.HTTPPort)
	}

	if c.BodyLimitMB <= 0 {
		return fmt.Errorf("body_limit_mb must be positive")
	}

	return nil
}

// Validate validates storage configuration
func (c *StorageConfig) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	switch c.Type {
	case "file", "memory", "etcd":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("redis_url is required for redis storage")
		}
	default:
		return fmt.Errorf("unknown storage type: %s", c.Type)
	}

	if c.Compression != "none" && c.Compression != "snappy" {
		return fmt.Errorf("compression must be 'none' or 'snappy'")
	}

	return nil
}

// Validate validates etcd configuration
func (c *EtcdConfig) Validate() error {
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("etcd.endpoints is required")
	}

	if c.DialTimeout <= 0 {
		return fmt.Errorf("etcd.dial_timeout must be positive")
	}

	return nil
}

// Validate validates queue configuration
func (c *QueueConfig) Validate() error {
	switch c.Type {
	case "", "none", "memory":
	case "nats", "redis":
		if c.URL == "" {
			return fmt.Errorf("queue.url is required for %s", c.Type)
		}
	case "kafka":
		if len(c.KafkaBrokers) == 0 && c.URL == "" {
			return fmt.Errorf("queue.kafka_brokers is required for kafka")
		}
	default:
		return fmt.Errorf("unknown queue type: %s", c.Type)
	}

	return nil
}

// Validate validates analytics configuration
func (c *AnalyticsConfig) Validate() error {
	if c.Strategy != "cusum" && c.Strategy != "recency" && c.Strategy != "last" {
		return fmt.Errorf("analytics.strategy must be 'cusum' or 'recency'")
	}

	if c.BackWindow < 1 || c.SegmentLength < 1 {
		return fmt.Errorf("analytics.back_window and analytics.segment_length must be positive")
	}

	if c.Tolerance < 0 {
		return fmt.Errorf("analytics.tolerance cannot be negative")
	}

	if c.CUSUMThreshold <= 0 || c.CUSUMDrift < 0 {
		return fmt.Errorf("analytics.cusum_threshold must be positive and cusum_drift non-negative")
	}

	if c.ReestimateWindow < 1 {
		return fmt.Errorf("analytics.reestimate_window must be positive")
	}

	if c.Baseline != "running" && c.Baseline != "global" {
		return fmt.Errorf("analytics.baseline must be 'running' or 'global'")
	}

	if c.SampleLimit < 1 {
		return fmt.Errorf("analytics.sample_limit must be positive")
	}

	return nil
}

// Validate validates model configuration
func (c *ModelConfig) Validate() error {
	validTypes := map[string]bool{
		"mlp": true,
		"cnn": true,
		"rnn": true,
	}

	if !validTypes[c.Type] {
		return fmt.Errorf("model.type must be one of: mlp, cnn, rnn")
	}

	if c.Window < 1 || c.Horizon < 1 {
		return fmt.Errorf("model.window and model.horizon must be positive")
	}

	if c.Epochs < 1 || c.BatchSize < 1 {
		return fmt.Errorf("model.epochs and model.batch_size must be positive")
	}

	if c.LearningRate <= 0 {
		return fmt.Errorf("model.learning_rate must be positive")
	}

	return nil
}

// Validate validates logging configuration
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[c.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}

	return nil
}
