package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default config locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")              // Current directory
		v.AddConfigPath("./configs")      // Project configs directory
		v.AddConfigPath("/etc/chaoscast") // System-wide config
	}

	// Set defaults
	setDefaults(v)

	// Enable environment variable overrides (CHAOSCAST_SERVER_HTTP_PORT, ...)
	v.SetEnvPrefix("CHAOSCAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; use defaults
			return parseConfig(v)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return parseConfig(v)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	// Server defaults
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.http_port", d.Server.HTTPPort)
	v.SetDefault("server.body_limit_mb", d.Server.BodyLimitMB)

	// Storage defaults
	v.SetDefault("storage.type", d.Storage.Type)
	v.SetDefault("storage.data_dir", d.Storage.DataDir)
	v.SetDefault("storage.compression", d.Storage.Compression)
	v.SetDefault("storage.redis_url", d.Storage.RedisURL)
	v.SetDefault("storage.redis_prefix", d.Storage.RedisPrefix)
	v.SetDefault("storage.etcd_prefix", d.Storage.EtcdPrefix)

	// Etcd defaults
	v.SetDefault("etcd.endpoints", d.Etcd.Endpoints)
	v.SetDefault("etcd.dial_timeout", d.Etcd.DialTimeout.String())

	// Queue defaults
	v.SetDefault("queue.type", d.Queue.Type)
	v.SetDefault("queue.url", d.Queue.URL)
	v.SetDefault("queue.subject", d.Queue.Subject)

	// Analytics defaults
	v.SetDefault("analytics.strategy", d.Analytics.Strategy)
	v.SetDefault("analytics.back_window", d.Analytics.BackWindow)
	v.SetDefault("analytics.segment_length", d.Analytics.SegmentLength)
	v.SetDefault("analytics.tolerance", d.Analytics.Tolerance)
	v.SetDefault("analytics.cusum_drift", d.Analytics.CUSUMDrift)
	v.SetDefault("analytics.cusum_threshold", d.Analytics.CUSUMThreshold)
	v.SetDefault("analytics.reestimate_window", d.Analytics.ReestimateWindow)
	v.SetDefault("analytics.baseline", d.Analytics.Baseline)
	v.SetDefault("analytics.sample_limit", d.Analytics.SampleLimit)

	// Model defaults
	v.SetDefault("model.type", d.Model.Type)
	v.SetDefault("model.window", d.Model.Window)
	v.SetDefault("model.horizon", d.Model.Horizon)
	v.SetDefault("model.epochs", d.Model.Epochs)
	v.SetDefault("model.batch_size", d.Model.BatchSize)
	v.SetDefault("model.learning_rate", d.Model.LearningRate)
	v.SetDefault("model.seed", d.Model.Seed)

	// Auth defaults
	v.SetDefault("auth.enabled", false)

	// Logging defaults
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output_path", d.Logging.OutputPath)
}

// parseConfig parses viper config into Config struct
func parseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads configuration from file or returns default config
func LoadOrDefault(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		// Return default configuration
		return DefaultConfig()
	}
	return cfg
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			HTTPPort:    8000,
			BodyLimitMB: 64,
		},
		Storage: StorageConfig{
			Type:        "file",
			DataDir:     "./data",
			Compression: "snappy",
			RedisPrefix: "chaoscast",
			EtcdPrefix:  "/chaoscast",
		},
		Etcd: EtcdConfig{
			Endpoints:   []string{"http://localhost:2379"},
			DialTimeout: 5 * time.Second,
		},
		Queue: QueueConfig{
			Type:    "none",
			Subject: "chaoscast",
		},
		Analytics: AnalyticsConfig{
			Strategy:         "cusum",
			BackWindow:       600,
			SegmentLength:    200,
			Tolerance:        0.05,
			CUSUMDrift:       0.5,
			CUSUMThreshold:   5,
			ReestimateWindow: 100,
			Baseline:         "running",
			SampleLimit:      1000,
		},
		Model: ModelConfig{
			Type:         "mlp",
			Window:       32,
			Horizon:      12,
			Epochs:       5,
			BatchSize:    32,
			LearningRate: 1e-3,
			Seed:         42,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
		},
	}
}
