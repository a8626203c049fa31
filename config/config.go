package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config for the whole application
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	API     APIConfig     `mapstructure:"api"`
	Pricing PricingConfig `mapstructure:"pricing"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// General application configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// Configuration for the API server
type APIConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RateLimit is the number of simulation requests per second; zero disables limiting
	RateLimit int        `mapstructure:"rate_limit"`
	RateBurst int        `mapstructure:"rate_burst"`
	CORS      CORSConfig `mapstructure:"cors"`
}

// CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// Configuration for the pricers and Greeks engines
type PricingConfig struct {
	NumSimulations int `mapstructure:"num_simulations"`
	// MaxSimulations caps client-supplied path counts; a draw holds paths*time_steps floats
	MaxSimulations  int    `mapstructure:"max_simulations"`
	TimeSteps       int    `mapstructure:"time_steps"`
	Seed            uint64 `mapstructure:"seed"`
	Workers         int    `mapstructure:"workers"`
	SecondOrderMode string `mapstructure:"second_order_mode"`
	DisplayDecimals int    `mapstructure:"display_decimals"`
}

// Configuration for Kafka
type KafkaConfig struct {
	Brokers  []string            `mapstructure:"brokers"`
	Consumer KafkaConsumerConfig `mapstructure:"consumer"`
	Producer KafkaProducerConfig `mapstructure:"producer"`
	Topics   KafkaTopicsConfig   `mapstructure:"topics"`
	// Encoding of published comparisons: json or proto
	Encoding string `mapstructure:"encoding"`
}

// Kafka consumer configuration
type KafkaConsumerConfig struct {
	GroupID        string        `mapstructure:"group_id"`
	StartOffset    string        `mapstructure:"start_offset"`
	SessionTimeout time.Duration `mapstructure:"session_timeout"`
	MaxWait        time.Duration `mapstructure:"max_wait"`
	// Requests per second the worker evaluates; 0 disables pacing
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

// Kafka producer configuration
type KafkaProducerConfig struct {
	RequiredAcks    string        `mapstructure:"required_acks"`
	CompressionType string        `mapstructure:"compression_type"`
	BatchSize       int           `mapstructure:"batch_size"`
	BatchTimeout    time.Duration `mapstructure:"batch_timeout"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
}

// Kafka topics configuration
type KafkaTopicsConfig struct {
	GreeksRequests string `mapstructure:"greeks_requests"`
	GreeksResults  string `mapstructure:"greeks_results"`
}

// Configuration for metrics
type MetricsConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// Configuration for Prometheus metrics
type PrometheusConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Port      int    `mapstructure:"port"`
	Namespace string `mapstructure:"namespace"`
}

// Load reads the configuration from path (when it exists), then applies
// GREEKS_* environment overrides on top of the defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("GREEKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	switch {
	case c.Pricing.NumSimulations <= 0:
		return fmt.Errorf("pricing.num_simulations must be positive, got %d", c.Pricing.NumSimulations)
	case c.Pricing.MaxSimulations < c.Pricing.NumSimulations:
		return fmt.Errorf("pricing.max_simulations (%d) is below pricing.num_simulations (%d)",
			c.Pricing.MaxSimulations, c.Pricing.NumSimulations)
	case c.Pricing.TimeSteps <= 0:
		return fmt.Errorf("pricing.time_steps must be positive, got %d", c.Pricing.TimeSteps)
	case c.Pricing.Workers <= 0:
		return fmt.Errorf("pricing.workers must be positive, got %d", c.Pricing.Workers)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "option-greeks-engine")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.read_timeout", "10s")
	v.SetDefault("api.write_timeout", "60s")
	v.SetDefault("api.shutdown_timeout", "30s")
	v.SetDefault("api.rate_limit", 10)
	v.SetDefault("api.rate_burst", 20)
	v.SetDefault("api.cors.allowed_origins", []string{"*"})
	v.SetDefault("api.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("api.cors.allowed_headers", []string{"Authorization", "Content-Type"})

	// Pricing defaults
	v.SetDefault("pricing.num_simulations", 10000)
	v.SetDefault("pricing.max_simulations", 100000)
	v.SetDefault("pricing.time_steps", 365)
	v.SetDefault("pricing.seed", 0)
	v.SetDefault("pricing.workers", 1)
	v.SetDefault("pricing.second_order_mode", "legacy")
	v.SetDefault("pricing.display_decimals", 2)

	// Kafka defaults
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.encoding", "json")
	v.SetDefault("kafka.consumer.group_id", "greeks-worker")
	v.SetDefault("kafka.consumer.start_offset", "earliest")
	v.SetDefault("kafka.consumer.session_timeout", "30s")
	v.SetDefault("kafka.consumer.max_wait", "500ms")
	v.SetDefault("kafka.consumer.rate_limit", 0)
	v.SetDefault("kafka.consumer.rate_burst", 10)
	v.SetDefault("kafka.producer.required_acks", "all")
	v.SetDefault("kafka.producer.compression_type", "snappy")
	v.SetDefault("kafka.producer.batch_size", 100)
	v.SetDefault("kafka.producer.batch_timeout", "10ms")
	v.SetDefault("kafka.producer.max_attempts", 3)
	v.SetDefault("kafka.topics.greeks_requests", "greeks.requests")
	v.SetDefault("kafka.topics.greeks_results", "greeks.results")

	// Metrics defaults
	v.SetDefault("metrics.prometheus.enabled", true)
	v.SetDefault("metrics.prometheus.port", 9090)
	v.SetDefault("metrics.prometheus.namespace", "greeks")
}

// GetConfigPath returns GREEKS_CONFIG_PATH or the default location
func GetConfigPath() string {
	configPath := os.Getenv("GREEKS_CONFIG_PATH")
	if configPath != "" {
		return configPath
	}

	return "./config/config.yaml"
}
