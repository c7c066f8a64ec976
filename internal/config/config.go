// Package config loads venuepulse configuration from a YAML file with
// VENUEPULSE_-prefixed environment overrides (for example
// VENUEPULSE_READINGS_DSN overrides readings.dsn).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Reading source kinds.
const (
	SourceDatabase = "database"
	SourceAPI      = "api"
)

// Config represents the complete application configuration
type Config struct {
	Venues    []VenueConfig   `mapstructure:"venues"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Readings  ReadingsConfig  `mapstructure:"readings"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// VenueConfig holds per-venue settings
type VenueConfig struct {
	ID        string `mapstructure:"id"`
	Timezone  string `mapstructure:"timezone"`
	Capacity  int    `mapstructure:"capacity"`
	Composite string `mapstructure:"composite"`
}

// Location resolves the venue time zone. An empty zone is UTC.
func (v VenueConfig) Location() (*time.Location, error) {
	if v.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(v.Timezone)
	if err != nil {
		return nil, fmt.Errorf("venue %s: invalid timezone %q: %w", v.ID, v.Timezone, err)
	}
	return loc, nil
}

// AnalysisConfig holds learning and refresh behavior
type AnalysisConfig struct {
	Lookback        time.Duration `mapstructure:"lookback"`
	MaxReadings     int           `mapstructure:"max_readings"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	Workers         int           `mapstructure:"workers"`
	Composite       string        `mapstructure:"composite"`
}

// ReadingsConfig selects where historical readings come from
type ReadingsConfig struct {
	Source         string        `mapstructure:"source"`
	Driver         string        `mapstructure:"driver"`
	DSN            string        `mapstructure:"dsn"`
	Retention      time.Duration `mapstructure:"retention"`
	APIBaseURL     string        `mapstructure:"api_base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds durable snapshot storage configuration
type StorageConfig struct {
	DBPath  string `mapstructure:"db_path"`
	DataDir string `mapstructure:"data_dir"`
}

// CacheConfig holds snapshot cache tiers
type CacheConfig struct {
	MemoryEnabled   bool          `mapstructure:"memory_enabled"`
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	RedisEnabled    bool          `mapstructure:"redis_enabled"`
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	RedisPrefix     string        `mapstructure:"redis_prefix"`
}

// IngestConfig holds live ingestion transports
type IngestConfig struct {
	MQTT  MQTTConfig  `mapstructure:"mqtt"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

// MQTTConfig holds MQTT subscriber settings
type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Topic    string `mapstructure:"topic"`
}

// KafkaConfig holds Kafka consumer settings
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

// HTTPConfig holds the HTTP API configuration
type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken   string `mapstructure:"bot_token"`
	ChatID     string `mapstructure:"chat_id"`
	Enabled    bool   `mapstructure:"enabled"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// TelemetryConfig holds tracing configuration
type TelemetryConfig struct {
	TracingEnabled bool `mapstructure:"tracing_enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables. An empty
// path skips the file and uses defaults plus environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("VENUEPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Analysis defaults
	v.SetDefault("analysis.lookback", "2016h") // 12 weeks
	v.SetDefault("analysis.max_readings", 10000)
	v.SetDefault("analysis.cache_ttl", "30m")
	v.SetDefault("analysis.refresh_interval", "30m")
	v.SetDefault("analysis.workers", 4)
	v.SetDefault("analysis.composite", "guest_dwell")

	// Readings defaults
	v.SetDefault("readings.source", SourceDatabase)
	v.SetDefault("readings.driver", "sqlite")
	v.SetDefault("readings.dsn", "./data/readings.db")
	v.SetDefault("readings.retention", "4320h") // 180 days
	v.SetDefault("readings.timeout", "30s")
	v.SetDefault("readings.max_retries", 3)
	v.SetDefault("readings.retry_delay_base", "1s")

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/venuepulse.db")
	v.SetDefault("storage.data_dir", "./data")

	// Cache defaults
	v.SetDefault("cache.memory_enabled", true)
	v.SetDefault("cache.retention", "24h")
	v.SetDefault("cache.cleanup_interval", "10m")
	v.SetDefault("cache.redis_enabled", false)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_prefix", "venuepulse:snapshot:")

	// Ingest defaults
	v.SetDefault("ingest.mqtt.client_id", "venuepulse")
	v.SetDefault("ingest.mqtt.topic", "pulse/sensors/+")
	v.SetDefault("ingest.kafka.topic", "pulse-readings")
	v.SetDefault("ingest.kafka.group_id", "venuepulse")

	// HTTP defaults
	v.SetDefault("http.enabled", true)
	v.SetDefault("http.listen", ":8080")

	// Telegram defaults
	v.SetDefault("telegram.max_retries", 3)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate venues
	seen := make(map[string]bool, len(c.Venues))
	for i, venue := range c.Venues {
		if venue.ID == "" {
			return fmt.Errorf("venues[%d].id is required", i)
		}
		if seen[venue.ID] {
			return fmt.Errorf("venues[%d].id %q is duplicated", i, venue.ID)
		}
		seen[venue.ID] = true
		if _, err := venue.Location(); err != nil {
			return err
		}
		if venue.Capacity < 0 {
			return fmt.Errorf("venues[%d].capacity must not be negative", i)
		}
		if venue.Composite != "" && !validComposite(venue.Composite) {
			return fmt.Errorf("venues[%d].composite must be one of: guest_dwell, occupancy_retention", i)
		}
	}

	// Validate Analysis config
	if c.Analysis.Lookback < 24*time.Hour {
		return fmt.Errorf("analysis.lookback must be at least 24h")
	}
	if c.Analysis.MaxReadings < 1 {
		return fmt.Errorf("analysis.max_readings must be at least 1")
	}
	if c.Analysis.CacheTTL < time.Minute {
		return fmt.Errorf("analysis.cache_ttl must be at least 1 minute")
	}
	if c.Analysis.RefreshInterval < time.Minute {
		return fmt.Errorf("analysis.refresh_interval must be at least 1 minute")
	}
	if c.Analysis.Workers < 1 {
		return fmt.Errorf("analysis.workers must be at least 1")
	}
	if !validComposite(c.Analysis.Composite) {
		return fmt.Errorf("analysis.composite must be one of: guest_dwell, occupancy_retention")
	}

	// Validate Readings config
	switch c.Readings.Source {
	case SourceDatabase:
		validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
		if !validDrivers[c.Readings.Driver] {
			return fmt.Errorf("readings.driver must be one of: sqlite, postgres, mysql")
		}
		if c.Readings.DSN == "" {
			return fmt.Errorf("readings.dsn is required when readings.source is database")
		}
	case SourceAPI:
		if c.Readings.APIBaseURL == "" {
			return fmt.Errorf("readings.api_base_url is required when readings.source is api")
		}
		if c.Readings.Timeout <= 0 {
			return fmt.Errorf("readings.timeout must be positive")
		}
		if c.Readings.MaxRetries < 1 {
			return fmt.Errorf("readings.max_retries must be at least 1")
		}
	default:
		return fmt.Errorf("readings.source must be one of: database, api")
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}

	// Validate Cache config
	if c.Cache.RedisEnabled && c.Cache.RedisAddr == "" {
		return fmt.Errorf("cache.redis_addr is required when redis is enabled")
	}

	// Validate Ingest config
	if c.Ingest.MQTT.Enabled && c.Ingest.MQTT.Broker == "" {
		return fmt.Errorf("ingest.mqtt.broker is required when mqtt is enabled")
	}
	if c.Ingest.Kafka.Enabled {
		if len(c.Ingest.Kafka.Brokers) == 0 {
			return fmt.Errorf("ingest.kafka.brokers must contain at least one broker when kafka is enabled")
		}
		if c.Ingest.Kafka.Topic == "" || c.Ingest.Kafka.GroupID == "" {
			return fmt.Errorf("ingest.kafka.topic and ingest.kafka.group_id are required when kafka is enabled")
		}
	}
	if (c.Ingest.MQTT.Enabled || c.Ingest.Kafka.Enabled) && c.Readings.Source != SourceDatabase {
		return fmt.Errorf("ingestion requires readings.source to be database")
	}

	// Validate HTTP config
	if c.HTTP.Enabled && c.HTTP.Listen == "" {
		return fmt.Errorf("http.listen is required when http is enabled")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

func validComposite(name string) bool {
	return name == "guest_dwell" || name == "occupancy_retention"
}

// Venue returns the settings for a venue and whether it is configured.
func (c *Config) Venue(id string) (VenueConfig, bool) {
	for _, v := range c.Venues {
		if v.ID == id {
			return v, true
		}
	}
	return VenueConfig{}, false
}
