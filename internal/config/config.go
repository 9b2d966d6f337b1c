package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Data     DataConfig
	Auth     AuthConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Queue    QueueConfig
	Webhooks WebhooksConfig
	Tracing  TracingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	Mode            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DataConfig holds the locations of the flat-file stores
type DataConfig struct {
	CatalogPath         string
	RatingsPath         string
	SubmissionsPath     string
	CreatorMappingsPath string
	SubtitlesRoot       string
	StagingRoot         string
	MirrorRoot          string
	LockDir             string
}

// AuthConfig holds API-key, admin and submitter settings
type AuthConfig struct {
	JWTSecret          string
	TokenTTL           time.Duration
	APIKeys            []string
	AdminUserIDs       []string
	SubmitterSalt      string
	CorrectionCooldown time.Duration
	RateLimit          float64
	RateBurst          int
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// MetricsConfig holds the prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	DiffTTL  time.Duration
}

// StorageConfig holds object storage configuration for staged uploads
type StorageConfig struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
	Prefix          string
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
	Exchange string
}

// WebhooksConfig holds outgoing review notification settings
type WebhooksConfig struct {
	URLs        []string
	Secret      string
	Timeout     time.Duration
	RetryDelays []time.Duration
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled        bool
	ServiceName    string
	JaegerEndpoint string
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return unmarshal(v)
}

// LoadOrDefault behaves like Load but falls back to defaults and environment
// variables when the file does not exist.
func LoadOrDefault(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config: %w", err)
		}
	}
	return unmarshal(newViper())
}

// newViper returns an isolated instance so repeated loads never see stale keys
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Names kept from the original deployment
	_ = v.BindEnv("auth.adminUserIds", "ADMIN_USER_IDS")
	_ = v.BindEnv("auth.apiKeys", "API_KEYS")
	_ = v.BindEnv("auth.jwtSecret", "JWT_SECRET")
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.Auth.APIKeys = cleanList(config.Auth.APIKeys)
	config.Auth.AdminUserIDs = cleanList(config.Auth.AdminUserIDs)
	config.Webhooks.URLs = cleanList(config.Webhooks.URLs)
	return &config, nil
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.readTimeout", "30s")
	v.SetDefault("server.writeTimeout", "30s")
	v.SetDefault("server.shutdownTimeout", "10s")

	// Data defaults
	v.SetDefault("data.catalogPath", "data/videos.json")
	v.SetDefault("data.ratingsPath", "data/ratings.json")
	v.SetDefault("data.submissionsPath", "data/submissions.json")
	v.SetDefault("data.creatorMappingsPath", "data/creator_mappings.json")
	v.SetDefault("data.subtitlesRoot", "data/subtitles")
	v.SetDefault("data.stagingRoot", "data/staging")
	v.SetDefault("data.mirrorRoot", "")
	v.SetDefault("data.lockDir", "")

	// Auth defaults
	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.tokenTTL", "12h")
	v.SetDefault("auth.apiKeys", []string{})
	v.SetDefault("auth.adminUserIds", []string{})
	v.SetDefault("auth.submitterSalt", "")
	v.SetDefault("auth.correctionCooldown", "10s")
	v.SetDefault("auth.rateLimit", 20)
	v.SetDefault("auth.rateBurst", 40)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.diffTTL", "10m")

	// Storage defaults
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.accessKeyID", "minioadmin")
	v.SetDefault("storage.secretAccessKey", "minioadmin")
	v.SetDefault("storage.bucketName", "subtitle-staging")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.useSSL", false)
	v.SetDefault("storage.prefix", "staging/")

	// Queue defaults
	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.host", "localhost")
	v.SetDefault("queue.port", 5672)
	v.SetDefault("queue.user", "guest")
	v.SetDefault("queue.password", "guest")
	v.SetDefault("queue.vhost", "/")
	v.SetDefault("queue.exchange", "catalog.events")

	// Webhook defaults
	v.SetDefault("webhooks.urls", []string{})
	v.SetDefault("webhooks.secret", "")
	v.SetDefault("webhooks.timeout", "10s")
	v.SetDefault("webhooks.retryDelays", []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute})

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.serviceName", "subcatalog-api")
	v.SetDefault("tracing.jaegerEndpoint", "localhost:6831")
}
