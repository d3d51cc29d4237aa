// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Community is a monitored community as listed in the communities file.
type Community struct {
	Name             string  `mapstructure:"name"`
	StandaloneDomain string  `mapstructure:"standalone_domain"`
	Interval         float64 `mapstructure:"interval"`
}

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Env      string `mapstructure:"APP_ENV"`
	Host     string `mapstructure:"HOST"`
	Port     string `mapstructure:"PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DBDriver     string `mapstructure:"DB_DRIVER"`
	SQLitePath   string `mapstructure:"SQLITE_PATH"`
	DBHost       string `mapstructure:"DB_HOST"`
	DBPort       string `mapstructure:"DB_PORT"`
	DBUser       string `mapstructure:"DB_USER"`
	DBPassword   string `mapstructure:"DB_PASSWORD"`
	DBName       string `mapstructure:"DB_NAME"`
	DBSSLMode    string `mapstructure:"DB_SSLMODE"`
	DBSchemaMode string `mapstructure:"DB_SCHEMA_MODE"`
	RedisURL     string `mapstructure:"REDIS_URL"`

	APIBaseURL           string `mapstructure:"API_BASE_URL"`
	APIUserAgent         string `mapstructure:"API_USER_AGENT"`
	APIKey               string `mapstructure:"API_KEY"`
	APISecret            string `mapstructure:"API_SECRET"`
	APITimeoutMs         int    `mapstructure:"API_TIMEOUT_MS"`
	ScrapeTimeoutMs      int    `mapstructure:"SCRAPE_TIMEOUT_MS"`
	RequestCooldownMinMs int    `mapstructure:"REQUEST_COOLDOWN_MIN_MS"`
	RequestCooldownMaxMs int    `mapstructure:"REQUEST_COOLDOWN_MAX_MS"`
	CacheEnabled         bool   `mapstructure:"CACHE_ENABLED"`

	IngestEnabled        bool    `mapstructure:"INGEST_ENABLED"`
	IngestLimit          int     `mapstructure:"INGEST_LIMIT"`
	IngestMissing        bool    `mapstructure:"INGEST_MISSING"`
	IngestWorkers        int     `mapstructure:"INGEST_WORKERS"`
	GlobalInterval       float64 `mapstructure:"GLOBAL_INTERVAL"`
	MaxMissingGap        int     `mapstructure:"MAX_MISSING_GAP"`
	BackingestCooldownMs int     `mapstructure:"BACKINGEST_COOLDOWN_MS"`
	DefaultInterval      float64 `mapstructure:"DEFAULT_INTERVAL"`

	PurgeDeleted        bool `mapstructure:"PURGE_DELETED"`
	ShowDeleted         bool `mapstructure:"SHOW_DELETED"`
	ReportingEnabled    bool `mapstructure:"REPORTING_ENABLED"`
	RequestLimitFeed    int  `mapstructure:"REQUEST_LIMIT_FEED"`
	RequestLimitProfile int  `mapstructure:"REQUEST_LIMIT_PROFILE"`
	RateLimit           int  `mapstructure:"RATE_LIMIT"`

	AdminUsername     string `mapstructure:"ADMIN_USERNAME"`
	AdminPasswordHash string `mapstructure:"ADMIN_PASSWORD_HASH"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`

	DiscoverySchedule string `mapstructure:"DISCOVERY_SCHEDULE"`
	CommunitiesFile   string `mapstructure:"COMMUNITIES_FILE"`

	TracingEnabled  bool   `mapstructure:"TRACING_ENABLED"`
	TracingExporter string `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string `mapstructure:"OTLP_ENDPOINT"`

	Communities []Community `mapstructure:"-"`
}

const defaultJWTSecret = "change-me-unscored-admin-secret"

// LoadConfig loads application configuration from .env, file and environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env != "" && env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	SetDefaults(viper.GetViper())

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	communities, err := LoadCommunities(config.CommunitiesFile)
	if err != nil {
		return nil, err
	}
	config.Communities = communities

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", "8375")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("SQLITE_PATH", "data/archive.db")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "unscored")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "unscored")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_SCHEMA_MODE", "hybrid")
	v.SetDefault("REDIS_URL", "")

	v.SetDefault("API_BASE_URL", "https://scored.co")
	v.SetDefault("API_USER_AGENT", "unscored-archiver")
	v.SetDefault("API_KEY", "")
	v.SetDefault("API_SECRET", "")
	v.SetDefault("API_TIMEOUT_MS", 3000)
	v.SetDefault("SCRAPE_TIMEOUT_MS", 10000)
	v.SetDefault("REQUEST_COOLDOWN_MIN_MS", 500)
	v.SetDefault("REQUEST_COOLDOWN_MAX_MS", 1500)
	v.SetDefault("CACHE_ENABLED", true)

	v.SetDefault("INGEST_ENABLED", true)
	v.SetDefault("INGEST_LIMIT", 10)
	v.SetDefault("INGEST_MISSING", true)
	v.SetDefault("INGEST_WORKERS", 4)
	v.SetDefault("GLOBAL_INTERVAL", 120)
	v.SetDefault("MAX_MISSING_GAP", 500)
	v.SetDefault("BACKINGEST_COOLDOWN_MS", 1000)
	v.SetDefault("DEFAULT_INTERVAL", 3600)

	v.SetDefault("PURGE_DELETED", false)
	v.SetDefault("SHOW_DELETED", false)
	v.SetDefault("REPORTING_ENABLED", true)
	v.SetDefault("REQUEST_LIMIT_FEED", 10)
	v.SetDefault("REQUEST_LIMIT_PROFILE", 5)
	v.SetDefault("RATE_LIMIT", 120)

	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_PASSWORD_HASH", "")
	v.SetDefault("JWT_SECRET", defaultJWTSecret)

	v.SetDefault("DISCOVERY_SCHEDULE", "@daily")
	v.SetDefault("COMMUNITIES_FILE", "communities.yml")

	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACING_EXPORTER", "stdout")
	v.SetDefault("OTLP_ENDPOINT", "localhost:4318")
}

// LoadCommunities reads the monitored community list. A missing file yields an
// empty list; discovery can populate the state later.
func LoadCommunities(path string) ([]Community, error) {
	if path == "" {
		return nil, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read communities file %s: %w", path, err)
	}

	var communities []Community
	if err := v.UnmarshalKey("communities", &communities); err != nil {
		return nil, fmt.Errorf("decode communities file %s: %w", path, err)
	}
	for i := range communities {
		communities[i].Name = strings.TrimSpace(communities[i].Name)
	}
	return communities, nil
}

// Validate ensures that required configuration values are present and consistent.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.RequestCooldownMinMs < 0 || c.RequestCooldownMaxMs < c.RequestCooldownMinMs {
		return fmt.Errorf("invalid request cooldown range [%d, %d]", c.RequestCooldownMinMs, c.RequestCooldownMaxMs)
	}
	if c.IngestLimit <= 0 {
		return errors.New("INGEST_LIMIT must be positive")
	}
	if c.RequestLimitFeed <= 0 || c.RequestLimitProfile <= 0 {
		return errors.New("REQUEST_LIMIT_FEED and REQUEST_LIMIT_PROFILE must be positive")
	}
	if c.MaxMissingGap < 0 {
		return errors.New("MAX_MISSING_GAP must not be negative")
	}
	if c.IngestWorkers <= 0 {
		return errors.New("INGEST_WORKERS must be positive")
	}
	for _, community := range c.Communities {
		if community.Name == "" {
			return errors.New("communities file contains an entry without a name")
		}
	}

	if c.IsProduction() {
		if c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if c.DBDriver == "postgres" && (c.DBSSLMode == "disable" || c.DBSSLMode == "") {
			log.Println("WARNING: DB_SSLMODE is 'disable' in production. It is highly recommended to use SSL for database connections.")
		}
	}

	return nil
}

// IsProduction reports whether the process runs in a production-like environment.
func (c *Config) IsProduction() bool {
	e := strings.ToLower(strings.TrimSpace(c.Env))
	return e == "production" || e == "prod"
}

// APITimeout returns the per-request timeout of the platform API client.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.APITimeoutMs) * time.Millisecond
}

// ScrapeTimeout returns the timeout of a best-effort HTML fetch.
func (c *Config) ScrapeTimeout() time.Duration {
	return time.Duration(c.ScrapeTimeoutMs) * time.Millisecond
}

// BackingestCooldown returns the pause between ids of a backingest walk.
func (c *Config) BackingestCooldown() time.Duration {
	return time.Duration(c.BackingestCooldownMs) * time.Millisecond
}
