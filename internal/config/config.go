package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port             string        `mapstructure:"PORT"`
	Env              string        `mapstructure:"ENV"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	LogFile          string        `mapstructure:"LOG_FILE"`
	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	DatabaseAdminURL string        `mapstructure:"DATABASE_ADMIN_URL"`
	DBMaxConns       int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL         string        `mapstructure:"REDIS_URL"`
	CacheTTL         time.Duration `mapstructure:"CACHE_TTL"`
	AuthIssuer       string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience     string        `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey   string        `mapstructure:"AUTH_SIGNING_KEY"`
	DefaultTenant    string        `mapstructure:"DEFAULT_TENANT"`
	CORSOrigins      []string      `mapstructure:"CORS_ORIGINS"`
	RequestTimeout   time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	StorageBucket           string        `mapstructure:"STORAGE_BUCKET"`
	StorageRegion           string        `mapstructure:"STORAGE_REGION"`
	StorageEndpoint         string        `mapstructure:"STORAGE_ENDPOINT"`
	StoragePublicURL        string        `mapstructure:"STORAGE_PUBLIC_URL"`
	StorageSignedURLTTL     time.Duration `mapstructure:"STORAGE_SIGNED_URL_TTL"`
	StorageUnsignedFallback bool          `mapstructure:"STORAGE_ALLOW_UNSIGNED_FALLBACK"`

	OCRQueueURL       string        `mapstructure:"OCR_QUEUE_URL"`
	KafkaBrokers      []string      `mapstructure:"KAFKA_BROKERS"`
	ChartEventsTopic  string        `mapstructure:"CHART_EVENTS_TOPIC"`
	ActivationBaseURL string        `mapstructure:"ACTIVATION_BASE_URL"`
	InvitationTTL     time.Duration `mapstructure:"INVITATION_TTL"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CACHE_TTL", "5m")
	v.SetDefault("DEFAULT_TENANT", "")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("STORAGE_BUCKET", "documents")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_SIGNED_URL_TTL", "1h")
	v.SetDefault("STORAGE_ALLOW_UNSIGNED_FALLBACK", false)
	v.SetDefault("CHART_EVENTS_TOPIC", "chart-events")
	v.SetDefault("ACTIVATION_BASE_URL", "http://localhost:3000/activate")
	v.SetDefault("INVITATION_TTL", "168h")

	for _, key := range []string{
		"PORT", "ENV", "LOG_LEVEL", "LOG_FILE",
		"DATABASE_URL", "DATABASE_ADMIN_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"REDIS_URL", "CACHE_TTL",
		"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
		"DEFAULT_TENANT", "CORS_ORIGINS", "REQUEST_TIMEOUT",
		"STORAGE_BUCKET", "STORAGE_REGION", "STORAGE_ENDPOINT", "STORAGE_PUBLIC_URL",
		"STORAGE_SIGNED_URL_TTL", "STORAGE_ALLOW_UNSIGNED_FALLBACK",
		"OCR_QUEUE_URL", "KAFKA_BROKERS", "CHART_EVENTS_TOPIC",
		"ACTIVATION_BASE_URL", "INVITATION_TTL",
	} {
		_ = v.BindEnv(key)
	}

	// A missing .env file is fine; the environment alone is enough.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers, v.GetString("KAFKA_BROKERS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.DatabaseAdminURL == "" && cfg.IsDev() {
		cfg.DatabaseAdminURL = cfg.DatabaseURL
	}
	if cfg.StoragePublicURL == "" {
		cfg.StoragePublicURL = cfg.defaultPublicURL()
	}

	if cfg.IsDev() {
		log.Println("WARNING: running in DEVELOPMENT mode (ENV=development); unauthenticated requests get agency_admin access")
	}

	return cfg, nil
}

// splitList handles comma separated env values that viper leaves as a single element.
func splitList(parsed []string, raw string) []string {
	if raw == "" {
		return parsed
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) defaultPublicURL() string {
	if c.StorageEndpoint != "" {
		return strings.TrimRight(c.StorageEndpoint, "/") + "/" + c.StorageBucket + "/"
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/", c.StorageBucket, c.StorageRegion)
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// a signing key and a separate privileged database URL are mandatory, and the
// unsigned URL fallback may not be enabled in production.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.AuthSigningKey == "" {
			return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV=%q", c.Env)
		}
		if c.DatabaseAdminURL == "" {
			return fmt.Errorf("DATABASE_ADMIN_URL is required when ENV=%q", c.Env)
		}
	}
	if c.IsProduction() && c.StorageUnsignedFallback {
		return fmt.Errorf("STORAGE_ALLOW_UNSIGNED_FALLBACK must not be enabled in production")
	}
	if c.StorageSignedURLTTL <= 0 {
		return fmt.Errorf("STORAGE_SIGNED_URL_TTL must be positive, got %s", c.StorageSignedURLTTL)
	}
	if c.InvitationTTL <= 0 {
		return fmt.Errorf("INVITATION_TTL must be positive, got %s", c.InvitationTTL)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
