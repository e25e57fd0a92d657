package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port               string        `mapstructure:"PORT"`
	Env                string        `mapstructure:"ENV"`
	PlatformBaseURL    string        `mapstructure:"PLATFORM_BASE_URL"`
	PlatformAPIKey     string        `mapstructure:"PLATFORM_API_KEY"`
	PlatformTimeout    time.Duration `mapstructure:"PLATFORM_TIMEOUT"`
	OrganizationID     string        `mapstructure:"ORGANIZATION_ID"`
	LocationID         string        `mapstructure:"LOCATION_ID"`
	OrgTimezone        string        `mapstructure:"ORG_TIMEZONE"`
	BookingHorizonDays int           `mapstructure:"BOOKING_HORIZON_DAYS"`
	SlotStepMinutes    int           `mapstructure:"SLOT_STEP_MINUTES"`
	MaxMotiveLength    int           `mapstructure:"MAX_MOTIVE_LENGTH"`
	AuthSigningKey     string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer         string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience       string        `mapstructure:"AUTH_AUDIENCE"`
	RedisURL           string        `mapstructure:"REDIS_URL"`
	ScheduleCacheTTL   time.Duration `mapstructure:"SCHEDULE_CACHE_TTL"`
	SessionTTL         time.Duration `mapstructure:"SESSION_TTL"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS       float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout     time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit          string        `mapstructure:"BODY_LIMIT"`
	OTelEnabled        bool          `mapstructure:"OTEL_ENABLED"`
	OTelEndpoint       string        `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelSamplingRatio  float64       `mapstructure:"OTEL_SAMPLING_RATIO"`
}

var keys = []string{
	"PORT", "ENV",
	"PLATFORM_BASE_URL", "PLATFORM_API_KEY", "PLATFORM_TIMEOUT",
	"ORGANIZATION_ID", "LOCATION_ID", "ORG_TIMEZONE",
	"BOOKING_HORIZON_DAYS", "SLOT_STEP_MINUTES", "MAX_MOTIVE_LENGTH",
	"AUTH_SIGNING_KEY", "AUTH_ISSUER", "AUTH_AUDIENCE",
	"REDIS_URL", "SCHEDULE_CACHE_TTL", "SESSION_TTL",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"REQUEST_TIMEOUT", "BODY_LIMIT",
	"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_SAMPLING_RATIO",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("PLATFORM_TIMEOUT", "20s")
	v.SetDefault("ORG_TIMEZONE", "UTC")
	v.SetDefault("BOOKING_HORIZON_DAYS", 14)
	v.SetDefault("SLOT_STEP_MINUTES", 30)
	v.SetDefault("MAX_MOTIVE_LENGTH", 1000)
	v.SetDefault("SCHEDULE_CACHE_TTL", "5m")
	v.SetDefault("SESSION_TTL", "30m")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("BODY_LIMIT", "64K")
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	v.SetDefault("OTEL_SAMPLING_RATIO", 1.0)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(strings.Join(cfg.CORSOrigins, ","))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.IsDev() && cfg.AuthSigningKey == "" {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: AUTH_SIGNING_KEY is empty; every request acts as the dev user.")
		log.Println("WARNING: Set ENV=production and AUTH_SIGNING_KEY before deploying.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location resolves ORG_TIMEZONE. Validate has already checked it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.OrgTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate checks that the configuration is usable. Outside development a
// signing key is mandatory so bearer tokens are actually verified.
func (c *Config) Validate() error {
	if c.PlatformBaseURL == "" {
		return fmt.Errorf("PLATFORM_BASE_URL is required")
	}
	if !strings.HasPrefix(c.PlatformBaseURL, "http://") && !strings.HasPrefix(c.PlatformBaseURL, "https://") {
		return fmt.Errorf("PLATFORM_BASE_URL must be an http(s) URL, got %q", c.PlatformBaseURL)
	}
	if c.OrganizationID == "" {
		return fmt.Errorf("ORGANIZATION_ID is required")
	}
	if _, err := time.LoadLocation(c.OrgTimezone); err != nil {
		return fmt.Errorf("ORG_TIMEZONE %q: %w", c.OrgTimezone, err)
	}
	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV=%q", c.Env)
	}
	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes, got %d", len(c.AuthSigningKey))
	}
	if c.BookingHorizonDays < 1 || c.BookingHorizonDays > 366 {
		return fmt.Errorf("BOOKING_HORIZON_DAYS must be between 1 and 366, got %d", c.BookingHorizonDays)
	}
	if c.SlotStepMinutes < 5 || c.SlotStepMinutes > 240 {
		return fmt.Errorf("SLOT_STEP_MINUTES must be between 5 and 240, got %d", c.SlotStepMinutes)
	}
	if c.PlatformTimeout <= 0 {
		return fmt.Errorf("PLATFORM_TIMEOUT must be positive")
	}
	if c.RequestTimeout > 0 && c.RequestTimeout <= c.PlatformTimeout {
		return fmt.Errorf("REQUEST_TIMEOUT (%s) must exceed PLATFORM_TIMEOUT (%s)", c.RequestTimeout, c.PlatformTimeout)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.OTelSamplingRatio < 0 || c.OTelSamplingRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLING_RATIO must be between 0 and 1, got %v", c.OTelSamplingRatio)
	}
	return nil
}
