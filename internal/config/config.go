package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full runtime configuration of the engagement service.
type Config struct {
	Environment string
	Port        string
	CORSOrigins []string

	Database  DatabaseConfig
	Log       LogConfig
	Redis     RedisConfig
	Telemetry TelemetryConfig
	RateLimit RateLimitConfig

	JWTSecret         string
	PermalinkSalt     string
	TrustForwardedFor bool
	DedupWindow       time.Duration
}

type DatabaseConfig struct {
	Driver   string // "postgres" or "sqlite"
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	Path     string // sqlite file
}

type LogConfig struct {
	Level string
	File  string
	JSON  bool
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Enabled reports whether a Redis endpoint was configured at all.
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
	SamplingRate float64
}

type RateLimitConfig struct {
	Views  int
	Claps  int
	Window time.Duration
}

// Load reads an optional .env file, then the process environment.
// Values already present in the environment win over the .env file.
func Load(envFiles ...string) (Config, error) {
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := Config{
		Environment: v.GetString("environment"),
		Port:        v.GetString("port"),
		CORSOrigins: splitList(v.GetString("cors_origins")),
		Database: DatabaseConfig{
			Driver:   strings.ToLower(v.GetString("database_driver")),
			URL:      v.GetString("database_url"),
			Host:     v.GetString("db_host"),
			Port:     v.GetString("db_port"),
			User:     v.GetString("db_user"),
			Password: v.GetString("db_password"),
			Name:     v.GetString("db_name"),
			SSLMode:  v.GetString("db_sslmode"),
			Path:     v.GetString("sqlite_path"),
		},
		Log: LogConfig{
			Level: v.GetString("log_level"),
			File:  v.GetString("log_file"),
			JSON:  v.GetBool("log_json"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis_host"),
			Port:     v.GetString("redis_port"),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      v.GetBool("otel_enabled"),
			ServiceName:  v.GetString("otel_service_name"),
			OTLPEndpoint: v.GetString("otel_exporter_otlp_endpoint"),
			SamplingRate: v.GetFloat64("otel_sampling_rate"),
		},
		RateLimit: RateLimitConfig{
			Views:  v.GetInt("rate_limit_views"),
			Claps:  v.GetInt("rate_limit_claps"),
			Window: v.GetDuration("rate_limit_window"),
		},
		JWTSecret:         v.GetString("jwt_secret"),
		PermalinkSalt:     v.GetString("permalink_salt"),
		TrustForwardedFor: v.GetBool("trust_forwarded_for"),
		DedupWindow:       v.GetDuration("view_dedup_window"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("port", "8787")
	v.SetDefault("cors_origins", "*")

	v.SetDefault("database_driver", "postgres")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_name", "trail")
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("sqlite_path", "trail.db")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "server.log")

	v.SetDefault("redis_port", "6379")

	v.SetDefault("otel_service_name", "trail-engagement")
	v.SetDefault("otel_exporter_otlp_endpoint", "localhost:4318")
	v.SetDefault("otel_sampling_rate", 0.1)

	v.SetDefault("rate_limit_views", 300)
	v.SetDefault("rate_limit_claps", 60)
	v.SetDefault("rate_limit_window", time.Minute)

	v.SetDefault("trust_forwarded_for", true)
	v.SetDefault("view_dedup_window", 24*time.Hour)
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	if c.PermalinkSalt == "" {
		return fmt.Errorf("PERMALINK_SALT is required")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.DedupWindow <= 0 {
		return fmt.Errorf("VIEW_DEDUP_WINDOW must be positive")
	}
	if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
		return fmt.Errorf("OTEL_SAMPLING_RATE must be within [0, 1]")
	}
	if c.IsProduction() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	return nil
}

// IsProduction reports whether ENVIRONMENT=production.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// DSN builds the driver-specific connection string.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	if d.URL != "" {
		return d.URL
	}
	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
	if d.Password != "" {
		dsn += " password=" + d.Password
	}
	return dsn
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
