package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`

	// Scheduling engine. ShiftCapacity is the single authoritative slot
	// capacity; every availability computation reads it from here.
	ShiftCapacity       int `mapstructure:"SHIFT_CAPACITY"`
	MorningCutoffHour   int `mapstructure:"MORNING_CUTOFF_HOUR"`
	AfternoonCutoffHour int `mapstructure:"AFTERNOON_CUTOFF_HOUR"`

	AutoCancelInterval time.Duration `mapstructure:"AUTO_CANCEL_INTERVAL"`
	AutoCancelBackoff  time.Duration `mapstructure:"AUTO_CANCEL_BACKOFF"`
	ReminderInterval   time.Duration `mapstructure:"REMINDER_INTERVAL"`
	ReminderHour       int           `mapstructure:"REMINDER_HOUR"`

	SMTPHost string `mapstructure:"SMTP_HOST"`
	SMTPPort int    `mapstructure:"SMTP_PORT"`
	SMTPUser string `mapstructure:"SMTP_USER"`
	SMTPPass string `mapstructure:"SMTP_PASS"`
	SMTPFrom string `mapstructure:"SMTP_FROM"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("SHIFT_CAPACITY", 10)
	v.SetDefault("MORNING_CUTOFF_HOUR", 12)
	v.SetDefault("AFTERNOON_CUTOFF_HOUR", 17)
	v.SetDefault("AUTO_CANCEL_INTERVAL", "5m")
	v.SetDefault("AUTO_CANCEL_BACKOFF", "1m")
	v.SetDefault("REMINDER_INTERVAL", "1m")
	v.SetDefault("REMINDER_HOUR", 5)
	v.SetDefault("SMTP_PORT", 587)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("AUTH_SIGNING_KEY")
	v.BindEnv("SHIFT_CAPACITY")
	v.BindEnv("MORNING_CUTOFF_HOUR")
	v.BindEnv("AFTERNOON_CUTOFF_HOUR")
	v.BindEnv("AUTO_CANCEL_INTERVAL")
	v.BindEnv("AUTO_CANCEL_BACKOFF")
	v.BindEnv("REMINDER_INTERVAL")
	v.BindEnv("REMINDER_HOUR")
	v.BindEnv("SMTP_HOST")
	v.BindEnv("SMTP_PORT")
	v.BindEnv("SMTP_USER")
	v.BindEnv("SMTP_PASS")
	v.BindEnv("SMTP_FROM")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active; all requests get staff access.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Capacity and cutoff
// values protect the booking invariants, so nonsense values refuse to start
// rather than silently admitting unbounded bookings.
func (c *Config) Validate() error {
	if c.ShiftCapacity <= 0 {
		return fmt.Errorf("SHIFT_CAPACITY must be positive, got %d", c.ShiftCapacity)
	}
	if c.MorningCutoffHour < 0 || c.MorningCutoffHour > 23 {
		return fmt.Errorf("MORNING_CUTOFF_HOUR must be 0-23, got %d", c.MorningCutoffHour)
	}
	if c.AfternoonCutoffHour < 0 || c.AfternoonCutoffHour > 23 {
		return fmt.Errorf("AFTERNOON_CUTOFF_HOUR must be 0-23, got %d", c.AfternoonCutoffHour)
	}
	if c.MorningCutoffHour >= c.AfternoonCutoffHour {
		return fmt.Errorf("MORNING_CUTOFF_HOUR (%d) must precede AFTERNOON_CUTOFF_HOUR (%d)",
			c.MorningCutoffHour, c.AfternoonCutoffHour)
	}
	if c.ReminderHour < 0 || c.ReminderHour > 23 {
		return fmt.Errorf("REMINDER_HOUR must be 0-23, got %d", c.ReminderHour)
	}
	if c.AutoCancelInterval <= 0 || c.ReminderInterval <= 0 {
		return fmt.Errorf("sweep intervals must be positive")
	}
	if c.IsProduction() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required in production")
	}
	return nil
}
