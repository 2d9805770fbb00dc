// Package config
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"hostpulse/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	SampleInterval time.Duration `validate:"gte=100ms"`
	BufferCapacity int           `validate:"gte=0"`
	BatchSize      int           `validate:"gte=1"`
	DatabasePath   string        `validate:"required_if=StorageEnabled true,excludesall=?#"`
	StorageEnabled bool
	StopTimeout    time.Duration `validate:"gt=0"`

	DiskPath              string  `validate:"required"`
	DiskMaxThroughputMBps float64 `validate:"gt=0"`

	RetentionPeriod   time.Duration `validate:"gte=0"`
	RetentionInterval time.Duration `validate:"gt=0"`
	// RetentionAt ("HH:MM", local time) runs pruning once a day instead of
	// every RetentionInterval.
	RetentionAt       string        `validate:"omitempty,datetime=15:04"`

	Address        string
	AllowedOrigins []string
	StatsCacheTTL  time.Duration `validate:"gte=0"`

	LogLevel  string `validate:"oneof=debug info warn warning error"`
	LogFormat string `validate:"oneof=text json"`
}

// Default returns the configuration used when no environment is set.
func Default() *Config {
	return &Config{
		SampleInterval: time.Second,
		BufferCapacity: 3600,
		BatchSize:      10,
		DatabasePath:   "hostpulse.db",
		StorageEnabled: true,
		StopTimeout:    2 * time.Second,

		DiskPath:              "/",
		DiskMaxThroughputMBps: 100,

		RetentionPeriod:   7 * 24 * time.Hour,
		RetentionInterval: time.Hour,

		Address:       ":3000",
		StatsCacheTTL: 5 * time.Second,

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads .env (when present) and the process environment on top of
// Default, then validates the result.
func Load() (*Config, error) {
	godotenv.Load()

	cfg := Default()
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if raw := getenv("SAMPLE_INTERVAL"); raw != "" {
		d, err := ParseSeconds(raw)
		if err != nil {
			return invalid("SAMPLE_INTERVAL", raw, err)
		}
		c.SampleInterval = d
	}

	if raw := getenv("BUFFER_CAPACITY"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return invalid("BUFFER_CAPACITY", raw, err)
		}
		c.BufferCapacity = n
	}

	if raw := getenv("BATCH_SIZE"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return invalid("BATCH_SIZE", raw, err)
		}
		c.BatchSize = n
	}

	if raw := getenv("DATABASE_PATH"); raw != "" {
		c.DatabasePath = raw
	}

	if raw := getenv("STORAGE_ENABLED"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return invalid("STORAGE_ENABLED", raw, err)
		}
		c.StorageEnabled = b
	}

	if raw := getenv("STOP_TIMEOUT"); raw != "" {
		d, err := ParseSeconds(raw)
		if err != nil {
			return invalid("STOP_TIMEOUT", raw, err)
		}
		c.StopTimeout = d
	}

	if raw := getenv("DISK_PATH"); raw != "" {
		c.DiskPath = raw
	}

	if raw := getenv("DISK_MAX_THROUGHPUT_MBPS"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return invalid("DISK_MAX_THROUGHPUT_MBPS", raw, err)
		}
		c.DiskMaxThroughputMBps = f
	}

	if raw := getenv("RETENTION_PERIOD"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return invalid("RETENTION_PERIOD", raw, err)
		}
		c.RetentionPeriod = d
	}

	if raw := getenv("RETENTION_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return invalid("RETENTION_INTERVAL", raw, err)
		}
		c.RetentionInterval = d
	}

	if raw := getenv("RETENTION_AT"); raw != "" {
		c.RetentionAt = strings.TrimSpace(raw)
	}

	if raw := getenv("HTTP_ADDR"); raw != "" {
		c.Address = raw
	}

	if raw := getenv("ALLOWED_ORIGINS"); raw != "" {
		c.AllowedOrigins = nil
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}

	if raw := getenv("STATS_CACHE_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return invalid("STATS_CACHE_TTL", raw, err)
		}
		c.StatsCacheTTL = d
	}

	if raw := getenv("LOG_LEVEL"); raw != "" {
		c.LogLevel = strings.ToLower(raw)
	}

	if raw := getenv("LOG_FORMAT"); raw != "" {
		c.LogFormat = strings.ToLower(raw)
	}

	return nil
}

// Validate reports the first constraint violation as an error wrapping
// domain.ErrInvalidConfig.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		e := verrs[0]
		return fmt.Errorf("%w: %s failed %q (value %v)", domain.ErrInvalidConfig, e.Field(), e.Tag(), e.Value())
	}

	return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
}

// ParseSeconds accepts either a bare number of seconds ("0.5", "2") or a
// Go duration string ("500ms").
func ParseSeconds(raw string) (time.Duration, error) {
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(f * float64(time.Second)), nil
	}
	return time.ParseDuration(raw)
}

func invalid(key, raw string, err error) error {
	return fmt.Errorf("%w: %s=%q: %v", domain.ErrInvalidConfig, key, raw, err)
}
