package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/hperssn/stride/internal/runner"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	ServerPort     string        `mapstructure:"SERVER_PORT"`
	DBDriver       string        `mapstructure:"DB_DRIVER"`
	DBDSN          string        `mapstructure:"DB_DSN"`
	RedisAddr      string        `mapstructure:"REDIS_ADDR"`
	RedisPassword  string        `mapstructure:"REDIS_PASSWORD"`
	TickInterval   time.Duration `mapstructure:"TICK_INTERVAL"`
	PollInterval   time.Duration `mapstructure:"POLL_INTERVAL"`
	AttachDelay    time.Duration `mapstructure:"ATTACH_DELAY"`
	ConflictPolicy string        `mapstructure:"CONFLICT_POLICY"`
	StopOnComplete bool          `mapstructure:"STOP_ON_COMPLETE"`
	CatalogPath    string        `mapstructure:"CATALOG_PATH"`
	Debug          bool          `mapstructure:"DEBUG"`
	LogFile        string        `mapstructure:"LOG_FILE"`
}

// Load reads an optional .env file, then the environment, over the defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("SERVER_PORT", ":8080")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "stride.db")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("TICK_INTERVAL", time.Second)
	v.SetDefault("POLL_INTERVAL", 500*time.Millisecond)
	v.SetDefault("ATTACH_DELAY", time.Duration(0))
	v.SetDefault("CONFLICT_POLICY", string(runner.PolicyReject))
	v.SetDefault("STOP_ON_COMPLETE", false)
	v.SetDefault("CATALOG_PATH", "")
	v.SetDefault("DEBUG", false)
	v.SetDefault("LOG_FILE", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if _, err := runner.ParsePolicy(c.ConflictPolicy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch c.DBDriver {
	case "sqlite", "sqlite3", "postgres":
	default:
		return fmt.Errorf("%w: unknown DB_DRIVER %q", ErrInvalidConfig, c.DBDriver)
	}
	if c.TickInterval <= 0 || c.PollInterval <= 0 {
		return fmt.Errorf("%w: tick and poll intervals must be positive", ErrInvalidConfig)
	}
	if c.AttachDelay < 0 {
		return fmt.Errorf("%w: ATTACH_DELAY must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Policy returns the parsed conflict policy. Call after Validate.
func (c Config) Policy() runner.ConflictPolicy {
	p, _ := runner.ParsePolicy(c.ConflictPolicy)
	return p
}
