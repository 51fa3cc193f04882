package main

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/xraph/credits/extension"
)

// Config is the daemon configuration. Every key can be overridden from the
// environment with a CREDITS_ prefix, e.g. CREDITS_HTTP_ADDR.
type Config struct {
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	HTTP struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"http"`

	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`

	Ledger extension.Config `mapstructure:"ledger"`

	// Subscriptions seeds the in-process subscription service with
	// account id to tier pairs. Keys are lower-cased by viper.
	Subscriptions map[string]string `mapstructure:"subscriptions"`
}

// Load reads path when given and applies environment overrides.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("ledger.default_tier", "monthly")
	v.SetDefault("ledger.max_attempts", 3)

	v.SetEnvPrefix("CREDITS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return c, err
		}
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	c.Ledger = extension.MergeWithDefaults(c.Ledger)
	if c.HTTP.Addr == "" {
		return c, errors.New("http.addr must not be empty")
	}
	return c, nil
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
