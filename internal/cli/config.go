package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/roach88/statebox/internal/telemetry"
)

// Config is the environment configuration. Flags override it.
type Config struct {
	Format       string `env:"STATEBOX_FORMAT" envDefault:"text"`
	Journal      string `env:"STATEBOX_JOURNAL"`
	LogLevel     string `env:"STATEBOX_LOG_LEVEL" envDefault:"warn"`
	OTelEndpoint string `env:"STATEBOX_OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"STATEBOX_OTEL_ENABLED" envDefault:"true"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Telemetry returns the tracing configuration.
func (c Config) Telemetry() telemetry.Config {
	return telemetry.Config{Endpoint: c.OTelEndpoint, Enabled: c.OTelEnabled}
}

// parseLevel maps a level name to a slog level.
func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return level, nil
}

// newLogger builds the CLI logger. Verbose forces debug.
func newLogger(w io.Writer, levelName string, verbose bool) (*slog.Logger, error) {
	level, err := parseLevel(levelName)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}
