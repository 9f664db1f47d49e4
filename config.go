package action

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

// Config holds the environment-driven defaults shared by builders and
// registries.
type Config struct {
	// IDSuffix is stripped from a field name to infer its lookup kind,
	// so "order_id" resolves to "Order".
	IDSuffix string `env:"ACTION_ID_SUFFIX" envDefault:"_id"`

	// DefaultMessage is returned by Registry.MessageOrDefault when no
	// message descriptor matches a failure.
	DefaultMessage string `env:"ACTION_DEFAULT_MESSAGE" envDefault:"Something went wrong"`

	// LogFaults routes contained faults to slog. When false faults are
	// dropped unless a Reporter is supplied explicitly.
	LogFaults bool `env:"ACTION_LOG_FAULTS" envDefault:"true"`
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		IDSuffix:       "_id",
		DefaultMessage: "Something went wrong",
		LogFaults:      true,
	}
}

// LoadConfig reads Config from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Reporter returns the reporter implied by the configuration.
func (c Config) Reporter() Reporter {
	if c.LogFaults {
		return SlogReporter(slog.Default())
	}
	return NopReporter()
}
