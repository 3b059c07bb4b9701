package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Env holds the process-environment settings. The API token and the CA
// bundle override deliberately never appear in the configuration file.
type Env struct {
	Token       string        `env:"XC_TOKEN"`
	CABundle    string        `env:"ACME_CA_BUNDLE"`
	HTTPTimeout time.Duration `env:"XC_HTTP_TIMEOUT" envDefault:"30s"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON     bool          `env:"LOG_JSON" envDefault:"false"`
}

// ParseEnv reads the environment settings. A missing token is not an error
// here: commands that never talk to the API must still work without one.
func ParseEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return e, nil
}
