// Package config loads service configuration from the environment.
package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the full service configuration.
type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Optimization struct {
		// IterStop caps the number of optimization iterations per job.
		IterStop int `env:"OPT_ITER_STOP" envDefault:"100"`
		// DefaultLambdaA is the update step-size parameter used when a
		// request does not supply one.
		DefaultLambdaA float64 `env:"OPT_DEFAULT_LAMBDA_A" envDefault:"5"`
		// ParallelObjectives enables concurrent propagation of
		// independent objectives.
		ParallelObjectives bool `env:"OPT_PARALLEL_OBJECTIVES" envDefault:"true"`
		// MaxJobs limits the number of optimization jobs kept in memory.
		MaxJobs int `env:"OPT_MAX_JOBS" envDefault:"100"`
	}
}

// Load parses the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}
