package config

import (
	"fmt"
	"time"

	"github.com/storacha/proofbuddy/pkg/config/app"
)

type RetryConfig struct {
	Initial    time.Duration `mapstructure:"initial" validate:"gt=0" toml:"initial"`
	Max        time.Duration `mapstructure:"max" validate:"gt=0" toml:"max"`
	MaxElapsed time.Duration `mapstructure:"max_elapsed" validate:"gte=0" toml:"max_elapsed,omitempty"`
}

type ProverConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval" validate:"gt=0" toml:"poll_interval"`
	StallTimeout  time.Duration `mapstructure:"stall_timeout" validate:"gte=0" toml:"stall_timeout,omitempty"`
	MaxConcurrent int           `mapstructure:"max_concurrent" validate:"gt=0" toml:"max_concurrent"`
	CallTimeout   time.Duration `mapstructure:"call_timeout" validate:"gt=0" toml:"call_timeout"`
	Retry         RetryConfig   `mapstructure:"retry" toml:"retry"`
	TreeCacheSize int           `mapstructure:"tree_cache_size" validate:"gt=0" toml:"tree_cache_size"`
	Audit         bool          `mapstructure:"audit" toml:"audit"`
}

func (p ProverConfig) Validate() error {
	return validateConfig(p)
}

func (p ProverConfig) ToAppConfig() (app.ProverConfig, error) {
	if p.Retry.Max < p.Retry.Initial {
		return app.ProverConfig{}, fmt.Errorf("retry max interval %s is below initial interval %s", p.Retry.Max, p.Retry.Initial)
	}
	return app.ProverConfig{
		PollInterval:    p.PollInterval,
		StallTimeout:    p.StallTimeout,
		MaxConcurrent:   p.MaxConcurrent,
		CallTimeout:     p.CallTimeout,
		RetryInitial:    p.Retry.Initial,
		RetryMax:        p.Retry.Max,
		RetryMaxElapsed: p.Retry.MaxElapsed,
		TreeCacheSize:   p.TreeCacheSize,
		Audit:           p.Audit,
	}, nil
}
