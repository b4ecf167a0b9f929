package config

import (
	"fmt"

	"github.com/storacha/proofbuddy/pkg/config/app"
)

// Full is the complete configuration of the serve command.
type Full struct {
	Chain     ChainConfig     `mapstructure:"chain" toml:"chain"`
	Content   ContentConfig   `mapstructure:"content" toml:"content"`
	Prover    ProverConfig    `mapstructure:"prover" toml:"prover"`
	Deals     DealsConfig     `mapstructure:"deals" toml:"deals"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" toml:"telemetry"`
}

func (f Full) Validate() error {
	return validateConfig(f)
}

func (f Full) ToAppConfig() (app.AppConfig, error) {
	var (
		err error
		out app.AppConfig
	)

	out.Chain, err = f.Chain.ToAppConfig()
	if err != nil {
		return app.AppConfig{}, fmt.Errorf("converting chain config to app config: %w", err)
	}

	out.Content, err = f.Content.ToAppConfig()
	if err != nil {
		return app.AppConfig{}, fmt.Errorf("converting content config to app config: %w", err)
	}

	out.Prover, err = f.Prover.ToAppConfig()
	if err != nil {
		return app.AppConfig{}, fmt.Errorf("converting prover config to app config: %w", err)
	}

	out.Deals, err = f.Deals.ToAppConfig()
	if err != nil {
		return app.AppConfig{}, fmt.Errorf("converting deals to app config: %w", err)
	}

	out.Telemetry = f.Telemetry.ToAppConfig()
	return out, nil
}
