package config

import (
	"time"

	"github.com/storacha/proofbuddy/pkg/config/app"
)

// TelemetryConfig configures metric export. Metrics are not exported when
// Endpoint is empty.
type TelemetryConfig struct {
	Endpoint        string            `mapstructure:"endpoint" toml:"endpoint,omitempty"`
	Insecure        bool              `mapstructure:"insecure" toml:"insecure,omitempty"`
	Headers         map[string]string `mapstructure:"headers" toml:"headers,omitempty"`
	PublishInterval time.Duration     `mapstructure:"publish_interval" validate:"gte=0" toml:"publish_interval,omitempty"`
	Environment     string            `mapstructure:"environment" toml:"environment,omitempty"`
}

func (t TelemetryConfig) Validate() error {
	return validateConfig(t)
}

func (t TelemetryConfig) ToAppConfig() app.TelemetryConfig {
	return app.TelemetryConfig{
		Endpoint:        t.Endpoint,
		Insecure:        t.Insecure,
		Headers:         t.Headers,
		PublishInterval: t.PublishInterval,
		Environment:     t.Environment,
	}
}
