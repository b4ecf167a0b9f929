package config

import (
	"errors"

	"github.com/storacha/proofbuddy/pkg/config/app"
)

type MinioConfig struct {
	Endpoint        string `mapstructure:"endpoint" toml:"endpoint"`
	Bucket          string `mapstructure:"bucket" toml:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id" toml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" toml:"secret_access_key,omitempty"`
	Insecure        bool   `mapstructure:"insecure" toml:"insecure,omitempty"`
}

type ContentConfig struct {
	Store   string      `mapstructure:"store" validate:"required,oneof=memory leveldb minio" toml:"store"`
	DataDir string      `mapstructure:"data_dir" validate:"required_if=Store leveldb" toml:"data_dir,omitempty"`
	Minio   MinioConfig `mapstructure:"minio" toml:"minio,omitempty"`
}

func (c ContentConfig) Validate() error {
	return validateConfig(c)
}

func (c ContentConfig) ToAppConfig() (app.ContentConfig, error) {
	out := app.ContentConfig{
		Store:   app.StoreKind(c.Store),
		DataDir: c.DataDir,
	}
	if out.Store == app.StoreMinio {
		if c.Minio.Endpoint == "" || c.Minio.Bucket == "" {
			return app.ContentConfig{}, errors.New("minio store requires an endpoint and a bucket")
		}
		out.Minio = app.MinioConfig{
			Endpoint:        c.Minio.Endpoint,
			Bucket:          c.Minio.Bucket,
			AccessKeyID:     c.Minio.AccessKeyID,
			SecretAccessKey: c.Minio.SecretAccessKey,
			Insecure:        c.Minio.Insecure,
		}
	}
	return out, nil
}
