package config

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/viper"
)

var log = logging.Logger("config")

type Validatable interface {
	Validate() error
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validateConfig(v any) error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Load unmarshals the global viper configuration into T and validates it.
func Load[T Validatable]() (T, error) {
	return LoadFrom[T](viper.GetViper())
}

func LoadFrom[T Validatable](v *viper.Viper) (T, error) {
	var out T
	if err := v.Unmarshal(&out); err != nil {
		return out, fmt.Errorf("decoding configuration: %w", err)
	}
	if err := out.Validate(); err != nil {
		return out, err
	}
	log.Debugw("loaded configuration", "file", v.ConfigFileUsed())
	return out, nil
}
