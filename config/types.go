package config

import (
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Validator interface {
	Validate() error
}

type ConfigInterface interface {
	Bind(instance any) error
	BindWithDefaults(instance any) error
	Get(key string) any
}

type Config struct {
	instance *viper.Viper
	opts     ConfigOptions
	validate *validator.Validate
}

type ConfigOptions struct {
	BasePath  string
	FileName  string
	FileType  string
	EnvPrefix string
	// Required makes a missing config file an error. Services run from
	// environment variables alone by default.
	Required bool
}
