package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	apperrors "github.com/leeforge/moneykeeper/errors"
	"github.com/leeforge/moneykeeper/utils"
	"github.com/spf13/viper"
)

func DefaultConfigOptions() ConfigOptions {
	basePath := os.Getenv("CONFIG_PATH")
	if basePath == "" {
		basePath = "config"
	}

	return ConfigOptions{
		BasePath: basePath,
		FileName: "config",
		FileType: "yaml",
	}
}

func NewConfig(optsArr ...ConfigOptions) (*Config, error) {
	var opts ConfigOptions
	if len(optsArr) == 0 {
		opts = DefaultConfigOptions()
	} else {
		opts = optsArr[0]
	}

	instance, err := CreateConfig(opts)
	if err != nil {
		return nil, err
	}

	return &Config{
		instance: instance,
		opts:     opts,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// Bind unmarshals the merged file and environment settings into instance.
func (c *Config) Bind(instance any) error {
	if c == nil || c.instance == nil {
		return apperrors.NewConfiguration("config instance is nil")
	}
	if instance == nil {
		return apperrors.NewConfiguration("target instance is nil")
	}

	// Environment variables are only consulted for keys viper knows about, so every
	// field of the target is registered first with its current value.
	registerKeys(c.instance, "", reflect.ValueOf(instance))

	if err := c.instance.Unmarshal(instance); err != nil {
		return apperrors.WrapWithType(err, apperrors.ErrorTypeConfiguration,
			fmt.Sprintf("failed to unmarshal config (path: %s, file: %s.%s)",
				c.opts.BasePath, c.opts.FileName, c.opts.FileType))
	}
	return nil
}

// BindWithDefaults applies `default` tags, binds, and validates `validate` tags.
func (c *Config) BindWithDefaults(instance any) error {
	if err := defaults.Set(instance); err != nil {
		return apperrors.WrapWithType(err, apperrors.ErrorTypeConfiguration, "failed to set defaults")
	}

	if err := c.Bind(instance); err != nil {
		return err
	}

	if err := c.validate.Struct(instance); err != nil {
		return apperrors.WrapWithType(err, apperrors.ErrorTypeConfiguration, "config validation failed")
	}

	if v, ok := instance.(Validator); ok {
		if err := v.Validate(); err != nil {
			return apperrors.WrapWithType(err, apperrors.ErrorTypeConfiguration, "config validation failed")
		}
	}
	return nil
}

func (c *Config) Get(key string) any {
	return c.instance.Get(key)
}

func CreateConfig(opts ConfigOptions) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType(opts.FileType)

	configPaths := getConfigFilePaths(opts, CurrentMode())
	if len(configPaths) == 0 && opts.Required {
		return nil, apperrors.NewConfiguration(
			fmt.Sprintf("no valid configuration files found in path: %s", opts.BasePath))
	}

	// Files are merged at config level so environment variables still win.
	for _, configPath := range configPaths {
		v.SetConfigFile(configPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, apperrors.WrapWithType(err, apperrors.ErrorTypeConfiguration,
				fmt.Sprintf("error reading config file %s", configPath))
		}
	}

	// database.max-conns -> DATABASE_MAX_CONNS
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	if opts.EnvPrefix != "" {
		v.SetEnvPrefix(opts.EnvPrefix)
	}
	v.AutomaticEnv()

	return v, nil
}

// registerKeys walks the mapstructure tags of a struct and registers each leaf
// as a viper default.
func registerKeys(v *viper.Viper, prefix string, val reflect.Value) {
	for val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := strings.Split(field.Tag.Get("mapstructure"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		fv := val.Field(i)
		if fv.Kind() == reflect.Struct {
			registerKeys(v, key, fv)
			continue
		}
		// Defaults rank below files and environment, and make the key visible to
		// Unmarshal even when only an environment variable sets it.
		v.SetDefault(key, fv.Interface())
	}
}

func getConfigFilePaths(opts ConfigOptions, mode Mode) (configFiles []string) {
	fileNames := []string{
		opts.FileName,
		fmt.Sprintf("%s.local", opts.FileName),
	}
	for _, suffix := range modeSuffixes(mode) {
		fileNames = append(fileNames,
			fmt.Sprintf("%s.%s", opts.FileName, suffix),
			fmt.Sprintf("%s.%s.local", opts.FileName, suffix),
		)
	}

	for _, fileName := range fileNames {
		file := filepath.Join(opts.BasePath, fmt.Sprintf("%s.%s", fileName, opts.FileType))
		if isDir, exists, _ := utils.Exists(file); exists && !isDir {
			configFiles = append(configFiles, file)
		}
	}

	return configFiles
}
