package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. CMSGQL_DATABASE_PROVIDER.
const EnvPrefix = "CMSGQL"

// Load loads configuration from the process command line. Precedence, highest
// first: secret files and the password prompt, flags, environment variables,
// the config file, defaults.
func Load() (*Config, error) {
	fs := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
	DefineFlags(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, err
	}
	return LoadFlags(fs)
}

// LoadFlags loads configuration using an already parsed flag set that
// carries the flags from DefineFlags.
func LoadFlags(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	cfgPath, _ := fs.GetString("config")
	if err := readConfigFile(v, cfgPath); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindChangedFlagsToViper(v, fs)

	if err := validateSingleStdinFileSource(v); err != nil {
		return nil, err
	}
	if err := resolveSecretFiles(v); err != nil {
		return nil, err
	}
	if v.GetBool("database.password_prompt") && v.GetString("database.password") == "" {
		password, err := promptPassword()
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		v.Set("database.password", password)
	}

	var cfg Config
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		stringToStringSliceHookFunc(","),
	)
	if err := v.UnmarshalExact(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// readConfigFile reads an explicit config file, or searches the default
// locations where a missing file is not an error.
func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %q: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("cms-graphql")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/cms-graphql/")
	var notFound viper.ConfigFileNotFoundError
	if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// bindChangedFlagsToViper copies only explicitly-set flags into Viper so an
// unset flag never shadows the environment or the config file.
func bindChangedFlagsToViper(v *viper.Viper, fs *pflag.FlagSet) {
	fs.Visit(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "version" {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			v.Set(f.Name, sv.GetSlice())
			return
		}
		v.Set(f.Name, f.Value.String())
	})
}

// stringToStringSliceHookFunc splits env and flag strings into trimmed
// slices.
func stringToStringSliceHookFunc(sep string) mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
			return data, nil
		}
		raw := strings.TrimSpace(data.(string))
		if raw == "" {
			return []string{}, nil
		}
		parts := strings.Split(raw, sep)
		for i, part := range parts {
			parts[i] = strings.TrimSpace(part)
		}
		return parts, nil
	}
}
