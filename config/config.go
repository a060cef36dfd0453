// Package config loads client settings from a YAML file and CATENIS_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Environment values accepted in the "environment" setting.
const (
	EnvironmentProduction = "production"
	EnvironmentSandbox    = "sandbox"
)

// Settings holds all client configuration knobs.
type Settings struct {
	DeviceID          string        `mapstructure:"device_id"`
	APIAccessSecret   string        `mapstructure:"api_access_secret"`
	Environment       string        `mapstructure:"environment"`
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	Secure            bool          `mapstructure:"secure"`
	APIVersion        string        `mapstructure:"api_version"`
	UseCompression    bool          `mapstructure:"use_compression"`
	CompressThreshold int           `mapstructure:"compress_threshold"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
}

// Load reads settings from the given YAML file and the environment using
// Viper. A missing file is not an error, so env-only configuration works;
// pass an empty path to skip the file entirely.
func Load(path string) (*Settings, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix("catenis")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			// Allow env-only configuration when the file is absent. Viper
			// reports an explicit missing file as a plain path error.
			_, notFound := err.(viper.ConfigFileNotFoundError)
			if !notFound && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load config: %w", err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) validate() error {
	switch s.Environment {
	case EnvironmentProduction, EnvironmentSandbox:
	default:
		return fmt.Errorf("invalid environment %q", s.Environment)
	}
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("invalid port %d", s.Port)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Every key needs a default so AutomaticEnv-only values survive
	// Unmarshal.
	v.SetDefault("device_id", "")
	v.SetDefault("api_access_secret", "")
	v.SetDefault("host", "")
	v.SetDefault("port", 0)
	v.SetDefault("api_version", "")
	v.SetDefault("environment", EnvironmentProduction)
	v.SetDefault("secure", true)
	v.SetDefault("use_compression", true)
	v.SetDefault("compress_threshold", 1024)
	v.SetDefault("request_timeout", "30s")
	v.SetDefault("connect_timeout", "10s")
}
