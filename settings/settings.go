// Package settings loads server settings from defaults, an optional
// drivesim.yaml file and DRIVESIM_* environment variables.
package settings

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the settings file looked up in the search paths
const FileName = "drivesim"

// EnvPrefix prefixes every environment override, e.g. DRIVESIM_PORT
const EnvPrefix = "DRIVESIM"

// Settings holds the server configuration
type Settings struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ConfigDir       string        `mapstructure:"config_dir"`
	DefaultProfile  string        `mapstructure:"default_profile"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	Ngrok           NgrokSettings `mapstructure:"ngrok"`
}

// NgrokSettings controls the optional public tunnel
type NgrokSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Domain  string `mapstructure:"domain"`
}

// Addr returns host:port for the HTTP listener
func (s Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "")
	v.SetDefault("port", 8080)
	v.SetDefault("config_dir", "configs")
	v.SetDefault("default_profile", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("session_ttl", "2h")
	v.SetDefault("cleanup_interval", "10m")
	v.SetDefault("ngrok.enabled", false)
	v.SetDefault("ngrok.domain", "")
}

// Load reads settings. A missing settings file is not an error;
// a malformed one is.
func Load(searchPaths ...string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if len(searchPaths) > 0 {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading settings file: %w", err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("error decoding settings: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks ranges that would otherwise fail late at startup
func (s Settings) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("settings: port %d out of range", s.Port)
	}
	if s.ConfigDir == "" {
		return errors.New("settings: config_dir must not be empty")
	}
	if s.SessionTTL <= 0 {
		return fmt.Errorf("settings: session_ttl must be positive, got %s", s.SessionTTL)
	}
	if s.CleanupInterval <= 0 {
		return fmt.Errorf("settings: cleanup_interval must be positive, got %s", s.CleanupInterval)
	}
	switch s.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("settings: log_format must be console or json, got %q", s.LogFormat)
	}
	return nil
}
