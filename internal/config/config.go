// Package config loads process configuration from the environment and an
// optional config file.
//
// Precedence, highest first: ENT_* environment variables, the config
// file (~/.config/entomologist/config.yaml or $ENT_CONFIG), built-in
// defaults. Per-database options live in config.toml on the data branch
// and are handled by the store, not here.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the resolved process configuration.
type Config struct {
	// Branch is the data branch name.
	Branch string `mapstructure:"branch"`

	// Remote is the remote used by sync.
	Remote string `mapstructure:"remote"`

	// Author overrides the identity taken from the repository config.
	Author string `mapstructure:"author"`

	// LogFile, when set, mirrors logs to a rotating file.
	LogFile string `mapstructure:"log_file"`

	// CacheDir holds the SQLite read cache. Defaults next to the
	// repository's metadata directory.
	CacheDir string `mapstructure:"cache_dir"`

	// DashboardAddr is the listen address of the dashboard server.
	DashboardAddr string `mapstructure:"dashboard_addr"`
}

// Load resolves the configuration.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("branch", "entomologist-data")
	v.SetDefault("remote", "origin")
	v.SetDefault("dashboard_addr", "localhost:8377")

	v.SetEnvPrefix("ENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("ENT_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "entomologist"))
		}
		if err := v.ReadInConfig(); err != nil {
			// A missing file is fine; a malformed one is not.
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}
