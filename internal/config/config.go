// Copyright (c) 2026 GridBanner Team
// Keyproof - SSH key proof-of-possession signer
// This source code is licensed under the MIT license found in the LICENSE file.

// Package config loads keyproof settings from file, environment and flags
// via viper. Precedence: flags > env (KEYPROOF_*) > config file > defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the full keyproof configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	KDF    KDFConfig    `mapstructure:"kdf" yaml:"kdf"`
	Debug  bool         `mapstructure:"debug" yaml:"debug"`
}

// ServerConfig describes the remote keyring service the CLI proves
// possession to.
type ServerConfig struct {
	URL     string        `mapstructure:"url" yaml:"url"`
	APIKey  string        `mapstructure:"api_key" yaml:"api_key"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// KDFConfig bounds the passphrase key derivation. Round counts come from
// the key file and may be arbitrarily large; the timeout caps how long a
// derivation may run before it is cancelled.
type KDFConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Defaults returns the default settings applied below file/env/flags.
func Defaults() map[string]any {
	return map[string]any{
		"server.url":     "",
		"server.api_key": "",
		"server.timeout": 30 * time.Second,
		"kdf.timeout":    60 * time.Second,
		"debug":          false,
	}
}

// getConfigPath returns the full path for the configuration file.
func getConfigPath(system bool) (string, error) {
	var configDir string
	var err error

	if system {
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "Keyproof")
		default: // Linux, macOS, etc.
			configDir = "/etc/keyproof"
		}
	} else {
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "keyproof")
	}

	return filepath.Join(configDir, "keyproof.yaml"), nil
}

// Load builds the effective configuration for a command invocation.
// cfgFile, when non-empty, points at an explicit config file from the
// --config flag and takes precedence over the search paths.
func Load(cmd *cobra.Command, cfgFile string) (Config, error) {
	var c Config
	v := viper.New()

	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	v.SetConfigName("keyproof")
	v.SetConfigType("yaml")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}

	if userConfigPath, err := getConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := getConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; anything else is fatal.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
	}

	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	v.SetEnvPrefix("keyproof")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if cmd != nil {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return c, err
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}

	return c, nil
}

// Write persists the configuration as YAML, creating the directory if
// needed. Mode 0600 because the file may carry the service API key.
func Write(c *Config, system bool) error {
	path, err := getConfigPath(system)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}

	return os.WriteFile(path, data, 0600)
}
