// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads server settings from config files and the
// environment. Precedence is flags, then GYMLINK_* environment
// variables, then the config file, then defaults.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize sets up the configuration singleton. Call once at
// startup, before any Get.
func Initialize() error {
	v = viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Project-local config wins over the user-level one.
	if cwd, err := os.Getwd(); err == nil {
		v.AddConfigPath(filepath.Join(cwd, ".gymlink"))
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "gymlink"))
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(homeDir, ".gymlink"))
	}

	// GYMLINK_MONITOR_ADDR maps to "monitor-addr", and so on.
	v.SetEnvPrefix("GYMLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", 50051)
	v.SetDefault("address", "0.0.0.0")
	v.SetDefault("transport", "grpc")
	v.SetDefault("monitor-addr", "")
	v.SetDefault("script", "")
	v.SetDefault("script-args", []string{})
	v.SetDefault("min-trainer-version", "")
	v.SetDefault("start-poll-interval", "250ms")
	v.SetDefault("log-file", "")
	v.SetDefault("log-max-size", 10)
	v.SetDefault("log-max-backups", 3)
	v.SetDefault("log-max-age", 7)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// No config file is fine, defaults and env apply.
	}
	return nil
}

func ensure() *viper.Viper {
	if v == nil {
		_ = Initialize()
	}
	return v
}

func GetString(key string) string          { return ensure().GetString(key) }
func GetInt(key string) int                { return ensure().GetInt(key) }
func GetBool(key string) bool              { return ensure().GetBool(key) }
func GetStringSlice(key string) []string   { return ensure().GetStringSlice(key) }
func GetDuration(key string) time.Duration { return ensure().GetDuration(key) }

// Set overrides a value for the current process, used by tests and by
// flag binding.
func Set(key string, value any) { ensure().Set(key, value) }
