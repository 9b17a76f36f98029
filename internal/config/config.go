// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

// Package config loads plugger's configuration. Sources are layered:
// built-in defaults, then the YAML config file, then command-line flags.
package config

import (
	"net"
	"os"
	"time"

	"github.com/gobwas/glob"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/plugger/plugger/internal/logging"
	"github.com/plugger/plugger/internal/xdg"
)

// Config keys, shared by the config file and the flags.
const (
	KeyPluginsDir  = "plugins-dir"
	KeyInclude     = "include"
	KeyLogFormat   = "log-format"
	KeyLogLevel    = "log-level"
	KeyMetricsAddr = "metrics-addr"
	KeyAutoSort    = "auto-sort"
	KeyParallel    = "parallel"
	KeyExitTimeout = "exit-timeout"
)

// Config holds the settings shared by every command.
type Config struct {
	PluginsDir  string        `koanf:"plugins-dir"`
	Include     string        `koanf:"include"`
	LogFormat   string        `koanf:"log-format"`
	LogLevel    string        `koanf:"log-level"`
	MetricsAddr string        `koanf:"metrics-addr"`
	AutoSort    bool          `koanf:"auto-sort"`
	Parallel    bool          `koanf:"parallel"`
	ExitTimeout time.Duration `koanf:"exit-timeout"`
}

// Default returns the built-in configuration. PluginsDir is left empty when
// no XDG data directory can be determined.
func Default() Config {
	dir, err := xdg.PluginsDir()
	if err != nil {
		dir = ""
	}
	return Config{
		PluginsDir:  dir,
		Include:     "*",
		LogFormat:   logging.FormatText,
		LogLevel:    "info",
		AutoSort:    true,
		ExitTimeout: 30 * time.Second,
	}
}

// RegisterFlags adds the configuration flags with the built-in
// defaults.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String(KeyPluginsDir, d.PluginsDir, "directory containing one subdirectory per plugin")
	flags.String(KeyInclude, d.Include, "glob selecting plugin subdirectories")
	flags.String(KeyLogFormat, d.LogFormat, "log format (json, text)")
	flags.String(KeyLogLevel, d.LogLevel, "log level (debug, info, warn, error)")
	flags.String(KeyMetricsAddr, d.MetricsAddr, "metrics and health listen address, empty to disable")
	flags.Bool(KeyAutoSort, d.AutoSort, "sort plugins by requirements before InitAll")
	flags.Bool(KeyParallel, d.Parallel, "initialize independent plugins concurrently")
	flags.Duration(KeyExitTimeout, d.ExitTimeout, "time allowed for shutdown after an exit signal")
}

// Load builds the configuration. path names the config file; when empty the
// XDG config file is used if it exists. Only flags set on the command line
// override the file. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = defaultFile()
	} else if _, err := os.Stat(path); err != nil {
		return nil, oops.In("config").With("path", path).Wrapf(err, "config file")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
			return nil, oops.In("config").With("path", path).Wrapf(err, "failed to load config file")
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.In("config").Wrapf(err, "failed to load flags")
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.In("config").Wrapf(err, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultFile() string {
	path, err := xdg.ConfigFile()
	if err != nil {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	errb := oops.In("config")
	if c.PluginsDir == "" {
		return errb.With("key", KeyPluginsDir).Errorf("%s is required", KeyPluginsDir)
	}
	if _, err := glob.Compile(c.Include); err != nil {
		return errb.With("key", KeyInclude).With("value", c.Include).Wrapf(err, "invalid include pattern")
	}
	if err := logging.ValidateFormat(c.LogFormat); err != nil {
		return errb.With("key", KeyLogFormat).Wrap(err)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return errb.With("key", KeyLogLevel).Wrap(err)
	}
	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			return errb.With("key", KeyMetricsAddr).With("value", c.MetricsAddr).Wrapf(err, "invalid metrics address")
		}
	}
	if c.ExitTimeout <= 0 {
		return errb.With("key", KeyExitTimeout).Errorf("%s must be positive, got %s", KeyExitTimeout, c.ExitTimeout)
	}
	return nil
}
