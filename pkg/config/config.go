// Package config loads the driver configuration.
//
// Sources are layered, later ones winning: built-in defaults, an optional
// YAML file, ODBCBRIDGE_* environment variables, and finally the attributes
// of the connection string.
package config

import (
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ha1tch/odbcbridge/pkg/errors"
	"github.com/ha1tch/odbcbridge/pkg/log"
)

// EnvPrefix prefixes every environment variable the driver reads.
const EnvPrefix = "ODBCBRIDGE_"

// EnvConfigFile names the environment variable holding the config file path.
const EnvConfigFile = EnvPrefix + "CONFIG"

// Config is the driver configuration.
type Config struct {
	Log        LogConfig        `koanf:"log"`
	Source     SourceConfig     `koanf:"source"`
	Conversion ConversionConfig `koanf:"conversion"`
	Cursor     CursorConfig     `koanf:"cursor"`

	// Watch reloads the config file when it changes.
	Watch bool `koanf:"watch"`

	// File is the config file that was read, empty if none.
	File string `koanf:"-"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	File   string `koanf:"file"` // empty is stderr
}

// SourceConfig selects the database/sql driver that backs statements.
type SourceConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

type ConversionConfig struct {
	MaxDepth    int `koanf:"max_depth"`
	VarcharSize int `koanf:"varchar_size"`
}

type CursorConfig struct {
	Scrollable bool `koanf:"scrollable"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"log.level":               "warn",
		"log.format":              "text",
		"log.file":                "",
		"source.driver":           "sqlite3",
		"source.dsn":              "",
		"conversion.max_depth":    64,
		"conversion.varchar_size": 1024,
		"cursor.scrollable":       true,
		"watch":                   false,
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// loadOptions collects the inputs of Load.
type loadOptions struct {
	file      string
	fileSet   bool
	env       bool
	overrides map[string]interface{}
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

// WithFile reads path instead of the file named by ODBCBRIDGE_CONFIG. An
// empty path disables the file layer.
func WithFile(path string) LoadOption {
	return func(o *loadOptions) {
		o.file, o.fileSet = path, true
	}
}

// WithEnv layers ODBCBRIDGE_* environment variables over the file.
func WithEnv() LoadOption {
	return func(o *loadOptions) {
		o.env = true
	}
}

// WithOverrides layers dotted keys over everything else. Connection-string
// attributes arrive here.
func WithOverrides(kv map[string]string) LoadOption {
	return func(o *loadOptions) {
		if o.overrides == nil {
			o.overrides = make(map[string]interface{})
		}
		for k, v := range kv {
			o.overrides[k] = v
		}
	}
}

// Load builds a Config from the layers the options enable. A missing file
// is not an error.
func Load(opts ...LoadOption) (*Config, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigParse, "loading defaults").Err()
	}

	path := o.file
	if !o.fileSet && o.env {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, errors.Wrapf(err, errors.ErrCodeConfigParse, "parsing %s", path).Err()
			}
		} else {
			path = ""
		}
	}

	if o.env {
		if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigParse, "loading environment").Err()
		}
	}

	if len(o.overrides) > 0 {
		if err := k.Load(confmap.Provider(o.overrides, "."), nil); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigParse, "loading overrides").Err()
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigParse, "decoding configuration").Err()
	}
	cfg.File = path
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps ODBCBRIDGE_LOG_LEVEL to log.level and
// ODBCBRIDGE_CONVERSION_MAX_DEPTH to conversion.max_depth: the first
// underscore separates the section from the key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "log.level").Err()
	}
	if _, err := log.ParseFormat(c.Log.Format); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "log.format").Err()
	}
	if c.Conversion.MaxDepth < 1 {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"conversion.max_depth must be positive, got %d", c.Conversion.MaxDepth).Err()
	}
	if c.Conversion.VarcharSize < 1 {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"conversion.varchar_size must be positive, got %d", c.Conversion.VarcharSize).Err()
	}
	return nil
}

// LoggerConfig translates the log section into a log.Config. The returned
// closer releases the log file, if one was opened.
func (c *Config) LoggerConfig() (log.Config, io.Closer, error) {
	lc := log.DefaultConfig()
	lc.DefaultLevel, _ = log.ParseLevel(c.Log.Level)
	lc.Format, _ = log.ParseFormat(c.Log.Format)

	if c.Log.File == "" {
		return lc, nopCloser{}, nil
	}
	f, err := os.OpenFile(c.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return lc, nopCloser{}, errors.Wrapf(err, errors.ErrCodeConfigInvalid,
			"opening log file %s", c.Log.File).Err()
	}
	lc.Output = f
	return lc, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
