// Package config loads recipesync settings.
//
// Settings are layered, later layers winning:
//
//  1. built-in defaults
//  2. a YAML file (unknown keys are rejected)
//  3. RECIPESYNC_* environment variables, after loading .env if present
//
// Command-line flags are applied on top by the CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/recipesync/internal/capability"
	"github.com/roach88/recipesync/internal/remote"
	"github.com/roach88/recipesync/internal/store"
)

// EnvPrefix starts every environment override.
const EnvPrefix = "RECIPESYNC_"

// Token sources.
const (
	TokenEnv    = "env"
	TokenFile   = "file"
	TokenStatic = "static"
)

// Config is the full set of settings.
type Config struct {
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
	Registry string        `yaml:"registry,omitempty"`
	Store    StoreConfig   `yaml:"store"`
	Token    TokenConfig   `yaml:"token"`
	User     UserConfig    `yaml:"user"`
	Log      LogConfig     `yaml:"log"`
}

// StoreConfig selects the favorite store backend.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// TokenConfig says where the bearer token comes from.
type TokenConfig struct {
	Source string `yaml:"source"`
	// Env names the variable read when Source is "env".
	Env string `yaml:"env,omitempty"`
	// File is read when Source is "file".
	File string `yaml:"file,omitempty"`
	// Value is used as-is when Source is "static".
	Value string `yaml:"value,omitempty"`
}

// UserConfig is used when the profile cannot be fetched.
type UserConfig struct {
	ID        string `yaml:"id,omitempty"`
	ToolsMask int64  `yaml:"tools,omitempty"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		BaseURL: "http://localhost:8080",
		Timeout: 15 * time.Second,
		Store: StoreConfig{
			Driver: string(store.DriverSQLite),
			DSN:    "recipesync.db",
		},
		Token: TokenConfig{
			Source: TokenEnv,
			Env:    EnvPrefix + "TOKEN",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds a Config from defaults, the YAML file at path and the
// environment. An empty path skips the file. A .env file in the working
// directory is loaded first; variables already set are not overwritten.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults without consulting the environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(c)
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	str("BASE_URL", &c.BaseURL)
	str("REGISTRY", &c.Registry)
	str("STORE_DRIVER", &c.Store.Driver)
	str("STORE_DSN", &c.Store.DSN)
	str("USER_ID", &c.User.ID)
	str("LOG_LEVEL", &c.Log.Level)

	if v, ok := lookup(EnvPrefix + "TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sTIMEOUT: %w", EnvPrefix, err)
		}
		c.Timeout = d
	}
	if v, ok := lookup(EnvPrefix + "USER_TOOLS"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sUSER_TOOLS: %w", EnvPrefix, err)
		}
		c.User.ToolsMask = n
	}
	if v, ok := lookup(EnvPrefix + "TOKEN_FILE"); ok {
		c.Token.Source = TokenFile
		c.Token.File = v
	}
	return nil
}

// Validate checks the settings for values no component can use.
func (c *Config) Validate() error {
	var problems []string
	if c.BaseURL == "" {
		problems = append(problems, "base_url is required")
	}
	if c.Timeout <= 0 {
		problems = append(problems, fmt.Sprintf("timeout must be positive, got %s", c.Timeout))
	}
	if !validDriver(c.Store.Driver) {
		problems = append(problems, fmt.Sprintf("store.driver %q must be one of %v", c.Store.Driver, store.ValidDrivers))
	}
	switch c.Token.Source {
	case TokenEnv:
		if c.Token.Env == "" {
			problems = append(problems, "token.env is required for source env")
		}
	case TokenFile:
		if c.Token.File == "" {
			problems = append(problems, "token.file is required for source file")
		}
	case TokenStatic:
	default:
		problems = append(problems, fmt.Sprintf("token.source %q must be one of env, file, static", c.Token.Source))
	}
	if _, err := c.LogLevel(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.User.ToolsMask < 0 {
		problems = append(problems, "user.tools must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func validDriver(d string) bool {
	for _, v := range store.ValidDrivers {
		if string(v) == d {
			return true
		}
	}
	return false
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", c.Log.Level, err)
	}
	return l, nil
}

// Tokens returns the configured token provider.
func (c *Config) Tokens() remote.TokenProvider {
	switch c.Token.Source {
	case TokenFile:
		return remote.FileToken(c.Token.File)
	case TokenStatic:
		return remote.StaticToken(c.Token.Value)
	default:
		return remote.EnvToken(c.Token.Env)
	}
}

// LoadRegistry returns the capability registry, honoring an override file.
func (c *Config) LoadRegistry() (*capability.Registry, error) {
	if c.Registry == "" {
		return capability.Default(), nil
	}
	return capability.Load(c.Registry)
}
