// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

// Package config loads and validates server configuration.
//
// Layering is defaults < YAML file < command-line flags. The file is
// validated against a generated JSON Schema before it is decoded, so typos
// in key names fail loudly instead of silently keeping a default.
package config

import (
	"encoding/hex"
	"os"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/gobwas/glob"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/embermush/embermush/internal/dialog"
	"github.com/embermush/embermush/internal/store"
	"github.com/embermush/embermush/internal/twofa"
	"github.com/embermush/embermush/internal/world"
)

// SchemaVersionConstraint is the range of config schema versions this
// build accepts.
const SchemaVersionConstraint = "~1"

// Duration is a time.Duration that reads and writes as a Go duration
// string ("90s", "5m") in YAML and in the JSON Schema.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ServerConfig holds the network-facing settings.
type ServerConfig struct {
	ListenAddr    string `koanf:"listen-addr"`
	ControlSocket string `koanf:"control-socket"`
	MetricsAddr   string `koanf:"metrics-addr"`
	LogLevel      string `koanf:"log-level"`
	LogFormat     string `koanf:"log-format"`
}

// DatabaseConfig holds the credential store settings. SealKey is the
// hex-encoded 32-byte key secrets are encrypted with at rest.
type DatabaseConfig struct {
	URL         string `koanf:"url"`
	SealKey     string `koanf:"seal-key"`
	AutoMigrate bool   `koanf:"auto-migrate"`
}

// AuthConfig holds the authentication gate settings.
type AuthConfig struct {
	Issuer              string   `koanf:"issuer"`
	SkewSteps           int      `koanf:"skew-steps"`
	BypassWindow        Duration `koanf:"bypass-window"`
	RegistrationTimeout Duration `koanf:"registration-timeout"`
	LoginTimeout        Duration `koanf:"login-timeout"`
	NudgeDelay          Duration `koanf:"nudge-delay"`
	OrientDelay         Duration `koanf:"orient-delay"`
	MaxFailedAttempts   int      `koanf:"max-failed-attempts"`
	BanDuration         Duration `koanf:"ban-duration"`
	ExemptPatterns      []string `koanf:"exempt-patterns"`
}

// SpawnConfig is the world spawn point.
type SpawnConfig struct {
	X float64 `koanf:"x"`
	Y float64 `koanf:"y"`
	Z float64 `koanf:"z"`
}

// WorldConfig holds the environment settings.
type WorldConfig struct {
	Spawn SpawnConfig `koanf:"spawn"`
}

// Config is the full server configuration.
type Config struct {
	SchemaVersion string         `koanf:"schema-version"`
	Server        ServerConfig   `koanf:"server"`
	Database      DatabaseConfig `koanf:"database"`
	Auth          AuthConfig     `koanf:"auth"`
	World         WorldConfig    `koanf:"world"`
	Messages      dialog.Catalog `koanf:"messages"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		SchemaVersion: "1.0.0",
		Server: ServerConfig{
			ListenAddr:  ":4201",
			MetricsAddr: ":9091",
			LogLevel:    "info",
			LogFormat:   "json",
		},
		Database: DatabaseConfig{
			URL:         "postgres://localhost:5432/embermush",
			AutoMigrate: false,
		},
		Auth: AuthConfig{
			Issuer:              "EmberMUSH",
			SkewSteps:           1,
			BypassWindow:        Duration(24 * time.Hour),
			RegistrationTimeout: Duration(3 * time.Minute),
			LoginTimeout:        Duration(90 * time.Second),
			NudgeDelay:          Duration(10 * time.Second),
			OrientDelay:         Duration(150 * time.Millisecond),
			MaxFailedAttempts:   3,
			BanDuration:         Duration(5 * time.Minute),
		},
		Messages: dialog.DefaultCatalog(),
	}
}

// Load builds a Config from the file at path layered under flags. An
// empty path skips the file layer. Flags may be nil.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()

	k := koanf.New(".")
	if path != "" {
		raw, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
		if err != nil {
			return Config{}, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
		if err := ValidateSchema(raw); err != nil {
			return Config{}, oops.Code("CONFIG_SCHEMA_INVALID").With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_PARSE_FAILED").With("path", path).Wrap(err)
		}
	}
	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants the schema cannot express.
func (c Config) Validate() error {
	version, err := semver.NewVersion(c.SchemaVersion)
	if err != nil {
		return oops.Code("CONFIG_BAD_SCHEMA_VERSION").
			With("schema_version", c.SchemaVersion).
			Wrap(err)
	}
	constraint, err := semver.NewConstraint(SchemaVersionConstraint)
	if err != nil {
		return oops.Wrap(err)
	}
	if !constraint.Check(version) {
		return oops.Code("CONFIG_SCHEMA_VERSION_UNSUPPORTED").
			With("schema_version", c.SchemaVersion).
			With("supported", SchemaVersionConstraint).
			Errorf("config schema version %s outside supported range %s",
				c.SchemaVersion, SchemaVersionConstraint)
	}

	if c.Server.ListenAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("server.listen-addr must not be empty")
	}
	switch c.Server.LogFormat {
	case "json", "text":
	default:
		return oops.Code("CONFIG_INVALID").
			With("log_format", c.Server.LogFormat).
			Errorf("server.log-format must be json or text")
	}
	switch c.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return oops.Code("CONFIG_INVALID").
			With("log_level", c.Server.LogLevel).
			Errorf("server.log-level must be debug, info, warn or error")
	}

	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url must not be empty")
	}
	if c.Database.SealKey != "" {
		if _, err := c.SealKey(); err != nil {
			return err
		}
	}

	if c.Auth.Issuer == "" {
		return oops.Code("CONFIG_INVALID").Errorf("auth.issuer must not be empty")
	}
	if c.Auth.SkewSteps < 0 {
		return oops.Code("CONFIG_INVALID").Errorf("auth.skew-steps must not be negative")
	}
	if c.Auth.MaxFailedAttempts < 0 {
		return oops.Code("CONFIG_INVALID").Errorf("auth.max-failed-attempts must not be negative")
	}
	for name, d := range map[string]Duration{
		"auth.bypass-window":        c.Auth.BypassWindow,
		"auth.registration-timeout": c.Auth.RegistrationTimeout,
		"auth.login-timeout":        c.Auth.LoginTimeout,
		"auth.nudge-delay":          c.Auth.NudgeDelay,
		"auth.orient-delay":         c.Auth.OrientDelay,
		"auth.ban-duration":         c.Auth.BanDuration,
	} {
		if d <= 0 {
			return oops.Code("CONFIG_INVALID").With("key", name).
				Errorf("%s must be a positive duration", name)
		}
	}
	for _, pattern := range c.Auth.ExemptPatterns {
		if _, err := glob.Compile(pattern); err != nil {
			return oops.Code("CONFIG_BAD_EXEMPT_PATTERN").
				With("pattern", pattern).
				Wrap(err)
		}
	}

	return nil
}

// SealKey decodes the hex seal key and checks its length.
func (c Config) SealKey() ([]byte, error) {
	key, err := hex.DecodeString(c.Database.SealKey)
	if err != nil {
		return nil, oops.Code("CONFIG_BAD_SEAL_KEY").
			Errorf("database.seal-key is not valid hex")
	}
	if len(key) != store.SealKeySize {
		return nil, oops.Code("CONFIG_BAD_SEAL_KEY").
			With("got_bytes", len(key)).
			With("want_bytes", store.SealKeySize).
			Errorf("database.seal-key must decode to %d bytes", store.SealKeySize)
	}
	return key, nil
}

// AuthGate maps the auth section onto the gate controller's settings.
func (c Config) AuthGate() twofa.Config {
	return twofa.Config{
		Issuer:              c.Auth.Issuer,
		SkewSteps:           c.Auth.SkewSteps,
		BypassWindow:        c.Auth.BypassWindow.Std(),
		RegistrationTimeout: c.Auth.RegistrationTimeout.Std(),
		LoginTimeout:        c.Auth.LoginTimeout.Std(),
		NudgeDelay:          c.Auth.NudgeDelay.Std(),
		OrientDelay:         c.Auth.OrientDelay.Std(),
		Ban: twofa.BanConfig{
			MaxFailedAttempts: c.Auth.MaxFailedAttempts,
			BanDuration:       c.Auth.BanDuration.Std(),
		},
		ExemptPatterns: c.Auth.ExemptPatterns,
	}
}

// SpawnPosition returns the configured world spawn point.
func (c Config) SpawnPosition() world.Position {
	return world.Position{X: c.World.Spawn.X, Y: c.World.Spawn.Y, Z: c.World.Spawn.Z}
}
