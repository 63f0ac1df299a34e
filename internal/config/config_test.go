// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

package config_test

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embermush/embermush/internal/config"
	"github.com/embermush/embermush/pkg/errutil"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "embermush.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, ":4201", cfg.Server.ListenAddr)
	assert.Equal(t, "EmberMUSH", cfg.Auth.Issuer)
	assert.Equal(t, 90*time.Second, cfg.Auth.LoginTimeout.Std())
	assert.Equal(t, "Two-Factor Setup", cfg.Messages.ScanPrompt.Title)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  listen-addr: ":7777"
  log-format: text
auth:
  login-timeout: 45s
  max-failed-attempts: 5
  exempt-patterns:
    - "Admin*"
messages:
  errors:
    wrong-code: "Nope. %attempts-left% tries left."
`)

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, ":7777", cfg.Server.ListenAddr)
	assert.Equal(t, "text", cfg.Server.LogFormat)
	assert.Equal(t, 45*time.Second, cfg.Auth.LoginTimeout.Std())
	assert.Equal(t, 5, cfg.Auth.MaxFailedAttempts)
	assert.Equal(t, []string{"Admin*"}, cfg.Auth.ExemptPatterns)
	assert.Equal(t, "Nope. %attempts-left% tries left.", cfg.Messages.Errors.WrongCode)

	// Untouched sections keep their defaults.
	assert.Equal(t, 3*time.Minute, cfg.Auth.RegistrationTimeout.Std())
	assert.Equal(t, "Two-Factor Login", cfg.Messages.Login.Title)
}

func TestLoad_FlagsWinOverFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen-addr: ":7777"
`)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("server.listen-addr", ":4201", "")
	require.NoError(t, flags.Set("server.listen-addr", ":9999"))

	cfg, err := config.Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.ListenAddr)
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	path := writeConfig(t, `
server:
  listen-adr: ":7777"
`)

	_, err := config.Load(path, nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_SCHEMA_INVALID")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_READ_FAILED")
}

func TestValidate_SchemaVersion(t *testing.T) {
	t.Run("unparseable", func(t *testing.T) {
		cfg := config.Default()
		cfg.SchemaVersion = "latest"
		err := cfg.Validate()
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CONFIG_BAD_SCHEMA_VERSION")
	})

	t.Run("unsupported major", func(t *testing.T) {
		cfg := config.Default()
		cfg.SchemaVersion = "2.0.0"
		err := cfg.Validate()
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CONFIG_SCHEMA_VERSION_UNSUPPORTED")
	})

	t.Run("patch bump accepted", func(t *testing.T) {
		cfg := config.Default()
		cfg.SchemaVersion = "1.2.3"
		require.NoError(t, cfg.Validate())
	})
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*config.Config)
		wantCode string
	}{
		{
			name:     "empty listen addr",
			mutate:   func(c *config.Config) { c.Server.ListenAddr = "" },
			wantCode: "CONFIG_INVALID",
		},
		{
			name:     "bad log format",
			mutate:   func(c *config.Config) { c.Server.LogFormat = "xml" },
			wantCode: "CONFIG_INVALID",
		},
		{
			name:     "bad log level",
			mutate:   func(c *config.Config) { c.Server.LogLevel = "verbose" },
			wantCode: "CONFIG_INVALID",
		},
		{
			name:     "empty database url",
			mutate:   func(c *config.Config) { c.Database.URL = "" },
			wantCode: "CONFIG_INVALID",
		},
		{
			name:     "seal key not hex",
			mutate:   func(c *config.Config) { c.Database.SealKey = "zz" },
			wantCode: "CONFIG_BAD_SEAL_KEY",
		},
		{
			name:     "seal key wrong length",
			mutate:   func(c *config.Config) { c.Database.SealKey = "deadbeef" },
			wantCode: "CONFIG_BAD_SEAL_KEY",
		},
		{
			name:     "empty issuer",
			mutate:   func(c *config.Config) { c.Auth.Issuer = "" },
			wantCode: "CONFIG_INVALID",
		},
		{
			name:     "negative skew",
			mutate:   func(c *config.Config) { c.Auth.SkewSteps = -1 },
			wantCode: "CONFIG_INVALID",
		},
		{
			name:     "zero login timeout",
			mutate:   func(c *config.Config) { c.Auth.LoginTimeout = 0 },
			wantCode: "CONFIG_INVALID",
		},
		{
			name:     "bad exempt pattern",
			mutate:   func(c *config.Config) { c.Auth.ExemptPatterns = []string{"[unclosed"} },
			wantCode: "CONFIG_BAD_EXEMPT_PATTERN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestSealKey_Decodes(t *testing.T) {
	cfg := config.Default()
	cfg.Database.SealKey = hex.EncodeToString(make([]byte, 32))

	key, err := cfg.SealKey()
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestAuthGate_Mapping(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.Issuer = "TestWorld"
	cfg.Auth.ExemptPatterns = []string{"Staff*"}

	gate := cfg.AuthGate()
	assert.Equal(t, "TestWorld", gate.Issuer)
	assert.Equal(t, 1, gate.SkewSteps)
	assert.Equal(t, 24*time.Hour, gate.BypassWindow)
	assert.Equal(t, 3*time.Minute, gate.RegistrationTimeout)
	assert.Equal(t, 3, gate.Ban.MaxFailedAttempts)
	assert.Equal(t, 5*time.Minute, gate.Ban.BanDuration)
	assert.Equal(t, []string{"Staff*"}, gate.ExemptPatterns)
}

func TestSpawnPosition(t *testing.T) {
	cfg := config.Default()
	cfg.World.Spawn = config.SpawnConfig{X: 10, Y: 64, Z: -3}

	pos := cfg.SpawnPosition()
	assert.Equal(t, 10.0, pos.X)
	assert.Equal(t, 64.0, pos.Y)
	assert.Equal(t, -3.0, pos.Z)
}

func TestDuration_TextRoundTrip(t *testing.T) {
	var d config.Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Std())

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))

	require.Error(t, d.UnmarshalText([]byte("soon")))
}
