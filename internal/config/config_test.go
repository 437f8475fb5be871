// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnvOverrides makes tests hermetic against the caller's environment.
func clearEnvOverrides(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SHELLMIND_API_KEY", "GEMINI_API_KEY", "SHELLMIND_MODEL",
		"SHELLMIND_API_TYPE", "SHELLMIND_STREAMING_ENDPOINT",
		"SHELLMIND_SYSTEM_PROMPT", "SHELLMIND_TEMPERATURE",
		"SHELLMIND_CONTEXT_WINDOW",
	} {
		t.Setenv(key, "")
	}
}

// TestDefaultIsValid verifies the built-in defaults pass validation.
func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

// TestSaveLoadRoundTrip verifies a saved config loads back identically.
func TestSaveLoadRoundTrip(t *testing.T) {
	clearEnvOverrides(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.APIKey = "test-key"
	cfg.ModelName = "gemini-1.5-pro"
	cfg.Temperature = 0.7
	cfg.ContextWindowSize = 4
	cfg.APIType = APITypeStreaming
	cfg.StreamingEndpoint = "https://example.com"
	cfg.SystemPrompt = "translate to shell"

	require.NoError(t, SaveToPath(cfg, path))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

// TestSaveCreatesSecureFile verifies 0600 permissions on the saved file.
func TestSaveCreatesSecureFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveToPath(Default(), path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

// TestLoadFixesInsecurePermissions verifies load tightens a world-readable
// config file.
func TestLoadFixesInsecurePermissions(t *testing.T) {
	clearEnvOverrides(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveToPath(Default(), path))
	require.NoError(t, os.Chmod(path, 0644))

	_, err := LoadFromPath(path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

// TestPartialFileBackfillsDefaults verifies missing knobs get defaults while
// an explicit zero window survives.
func TestPartialFileBackfillsDefaults(t *testing.T) {
	clearEnvOverrides(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "api_key = \"k\"\ncontext_window_size = 0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	defaults := Default()
	assert.Equal(t, "k", cfg.APIKey)
	assert.Equal(t, 0, cfg.ContextWindowSize)
	assert.Equal(t, defaults.ModelName, cfg.ModelName)
	assert.Equal(t, defaults.APIType, cfg.APIType)
	assert.Equal(t, defaults.RequestTimeoutMs, cfg.RequestTimeoutMs)
	assert.Equal(t, defaults.MaxRetries, cfg.MaxRetries)
}

// TestExplicitZeroTemperatureSurvivesLoad verifies a configured
// temperature = 0.0 is kept: zero is inside the valid range and must not be
// mistaken for an absent key.
func TestExplicitZeroTemperatureSurvivesLoad(t *testing.T) {
	clearEnvOverrides(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "api_key = \"k\"\ntemperature = 0.0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Temperature)

	// Absent keys still get defaults.
	defaults := Default()
	assert.Equal(t, defaults.ContextWindowSize, cfg.ContextWindowSize)
	assert.Equal(t, defaults.UsageLogEnabled, cfg.UsageLogEnabled)
}

// TestEnvOverrides verifies environment variables win over file values.
func TestEnvOverrides(t *testing.T) {
	clearEnvOverrides(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveToPath(Default(), path))

	t.Setenv("SHELLMIND_API_KEY", "env-key")
	t.Setenv("SHELLMIND_MODEL", "gemini-1.5-pro")
	t.Setenv("SHELLMIND_API_TYPE", "STREAMING")
	t.Setenv("SHELLMIND_TEMPERATURE", "0.9")
	t.Setenv("SHELLMIND_CONTEXT_WINDOW", "6")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, "gemini-1.5-pro", cfg.ModelName)
	assert.Equal(t, APITypeStreaming, cfg.APIType)
	assert.Equal(t, 0.9, cfg.Temperature)
	assert.Equal(t, 6, cfg.ContextWindowSize)
}

// TestGeminiAPIKeyFallback verifies GEMINI_API_KEY works when the shellmind
// variable is unset, and loses to it when both are set.
func TestGeminiAPIKeyFallback(t *testing.T) {
	clearEnvOverrides(t)

	t.Setenv("GEMINI_API_KEY", "gemini-key")
	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "gemini-key", cfg.APIKey)

	t.Setenv("SHELLMIND_API_KEY", "shellmind-key")
	cfg = Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "shellmind-key", cfg.APIKey)
}

// TestValidate verifies each validation boundary.
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"temperature too high", func(c *Config) { c.Temperature = 1.5 }, "temperature"},
		{"temperature negative", func(c *Config) { c.Temperature = -0.1 }, "temperature"},
		{"negative window", func(c *Config) { c.ContextWindowSize = -1 }, "context_window_size"},
		{"bad api type", func(c *Config) { c.APIType = "grpc" }, "api_type"},
		{"bad endpoint", func(c *Config) { c.StreamingEndpoint = "not a url" }, "streaming_endpoint"},
		{"zero timeout", func(c *Config) { c.RequestTimeoutMs = 0 }, "request_timeout_ms"},
		{"zero retries", func(c *Config) { c.MaxRetries = 0 }, "max_retries"},
		{"negative rate", func(c *Config) { c.RequestsPerMinute = -1 }, "requests_per_minute"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.field)
		})
	}
}

// TestGetSet verifies key-based access used by the config CLI.
func TestGetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("model_name", "gemini-1.5-pro"))
	assert.Equal(t, "gemini-1.5-pro", cfg.ModelName)

	require.NoError(t, cfg.Set("temperature", "0.8"))
	assert.Equal(t, 0.8, cfg.Temperature)

	require.NoError(t, cfg.Set("context_window_size", "4"))
	assert.Equal(t, 4, cfg.ContextWindowSize)

	require.NoError(t, cfg.Set("usage_log_enabled", "false"))
	assert.False(t, cfg.UsageLogEnabled)

	got, err := cfg.Get("model_name")
	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-pro", got)

	assert.Error(t, cfg.Set("no_such_key", "x"))
	assert.Error(t, cfg.Set("temperature", "warm"))
	_, err = cfg.Get("no_such_key")
	assert.Error(t, err)
}

// TestGetAllKeys verifies every field is reachable by key.
func TestGetAllKeys(t *testing.T) {
	keys := GetAllKeys()
	assert.Contains(t, keys, "api_key")
	assert.Contains(t, keys, "model_name")
	assert.Contains(t, keys, "api_type")

	cfg := Default()
	for _, key := range keys {
		_, err := cfg.Get(key)
		assert.NoError(t, err, "key %s", key)
	}
}
