// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURE
// =============================================================================

// API type values for Config.APIType.
const (
	// APITypeHTTP selects the unary REST transport.
	APITypeHTTP = "http"
	// APITypeStreaming selects the server-sent-events transport.
	APITypeStreaming = "streaming"
)

// Config represents the complete shellmind configuration.
type Config struct {
	// APIKey is the Gemini API key.
	APIKey string `toml:"api_key"`
	// ModelName is the provider model identifier.
	ModelName string `toml:"model_name"`
	// Temperature controls generation randomness. Range: 0.0-1.0.
	Temperature float64 `toml:"temperature"`
	// ContextWindowSize is the number of retained conversation turns.
	ContextWindowSize int `toml:"context_window_size"`
	// APIType selects the transport: "http" or "streaming".
	APIType string `toml:"api_type"`
	// StreamingEndpoint overrides the streaming base URL (empty = default).
	StreamingEndpoint string `toml:"streaming_endpoint"`
	// SystemPrompt is prepended to every request when set.
	SystemPrompt string `toml:"system_prompt"`
	// RequestTimeoutMs is the per-attempt timeout in milliseconds.
	RequestTimeoutMs int `toml:"request_timeout_ms"`
	// MaxRetries bounds total attempts per request, first attempt included.
	MaxRetries int `toml:"max_retries"`
	// RequestsPerMinute throttles outbound requests. Zero keeps the default.
	RequestsPerMinute int `toml:"requests_per_minute"`
	// UsageLogEnabled records per-request accounting rows in SQLite.
	UsageLogEnabled bool `toml:"usage_log_enabled"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		APIKey:            "",
		ModelName:         "gemini-1.5-flash",
		Temperature:       0.2,
		ContextWindowSize: 10,
		APIType:           APITypeHTTP,
		StreamingEndpoint: "",
		SystemPrompt:      "",
		RequestTimeoutMs:  60000,
		MaxRetries:        3,
		RequestsPerMinute: 30,
		UsageLogEnabled:   true,
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the shellmind configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".shellmind"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions checks and fixes permissions on the config file.
// SECURITY: Config files should be 0600 (owner read/write only) to protect
// the API key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}

	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default config file, falling back to
// defaults when no file exists. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	if _, statErr := os.Stat(path); statErr == nil {
		return LoadFromPath(path)
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific TOML file with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	// SECURITY: Check and fix file permissions if needed
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	cfg := &Config{}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	fillDefaults(cfg, md)
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// fillDefaults fills values absent from the file with defaults. The TOML
// metadata distinguishes absent keys from explicit zeros: temperature = 0.0
// and context_window_size = 0 are valid configured choices and survive
// loading untouched.
func fillDefaults(cfg *Config, md toml.MetaData) {
	defaults := Default()

	if cfg.ModelName == "" {
		cfg.ModelName = defaults.ModelName
	}
	if cfg.APIType == "" {
		cfg.APIType = defaults.APIType
	}
	if !md.IsDefined("temperature") {
		cfg.Temperature = defaults.Temperature
	}
	if !md.IsDefined("context_window_size") {
		cfg.ContextWindowSize = defaults.ContextWindowSize
	}
	if !md.IsDefined("request_timeout_ms") {
		cfg.RequestTimeoutMs = defaults.RequestTimeoutMs
	}
	if !md.IsDefined("max_retries") {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if !md.IsDefined("requests_per_minute") {
		cfg.RequestsPerMinute = defaults.RequestsPerMinute
	}
	if !md.IsDefined("usage_log_enabled") {
		cfg.UsageLogEnabled = defaults.UsageLogEnabled
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - SHELLMIND_API_KEY / GEMINI_API_KEY: overrides api_key
//   - SHELLMIND_MODEL: overrides model_name
//   - SHELLMIND_API_TYPE: overrides api_type ("http" or "streaming")
//   - SHELLMIND_STREAMING_ENDPOINT: overrides streaming_endpoint
//   - SHELLMIND_SYSTEM_PROMPT: overrides system_prompt
//   - SHELLMIND_TEMPERATURE: overrides temperature
//   - SHELLMIND_CONTEXT_WINDOW: overrides context_window_size
func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv("SHELLMIND_API_KEY"); key != "" {
		c.APIKey = key
	} else if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.APIKey = key
	}

	if model := os.Getenv("SHELLMIND_MODEL"); model != "" {
		c.ModelName = model
	}

	if apiType := os.Getenv("SHELLMIND_API_TYPE"); apiType != "" {
		c.APIType = strings.ToLower(apiType)
	}

	if endpoint := os.Getenv("SHELLMIND_STREAMING_ENDPOINT"); endpoint != "" {
		c.StreamingEndpoint = endpoint
	}

	if prompt := os.Getenv("SHELLMIND_SYSTEM_PROMPT"); prompt != "" {
		c.SystemPrompt = prompt
	}

	if temp := os.Getenv("SHELLMIND_TEMPERATURE"); temp != "" {
		if v, err := strconv.ParseFloat(temp, 64); err == nil {
			c.Temperature = v
		}
	}

	if window := os.Getenv("SHELLMIND_CONTEXT_WINDOW"); window != "" {
		if v, err := strconv.Atoi(window); err == nil {
			c.ContextWindowSize = v
		}
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Temperature < 0 || c.Temperature > 1 {
		errs = append(errs, ValidationError{
			Field:   "temperature",
			Message: fmt.Sprintf("must be between 0.0 and 1.0, got %g", c.Temperature),
		})
	}

	if c.ContextWindowSize < 0 {
		errs = append(errs, ValidationError{
			Field:   "context_window_size",
			Message: fmt.Sprintf("cannot be negative, got %d", c.ContextWindowSize),
		})
	}

	if c.APIType != APITypeHTTP && c.APIType != APITypeStreaming {
		errs = append(errs, ValidationError{
			Field:   "api_type",
			Message: fmt.Sprintf("invalid type '%s', must be one of: http, streaming", c.APIType),
		})
	}

	if c.StreamingEndpoint != "" {
		u, err := url.Parse(c.StreamingEndpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "streaming_endpoint",
				Message: fmt.Sprintf("invalid URL '%s'", c.StreamingEndpoint),
			})
		}
	}

	if c.RequestTimeoutMs <= 0 {
		errs = append(errs, ValidationError{
			Field:   "request_timeout_ms",
			Message: fmt.Sprintf("must be positive, got %d", c.RequestTimeoutMs),
		})
	}

	if c.MaxRetries <= 0 {
		errs = append(errs, ValidationError{
			Field:   "max_retries",
			Message: fmt.Sprintf("must be positive, got %d", c.MaxRetries),
		})
	}

	if c.RequestsPerMinute < 0 {
		errs = append(errs, ValidationError{
			Field:   "requests_per_minute",
			Message: fmt.Sprintf("cannot be negative, got %d", c.RequestsPerMinute),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveToPath(cfg, path)
}

// SaveToPath saves the configuration to a TOML file.
// SECURITY: Creates config files with 0600 permissions (owner read/write
// only).
func SaveToPath(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	// SECURITY: Ensure permissions are correct even if file already existed
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# shellmind configuration file")
	fmt.Fprintln(file, "# Generated by shellmind - edit with care")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// =============================================================================
// GET/SET HELPERS
// =============================================================================

// Get retrieves a configuration value by its file key (e.g. "model_name").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.fieldByKey(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value by its file key, converting string input
// to the field's type.
func (c *Config) Set(key, value string) error {
	field, err := c.fieldByKey(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int:
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %v", key, err)
		}
		field.SetInt(v)
	case reflect.Float64:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float value for %s: %v", key, err)
		}
		field.SetFloat(v)
	case reflect.Bool:
		lower := strings.ToLower(value)
		field.SetBool(value == "1" || lower == "true" || lower == "yes")
	default:
		return fmt.Errorf("unsupported field type for %s", key)
	}
	return nil
}

// fieldByKey resolves a file key against the struct's toml tags.
func (c *Config) fieldByKey(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("toml") == key {
			return v.Field(i), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("unknown config key: %s", key)
}

// GetAllKeys returns all configuration keys in file order.
func GetAllKeys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("toml"); tag != "" {
			keys = append(keys, tag)
		}
	}
	return keys
}
