// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/lmchat/internal/model"
	"github.com/jeranaias/lmchat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete lmchat configuration.
type Config struct {
	// Backend selects the wire protocol: "ollama" or "openai".
	Backend string `toml:"backend" json:"backend"`

	// DefaultModel is the registry id selected at startup.
	DefaultModel string `toml:"default_model" json:"default_model"`

	Ollama    OllamaConfig    `toml:"ollama" json:"ollama"`
	OpenAI    OpenAIConfig    `toml:"openai" json:"openai"`
	UI        UIConfig        `toml:"ui" json:"ui"`
	Telemetry TelemetryConfig `toml:"telemetry" json:"telemetry"`
	Log       LogConfig       `toml:"log" json:"log"`

	// Models are extra registry entries. An entry whose id matches a
	// built-in model replaces it.
	Models []model.Descriptor `toml:"models,omitempty" json:"models,omitempty"`
}

// OllamaConfig contains Ollama server settings.
type OllamaConfig struct {
	URL string `toml:"url" json:"url"`
}

// OpenAIConfig contains settings for an OpenAI-compatible local server.
type OpenAIConfig struct {
	BaseURL string `toml:"base_url" json:"base_url"`
	APIKey  string `toml:"api_key" json:"api_key"`
}

// UIConfig contains display settings. These are the only settings applied
// live when the config file changes.
type UIConfig struct {
	// Markdown renders assistant replies as Markdown.
	Markdown bool `toml:"markdown" json:"markdown"`
	// WordWrap is the wrap width for rendered replies (0 = terminal width).
	WordWrap int `toml:"word_wrap" json:"word_wrap"`
	// Theme is "auto", "dark", "light" or "notty".
	Theme string `toml:"theme" json:"theme"`
	// MaxFPS caps transcript redraws while a reply streams.
	MaxFPS int `toml:"max_fps" json:"max_fps"`
}

// TelemetryConfig controls the local turn-statistics database.
type TelemetryConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
	// Path of the SQLite database (empty = ~/.lmchat/telemetry.db).
	Path string `toml:"path" json:"path"`
}

// LogConfig controls the diagnostic log.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `toml:"level" json:"level"`
	// File is the log path (empty = ~/.lmchat/lmchat.log).
	File string `toml:"file" json:"file"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Backend:      "ollama",
		DefaultModel: model.DefaultModelID,
		Ollama: OllamaConfig{
			URL: "http://127.0.0.1:11434",
		},
		OpenAI: OpenAIConfig{
			BaseURL: "http://127.0.0.1:1234/v1",
		},
		UI: UIConfig{
			Markdown: true,
			WordWrap: 0,
			Theme:    "auto",
			MaxFPS:   30,
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the lmchat configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv("LMCHAT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".lmchat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// TelemetryPath returns the telemetry database path.
func (c *Config) TelemetryPath() (string, error) {
	if c.Telemetry.Path != "" {
		return c.Telemetry.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "telemetry.db"), nil
}

// LogPath returns the log file path.
func (c *Config) LogPath() (string, error) {
	if c.Log.File != "" {
		return c.Log.File, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "lmchat.log"), nil
}

// ensureSecurePermissions tightens a config file to 0600 since it may hold
// an API key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// ActivePath returns the default config file Load reads: config.toml if it
// exists, else config.json if that exists, else the config.toml path.
func ActivePath() (string, error) {
	tomlPath, err := ConfigPathTOML()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, nil
	}
	jsonPath, err := ConfigPathJSON()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(jsonPath); err == nil {
		return jsonPath, nil
	}
	return tomlPath, nil
}

// Load reads the default config file (TOML first, then JSON), applies
// .env and environment overrides, fills defaults and validates. A missing
// file is not an error.
func Load() (*Config, error) {
	path, err := ActivePath()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return finish(Default())
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file. Files ending in
// .json are read as JSON, everything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finish(cfg)
}

// finish applies the override, default and validation stages.
func finish(cfg *Config) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep
// their current values.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes cfg to path with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# lmchat configuration file")
	fmt.Fprintln(&buf, "# Changes to [ui] apply to a running chat; everything else on restart.")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// 0600: the file may hold an API key
	if err := util.WriteFileAtomic(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
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
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var (
	validBackends  = map[string]bool{"ollama": true, "openai": true}
	validThemes    = map[string]bool{"auto": true, "dark": true, "light": true, "notty": true}
	validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
)

// Validate checks every field and returns all problems at once as
// ValidateErrors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if !validBackends[c.Backend] {
		errs = append(errs, ValidationError{
			Field:   "backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: ollama, openai", c.Backend),
		})
	}

	if strings.TrimSpace(c.DefaultModel) == "" {
		errs = append(errs, ValidationError{Field: "default_model", Message: "must not be empty"})
	}

	if err := validateURL(c.Ollama.URL); err != "" {
		errs = append(errs, ValidationError{Field: "ollama.url", Message: err})
	}
	if err := validateURL(c.OpenAI.BaseURL); err != "" {
		errs = append(errs, ValidationError{Field: "openai.base_url", Message: err})
	}

	if c.UI.WordWrap != 0 && (c.UI.WordWrap < 20 || c.UI.WordWrap > 400) {
		errs = append(errs, ValidationError{
			Field:   "ui.word_wrap",
			Message: fmt.Sprintf("must be 0 or between 20 and 400, got %d", c.UI.WordWrap),
		})
	}
	if !validThemes[c.UI.Theme] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: auto, dark, light, notty", c.UI.Theme),
		})
	}
	if c.UI.MaxFPS < 1 || c.UI.MaxFPS > 120 {
		errs = append(errs, ValidationError{
			Field:   "ui.max_fps",
			Message: fmt.Sprintf("must be between 1 and 120, got %d", c.UI.MaxFPS),
		})
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	for i, m := range c.Models {
		field := fmt.Sprintf("models[%d]", i)
		if strings.TrimSpace(m.ID) == "" {
			errs = append(errs, ValidationError{Field: field + ".id", Message: "must not be empty"})
		}
		if m.ContextLength < 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".context_length",
				Message: fmt.Sprintf("must not be negative, got %d", m.ContextLength),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validateURL returns a problem description, or "" if raw is a usable
// http(s) URL.
func validateURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Sprintf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Sprintf("URL scheme must be http or https, got '%s'", u.Scheme)
	}
	if u.Host == "" {
		return "URL must include a host"
	}
	return ""
}

// SetDefaults fills zero-value fields that have no meaningful zero.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Backend == "" {
		c.Backend = defaults.Backend
	}
	c.Backend = strings.ToLower(c.Backend)
	if c.DefaultModel == "" {
		c.DefaultModel = defaults.DefaultModel
	}
	if c.Ollama.URL == "" {
		c.Ollama.URL = defaults.Ollama.URL
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = defaults.OpenAI.BaseURL
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
	if c.UI.MaxFPS == 0 {
		c.UI.MaxFPS = defaults.UI.MaxFPS
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - LMCHAT_BACKEND: overrides backend
//   - LMCHAT_MODEL: overrides default_model
//   - LMCHAT_OLLAMA_URL: overrides ollama.url
//   - OLLAMA_HOST: overrides ollama.url when LMCHAT_OLLAMA_URL is unset
//   - LMCHAT_OPENAI_BASE_URL: overrides openai.base_url
//   - LMCHAT_OPENAI_API_KEY: overrides openai.api_key
//   - LMCHAT_LOG_LEVEL: overrides log.level
//   - LMCHAT_TELEMETRY: "0"/"false" disables, "1"/"true" enables telemetry
//   - NO_COLOR: forces ui.theme to notty
func (c *Config) ApplyEnvOverrides() {
	if backend := os.Getenv("LMCHAT_BACKEND"); backend != "" {
		c.Backend = backend
	}

	if m := os.Getenv("LMCHAT_MODEL"); m != "" {
		c.DefaultModel = m
	}

	if u := os.Getenv("LMCHAT_OLLAMA_URL"); u != "" {
		c.Ollama.URL = u
	} else if host := os.Getenv("OLLAMA_HOST"); host != "" {
		c.Ollama.URL = normalizeOllamaHost(host)
	}

	if u := os.Getenv("LMCHAT_OPENAI_BASE_URL"); u != "" {
		c.OpenAI.BaseURL = u
	}
	if key := os.Getenv("LMCHAT_OPENAI_API_KEY"); key != "" {
		c.OpenAI.APIKey = key
	}

	if level := os.Getenv("LMCHAT_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}

	if t := os.Getenv("LMCHAT_TELEMETRY"); t != "" {
		c.Telemetry.Enabled = parseBool(t)
	}

	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		c.UI.Theme = "notty"
	}
}

// normalizeOllamaHost turns OLLAMA_HOST forms like "0.0.0.0:11434" or
// "myhost" into a URL.
func normalizeOllamaHost(host string) string {
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	u, err := url.Parse(host)
	if err != nil {
		return host
	}
	if u.Port() == "" {
		u.Host += ":11434"
	}
	if u.Hostname() == "0.0.0.0" {
		u.Host = "127.0.0.1:" + u.Port()
	}
	return strings.TrimRight(u.String(), "/")
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "ui.theme").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookupField(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a scalar configuration value using dot notation. String values
// are converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookupField(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

// lookupField walks a dotted key to a struct field.
func (c *Config) lookupField(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct || field.Kind() == reflect.Slice {
				return reflect.Value{}, fmt.Errorf("field '%s' is not a scalar", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go
// field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(part[:1]))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value with conversion from string input.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				return fmt.Errorf("invalid boolean value: %v", err)
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all scalar configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"backend",
		"default_model",
		"ollama.url",
		"openai.base_url",
		"openai.api_key",
		"ui.markdown",
		"ui.word_wrap",
		"ui.theme",
		"ui.max_fps",
		"telemetry.enabled",
		"telemetry.path",
		"log.level",
		"log.file",
	}
}

// =============================================================================
// COPY AND DISPLAY
// =============================================================================

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Models != nil {
		clone.Models = make([]model.Descriptor, len(c.Models))
		copy(clone.Models, c.Models)
	}
	return &clone
}

// String returns the config as JSON with the API key redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.OpenAI.APIKey != "" {
		safe.OpenAI.APIKey = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
