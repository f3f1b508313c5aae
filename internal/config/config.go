// Package config loads and persists probe settings. Values merge in layers:
// built-in defaults, then the settings file, then environment overrides.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultEndpoint       = "https://api.hicap.ai/v2/openai/chat/completions"
	DefaultModel          = "claude-sonnet-4.5"
	DefaultThinkingBudget = 2500
	DefaultMaxTokens      = 16000
	DefaultSystemPrompt   = "You are a helpful assistant."
	DefaultUserPrompt     = "tell me a short story"
	DefaultTimeoutSecs    = 120

	// MinThinkingBudget is the upstream floor; smaller budgets are raised.
	MinThinkingBudget = 1024

	// EnvAPIKey overrides the configured api_key when set.
	EnvAPIKey = "HICAP_API_KEY"

	// PlaceholderAPIKey is the stand-in written into fresh settings files.
	PlaceholderAPIKey = "key_goes_here"
)

// Config is the settings mapping the probe consumes.
type Config struct {
	Endpoint       string `json:"endpoint" yaml:"endpoint"`
	APIKey         string `json:"api_key" yaml:"api_key"`
	Model          string `json:"model" yaml:"model"`
	ThinkingBudget int    `json:"thinking_budget" yaml:"thinking_budget"`
	MaxTokens      int    `json:"max_tokens" yaml:"max_tokens"`
	SystemPrompt   string `json:"system_prompt" yaml:"system_prompt"`
	UserPrompt     string `json:"user_prompt" yaml:"user_prompt"`
	TimeoutSecs    int    `json:"timeout_secs,omitempty" yaml:"timeout_secs,omitempty"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Endpoint:       DefaultEndpoint,
		APIKey:         PlaceholderAPIKey,
		Model:          DefaultModel,
		ThinkingBudget: DefaultThinkingBudget,
		MaxTokens:      DefaultMaxTokens,
		SystemPrompt:   DefaultSystemPrompt,
		UserPrompt:     DefaultUserPrompt,
		TimeoutSecs:    DefaultTimeoutSecs,
	}
}

// DefaultPath is where Save writes and Load looks when no path is given.
func DefaultPath() string {
	return filepath.Join("config", "settings.json")
}

// Load reads the settings file at path, if it exists, over the defaults,
// then applies environment overrides. A missing file is not an error; a
// present but malformed file is.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.APIKey = v
	}
	return cfg, nil
}

// LoadFile is Load without the environment layer: defaults plus the file.
// Editing commands use it so an env-injected key never gets written back to
// disk.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}

	b, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return nil, err
	default:
		ext := strings.ToLower(filepath.Ext(path))
		switch ext {
		case ".json":
			if err := decodeJSONStrict(b, cfg); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		default:
			if err := decodeYAMLStrict(b, cfg); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the settings as indented JSON. The file may hold the API key,
// so it is not world-readable.
func Save(path string, cfg *Config) error {
	if path == "" {
		path = DefaultPath()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o600)
}

func decodeJSONStrict(b []byte, cfg *Config) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return fmt.Errorf("json: multiple top-level values are not allowed")
		}
		return err
	}
	return nil
}

func decodeYAMLStrict(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return fmt.Errorf("yaml: multiple documents are not allowed")
		}
		return err
	}
	return nil
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return fmt.Errorf("config: endpoint is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return fmt.Errorf("config: model is required")
	}
	if cfg.ThinkingBudget <= 0 {
		return fmt.Errorf("config: thinking_budget must be positive")
	}
	if cfg.MaxTokens <= 0 {
		return fmt.Errorf("config: max_tokens must be positive")
	}
	if cfg.TimeoutSecs <= 0 {
		cfg.TimeoutSecs = DefaultTimeoutSecs
	}
	return nil
}

// ValueError describes caller input that could not be applied. It is
// informational: the caller keeps the previous value and carries on, it
// never fails a turn.
type ValueError struct {
	Field  string
	Input  string
	Reason string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("config: %s %q: %s", e.Field, e.Input, e.Reason)
}

// ParseBudget interprets user input for the reasoning budget. Empty input
// keeps current silently; malformed input keeps current and reports why;
// valid input below the upstream floor is raised to MinThinkingBudget.
func ParseBudget(input string, current int) (int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return current, nil
	}
	n, err := strconv.Atoi(input)
	if err != nil {
		return current, &ValueError{Field: "thinking_budget", Input: input, Reason: "not a number"}
	}
	if n < MinThinkingBudget {
		return MinThinkingBudget, &ValueError{
			Field:  "thinking_budget",
			Input:  input,
			Reason: fmt.Sprintf("below the %d-token floor, raised", MinThinkingBudget),
		}
	}
	return n, nil
}

// ParseMaxTokens interprets user input for the response token cap with the
// same fallback policy as ParseBudget.
func ParseMaxTokens(input string, current int) (int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return current, nil
	}
	n, err := strconv.Atoi(input)
	if err != nil || n <= 0 {
		return current, &ValueError{Field: "max_tokens", Input: input, Reason: "not a positive number"}
	}
	return n, nil
}

// KeyConfigured reports whether an API key other than the placeholder is
// set.
func (c *Config) KeyConfigured() bool {
	return c.APIKey != "" && c.APIKey != PlaceholderAPIKey
}
