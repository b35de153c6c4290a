package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("no API key configured")

// Provider identifies a model vendor whose key relay may need.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
)

// EnvVar returns the environment variable the provider's CLI or SDK reads.
func (p Provider) EnvVar() string {
	switch p {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	}
	return ""
}

func (p Provider) configured(cfg *Config) string {
	if cfg == nil {
		return ""
	}
	var key string
	switch p {
	case ProviderAnthropic:
		key = cfg.Claude.APIKey
	case ProviderOpenAI:
		key = cfg.Codex.APIKey
	case ProviderGemini:
		key = cfg.Gemini.APIKey
	}
	key = os.ExpandEnv(key)
	if strings.HasPrefix(key, "${") {
		return ""
	}
	return key
}

// GetAPIKey returns the provider's key.
// It checks in order: environment variable, config file.
func GetAPIKey(cfg *Config, p Provider) (string, error) {
	if key := os.Getenv(p.EnvVar()); key != "" {
		return key, nil
	}
	if key := p.configured(cfg); key != "" {
		return key, nil
	}
	return "", ErrNoAPIKey
}

// ValidateAPIKey performs basic validation on an API key.
// It checks format but does not verify the key with the provider.
func ValidateAPIKey(p Provider, key string) error {
	if key == "" {
		return ErrNoAPIKey
	}

	switch p {
	case ProviderAnthropic:
		if !strings.HasPrefix(key, "sk-ant-") {
			return errors.New("invalid API key format: expected 'sk-ant-' prefix")
		}
	case ProviderOpenAI:
		if !strings.HasPrefix(key, "sk-") {
			return errors.New("invalid API key format: expected 'sk-' prefix")
		}
	}

	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}
	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// GetAPIKeySource returns where the provider's key was sourced from.
func GetAPIKeySource(cfg *Config, p Provider) KeySource {
	if os.Getenv(p.EnvVar()) != "" {
		return KeySourceEnv
	}
	if p.configured(cfg) != "" {
		return KeySourceConfig
	}
	return KeySourceNone
}
