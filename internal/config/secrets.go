package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
)

// Secrets are the credentials backends read from the environment.
type Secrets struct {
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`
	GeminiAPIKey    string `envconfig:"GEMINI_API_KEY"`
	UseBedrock      string `envconfig:"CLAUDE_CODE_USE_BEDROCK"`
	AWSRegion       string `envconfig:"AWS_REGION"`
}

// LoadSecrets reads credentials from the environment, falling back to the
// keys stored in cfg.
func LoadSecrets(cfg *Config) (*Secrets, error) {
	var s Secrets
	if err := envconfig.Process("", &s); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	if s.AnthropicAPIKey == "" {
		s.AnthropicAPIKey = ProviderAnthropic.configured(cfg)
	}
	if s.OpenAIAPIKey == "" {
		s.OpenAIAPIKey = ProviderOpenAI.configured(cfg)
	}
	if s.GeminiAPIKey == "" {
		s.GeminiAPIKey = ProviderGemini.configured(cfg)
	}
	return &s, nil
}

// ApplySecrets exports keys from the config file into the environment so
// SDKs and CLIs pick them up. Variables already set are left alone. It
// returns the names it set.
func ApplySecrets(cfg *Config) []string {
	var applied []string
	for _, p := range []Provider{ProviderAnthropic, ProviderOpenAI, ProviderGemini} {
		if os.Getenv(p.EnvVar()) != "" {
			continue
		}
		if key := p.configured(cfg); key != "" {
			os.Setenv(p.EnvVar(), key)
			applied = append(applied, p.EnvVar())
		}
	}
	return applied
}
