// Package config handles configuration loading and management for relay.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/relay/internal/agent"
	"github.com/ShayCichocki/relay/pkg/models"
)

// Config holds all configuration for relay.
type Config struct {
	Agents    AgentsConfig    `mapstructure:"agents"`
	Claude    ClaudeConfig    `mapstructure:"claude"`
	Codex     CodexConfig     `mapstructure:"codex"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Mock      MockConfig      `mapstructure:"mock"`
	Approval  ApprovalConfig  `mapstructure:"approval"`
	State     StateConfig     `mapstructure:"state"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
}

// AgentsConfig selects backends.
type AgentsConfig struct {
	// Active executes plan tasks.
	Active string `mapstructure:"active"`
	// Planner runs the optional planning pass. Empty disables it.
	Planner string `mapstructure:"planner"`
}

// ClaudeConfig holds claude-code backend settings.
type ClaudeConfig struct {
	APIKey         string   `mapstructure:"api_key"`
	Model          string   `mapstructure:"model"`
	PermissionMode string   `mapstructure:"permission_mode"`
	MaxTurns       int      `mapstructure:"max_turns"`
	AllowedTools   []string `mapstructure:"allowed_tools"`
	BaseURL        string   `mapstructure:"base_url"`
	// ProtectedPaths are glob patterns added to the built-in protected
	// areas; writes there always ask for approval.
	ProtectedPaths []string `mapstructure:"protected_paths"`
}

// CodexConfig holds codex backend settings.
type CodexConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// GeminiConfig holds gemini-cli backend settings.
type GeminiConfig struct {
	APIKey       string `mapstructure:"api_key"`
	Model        string `mapstructure:"model"`
	OutputFormat string `mapstructure:"output_format"`
}

// MockConfig holds mock backend settings.
type MockConfig struct {
	Delay time.Duration `mapstructure:"delay"`
}

// ApprovalConfig holds tool approval settings.
type ApprovalConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// StateConfig locates the run history database. A relative path is
// resolved against the workspace.
type StateConfig struct {
	Path string `mapstructure:"path"`
}

// ArtifactsConfig controls where task and result markdown is written.
type ArtifactsConfig struct {
	Dir      string `mapstructure:"dir"`
	S3Bucket string `mapstructure:"s3_bucket"`
	S3Prefix string `mapstructure:"s3_prefix"`
	S3Region string `mapstructure:"s3_region"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (RELAY_<SECTION>_<KEY>)
// 2. Project config (.relay.yaml in current directory or parent)
// 3. User config (~/.config/relay/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references in secrets
	cfg.Claude.APIKey = os.ExpandEnv(cfg.Claude.APIKey)
	cfg.Codex.APIKey = os.ExpandEnv(cfg.Codex.APIKey)
	cfg.Gemini.APIKey = os.ExpandEnv(cfg.Gemini.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown agent tags and permission modes.
func (c *Config) Validate() error {
	if !models.AgentType(c.Agents.Active).Known() {
		return fmt.Errorf("agents.active: unknown agent %q", c.Agents.Active)
	}
	if c.Agents.Planner != "" && !models.AgentType(c.Agents.Planner).Known() {
		return fmt.Errorf("agents.planner: unknown agent %q", c.Agents.Planner)
	}
	if c.Claude.PermissionMode != "" && !agent.PermissionMode(c.Claude.PermissionMode).Valid() {
		return fmt.Errorf("claude.permission_mode: unknown mode %q", c.Claude.PermissionMode)
	}
	switch c.Gemini.OutputFormat {
	case "", agent.GeminiFormatStreamJSON, agent.GeminiFormatJSON, agent.GeminiFormatJSONL:
	default:
		return fmt.Errorf("gemini.output_format: unknown format %q", c.Gemini.OutputFormat)
	}
	return nil
}

// ClaudeSettings converts the claude section for the backend.
func (c *Config) ClaudeSettings() agent.ClaudeSettings {
	return agent.ClaudeSettings{
		Model:          c.Claude.Model,
		PermissionMode: agent.PermissionMode(c.Claude.PermissionMode),
		MaxTurns:       c.Claude.MaxTurns,
		AllowedTools:   c.Claude.AllowedTools,
		BaseURL:        c.Claude.BaseURL,
		ProtectedPaths: c.Claude.ProtectedPaths,
	}
}

// CodexSettings converts the codex section for the backend.
func (c *Config) CodexSettings() agent.CodexSettings {
	return agent.CodexSettings{Model: c.Codex.Model}
}

// GeminiSettings converts the gemini section for the backend.
func (c *Config) GeminiSettings() agent.GeminiSettings {
	return agent.GeminiSettings{Model: c.Gemini.Model, OutputFormat: c.Gemini.OutputFormat}
}

// StatePath resolves the database path for workspace.
func (c *Config) StatePath(workspace string) string {
	if filepath.IsAbs(c.State.Path) {
		return c.State.Path
	}
	return filepath.Join(workspace, c.State.Path)
}

// ArtifactsDir resolves the artifact directory for workspace.
func (c *Config) ArtifactsDir(workspace string) string {
	if filepath.IsAbs(c.Artifacts.Dir) {
		return c.Artifacts.Dir
	}
	return filepath.Join(workspace, c.Artifacts.Dir)
}

// Set writes key=value into the user config file, keeping the other
// values already stored there.
func Set(key, value string) error {
	if !IsKnownKey(key) {
		return fmt.Errorf("unknown config key %q", key)
	}

	dir := getUserConfigDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	path := filepath.Join(dir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(path)
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading user config: %w", err)
		}
	}

	if key == "claude.allowed_tools" || key == "claude.protected_paths" {
		v.Set(key, splitList(value))
	} else {
		v.Set(key, value)
	}

	// Reject values that would make the next Load fail.
	check := viper.New()
	setDefaults(check)
	if err := check.MergeConfigMap(v.AllSettings()); err != nil {
		return fmt.Errorf("merging config: %w", err)
	}
	if _, err := unmarshal(check); err != nil {
		return err
	}

	return v.WriteConfigAs(path)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Keys returns every supported config key, sorted.
func Keys() []string {
	v := viper.New()
	setDefaults(v)
	keys := v.AllKeys()
	sort.Strings(keys)
	return keys
}

// IsKnownKey reports whether key is a supported config key.
func IsKnownKey(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// Values returns the effective value of every key in cfg, with secrets masked.
func (c *Config) Values() map[string]string {
	return map[string]string{
		"agents.active":          c.Agents.Active,
		"agents.planner":         c.Agents.Planner,
		"claude.api_key":         MaskAPIKey(c.Claude.APIKey),
		"claude.model":           c.Claude.Model,
		"claude.permission_mode": c.Claude.PermissionMode,
		"claude.max_turns":       fmt.Sprint(c.Claude.MaxTurns),
		"claude.allowed_tools":   strings.Join(c.Claude.AllowedTools, ","),
		"claude.base_url":        c.Claude.BaseURL,
		"claude.protected_paths": strings.Join(c.Claude.ProtectedPaths, ","),
		"codex.api_key":          MaskAPIKey(c.Codex.APIKey),
		"codex.model":            c.Codex.Model,
		"gemini.api_key":         MaskAPIKey(c.Gemini.APIKey),
		"gemini.model":           c.Gemini.Model,
		"gemini.output_format":   c.Gemini.OutputFormat,
		"mock.delay":             c.Mock.Delay.String(),
		"approval.timeout":       c.Approval.Timeout.String(),
		"state.path":             c.State.Path,
		"artifacts.dir":          c.Artifacts.Dir,
		"artifacts.s3_bucket":    c.Artifacts.S3Bucket,
		"artifacts.s3_prefix":    c.Artifacts.S3Prefix,
		"artifacts.s3_region":    c.Artifacts.S3Region,
	}
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("agents.active", string(models.AgentClaudeCode))
	v.SetDefault("agents.planner", "")

	v.SetDefault("claude.api_key", "")
	v.SetDefault("claude.model", "")
	v.SetDefault("claude.permission_mode", string(agent.PermissionAcceptEdits))
	v.SetDefault("claude.max_turns", 10)
	v.SetDefault("claude.allowed_tools", agent.DefaultAllowedTools)
	v.SetDefault("claude.base_url", "")
	v.SetDefault("claude.protected_paths", []string{})

	v.SetDefault("codex.api_key", "")
	v.SetDefault("codex.model", "")

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "")
	v.SetDefault("gemini.output_format", agent.GeminiFormatStreamJSON)

	v.SetDefault("mock.delay", agent.DefaultMockDelay.String())
	v.SetDefault("approval.timeout", "60s")
	v.SetDefault("state.path", filepath.Join(".relay", "state.db"))

	v.SetDefault("artifacts.dir", ".relay")
	v.SetDefault("artifacts.s3_bucket", "")
	v.SetDefault("artifacts.s3_prefix", "relay/")
	v.SetDefault("artifacts.s3_region", "")
}

// getUserConfigDir returns the XDG config directory for relay.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "relay")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "relay")
	}
	return filepath.Join(home, ".config", "relay")
}

// findProjectConfig searches for .relay.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".relay.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Agents: AgentsConfig{Active: string(models.AgentClaudeCode)},
		Claude: ClaudeConfig{
			PermissionMode: string(agent.PermissionAcceptEdits),
			MaxTurns:       10,
			AllowedTools:   append([]string(nil), agent.DefaultAllowedTools...),
		},
		Gemini:    GeminiConfig{OutputFormat: agent.GeminiFormatStreamJSON},
		Mock:      MockConfig{Delay: agent.DefaultMockDelay},
		Approval:  ApprovalConfig{Timeout: 60 * time.Second},
		State:     StateConfig{Path: filepath.Join(".relay", "state.db")},
		Artifacts: ArtifactsConfig{Dir: ".relay", S3Prefix: "relay/"},
	}
}
