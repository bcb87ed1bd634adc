// Package config loads and validates the vesper.yml client configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up in the working directory
// before falling back to ~/.vesper/.
const DefaultFileName = "vesper.yml"

// VesperConfig represents the top-level vesper.yml configuration.
type VesperConfig struct {
	Version   string         `yaml:"version"`
	Workspace string         `yaml:"workspace"`         // Namespace shared by every device of one deployment
	User      string         `yaml:"user,omitempty"`    // Default signed-in user id (overridable with --user)
	Redis     RedisConfig    `yaml:"redis"`
	Suggest   *SuggestConfig `yaml:"suggest,omitempty"` // AI generation settings; API key comes from ANTHROPIC_API_KEY
}

// RedisConfig specifies the remote document store connection.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// SuggestConfig specifies AI generation behavior.
type SuggestConfig struct {
	Model     string `yaml:"model,omitempty"`      // Empty = SDK default
	MaxTokens int64  `yaml:"max_tokens,omitempty"` // 0 = default cap
}

// Validate performs strict validation on the configuration.
func (c *VesperConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Workspace == "" {
		return fmt.Errorf("workspace is required")
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}

	if c.Suggest != nil && c.Suggest.MaxTokens < 0 {
		return fmt.Errorf("suggest.max_tokens cannot be negative, got %d", c.Suggest.MaxTokens)
	}

	return nil
}

// Load reads and validates configuration from the specified path.
func Load(path string) (*VesperConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config VesperConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadDefault looks for vesper.yml in the working directory, then in
// ~/.vesper/. Returns the loaded config and the path it came from.
func LoadDefault() (*VesperConfig, string, error) {
	if _, err := os.Stat(DefaultFileName); err == nil {
		cfg, err := Load(DefaultFileName)
		return cfg, DefaultFileName, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to locate home directory: %w", err)
	}

	path := filepath.Join(home, ".vesper", DefaultFileName)
	if _, err := os.Stat(path); err != nil {
		return nil, "", fmt.Errorf("no configuration found (looked for ./%s and %s); run 'vesper init'", DefaultFileName, path)
	}

	cfg, err := Load(path)
	return cfg, path, err
}

// Starter returns the scaffolded config written by 'vesper init'.
func Starter(workspace, user string) []byte {
	return []byte(fmt.Sprintf(`version: "1.0"
workspace: %s
user: %s

redis:
  addr: localhost:6379

# suggest:
#   model: claude-sonnet-4-0
#   max_tokens: 1024
`, workspace, user))
}
