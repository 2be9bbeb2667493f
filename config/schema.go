// Package config defines the configuration schema for the memory layer.
//
// JSON keys use camelCase, matching the config files written by the
// enclosing agent.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ProviderConfig holds credentials for one LLM or embedding provider.
type ProviderConfig struct {
	APIKey       string            `json:"apiKey"`
	APIBase      string            `json:"apiBase,omitempty"`
	ExtraHeaders map[string]string `json:"extraHeaders,omitempty"`
}

// AgentDefaults holds default values for agent behaviour relevant to memory.
type AgentDefaults struct {
	Workspace    string  `json:"workspace"`
	Model        string  `json:"model"`
	MaxTokens    int     `json:"maxTokens"`
	Temperature  float64 `json:"temperature"`
	MemoryWindow int     `json:"memoryWindow"`
}

func defaultAgentDefaults() AgentDefaults {
	return AgentDefaults{
		Workspace:    "~/.tidemind/workspace",
		Model:        "qwen-max",
		MaxTokens:    4096,
		Temperature:  0.3,
		MemoryWindow: 50,
	}
}

// AgentsConfig wraps agent defaults.
type AgentsConfig struct {
	Defaults AgentDefaults `json:"defaults"`
}

// DatabaseConfig configures the pooled relational/vector store.
type DatabaseConfig struct {
	Enabled      bool   `json:"enabled"`
	Path         string `json:"path"`
	MaxOpenConns int    `json:"maxOpenConns"`
}

func defaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Path:         "~/.tidemind/memory.db",
		MaxOpenConns: 10,
	}
}

// EmbeddingConfig configures the embedding provider used for vector memory.
// The default API base is DashScope's OpenAI-compatible endpoint.
type EmbeddingConfig struct {
	APIKey         string `json:"apiKey"`
	APIBase        string `json:"apiBase"`
	Model          string `json:"model"`
	Dimensions     int    `json:"dimensions"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

func defaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		APIBase:        "https://dashscope.aliyuncs.com/compatible-mode/v1",
		Model:          "text-embedding-v3",
		Dimensions:     1536,
		TimeoutSeconds: 30,
	}
}

// MemoryConfig configures background consolidation sweeps.
type MemoryConfig struct {
	SweepSchedule string `json:"sweepSchedule"` // cron spec; "" disables sweeping
}

func defaultMemoryConfig() MemoryConfig {
	return MemoryConfig{SweepSchedule: "@every 30m"}
}

// Config is the root configuration object.
type Config struct {
	Agents    AgentsConfig    `json:"agents"`
	Providers ProviderConfig  `json:"providers,omitempty"` // LLM credentials, passed through to the enclosing agent
	Database  DatabaseConfig  `json:"database"`
	Embedding EmbeddingConfig `json:"embedding"`
	Memory    MemoryConfig    `json:"memory"`
}

// DefaultConfig returns a Config with all defaults applied.
func DefaultConfig() Config {
	return Config{
		Agents:    AgentsConfig{Defaults: defaultAgentDefaults()},
		Database:  defaultDatabaseConfig(),
		Embedding: defaultEmbeddingConfig(),
		Memory:    defaultMemoryConfig(),
	}
}

// WorkspacePath returns the agent workspace with ~ expanded.
func (c *Config) WorkspacePath() string {
	return ExpandHome(c.Agents.Defaults.Workspace)
}

// DatabasePath returns the database file path with ~ expanded.
func (c *Config) DatabasePath() string {
	return ExpandHome(c.Database.Path)
}

// ExpandHome replaces a leading ~ with the current user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/"))
	}
	return path
}
