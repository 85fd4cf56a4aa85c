// Package config provides configuration loading and management for ShellCompany.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete ShellCompany configuration
type Config struct {
	Workspace WorkspaceConfig `yaml:"workspace"`
	NATS      NATSConfig      `yaml:"nats"`
	Engine    EngineConfig    `yaml:"engine"`
	Approval  ApprovalConfig  `yaml:"approval"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// WorkspaceConfig configures where agent workspaces live on disk
type WorkspaceConfig struct {
	// Root is the base directory for per-agent workspaces
	Root string `yaml:"root"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL (empty = in-memory event bus only)
	URL string `yaml:"url"`
	// Name is the client connection name
	Name string `yaml:"name"`
}

// EngineConfig configures workflow execution limits
type EngineConfig struct {
	// TaskTimeout is the maximum wall-clock time for a single task
	TaskTimeout time.Duration `yaml:"task_timeout"`
	// WorkflowTimeout is the maximum wall-clock time for a whole workflow
	WorkflowTimeout time.Duration `yaml:"workflow_timeout"`
}

// ApprovalConfig configures the approval gate
type ApprovalConfig struct {
	// RulesPath points at a YAML ruleset overriding the built-in scoring
	// rules (empty = use defaults)
	RulesPath string `yaml:"rules_path"`
}

// HTTPConfig configures the management API listener
type HTTPConfig struct {
	// Addr is the listen address for the HTTP API
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Workspace: WorkspaceConfig{
			Root: "", // Resolved relative to the working directory at load time
		},
		NATS: NATSConfig{
			URL:  "",
			Name: "shellco",
		},
		Engine: EngineConfig{
			TaskTimeout:     10 * time.Minute,
			WorkflowTimeout: 2 * time.Hour,
		},
		Approval: ApprovalConfig{
			RulesPath: "",
		},
		HTTP: HTTPConfig{
			Addr: ":8090",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Workspace.Root == "" {
		return fmt.Errorf("workspace.root is required")
	}
	if c.Engine.TaskTimeout <= 0 {
		return fmt.Errorf("engine.task_timeout must be positive")
	}
	if c.Engine.WorkflowTimeout < c.Engine.TaskTimeout {
		return fmt.Errorf("engine.workflow_timeout must be at least engine.task_timeout")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Workspace.Root != "" {
		c.Workspace.Root = other.Workspace.Root
	}

	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.Name != "" {
		c.NATS.Name = other.NATS.Name
	}

	if other.Engine.TaskTimeout != 0 {
		c.Engine.TaskTimeout = other.Engine.TaskTimeout
	}
	if other.Engine.WorkflowTimeout != 0 {
		c.Engine.WorkflowTimeout = other.Engine.WorkflowTimeout
	}

	if other.Approval.RulesPath != "" {
		c.Approval.RulesPath = other.Approval.RulesPath
	}

	if other.HTTP.Addr != "" {
		c.HTTP.Addr = other.HTTP.Addr
	}
}
