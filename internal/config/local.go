package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LocalConfig holds configuration for local daemon mode
type LocalConfig struct {
	Daemon   DaemonConfig   `yaml:"daemon"`
	Storage  StorageConfig  `yaml:"storage"`
	Lessons  LessonsConfig  `yaml:"lessons"`
	Dialogue DialogueConfig `yaml:"dialogue"`
	Queue    QueueConfig    `yaml:"queue"`
}

// DaemonConfig holds daemon server settings
type DaemonConfig struct {
	Port     int    `yaml:"port"`
	Bind     string `yaml:"bind"`
	LogLevel string `yaml:"log_level"`
}

// StorageConfig selects and parameterizes the progress store
type StorageConfig struct {
	// Backend is local, sqlite or postgres
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path,omitempty"`
	DatabaseURL string `yaml:"database_url,omitempty"`
}

// LessonsConfig holds lesson pack settings
type LessonsConfig struct {
	Path string `yaml:"path"`
}

// DialogueConfig holds investigation dialogue settings
type DialogueConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
	MaxRetries     int `yaml:"max_retries"`
}

// QueueConfig holds completion queue settings. An empty URL disables
// publishing.
type QueueConfig struct {
	URL string `yaml:"url,omitempty"`
}

// CasebookDir returns the path to ~/.casebook
func CasebookDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".casebook"), nil
}

// EnsureCasebookDir creates ~/.casebook and subdirectories if they don't exist
func EnsureCasebookDir() (string, error) {
	dir, err := CasebookDir()
	if err != nil {
		return "", err
	}

	subdirs := []string{
		"",
		"logs",
		"lessons",
		"progress",
	}

	for _, subdir := range subdirs {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}

	return dir, nil
}

// DefaultLocalConfig returns sensible defaults for local mode
func DefaultLocalConfig() *LocalConfig {
	return &LocalConfig{
		Daemon: DaemonConfig{
			Port:     7433,
			Bind:     "127.0.0.1",
			LogLevel: "info",
		},
		Storage: StorageConfig{
			Backend: "sqlite",
		},
		Lessons: LessonsConfig{},
		Dialogue: DialogueConfig{
			TimeoutSeconds: 30,
			MaxRetries:     3,
		},
	}
}

// LoadLocalConfig loads configuration from ~/.casebook/config.yaml
func LoadLocalConfig() (*LocalConfig, error) {
	dir, err := CasebookDir()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(dir, "config.yaml")

	// If config doesn't exist, return defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultLocalConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultLocalConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// SaveLocalConfig saves configuration to ~/.casebook/config.yaml
func SaveLocalConfig(cfg *LocalConfig) error {
	dir, err := EnsureCasebookDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(dir, "config.yaml")

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}
