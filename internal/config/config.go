package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the project configuration file looked up by LoadConfig.
const FileName = "cfplane.toml"

// EnvironmentConfig describes a single named environment from cfplane.toml.
type EnvironmentConfig struct {
	Description string `toml:"description,omitempty"`
	ClusterURL  string `toml:"cluster_url,omitempty"`
	SchemaPath  string `toml:"schema_path,omitempty"`
	Parallelism int    `toml:"parallelism,omitempty"`
}

type Config struct {
	DefaultEnvironment string                       `toml:"default_environment,omitempty"`
	SchemaPath         string                       `toml:"schema_path,omitempty"`
	ClusterURL         string                       `toml:"cluster_url,omitempty"`
	Parallelism        int                          `toml:"parallelism,omitempty"`
	Environments       map[string]EnvironmentConfig `toml:"environments,omitempty"`
	ConfigFilePath     string                       `toml:"-"`

	configDir string
}

// ConfigDir returns the directory holding cfplane.toml, or "" when no file
// was found.
func (c *Config) ConfigDir() string {
	if c == nil {
		return ""
	}
	if c.configDir != "" {
		return c.configDir
	}
	if c.ConfigFilePath != "" {
		return filepath.Dir(c.ConfigFilePath)
	}
	return ""
}

// LoadConfig looks for cfplane.toml in the working directory and its
// parents, stopping at the first project root. A missing file yields an
// empty Config.
func LoadConfig() (*Config, error) {
	startDir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return LoadConfigFrom(startDir)
}

// LoadConfigFrom is LoadConfig starting at dir.
func LoadConfigFrom(startDir string) (*Config, error) {
	dir := startDir
	for {
		configPath := filepath.Join(dir, FileName)
		if _, err := os.Stat(configPath); err == nil {
			return ReadConfig(configPath)
		}

		// Check if we've reached a project boundary
		if isProjectRoot(dir) {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}

	return &Config{}, nil
}

// ReadConfig parses one configuration file.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	config.ConfigFilePath = path
	config.configDir = filepath.Dir(path)
	return &config, nil
}

// Marshal renders c as TOML.
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

// isProjectRoot checks if the directory is a project root based on common markers
func isProjectRoot(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
		return true
	}
	return false
}
