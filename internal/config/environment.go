package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultEnvironmentName = "local"
	// DefaultClusterURL is a SQLite-backed rehearsal cluster under the
	// project directory.
	DefaultClusterURL = "sqlite://.cfplane/cluster.db"
	DefaultSchemaPath = "schema"
)

// Dotenv keys read from .env.<environment>.
const (
	EnvClusterURL  = "CLUSTER_URL"
	EnvSchemaPath  = "SCHEMA_PATH"
	EnvParallelism = "PARALLELISM"
)

// ResolvedEnvironment represents a fully-resolved environment with concrete values.
type ResolvedEnvironment struct {
	Name        string
	ClusterURL  string
	SchemaPath  string
	Parallelism int
	DotenvPath  string
	FromConfig  bool
	FromDotenv  bool
}

// ResolveEnvironment resolves a named environment. Values are layered:
// top-level config keys, then the [environments.<name>] table, then
// .env.<name> next to the config file. Flags are applied by the caller.
func ResolveEnvironment(config *Config, name string) (*ResolvedEnvironment, error) {
	envName := strings.TrimSpace(name)
	if envName == "" {
		if config != nil && config.DefaultEnvironment != "" {
			envName = config.DefaultEnvironment
		} else {
			envName = defaultEnvironmentName
		}
	}

	resolved := &ResolvedEnvironment{Name: envName}

	var envExists bool
	if config != nil {
		resolved.ClusterURL = config.ClusterURL
		resolved.SchemaPath = config.SchemaPath
		resolved.Parallelism = config.Parallelism

		if cfg, ok := config.Environments[envName]; ok {
			envExists = true
			resolved.FromConfig = true
			if cfg.ClusterURL != "" {
				resolved.ClusterURL = cfg.ClusterURL
			}
			if cfg.SchemaPath != "" {
				resolved.SchemaPath = cfg.SchemaPath
			}
			if cfg.Parallelism != 0 {
				resolved.Parallelism = cfg.Parallelism
			}
		}
	}

	baseDir := config.ConfigDir()
	if baseDir == "" {
		if cwd, err := os.Getwd(); err == nil {
			baseDir = cwd
		}
	}
	resolved.DotenvPath = filepath.Join(baseDir, ".env."+envName)

	if info, err := os.Stat(resolved.DotenvPath); err == nil && !info.IsDir() {
		values, err := godotenv.Read(resolved.DotenvPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", resolved.DotenvPath, err)
		}
		resolved.FromDotenv = true

		if value := values[EnvClusterURL]; value != "" {
			resolved.ClusterURL = value
		}
		if value := values[EnvSchemaPath]; value != "" {
			resolved.SchemaPath = value
		}
		if value := values[EnvParallelism]; value != "" {
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("%s: invalid %s %q: %w", resolved.DotenvPath, EnvParallelism, value, err)
			}
			resolved.Parallelism = n
		}
	} else if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to access %s: %w", resolved.DotenvPath, err)
	}

	if config != nil && len(config.Environments) > 0 && !envExists && !resolved.FromDotenv {
		return nil, fmt.Errorf("environment %q not defined in %s and %s not found", envName, FileName, resolved.DotenvPath)
	}

	if resolved.ClusterURL == "" {
		resolved.ClusterURL = DefaultClusterURL
	}
	if resolved.SchemaPath == "" {
		resolved.SchemaPath = DefaultSchemaPath
	}
	resolved.SchemaPath = resolvePath(resolved.SchemaPath, baseDir)
	if resolved.Parallelism < 0 {
		return nil, fmt.Errorf("environment %q: parallelism must be >= 0, got %d", envName, resolved.Parallelism)
	}

	return resolved, nil
}

// resolvePath anchors a relative path at the configuration directory.
func resolvePath(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
