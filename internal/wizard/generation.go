package wizard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/lockplane/cfplane/internal/config"
	"github.com/lockplane/cfplane/internal/connect"
)

// StarterSchemaPath is where GenerateFiles writes an example declaration.
const StarterSchemaPath = "schema/tables.yaml"

const starterSchema = `# Table declarations managed by cfplane.
# Run "cfplane plan" to see what applying them would change.
tables:
  - name: events
    maxFileSizeMB: 256
    memStoreFlushSizeMB: 64
    key:
      - {name: source, type: String, length: 16}
      - {name: ts, type: Timestamp, length: 8, inverted: true}
    columnFamilies:
      - name: d
        maxVersions: 3
        ttlSeconds: forever
        columns:
          - {name: payload, type: Byte}
`

// GenerateFiles writes cfplane.toml, one .env.<name> per environment, a
// starter schema and .gitignore entries under dir.
func GenerateFiles(dir string, environments []EnvironmentInput) (*InitResult, error) {
	result := &InitResult{
		EnvFiles: []string{},
	}

	configPath := filepath.Join(dir, config.FileName)
	fileExists := false
	if _, err := os.Stat(configPath); err == nil {
		fileExists = true
	}

	if err := generateConfig(configPath, environments); err != nil {
		return nil, fmt.Errorf("failed to generate %s: %w", config.FileName, err)
	}
	result.ConfigPath = configPath
	if fileExists {
		result.ConfigUpdated = true
	} else {
		result.ConfigCreated = true
	}

	for _, env := range environments {
		envFilePath := filepath.Join(dir, ".env."+env.Name)
		if err := generateEnvFile(envFilePath, env); err != nil {
			return nil, fmt.Errorf("failed to generate %s: %w", envFilePath, err)
		}
		result.EnvFiles = append(result.EnvFiles, envFilePath)
	}

	examplePath := filepath.Join(dir, ".env.example")
	_, statErr := os.Stat(examplePath)
	updated, err := createOrUpdateEnvExample(examplePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create/update .env.example: %w", err)
	}
	if updated {
		if statErr == nil {
			result.EnvExampleUpdated = true
		} else {
			result.EnvExampleCreated = true
		}
	}

	schemaPath := filepath.Join(dir, StarterSchemaPath)
	result.SchemaFile = schemaPath
	if _, err := os.Stat(schemaPath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(schemaPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create schema directory: %w", err)
		}
		if err := os.WriteFile(schemaPath, []byte(starterSchema), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", schemaPath, err)
		}
		result.SchemaFileCreated = true
	}

	changed, err := updateGitignore(filepath.Join(dir, ".gitignore"))
	if err != nil {
		return nil, fmt.Errorf("failed to update .gitignore: %w", err)
	}
	result.GitignoreUpdated = changed

	return result, nil
}

// generateConfig merges the new environments into an existing config file.
// Connection URLs stay in the .env files.
func generateConfig(path string, newEnvironments []EnvironmentInput) error {
	cfg := &config.Config{}
	if _, err := os.Stat(path); err == nil {
		existing, err := config.ReadConfig(path)
		if err != nil {
			return err
		}
		cfg = existing
	}
	if cfg.Environments == nil {
		cfg.Environments = map[string]config.EnvironmentConfig{}
	}

	for _, env := range newEnvironments {
		description := env.Description
		if description == "" {
			description = describeBackend(env.Backend)
		}
		entry := cfg.Environments[env.Name]
		entry.Description = description
		// The .env file owns the URL from now on.
		entry.ClusterURL = ""
		cfg.Environments[env.Name] = entry
	}

	if cfg.DefaultEnvironment == "" && len(newEnvironments) > 0 {
		cfg.DefaultEnvironment = newEnvironments[0].Name
	}
	if cfg.SchemaPath == "" {
		cfg.SchemaPath = filepath.Dir(StarterSchemaPath)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("# cfplane configuration\n")
	b.WriteString("# Generated by: cfplane init\n")
	b.WriteString("#\n")
	b.WriteString("# Cluster URLs live in .env.<environment> files (never in this file).\n\n")
	b.Write(data)

	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func describeBackend(backend connect.Backend) string {
	for _, opt := range Backends {
		if opt.ID == backend {
			return opt.DisplayName
		}
	}
	return string(backend)
}

func generateEnvFile(path string, env EnvironmentInput) error {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# cfplane environment: %s\n", env.Name))
	b.WriteString("# Generated by: cfplane init\n")
	b.WriteString("#\n")
	b.WriteString("# Do not commit this file if it contains secrets!\n")
	b.WriteString(fmt.Sprintf("# Backend: %s\n", describeBackend(env.Backend)))
	b.WriteString(fmt.Sprintf("%s=%s\n", config.EnvClusterURL, BuildClusterURL(env)))

	// Write with restrictive permissions (owner read/write only)
	return os.WriteFile(path, []byte(b.String()), 0o600)
}

// createOrUpdateEnvExample appends the documented keys missing from the
// example file and reports whether it wrote anything.
func createOrUpdateEnvExample(path string) (bool, error) {
	existingContent := ""
	if data, err := os.ReadFile(path); err == nil {
		existingContent = string(data)
	}

	examples := map[string]string{
		config.EnvClusterURL:  "https://hbase-rest.example.com:8080",
		config.EnvSchemaPath:  "schema",
		config.EnvParallelism: "1",
	}
	keys := make([]string, 0, len(examples))
	for k := range examples {
		if !strings.Contains(existingContent, k+"=") {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return false, nil
	}
	sort.Strings(keys)

	var b strings.Builder
	if existingContent != "" && !strings.HasSuffix(existingContent, "\n") {
		b.WriteString("\n")
	}
	if !strings.Contains(existingContent, "cfplane") {
		b.WriteString("\n# cfplane\n")
		b.WriteString("# Copy to .env.<environment> and fill in your actual values\n")
	}
	for _, k := range keys {
		b.WriteString(fmt.Sprintf("%s=%s\n", k, examples[k]))
	}

	return true, os.WriteFile(path, []byte(existingContent+b.String()), 0o644)
}

func updateGitignore(path string) (bool, error) {
	content := ""
	if data, err := os.ReadFile(path); err == nil {
		content = string(data)
	}

	if strings.Contains(content, ".env.*") {
		return false, nil
	}

	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += `
# cfplane environment files (added by cfplane init)
# DO NOT remove - contains cluster credentials
.env.*
!.env.example
.cfplane/
`

	return true, os.WriteFile(path, []byte(content), 0o644)
}
