package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lockplane/cfplane/internal/cluster"
	"github.com/lockplane/cfplane/internal/config"
	"github.com/lockplane/cfplane/internal/connect"
	"github.com/lockplane/cfplane/internal/planner"
	"github.com/lockplane/cfplane/internal/schema"
)

// loadEnvironment resolves the selected environment starting from dir and
// applies the --cluster and --schema overrides. Relative SQLite cluster
// paths from the config or .env file are anchored next to cfplane.toml;
// overrides are taken as given.
func loadEnvironment(dir string) (*config.ResolvedEnvironment, error) {
	cfg, err := config.LoadConfigFrom(dir)
	if err != nil {
		if details := config.Details(err); details != "" {
			_, _ = fmt.Fprintln(os.Stderr, details)
		}
		return nil, err
	}

	env, err := config.ResolveEnvironment(cfg, environmentName)
	if err != nil {
		return nil, err
	}
	logger.Debug("resolved environment",
		"environment", env.Name,
		"config", cfg.ConfigFilePath,
		"dotenv", env.FromDotenv)

	baseDir := cfg.ConfigDir()
	if baseDir == "" {
		baseDir = dir
	}
	env.ClusterURL = anchorSQLitePath(env.ClusterURL, baseDir)

	if url := strings.TrimSpace(clusterOverride); url != "" {
		env.ClusterURL = url
	}
	if path := strings.TrimSpace(schemaOverride); path != "" {
		env.SchemaPath = path
	}
	return env, nil
}

// anchorSQLitePath rewrites a relative sqlite:// URL to an absolute one
// under baseDir. Other URLs are returned unchanged.
func anchorSQLitePath(url, baseDir string) string {
	if connect.DetectBackend(url) != connect.BackendSQLite || !strings.HasPrefix(url, "sqlite://") {
		return url
	}
	path := connect.SQLitePath(url)
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return url
	}
	query := ""
	if idx := strings.Index(url, "?"); idx >= 0 {
		query = url[idx:]
	}
	return "sqlite://" + filepath.Join(baseDir, path) + query
}

// loadDeclarations reads the environment's schema path.
func loadDeclarations(env *config.ResolvedEnvironment) ([]schema.Table, error) {
	tables, err := schema.LoadSchema(env.SchemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema from %s: %w", env.SchemaPath, err)
	}
	logger.Debug("loaded declarations", "path", env.SchemaPath, "tables", len(tables), "hash", schema.Hash(tables))
	return tables, nil
}

// loadBaseline reads --baseline, if set.
func loadBaseline() ([]schema.Table, error) {
	if baselinePath == "" {
		return nil, nil
	}
	tables, err := schema.LoadSchema(baselinePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load baseline from %s: %w", baselinePath, err)
	}
	return tables, nil
}

// openCluster connects to the environment's cluster.
func openCluster(ctx context.Context, env *config.ResolvedEnvironment) (cluster.Admin, error) {
	logger.Debug("connecting", "environment", env.Name, "backend", connect.DetectBackend(env.ClusterURL))
	admin, err := connect.Open(ctx, env.ClusterURL, logger)
	if err != nil {
		return nil, fmt.Errorf("environment %q: %w", env.Name, err)
	}
	return admin, nil
}

// buildPlan loads declarations and plans them against admin.
func buildPlan(ctx context.Context, admin cluster.Admin, env *config.ResolvedEnvironment) (*planner.Plan, error) {
	declared, err := loadDeclarations(env)
	if err != nil {
		return nil, err
	}
	baseline, err := loadBaseline()
	if err != nil {
		return nil, err
	}

	p, err := planner.New(admin, planner.Options{Baseline: baseline, Logger: logger})
	if err != nil {
		return nil, err
	}
	return p.Plan(ctx, declared)
}
