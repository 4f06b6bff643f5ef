package wizard

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lockplane/cfplane/internal/connect"
)

// ValidateEnvironmentName checks if an environment name is valid
func ValidateEnvironmentName(name string) error {
	if name == "" {
		return fmt.Errorf("environment name cannot be empty")
	}

	for _, ch := range name {
		isValid := (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '_' || ch == '-'
		if !isValid {
			return fmt.Errorf("environment name must contain only letters, numbers, underscores, and hyphens")
		}
	}

	return nil
}

// ValidatePort checks if a port number is valid
func ValidatePort(port string) error {
	if port == "" {
		return fmt.Errorf("port cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port must be a number")
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	return nil
}

// ValidateClusterURL checks that url selects the expected backend.
func ValidateClusterURL(clusterURL string, backend connect.Backend) error {
	if clusterURL == "" {
		return fmt.Errorf("cluster URL cannot be empty")
	}
	if got := connect.DetectBackend(clusterURL); got != backend {
		switch backend {
		case connect.BackendREST:
			return fmt.Errorf("REST gateway URL must start with http:// or https://")
		case connect.BackendPostgres:
			return fmt.Errorf("PostgreSQL URL must start with postgres:// or postgresql://")
		case connect.BackendSQLite:
			return fmt.Errorf("SQLite cluster must be sqlite://, file: or a .db path")
		case connect.BackendLibSQL:
			return fmt.Errorf("libSQL URL must start with libsql://")
		}
		return fmt.Errorf("unsupported backend %q", backend)
	}
	if backend == connect.BackendREST {
		u, err := url.Parse(clusterURL)
		if err != nil || u.Host == "" {
			return fmt.Errorf("REST gateway URL must include a host")
		}
	}
	return nil
}

// BuildClusterURL assembles the cluster URL for env.
func BuildClusterURL(env EnvironmentInput) string {
	switch env.Backend {
	case connect.BackendPostgres:
		return BuildPostgresURL(env)
	case connect.BackendSQLite:
		path := env.FilePath
		if connect.DetectBackend(path) == connect.BackendSQLite && strings.Contains(path, ":") {
			return path
		}
		return "sqlite://" + path
	case connect.BackendLibSQL:
		if env.AuthToken == "" {
			return env.URL
		}
		sep := "?"
		if strings.Contains(env.URL, "?") {
			sep = "&"
		}
		return env.URL + sep + "authToken=" + url.QueryEscape(env.AuthToken)
	}
	return strings.TrimRight(env.URL, "/")
}

// BuildPostgresURL builds a postgres:// URL, disabling TLS for local hosts.
func BuildPostgresURL(env EnvironmentInput) string {
	sslMode := env.SSLMode
	if sslMode == "" {
		sslMode = detectSSLMode(env.Host)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(env.User, env.Password),
		Host:     env.Host + ":" + env.Port,
		Path:     "/" + env.Database,
		RawQuery: "sslmode=" + sslMode,
	}
	return u.String()
}

func detectSSLMode(host string) string {
	switch host {
	case "localhost", "127.0.0.1", "::1", "":
		return "disable"
	}
	return "require"
}

// TestConnection opens the cluster and lists its tables.
func TestConnection(clusterURL string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	admin, err := connect.Open(ctx, clusterURL, nil)
	if err != nil {
		return err
	}
	defer func() { _ = admin.Close() }()

	if _, err := admin.ListTables(ctx); err != nil {
		return fmt.Errorf("connected, but listing tables failed: %w", err)
	}
	return nil
}
