// Package connect turns a cluster URL into a cluster.Admin.
package connect

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"

	"github.com/lockplane/cfplane/internal/cluster"
	"github.com/lockplane/cfplane/internal/cluster/rest"
	"github.com/lockplane/cfplane/internal/cluster/sqlstore"
)

// Backend identifies which Admin implementation a URL selects.
type Backend string

const (
	BackendREST     Backend = "rest"
	BackendPostgres Backend = "postgres"
	BackendSQLite   Backend = "sqlite"
	BackendLibSQL   Backend = "libsql"
	BackendUnknown  Backend = ""
)

// DetectBackend inspects the URL scheme, falling back to file extensions
// for bare SQLite paths.
func DetectBackend(url string) Backend {
	lower := strings.ToLower(strings.TrimSpace(url))

	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return BackendREST
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return BackendPostgres
	case strings.HasPrefix(lower, "libsql://"):
		return BackendLibSQL
	case strings.HasPrefix(lower, "sqlite://"), strings.HasPrefix(lower, "file:"), lower == ":memory:":
		return BackendSQLite
	case strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"), strings.HasSuffix(lower, ".sqlite3"):
		return BackendSQLite
	}
	return BackendUnknown
}

// SQLitePath extracts the file path from a sqlite:// or file: URL.
func SQLitePath(url string) string {
	path := url
	for _, prefix := range []string{"sqlite://", "file:"} {
		if strings.HasPrefix(path, prefix) {
			path = strings.TrimPrefix(path, prefix)
			break
		}
	}
	if idx := strings.Index(path, "?"); idx >= 0 {
		path = path[:idx]
	}
	return path
}

// Open connects to the cluster named by url and verifies it answers.
func Open(ctx context.Context, url string, logger *slog.Logger) (cluster.Admin, error) {
	backend := DetectBackend(url)
	switch backend {
	case BackendREST:
		client := rest.New(url, rest.WithLogger(logger))
		if _, err := client.ListTables(ctx); err != nil {
			return nil, fmt.Errorf("failed to reach REST gateway: %w", err)
		}
		return client, nil

	case BackendPostgres:
		return openSQL(ctx, "postgres", url, sqlstore.DialectPostgres, logger)

	case BackendLibSQL:
		return openSQL(ctx, "libsql", url, sqlstore.DialectLibSQL, logger)

	case BackendSQLite:
		path := SQLitePath(url)
		if path != ":memory:" {
			if dir := filepath.Dir(path); dir != "" && dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
				}
			}
		}
		return openSQL(ctx, "sqlite", path, sqlstore.DialectSQLite, logger)
	}
	return nil, fmt.Errorf("unsupported cluster URL %q (expected http(s)://, postgres://, libsql://, sqlite:// or a .db file)", url)
}

func openSQL(ctx context.Context, driverName, dsn string, dialect sqlstore.Dialect, logger *slog.Logger) (cluster.Admin, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}
	if dialect != sqlstore.DialectPostgres {
		// One writer at a time; SQLite would otherwise report SQLITE_BUSY
		// when tables are applied in parallel.
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store, err := sqlstore.New(ctx, db, dialect, sqlstore.WithLogger(logger))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}
