// Package sqlstore keeps table descriptors in a SQL database so a plan can be
// rehearsed against a local or CI copy of the cluster schema.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/lockplane/cfplane/internal/cluster"
)

// Dialect selects placeholder syntax.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
	DialectLibSQL   Dialect = "libsql"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS cf_tables (
		name TEXT PRIMARY KEY,
		enabled INTEGER NOT NULL,
		regions INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS cf_table_attributes (
		table_name TEXT NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (table_name, name)
	)`,
	`CREATE TABLE IF NOT EXISTS cf_families (
		table_name TEXT NOT NULL,
		name TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (table_name, name)
	)`,
	`CREATE TABLE IF NOT EXISTS cf_family_attributes (
		table_name TEXT NOT NULL,
		family_name TEXT NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (table_name, family_name, name)
	)`,
}

// Store implements cluster.Admin on top of database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

var _ cluster.Admin = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for statement level debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New wraps an open database and creates the bookkeeping tables if needed.
// The store takes ownership of db.
func New(ctx context.Context, db *sql.DB, dialect Dialect, opts ...Option) (*Store, error) {
	s := &Store{
		db:      db,
		dialect: dialect,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to prepare store: %w", err)
		}
	}
	return s, nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) exec(ctx context.Context, q querier, query string, args ...any) error {
	_, err := q.ExecContext(ctx, s.rebind(query), args...)
	return err
}

func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM cf_tables ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	_, _, err := s.status(ctx, s.db, name)
	if errors.Is(err, cluster.ErrTableNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) IsEnabled(ctx context.Context, name string) (bool, error) {
	enabled, _, err := s.status(ctx, s.db, name)
	return enabled, err
}

func (s *Store) status(ctx context.Context, q querier, name string) (enabled bool, regions int, err error) {
	var flag int
	err = q.QueryRowContext(ctx, s.rebind("SELECT enabled, regions FROM cf_tables WHERE name = ?"), name).Scan(&flag, &regions)
	if errors.Is(err, sql.ErrNoRows) {
		return false, 0, fmt.Errorf("%s: %w", name, cluster.ErrTableNotFound)
	}
	if err != nil {
		return false, 0, fmt.Errorf("failed to read table %s: %w", name, err)
	}
	return flag != 0, regions, nil
}

func (s *Store) Describe(ctx context.Context, name string) (cluster.TableState, error) {
	enabled, _, err := s.status(ctx, s.db, name)
	if errors.Is(err, cluster.ErrTableNotFound) {
		return cluster.TableState{Name: name}, nil
	}
	if err != nil {
		return cluster.TableState{}, err
	}

	desc := &cluster.Descriptor{Name: name, Attributes: map[string]string{}}

	attrs, err := s.db.QueryContext(ctx, s.rebind("SELECT name, value FROM cf_table_attributes WHERE table_name = ?"), name)
	if err != nil {
		return cluster.TableState{}, fmt.Errorf("failed to read attributes of %s: %w", name, err)
	}
	for attrs.Next() {
		var k, v string
		if err := attrs.Scan(&k, &v); err != nil {
			_ = attrs.Close()
			return cluster.TableState{}, fmt.Errorf("failed to scan attribute: %w", err)
		}
		desc.Attributes[k] = v
	}
	_ = attrs.Close()
	if err := attrs.Err(); err != nil {
		return cluster.TableState{}, err
	}

	families, err := s.db.QueryContext(ctx, s.rebind("SELECT name FROM cf_families WHERE table_name = ? ORDER BY position"), name)
	if err != nil {
		return cluster.TableState{}, fmt.Errorf("failed to read families of %s: %w", name, err)
	}
	for families.Next() {
		var fname string
		if err := families.Scan(&fname); err != nil {
			_ = families.Close()
			return cluster.TableState{}, fmt.Errorf("failed to scan family: %w", err)
		}
		desc.Families = append(desc.Families, cluster.FamilyDescriptor{Name: fname, Attributes: map[string]string{}})
	}
	_ = families.Close()
	if err := families.Err(); err != nil {
		return cluster.TableState{}, err
	}

	fattrs, err := s.db.QueryContext(ctx, s.rebind("SELECT family_name, name, value FROM cf_family_attributes WHERE table_name = ?"), name)
	if err != nil {
		return cluster.TableState{}, fmt.Errorf("failed to read family attributes of %s: %w", name, err)
	}
	defer func() { _ = fattrs.Close() }()
	for fattrs.Next() {
		var fname, k, v string
		if err := fattrs.Scan(&fname, &k, &v); err != nil {
			return cluster.TableState{}, fmt.Errorf("failed to scan family attribute: %w", err)
		}
		if f := desc.Family(fname); f != nil {
			f.Attributes[k] = v
		}
	}
	if err := fattrs.Err(); err != nil {
		return cluster.TableState{}, err
	}

	return cluster.TableState{Name: name, Exists: true, Enabled: enabled, Descriptor: desc}, nil
}

func (s *Store) CreateTable(ctx context.Context, desc *cluster.Descriptor, splits int) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, _, err := s.status(ctx, tx, desc.Name); err == nil {
			return fmt.Errorf("%s: %w", desc.Name, cluster.ErrTableExists)
		} else if !errors.Is(err, cluster.ErrTableNotFound) {
			return err
		}
		if err := s.exec(ctx, tx, "INSERT INTO cf_tables (name, enabled, regions) VALUES (?, 1, ?)", desc.Name, splits); err != nil {
			return fmt.Errorf("failed to insert table %s: %w", desc.Name, err)
		}
		s.logger.Debug("created table", "table", desc.Name, "regions", splits)
		return s.writeDescriptor(ctx, tx, desc.Name, desc)
	})
}

func (s *Store) DisableTable(ctx context.Context, name string) error {
	return s.setEnabled(ctx, name, false)
}

func (s *Store) EnableTable(ctx context.Context, name string) error {
	return s.setEnabled(ctx, name, true)
}

func (s *Store) setEnabled(ctx context.Context, name string, enabled bool) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		current, _, err := s.status(ctx, tx, name)
		if err != nil {
			return err
		}
		if current == enabled {
			if enabled {
				return fmt.Errorf("%s: %w", name, cluster.ErrTableEnabled)
			}
			return fmt.Errorf("%s: %w", name, cluster.ErrTableDisabled)
		}
		flag := 0
		if enabled {
			flag = 1
		}
		if err := s.exec(ctx, tx, "UPDATE cf_tables SET enabled = ? WHERE name = ?", flag, name); err != nil {
			return fmt.Errorf("failed to update table %s: %w", name, err)
		}
		s.logger.Debug("changed table availability", "table", name, "enabled", enabled)
		return nil
	})
}

func (s *Store) ModifyTable(ctx context.Context, name string, desc *cluster.Descriptor) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.requireDisabled(ctx, tx, name); err != nil {
			return err
		}
		if err := s.clearDescriptor(ctx, tx, name); err != nil {
			return err
		}
		s.logger.Debug("modified table", "table", name)
		return s.writeDescriptor(ctx, tx, name, desc)
	})
}

func (s *Store) DeleteTable(ctx context.Context, name string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.requireDisabled(ctx, tx, name); err != nil {
			return err
		}
		if err := s.clearDescriptor(ctx, tx, name); err != nil {
			return err
		}
		if err := s.exec(ctx, tx, "DELETE FROM cf_tables WHERE name = ?", name); err != nil {
			return fmt.Errorf("failed to delete table %s: %w", name, err)
		}
		s.logger.Debug("deleted table", "table", name)
		return nil
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) requireDisabled(ctx context.Context, tx *sql.Tx, name string) error {
	enabled, _, err := s.status(ctx, tx, name)
	if err != nil {
		return err
	}
	if enabled {
		return fmt.Errorf("%s: %w", name, cluster.ErrTableEnabled)
	}
	return nil
}

func (s *Store) clearDescriptor(ctx context.Context, tx *sql.Tx, name string) error {
	for _, table := range []string{"cf_table_attributes", "cf_families", "cf_family_attributes"} {
		if err := s.exec(ctx, tx, "DELETE FROM "+table+" WHERE table_name = ?", name); err != nil {
			return fmt.Errorf("failed to clear %s for %s: %w", table, name, err)
		}
	}
	return nil
}

func (s *Store) writeDescriptor(ctx context.Context, tx *sql.Tx, name string, desc *cluster.Descriptor) error {
	for _, k := range cluster.SortedKeys(desc.Attributes) {
		if err := s.exec(ctx, tx, "INSERT INTO cf_table_attributes (table_name, name, value) VALUES (?, ?, ?)", name, k, desc.Attributes[k]); err != nil {
			return fmt.Errorf("failed to write attribute %s of %s: %w", k, name, err)
		}
	}
	for i, f := range desc.Families {
		if err := s.exec(ctx, tx, "INSERT INTO cf_families (table_name, name, position) VALUES (?, ?, ?)", name, f.Name, i); err != nil {
			return fmt.Errorf("failed to write family %s of %s: %w", f.Name, name, err)
		}
		for _, k := range cluster.SortedKeys(f.Attributes) {
			if err := s.exec(ctx, tx, "INSERT INTO cf_family_attributes (table_name, family_name, name, value) VALUES (?, ?, ?, ?)", name, f.Name, k, f.Attributes[k]); err != nil {
				return fmt.Errorf("failed to write attribute %s of %s:%s: %w", k, name, f.Name, err)
			}
		}
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
