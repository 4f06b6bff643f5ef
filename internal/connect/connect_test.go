package connect

import (
	"context"
	"path/filepath"
	"testing"
)

func TestDetectBackend(t *testing.T) {
	tests := []struct {
		url  string
		want Backend
	}{
		{"http://localhost:8080", BackendREST},
		{"HTTPS://gateway.example.com", BackendREST},
		{"postgres://user@localhost/db", BackendPostgres},
		{"postgresql://localhost/db", BackendPostgres},
		{"libsql://mydb-user.turso.io?authToken=abc", BackendLibSQL},
		{"sqlite://./cluster.db", BackendSQLite},
		{"file:cluster.db?cache=shared", BackendSQLite},
		{"schema/cluster.sqlite3", BackendSQLite},
		{":memory:", BackendSQLite},
		{"mysql://localhost/db", BackendUnknown},
		{"", BackendUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := DetectBackend(tt.url); got != tt.want {
				t.Errorf("DetectBackend(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestSQLitePath(t *testing.T) {
	tests := map[string]string{
		"sqlite://data/cluster.db": "data/cluster.db",
		"file:cluster.db?mode=rwc": "cluster.db",
		"plain.db":                 "plain.db",
	}
	for in, want := range tests {
		if got := SQLitePath(in); got != want {
			t.Errorf("SQLitePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOpenSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cluster.db")
	admin, err := Open(context.Background(), "sqlite://"+path, nil)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer func() { _ = admin.Close() }()

	names, err := admin.ListTables(context.Background())
	if err != nil {
		t.Fatalf("ListTables returned error: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected empty cluster, got %v", names)
	}
}

func TestOpenUnsupported(t *testing.T) {
	if _, err := Open(context.Background(), "mysql://localhost/db", nil); err == nil {
		t.Fatal("expected error for unsupported URL")
	}
}
