package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"txflow/internal/bootstrap/config"
)

func TestWithSQLitePragmas(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{in: "data/app.sqlite", want: "data/app.sqlite?_pragma=busy_timeout(5000)"},
		{in: "file:app.sqlite?cache=shared", want: "file:app.sqlite?cache=shared&_pragma=busy_timeout(5000)"},
		{in: "app.sqlite?_pragma=busy_timeout(10)", want: "app.sqlite?_pragma=busy_timeout(10)"},
		{in: ":memory:", want: ":memory:"},
	}
	for _, tc := range cases {
		if got := withSQLitePragmas(tc.in); got != tc.want {
			t.Fatalf("withSQLitePragmas(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSQLiteFilePath(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{in: "file:data/app.sqlite?cache=shared", want: "data/app.sqlite"},
		{in: "file::memory:?cache=shared", want: ""},
		{in: ":memory:", want: ""},
		{in: " app.sqlite ", want: "app.sqlite"},
	}
	for _, tc := range cases {
		if got := sqliteFilePath(tc.in); got != tc.want {
			t.Fatalf("sqliteFilePath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "deeper")
	db, err := Open(context.Background(), config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(dir, "txflow.sqlite"),
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.Exec("CREATE TABLE probe (id INTEGER)").Error; err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("directory not created: %v", err)
	}

	if _, err := Open(context.Background(), config.DatabaseConfig{Driver: "mysql", DSN: "x"}); err == nil {
		t.Fatalf("Open() expected error for unsupported driver")
	}
}
