package db

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/lalithlochan/subtrack/internal/db/migrations"
)

func TestRunMigrations_Success(t *testing.T) {
	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	called := false
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		called = true
		if dir != "." {
			return errors.New("unexpected dir")
		}
		return nil
	}

	if err := RunMigrations(context.Background(), nil, zap.NewNop()); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
	if !called {
		t.Fatal("expected goose to be invoked")
	}
}

func TestRunMigrations_PropagatesError(t *testing.T) {
	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	boom := errors.New("boom")
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return boom
	}

	err := RunMigrations(context.Background(), nil, zap.NewNop())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	names, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(names) < 3 {
		t.Fatalf("expected at least 3 migrations, got %d", len(names))
	}

	for _, name := range names {
		body, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !strings.Contains(string(body), "-- +goose Up") {
			t.Errorf("%s: missing goose Up annotation", name)
		}
	}
}

func TestConfigDSN(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    []string
		notWant string
	}{
		{
			name: "with password",
			cfg: Config{
				Host:     "localhost",
				Port:     5432,
				User:     "subtrack",
				Password: "secret",
				Database: "subtrack",
				SSLMode:  "disable",
			},
			want: []string{"host=localhost", "port=5432", "user=subtrack", "password=secret", "dbname=subtrack", "sslmode=disable"},
		},
		{
			name: "without password",
			cfg: Config{
				Host:     "db.internal",
				Port:     6432,
				User:     "reminders",
				Database: "subtrack",
				SSLMode:  "require",
			},
			want:    []string{"host=db.internal", "port=6432", "user=reminders", "dbname=subtrack", "sslmode=require"},
			notWant: "password=",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn := tt.cfg.DSN()
			for _, want := range tt.want {
				if !strings.Contains(dsn, want) {
					t.Errorf("DSN %q missing %q", dsn, want)
				}
			}
			if tt.notWant != "" && strings.Contains(dsn, tt.notWant) {
				t.Errorf("DSN %q should not contain %q", dsn, tt.notWant)
			}
		})
	}
}
