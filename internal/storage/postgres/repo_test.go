package postgres

import (
	"testing"

	"github.com/jackc/pgx/v5"

	"tabload/internal/storage"
)

func TestDSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  storage.Config
		want string
	}{
		{"defaults", storage.Config{Database: "shop"}, "postgres://localhost:5432/shop"},
		{"credentials", storage.Config{Host: "db", Port: 6543, User: "etl", Password: "p@ss", Database: "x"}, "postgres://etl:p%40ss@db:6543/x"},
		{"explicit", storage.Config{DSN: "postgres://a@b/c", Host: "ignored"}, "postgres://a@b/c"},
	}
	for _, tt := range tests {
		if got := DSN(tt.cfg); got != tt.want {
			t.Errorf("%s: DSN = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestDSNParses(t *testing.T) {
	t.Parallel()

	cfg, err := pgx.ParseConfig(DSN(storage.Config{Host: "db", User: "etl", Password: "s3cret", Database: "warehouse"}))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Host != "db" || cfg.Port != 5432 || cfg.User != "etl" || cfg.Password != "s3cret" || cfg.Database != "warehouse" {
		t.Fatalf("parsed = %+v", cfg.Config)
	}
}
