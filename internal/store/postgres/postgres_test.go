package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  ClientConfig
		want string
	}{
		{
			name: "explicit dsn wins",
			cfg:  ClientConfig{DSN: "postgres://u:p@db/x", Host: "ignored"},
			want: "postgres://u:p@db/x",
		},
		{
			name: "defaults",
			cfg:  ClientConfig{Host: "localhost", Database: "mw", User: "u", Password: "p"},
			want: "postgres://u:p@localhost:5432/mw?sslmode=disable",
		},
		{
			name: "custom port and ssl",
			cfg:  ClientConfig{Host: "h", Port: 6543, Database: "d", User: "u", Password: "p", SSLMode: "require"},
			want: "postgres://u:p@h:6543/d?sslmode=require",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DSN(tt.cfg); got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMigrationFilesOrdered(t *testing.T) {
	names, err := migrationFiles()
	if err != nil {
		t.Fatalf("migrationFiles: %v", err)
	}
	if len(names) < 2 {
		t.Fatalf("expected at least two migrations, got %v", names)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("migrations out of order: %v", names)
		}
	}
}

func TestBuildAuditQuery(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	query, args := buildAuditQuery(domain.ListOpts{Since: &since, Limit: 20, Offset: 40})

	for _, want := range []string{"created_at >= $1", "LIMIT $2", "OFFSET $3"} {
		if !strings.Contains(query, want) {
			t.Errorf("query %q missing %q", query, want)
		}
	}
	if len(args) != 3 {
		t.Fatalf("args = %v, want 3 values", args)
	}
	if args[1] != 20 || args[2] != 40 {
		t.Errorf("pagination args = %v", args[1:])
	}
}

func TestBuildAuditQueryNoFilters(t *testing.T) {
	query, args := buildAuditQuery(domain.ListOpts{})
	if len(args) != 0 {
		t.Errorf("args = %v, want none", args)
	}
	if strings.Contains(query, "LIMIT") || strings.Contains(query, "$1") {
		t.Errorf("unexpected placeholders in %q", query)
	}
}
