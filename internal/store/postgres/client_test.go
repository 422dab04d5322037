package postgres

import (
	"strings"
	"testing"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  ClientConfig
		want string
	}{
		{
			name: "explicit dsn wins",
			cfg:  ClientConfig{DSN: "postgres://a@b/c", Host: "ignored"},
			want: "postgres://a@b/c",
		},
		{
			name: "defaults",
			cfg:  ClientConfig{Host: "localhost", Database: "postgres", User: "postgres", Password: "pw"},
			want: "postgres://postgres:pw@localhost:5432/postgres?sslmode=disable",
		},
		{
			name: "password is escaped",
			cfg:  ClientConfig{Host: "db", Port: 6543, Database: "depthview", User: "u", Password: "p@ss/word", SSLMode: "require"},
			want: "postgres://u:p%40ss%2Fword@db:6543/depthview?sslmode=require",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DSN(tt.cfg); got != tt.want {
				t.Fatalf("DSN = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMigrationsAreEmbeddedInOrder(t *testing.T) {
	names, err := migrationNames()
	if err != nil {
		t.Fatalf("migrationNames: %v", err)
	}
	if len(names) == 0 || names[0] != "001_trades.sql" {
		t.Fatalf("migrations = %v", names)
	}
	data, err := migrationsFS.ReadFile("migrations/" + names[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "UNIQUE (symbol, trade_id)") {
		t.Fatal("trades migration lost its dedup constraint")
	}
}
