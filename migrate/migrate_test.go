package migrate

import (
	"database/sql"
	"testing"
)

func TestApplySQLite(t *testing.T) {
	db, err := sql.Open("sqlite", "file:migrate_apply?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if err := Apply(db, "sqlite"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	// a second run is a no-op
	if err := Apply(db, "sqlite"); err != nil {
		t.Fatalf("re-apply: %v", err)
	}

	for _, table := range []string{"institutions", "schools", "users", "user_groups", "group_members", "group_permissions", "user_permissions", "system_settings"} {
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Fatalf("table %s: %v", table, err)
		}
	}

	var ttl string
	if err := db.QueryRow("SELECT value FROM system_settings WHERE key = ?", "auth.token_ttl_minutes").Scan(&ttl); err != nil {
		t.Fatalf("default settings not seeded: %v", err)
	}
	if ttl != "60" {
		t.Fatalf("unexpected ttl %q", ttl)
	}
}

func TestDriverDialect(t *testing.T) {
	cases := map[string][2]string{
		"postgres":   {"postgres", "postgres"},
		"PostgreSQL": {"postgres", "postgres"},
		"sqlite3":    {"sqlite", "sqlite3"},
		"sqlite":     {"sqlite", "sqlite3"},
	}
	for in, want := range cases {
		d, dia, err := DriverDialect(in)
		if err != nil || d != want[0] || dia != want[1] {
			t.Fatalf("DriverDialect(%q) = (%s,%s,%v)", in, d, dia, err)
		}
	}
	if _, _, err := DriverDialect("mysql"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestRunNoopWithoutDSN(t *testing.T) {
	if err := Run(Options{Driver: "sqlite"}); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}
