package migrations

import (
	"testing"
)

func TestSplitStatements(t *testing.T) {
	in := "-- header\nCREATE TABLE a (x Int64);\n\n-- second\nCREATE TABLE b (y String);\n"
	got := splitStatements(in)
	if len(got) != 2 {
		t.Fatalf("got %d statements, want 2: %q", len(got), got)
	}
	if got[0] != "CREATE TABLE a (x Int64)" {
		t.Errorf("stmt[0] = %q", got[0])
	}
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default:@localhost:9000/lobbi")
	if err != nil || db != "lobbi" {
		t.Fatalf("got %q, %v", db, err)
	}
	if _, err := databaseFromDSN("clickhouse://localhost:9000"); err == nil {
		t.Error("expected error for missing database")
	}
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	pg, err := load(PostgresFS, "postgres")
	if err != nil || len(pg) == 0 {
		t.Fatalf("postgres migrations: %d, %v", len(pg), err)
	}
	ch, err := load(ClickhouseFS, "clickhouse")
	if err != nil || len(ch) == 0 {
		t.Fatalf("clickhouse migrations: %d, %v", len(ch), err)
	}
}
