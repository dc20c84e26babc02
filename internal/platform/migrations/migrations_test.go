package migrations

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestApplyExecutesAllMigrations(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_log").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := Apply(context.Background(), db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplyStopsOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnError(context.DeadlineExceeded)

	err = Apply(context.Background(), db)
	if err == nil || !strings.Contains(err.Error(), "000001_init.up.sql") {
		t.Fatalf("expected error naming the failed file, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEveryUpHasDown(t *testing.T) {
	ups, err := UpFiles()
	if err != nil {
		t.Fatalf("list migrations: %v", err)
	}
	if len(ups) < 2 {
		t.Fatalf("expected at least two migrations, got %v", ups)
	}
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := files.ReadFile("sql/" + down); err != nil {
			t.Fatalf("missing down migration for %s", up)
		}
	}
}

func TestMigratorRoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping migrator integration test")
	}

	mg, err := NewMigrator(dsn)
	if err != nil {
		t.Fatalf("new migrator: %v", err)
	}
	defer mg.Close()

	if err := mg.Up(); err != nil {
		t.Fatalf("up: %v", err)
	}
	v, dirty, err := mg.Version()
	if err != nil || dirty || v != 2 {
		t.Fatalf("expected clean version 2, got %d dirty=%v err=%v", v, dirty, err)
	}
	if err := mg.Up(); err != nil {
		t.Fatalf("second up should be a no-op: %v", err)
	}
}
