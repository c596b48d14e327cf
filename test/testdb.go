// Package test holds helpers shared by package tests that need a database.
package test

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/edportal/portal-iam/migrate"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// NewDB returns a gorm handle on a migrated in-memory sqlite database that
// lives until tb finishes. Every call gets its own database.
func NewDB(tb testing.TB) *gorm.DB {
	tb.Helper()
	dsn := "file:" + dbName(tb) + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"

	// Holds the shared in-memory database open for the whole test.
	raw, err := sql.Open("sqlite", dsn)
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	tb.Cleanup(func() { _ = raw.Close() })
	if err := migrate.Apply(raw, "sqlite"); err != nil {
		tb.Fatalf("migrate: %v", err)
	}

	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		tb.Fatalf("open gorm: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("gorm db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func dbName(tb testing.TB) string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(tb.Name())
	return name + "_" + hex.EncodeToString(b[:])
}
