package seed

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/edportal/portal-iam/migrate"
	"github.com/edportal/portal-iam/store"
	"github.com/pressly/goose/v3"
)

// seedFS holds embedded SQL seed files in seed/sql.
//
//go:embed sql/*.sql
var seedFS embed.FS

// DemoUserIDs are the accounts created by the demo seed.
var DemoUserIDs = []string{"demo-admin", "demo-teacher"}

// Options defines how to run seed migrations.
type Options struct {
	Driver       string      // sqlite or postgres
	DSN          string      // same database the schema migrations ran against
	Command      string      // up, down, status, version, up-to, down-to, redo, reset
	Target       int64       // used with up-to/down-to
	DemoPassword string      // optional, set on every demo user after "up"
	Logger       *log.Logger // optional logger
}

// Run executes seed migrations based on provided options. If Driver or DSN are empty, it is a no-op.
func Run(opts Options) error {
	if strings.TrimSpace(opts.Driver) == "" || strings.TrimSpace(opts.DSN) == "" {
		return nil
	}
	if !hasValidSeedFiles(opts.Logger) {
		return nil
	}

	driver, dialect, err := migrate.DriverDialect(opts.Driver)
	if err != nil {
		return err
	}
	db, err := sql.Open(driver, opts.DSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	if err := prepare(dialect, opts.Logger); err != nil {
		return err
	}

	dir := "sql"
	cmd := strings.ToLower(strings.TrimSpace(opts.Command))
	switch cmd {
	case "", "up":
		err = goose.Up(db, dir)
	case "down":
		err = goose.Down(db, dir)
	case "status":
		err = goose.Status(db, dir)
	case "version":
		err = goose.Version(db, dir)
	case "up-to":
		err = goose.UpTo(db, dir, opts.Target)
	case "down-to":
		err = goose.DownTo(db, dir, opts.Target)
	case "redo":
		err = goose.Redo(db, dir)
	case "reset":
		err = goose.Reset(db, dir)
	default:
		return fmt.Errorf("unknown seed command: %s", opts.Command)
	}
	if err != nil {
		return err
	}

	if (cmd == "" || cmd == "up") && opts.DemoPassword != "" {
		return SetDemoPasswords(context.Background(), opts.Driver, opts.DSN, opts.DemoPassword)
	}
	return nil
}

// Apply loads the demo data into an already migrated database.
func Apply(db *sql.DB, driverName string) error {
	_, dialect, err := migrate.DriverDialect(driverName)
	if err != nil {
		return err
	}
	if err := prepare(dialect, nil); err != nil {
		return err
	}
	return goose.Up(db, "sql")
}

// SetDemoPasswords hashes password onto every demo account.
func SetDemoPasswords(ctx context.Context, driver, dsn, password string) error {
	db, err := store.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	users := store.NewUserStore(db, nil)
	for _, id := range DemoUserIDs {
		if err := users.SetPassword(ctx, id, password); err != nil {
			return fmt.Errorf("demo user %s: %w", id, err)
		}
	}
	return nil
}

func prepare(dialect string, logger *log.Logger) error {
	if logger != nil {
		goose.SetLogger(logger)
	} else {
		goose.SetLogger(goose.NopLogger())
	}
	goose.SetBaseFS(seedFS)
	goose.SetTableName("seed_migrations") // Separate table from schema migrations
	return goose.SetDialect(dialect)
}

// hasValidSeedFiles checks if there are any valid goose migration files in the seed/sql directory.
// Valid files must have the format: VERSION_name.sql (e.g., 00001_demo.sql)
func hasValidSeedFiles(logger *log.Logger) bool {
	entries, err := seedFS.ReadDir("sql")
	if err != nil {
		if logger != nil {
			logger.Println("no seed SQL directory found, skipping seed")
		}
		return false
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".sql") {
			continue
		}
		if idx := strings.Index(name, "_"); idx > 0 {
			return true
		}
	}

	if logger != nil {
		logger.Println("no valid seed SQL files found (files must be named like 00001_name.sql), skipping seed")
	}
	return false
}

// RunFromEnv reads configuration from environment variables and runs seed migrations
// if SEED_ON_START is truthy.
//
// Env vars:
// - SEED_ON_START: if true/1, run seed migrations
// - SEED_DRIVER: sqlite or postgres (falls back to MIGRATE_DRIVER)
// - SEED_DSN: db connection string (falls back to MIGRATE_DSN)
// - SEED_CMD: up, down, status, version, up-to, down-to, redo, reset (default: up)
// - SEED_TARGET: integer version for up-to/down-to
// - SEED_DEMO_PASSWORD: password given to the demo accounts
func RunFromEnv() error {
	if !migrate.IsTruthy(os.Getenv("SEED_ON_START")) {
		return nil
	}

	cmd := strings.TrimSpace(os.Getenv("SEED_CMD"))
	if cmd == "" {
		cmd = "up"
	}

	var target int64
	if v := strings.TrimSpace(os.Getenv("SEED_TARGET")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			target = n
		}
	}

	// Fall back to MIGRATE_* env vars if SEED_* are not set
	driver := strings.TrimSpace(os.Getenv("SEED_DRIVER"))
	if driver == "" {
		driver = strings.TrimSpace(os.Getenv("MIGRATE_DRIVER"))
	}
	dsn := strings.TrimSpace(os.Getenv("SEED_DSN"))
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("MIGRATE_DSN"))
	}

	return Run(Options{
		Driver:       driver,
		DSN:          dsn,
		Command:      cmd,
		Target:       target,
		DemoPassword: os.Getenv("SEED_DEMO_PASSWORD"),
		Logger:       log.New(os.Stdout, "[seed] ", log.LstdFlags),
	})
}
