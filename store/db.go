package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/edportal/portal-iam/errors"
	"github.com/edportal/portal-iam/permission"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Open connects gorm to postgres or to sqlite (pure-Go modernc driver).
func Open(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	}
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql", "pq":
		return gorm.Open(postgres.Open(dsn), cfg)
	case "sqlite", "sqlite3":
		db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, cfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite serializes writers; one connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// translate maps gorm errors onto the error taxonomy.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", errors.ErrConflict, err)
	}
	return err
}

func notFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, errors.ErrNotFound)
}

// contextColumns flattens a context into its context_type/context_id pair.
func contextColumns(c permission.Context) (string, string) {
	if c.Type == permission.ContextGlobal {
		return string(permission.ContextGlobal), ""
	}
	return string(c.Type), strings.TrimSpace(c.ID)
}

// ruleConflictColumns matches the unique index of a rule table owned by owner.
func ruleConflictColumns(owner string) []clause.Column {
	return []clause.Column{{Name: owner}, {Name: "permission_key"}, {Name: "context_type"}, {Name: "context_id"}}
}

func exists(tx *gorm.DB, model any, id string) (bool, error) {
	var n int64
	if err := tx.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func now() time.Time { return time.Now().UTC() }

// invalidate bumps gen once a write has committed.
func invalidate(ctx context.Context, gen Generation) error {
	if gen == nil {
		return nil
	}
	if err := gen.Bump(ctx); err != nil {
		return fmt.Errorf("invalidate permission cache: %w", err)
	}
	return nil
}
