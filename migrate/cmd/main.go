// Command migrate applies the portal-iam schema (directory, groups, rule
// tables and default system settings) with goose.
//
//	migrate [-cmd up|down|status|version|up-to|down-to|redo|reset] [-target N]
//
// The database is the one the server is configured with: the koanf layers
// under PORTAL_DATABASE__*, with MIGRATE_DSN as the DSN fallback.
package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/edportal/portal-iam/migrate"
	"github.com/edportal/portal-iam/server"
	"github.com/sirupsen/logrus"
)

func main() {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	cmd := fs.String("cmd", "up", "goose command: up, down, status, version, up-to, down-to, redo, reset")
	target := fs.Int64("target", 0, "schema version for up-to and down-to")
	_ = fs.Parse(os.Args[1:])

	cfg := server.GetConfig()
	logger := cfg.NewLogger()

	dsn := cfg.DatabaseDSN()
	if strings.TrimSpace(dsn) == "" {
		logger.Fatal("no database configured, set PORTAL_DATABASE__DSN or MIGRATE_DSN")
	}
	entry := logger.WithFields(logrus.Fields{"driver": cfg.Database.Driver, "cmd": *cmd})

	err := migrate.Run(migrate.Options{
		Driver:  cfg.Database.Driver,
		DSN:     dsn,
		Command: *cmd,
		Target:  *target,
		Logger:  log.New(logger.WriterLevel(logrus.InfoLevel), "", 0),
	})
	if err != nil {
		entry.WithError(err).Error("schema migration failed")
		os.Exit(1)
	}
	entry.Info("portal-iam schema migrated")
}
