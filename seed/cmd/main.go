// Command seed loads the demo institution: one school, an administrator and
// a teacher, and a reviewers group granting reports at the school.
//
//	seed [-cmd up|down|status|...] [-target N] [-password secret]
//
// Run it after migrate against the same database. The password, or
// SEED_DEMO_PASSWORD, is hashed onto every demo account after "up"; without
// one the accounts cannot log in.
package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/edportal/portal-iam/seed"
	"github.com/edportal/portal-iam/server"
	"github.com/sirupsen/logrus"
)

func main() {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	cmd := fs.String("cmd", "up", "goose command for the seed set")
	target := fs.Int64("target", 0, "seed version for up-to and down-to")
	password := fs.String("password", os.Getenv("SEED_DEMO_PASSWORD"), "password for the demo accounts")
	_ = fs.Parse(os.Args[1:])

	cfg := server.GetConfig()
	logger := cfg.NewLogger()

	dsn := cfg.DatabaseDSN()
	if strings.TrimSpace(dsn) == "" {
		logger.Fatal("no database configured, set PORTAL_DATABASE__DSN or MIGRATE_DSN")
	}
	entry := logger.WithFields(logrus.Fields{"cmd": *cmd, "accounts": seed.DemoUserIDs})
	if *password == "" && (*cmd == "up" || *cmd == "") {
		entry.Warn("no demo password given, demo accounts will not be able to log in")
	}

	err := seed.Run(seed.Options{
		Driver:       cfg.Database.Driver,
		DSN:          dsn,
		Command:      *cmd,
		Target:       *target,
		DemoPassword: *password,
		Logger:       log.New(logger.WriterLevel(logrus.InfoLevel), "", 0),
	})
	if err != nil {
		entry.WithError(err).Error("demo seed failed")
		os.Exit(1)
	}
	entry.Info("demo institution seeded")
}
