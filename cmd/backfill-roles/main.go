package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/edportal/portal-iam/server"
	"github.com/edportal/portal-iam/store"
	"github.com/sirupsen/logrus"
)

func main() {
	fs := flag.NewFlagSet("backfill-roles", flag.ExitOnError)
	overwrite := fs.Bool("overwrite", false, "recompute roles even when a catalog role is already set")
	batch := fs.Int("batch", 500, "users loaded per batch")
	_ = fs.Parse(os.Args[1:])

	cfg := server.GetConfig()
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.Database.Driver, cfg.DatabaseDSN())
	if err != nil {
		logger.WithError(err).Fatal("open database")
	}

	// Running servers only drop cached matrices when the shared generation moves.
	var gen store.Generation
	if cfg.Valkey.Addr != "" {
		vg, err := store.NewValkeyGeneration(cfg.Valkey.Addr, cfg.Valkey.Prefix)
		if err != nil {
			logger.WithError(err).Fatal("connect valkey")
		}
		defer vg.Close()
		gen = vg
	}

	res, err := store.NewUserStore(db, gen).BackfillRoles(ctx, *overwrite, *batch)
	if err != nil {
		logger.WithError(err).WithField("scanned", res.Scanned).Error("backfill failed")
		os.Exit(1)
	}
	fields := logrus.Fields{"scanned": res.Scanned, "updated": res.Updated}
	for role, n := range res.ByRole {
		fields["role."+role] = n
	}
	logger.WithFields(fields).Info("role backfill complete")
}
