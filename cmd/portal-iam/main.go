package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/edportal/portal-iam/generates"
	"github.com/edportal/portal-iam/migrate"
	"github.com/edportal/portal-iam/seed"
	"github.com/edportal/portal-iam/server"
	"github.com/edportal/portal-iam/store"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg := server.GetConfig()
	logger := cfg.NewLogger()
	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dsn := cfg.DatabaseDSN()
	db, err := store.Open(cfg.Database.Driver, dsn)
	if err != nil {
		logger.WithError(err).Fatal("open database")
	}

	if cfg.Database.AutoMigrate {
		sqlDB, err := db.DB()
		if err != nil {
			logger.WithError(err).Fatal("database handle")
		}
		if err := migrate.Apply(sqlDB, cfg.Database.Driver); err != nil {
			logger.WithError(err).Fatal("migrations failed")
		}
		logger.Info("schema up to date")
	}
	// SEED_ON_START=1 SEED_DEMO_PASSWORD=... loads the demo institution.
	if err := seed.RunFromEnv(); err != nil {
		logger.WithError(err).Fatal("seed failed")
	}

	var gen store.Generation = store.NewLocalGeneration()
	if cfg.Valkey.Addr != "" {
		vg, err := store.NewValkeyGeneration(cfg.Valkey.Addr, cfg.Valkey.Prefix)
		if err != nil {
			logger.WithError(err).Fatal("connect valkey")
		}
		defer vg.Close()
		gen = vg
		logger.WithField("addr", cfg.Valkey.Addr).Info("using shared permission generation")
	} else {
		logger.Warn("valkey not configured, permission cache is local to this replica")
	}

	method, err := generates.SigningMethod(cfg.JWT.Method)
	if err != nil {
		logger.WithError(err).Fatal("jwt method")
	}
	tokens, err := generates.NewTokenIssuer(cfg.JWT.KeyID, []byte(cfg.JWT.Secret), method, cfg.JWT.Issuer, cfg.JWT.TTL)
	if err != nil {
		logger.WithError(err).Fatal("token issuer")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv := server.NewServer(server.Options{
		DB:         db,
		Generation: gen,
		Tokens:     tokens,
		Logger:     logger,
		Registry:   registry,
		Cache:      cfg.Cache,
	})

	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: server.NewGinEngine(srv),
	}

	go func() {
		logger.WithField("addr", cfg.HTTP.Addr).Info("starting http server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("http server")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown")
		os.Exit(1)
	}
}
