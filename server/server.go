package server

import (
	"github.com/edportal/portal-iam/authz"
	"github.com/edportal/portal-iam/generates"
	"github.com/edportal/portal-iam/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Server holds the stores and services the HTTP handlers depend on.
type Server struct {
	Users     *store.UserStore
	Groups    *store.GroupStore
	Overrides *store.OverrideStore
	Schools   *store.SchoolStore
	Settings  *store.SystemSettingsStore
	Resolver  *authz.Resolver
	Tokens    *generates.TokenIssuer
	Logger    logrus.FieldLogger
	Registry  *prometheus.Registry

	db *gorm.DB
}

// Ping reports whether the database answers.
func (s *Server) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Options configures NewServer.
type Options struct {
	DB         *gorm.DB
	Generation store.Generation
	Tokens     *generates.TokenIssuer
	Logger     logrus.FieldLogger
	Registry   *prometheus.Registry
	Cache      CacheConfig
}

// NewServer wires the stores, the resolver and its metrics over one database.
func NewServer(opts Options) *Server {
	if opts.Generation == nil {
		opts.Generation = store.NewLocalGeneration()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	rules := store.NewRuleStore(opts.DB)
	return &Server{
		Users:     store.NewUserStore(opts.DB, opts.Generation),
		Groups:    store.NewGroupStore(opts.DB, opts.Generation),
		Overrides: store.NewOverrideStore(opts.DB, opts.Generation),
		Schools:   rules.Schools,
		Settings:  store.NewSystemSettingsStore(opts.DB),
		Resolver: authz.NewResolver(rules, authz.Options{
			Generation: opts.Generation,
			CacheSize:  opts.Cache.Size,
			CacheTTL:   opts.Cache.TTL,
			Metrics:    authz.NewMetrics(opts.Registry),
			Logger:     opts.Logger.WithField("component", "authz"),
		}),
		Tokens:   opts.Tokens,
		Logger:   opts.Logger,
		Registry: opts.Registry,
		db:       opts.DB,
	}
}
