package server

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/sirupsen/logrus"
)

// AppConfig defines application configuration loaded from files and environment.
type AppConfig struct {
	Env      string         `koanf:"env"`
	HTTP     HTTPConfig     `koanf:"http"`
	Database DatabaseConfig `koanf:"database"`
	Valkey   ValkeyConfig   `koanf:"valkey"`
	JWT      JWTConfig      `koanf:"jwt"`
	Cache    CacheConfig    `koanf:"cache"`
	Log      LogConfig      `koanf:"log"`
}

type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver      string `koanf:"driver"`
	DSN         string `koanf:"dsn"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

// ValkeyConfig enables the shared permission generation. An empty Addr keeps
// the generation in process, which is only correct for a single replica.
type ValkeyConfig struct {
	Addr   string `koanf:"addr"`
	Prefix string `koanf:"prefix"`
}

type JWTConfig struct {
	Secret string        `koanf:"secret"`
	Method string        `koanf:"method"`
	KeyID  string        `koanf:"key_id"`
	Issuer string        `koanf:"issuer"`
	TTL    time.Duration `koanf:"ttl"`
}

type CacheConfig struct {
	Size int           `koanf:"size"`
	TTL  time.Duration `koanf:"ttl"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

var (
	cfgOnce sync.Once
	cfgInst *AppConfig
)

// GetConfig loads and returns the singleton AppConfig.
func GetConfig() *AppConfig {
	cfgOnce.Do(func() {
		cfgInst = LoadConfig(logrus.StandardLogger())
	})
	return cfgInst
}

// LoadConfig builds a fresh AppConfig. Loading order:
// 1) defaults
// 2) config/config.yaml (optional, only when APP_CONFIG_FILES is truthy)
// 3) config/config.<APP_ENV>.yaml (optional), APP_ENV defaults to "local"
// 4) Environment variables with prefix PORTAL_ mapped using __ as nested separator, e.g. PORTAL_DATABASE__DSN
func LoadConfig(log logrus.FieldLogger) *AppConfig {
	k := koanf.New(".")
	for key, v := range defaults() {
		_ = k.Set(key, v)
	}

	configDir := os.Getenv("CONFIG_DIR")
	if configDir == "" {
		configDir = "config"
	}
	loadFiles := strings.EqualFold(os.Getenv("APP_CONFIG_FILES"), "1") || strings.EqualFold(os.Getenv("APP_CONFIG_FILES"), "true")
	envName := os.Getenv("APP_ENV")
	if envName == "" {
		envName = "local"
	}
	if loadFiles {
		for _, name := range []string{"config.yaml", "config." + envName + ".yaml"} {
			path := filepath.Join(configDir, name)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				log.WithError(err).WithField("file", path).Warn("config: failed loading file")
			}
		}
	}

	// PORTAL_DATABASE__DSN -> database.dsn
	if err := k.Load(env.Provider("PORTAL_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "PORTAL_")), "__", ".")
	}), nil); err != nil {
		log.WithError(err).Warn("config: failed loading environment")
	}

	var c AppConfig
	if err := k.Unmarshal("", &c); err != nil {
		log.WithError(err).Warn("config: unmarshal error")
	}
	if c.Env == "" {
		c.Env = envName
	}
	return &c
}

func defaults() map[string]any {
	return map[string]any{
		"http.addr":             ":8080",
		"http.shutdown_timeout": "10s",
		"database.driver":       "postgres",
		"valkey.prefix":         "portal-iam:",
		"jwt.method":            "HS256",
		"jwt.issuer":            "portal-iam",
		"jwt.ttl":               "1h",
		"cache.size":            10000,
		"cache.ttl":             "5m",
		"log.level":             "info",
		"log.format":            "json",
	}
}

// DatabaseDSN returns the effective DSN (config first, then MIGRATE_DSN).
func (c *AppConfig) DatabaseDSN() string {
	if c != nil && c.Database.DSN != "" {
		return strings.TrimSpace(c.Database.DSN)
	}
	return strings.TrimSpace(os.Getenv("MIGRATE_DSN"))
}

// NewLogger builds the process logger from the log section.
func (c *AppConfig) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if strings.EqualFold(c.Log.Format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
