package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/charmbracelet/log"
	"github.com/titanous/json5"
)

type Config struct {
	HTTPAddr    string          `json:"httpAddr"`
	TCPAddr     string          `json:"tcpAddr"`
	GRPCAddr    string          `json:"grpcAddr"`
	LogLevel    string          `json:"logLevel"`
	CORSOrigins []string        `json:"corsOrigins"`
	RateLimit   RateLimitConfig `json:"rateLimit"`
	Store       StoreConfig     `json:"store"`
	Auth        AuthConfig      `json:"auth"`
	Scraper     ScraperConfig   `json:"scraper"`
}

// StoreConfig selects the catalog backend. The relational database named by
// Driver/DSN is always opened: it holds admin accounts even when the catalog
// itself lives in badger or a YAML file.
type StoreConfig struct {
	Backend string      `json:"backend"` // sql | badger | file
	Driver  string      `json:"driver"`  // sqlite3 | sqlite | libsql
	DSN     string      `json:"dsn"`
	Path    string      `json:"path"` // badger directory or YAML file
	Retry   RetryPolicy `json:"retry"`
}

type AuthConfig struct {
	JWTSecret     string `json:"jwtSecret"`
	JWTIssuer     string `json:"jwtIssuer"`
	JWTTTLHours   int    `json:"jwtTtlHours"`
	AdminUsername string `json:"adminUsername"`
	AdminPassword string `json:"adminPassword"`
}

func (a AuthConfig) JWTDuration() time.Duration {
	if a.JWTTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(a.JWTTTLHours) * time.Hour
}

type ScraperConfig struct {
	Concurrency     int    `json:"concurrency"`
	IntervalMillis  int    `json:"intervalMillis"`
	TimeoutSeconds  int    `json:"timeoutSeconds"`
	UserAgent       string `json:"userAgent"`
	CacheDir        string `json:"cacheDir"` // empty disables the page cache
	CacheTTLMinutes int    `json:"cacheTtlMinutes"`
}

func (s ScraperConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMillis) * time.Millisecond
}

func (s ScraperConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

func (s ScraperConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLMinutes) * time.Minute
}

type RateLimitConfig struct {
	RPS   float64 `json:"rps"` // zero disables limiting
	Burst int     `json:"burst"`
}

func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	dataDir := filepath.Join(home, ".vrstore")

	return Config{
		HTTPAddr:    ":8080",
		TCPAddr:     ":9090",
		GRPCAddr:    ":9092",
		LogLevel:    "info",
		CORSOrigins: []string{"*"},
		RateLimit:   RateLimitConfig{RPS: 20, Burst: 40},
		Store: StoreConfig{
			Backend: "sql",
			Driver:  "sqlite3",
			DSN:     filepath.Join(dataDir, "data.db"),
			Path:    filepath.Join(dataDir, "catalog"),
			Retry:   RetryPolicy{Attempts: 5, DelayMillis: 500},
		},
		Auth: AuthConfig{
			// dev default (change for production)
			JWTSecret:     "dev-secret-change-me",
			JWTIssuer:     "vrstore",
			JWTTTLHours:   24,
			AdminUsername: "admin",
		},
		Scraper: ScraperConfig{
			Concurrency:     4,
			IntervalMillis:  500,
			TimeoutSeconds:  10,
			CacheTTLMinutes: 360,
		},
	}
}

// ReadConfig reads <name>.<ext> and overlays <name>.local.<ext> on top, both
// json5. It returns os.ErrNotExist when neither file exists.
func ReadConfig[T any](name string) (T, error) {
	var out T
	found := false

	dir := filepath.Dir(name)
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	prefix := strings.TrimSuffix(base, ext)

	b, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(b) > 0 {
		if err := json5.Unmarshal(b, &out); err != nil {
			return out, fmt.Errorf("parse %s: %w", name, err)
		}
		found = true
	}

	local := filepath.Join(dir, prefix+".local"+ext)
	b, err = os.ReadFile(local)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(b) > 0 {
		var override T
		if err := json5.Unmarshal(b, &override); err != nil {
			return out, fmt.Errorf("parse %s: %w", local, err)
		}
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return out, fmt.Errorf("merge %s: %w", local, err)
		}
		found = true
	}

	if !found {
		return out, os.ErrNotExist
	}
	return out, nil
}

// LoadConfig layers defaults, the config file at path (if any) and VRSTORE_*
// environment variables, in that order.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		fileCfg, err := ReadConfig[Config](path)
		switch {
		case err == nil:
			if err := mergo.Merge(&cfg, fileCfg, mergo.WithOverride); err != nil {
				return cfg, fmt.Errorf("merge config: %w", err)
			}
			log.Info("[config] loaded", "path", path)
		case os.IsNotExist(err):
		default:
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.HTTPAddr, "VRSTORE_HTTP_ADDR")
	setString(&cfg.TCPAddr, "VRSTORE_TCP_ADDR")
	setString(&cfg.GRPCAddr, "VRSTORE_GRPC_ADDR")
	setString(&cfg.LogLevel, "VRSTORE_LOG_LEVEL")
	if v := os.Getenv("VRSTORE_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = strings.Split(v, ",")
	}

	setString(&cfg.Store.Backend, "VRSTORE_STORE_BACKEND")
	setString(&cfg.Store.Driver, "VRSTORE_DB_DRIVER")
	setString(&cfg.Store.DSN, "VRSTORE_DB_DSN")
	setString(&cfg.Store.Path, "VRSTORE_STORE_PATH")

	setString(&cfg.Auth.JWTSecret, "VRSTORE_JWT_SECRET")
	setString(&cfg.Auth.JWTIssuer, "VRSTORE_JWT_ISSUER")
	setInt(&cfg.Auth.JWTTTLHours, "VRSTORE_JWT_TTL_HOURS")
	setString(&cfg.Auth.AdminUsername, "VRSTORE_ADMIN_USERNAME")
	setString(&cfg.Auth.AdminPassword, "VRSTORE_ADMIN_PASSWORD")

	setInt(&cfg.Scraper.Concurrency, "VRSTORE_SCRAPE_CONCURRENCY")
	setInt(&cfg.Scraper.IntervalMillis, "VRSTORE_SCRAPE_INTERVAL_MS")
	setInt(&cfg.Scraper.TimeoutSeconds, "VRSTORE_SCRAPE_TIMEOUT_SECONDS")
	setString(&cfg.Scraper.CacheDir, "VRSTORE_SCRAPE_CACHE_DIR")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// setInt ignores values that do not parse, keeping the previous setting.
func setInt(dst *int, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}
