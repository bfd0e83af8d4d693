// Package config loads the server settings. Values come from the environment
// (and an optional .env file), then a YAML file, then command-line flags; each
// layer overrides the one before it.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Addr                 string        `koanf:"addr"`
	DatabaseURL          string        `koanf:"database_url"`
	Storage              string        `koanf:"storage"`
	AutoMigrate          bool          `koanf:"auto_migrate"`
	SessionKey           string        `koanf:"session_key"`
	SessionEncryptionKey string        `koanf:"session_encryption_key"`
	SessionMaxAge        int           `koanf:"session_max_age"`
	SecureCookies        bool          `koanf:"secure_cookies"`
	LogFormat            string        `koanf:"log_format"`
	RetryAttempts        uint64        `koanf:"retry_attempts"`
	RetryDelay           time.Duration `koanf:"retry_delay"`
	WriteTimeout         time.Duration `koanf:"write_timeout"`
	BcryptCost           int           `koanf:"bcrypt_cost"`
}

// RegisterFlags adds the flags that may override configuration keys. Flag
// names use dashes where keys use underscores.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("addr", ":8080", "listen address")
	fs.String("database-url", "", "Postgres connection URL")
	fs.String("storage", StoragePostgres, "storage backend (postgres|memory)")
	fs.Bool("auto-migrate", false, "apply pending migrations on start")
	fs.String("log-format", "text", "log format (text|json)")
	fs.Bool("secure-cookies", false, "mark the session cookie Secure")
}

// Load builds the configuration. path may be empty; fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	k := koanf.New(".")
	defaults := envDefaults()
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("key", key).Wrap(err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if _, ok := defaults[key]; !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_INVALID").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	errb := oops.Code("CONFIG_INVALID")
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errb.Errorf("database_url is required for postgres storage")
		}
	case StorageMemory:
	default:
		return errb.With("storage", c.Storage).Errorf("unknown storage %q", c.Storage)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return errb.With("log_format", c.LogFormat).Errorf("unknown log format %q", c.LogFormat)
	}

	if n := len(c.SessionEncryptionKey); n != 0 && n != 16 && n != 24 && n != 32 {
		return errb.Errorf("session_encryption_key must be 16, 24 or 32 bytes, got %d", n)
	}
	if c.SessionMaxAge < 0 {
		return errb.Errorf("session_max_age must not be negative")
	}
	if c.BcryptCost != 0 && (c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost) {
		return errb.Errorf("bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.RetryDelay < 0 || c.WriteTimeout < 0 {
		return errb.Errorf("retry_delay and write_timeout must not be negative")
	}
	return nil
}

func envDefaults() map[string]any {
	return map[string]any{
		"addr":                   getEnv("COURSEHUB_ADDR", ":8080"),
		"database_url":           getEnv("DATABASE_URL", databaseURLFromParts()),
		"storage":                getEnv("COURSEHUB_STORAGE", StoragePostgres),
		"auto_migrate":           getEnv("COURSEHUB_AUTO_MIGRATE", "false"),
		"session_key":            getEnv("SESSION_KEY", ""),
		"session_encryption_key": getEnv("SESSION_ENCRYPTION_KEY", ""),
		"session_max_age":        getEnv("SESSION_MAX_AGE", "86400"),
		"secure_cookies":         getEnv("SECURE_COOKIES", "false"),
		"log_format":             getEnv("LOG_FORMAT", "text"),
		"retry_attempts":         getEnv("RETRY_ATTEMPTS", "3"),
		"retry_delay":            getEnv("RETRY_DELAY", "50ms"),
		"write_timeout":          getEnv("WRITE_TIMEOUT", "5s"),
		"bcrypt_cost":            getEnv("BCRYPT_COST", fmt.Sprint(bcrypt.DefaultCost)),
	}
}

// databaseURLFromParts builds a URL from the DB_* variables used for local
// development.
func databaseURLFromParts() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getEnv("DB_USER", "postgres"), getEnv("DB_PASSWORD", "postgres")),
		Host:     getEnv("DB_HOST", "localhost") + ":" + getEnv("DB_PORT", "5432"),
		Path:     getEnv("DB_NAME", "coursehub"),
		RawQuery: "sslmode=" + getEnv("DB_SSLMODE", "disable"),
	}
	return u.String()
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
