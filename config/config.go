/*
Package config holds process configuration.

Values come from flags or environment variables through kong tags. A .env
file in the working directory is loaded first and never overrides variables
already set in the environment.
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"

	"github.com/warp/attendance/auth"
)

// Store drivers.
const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config is embedded into the CLI grammar.
type Config struct {
	Port           int      `help:"HTTP listen port." env:"PORT" default:"3000"`
	StoreDriver    string   `help:"Storage backend (mongo, sqlite, memory)." env:"STORE_DRIVER" enum:"mongo,sqlite,memory" default:"sqlite"`
	MongoURI       string   `help:"MongoDB connection string." env:"MONGOSTRING"`
	MongoDatabase  string   `help:"MongoDB database name." env:"MONGO_DATABASE" default:"track-attendance"`
	SQLitePath     string   `help:"SQLite database file." env:"SQLITE_PATH" default:"attendance.db"`
	PasetoSecret   string   `help:"Base64 encoded 32-byte PASETO key." env:"PASETO_SECRET"`
	AdminAPIKey    string   `help:"API key accepted by the admin sync endpoint." env:"ADMIN_API_KEY"`
	AllowedOrigins []string `help:"CORS allowed origins." env:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	LogLevel       string   `help:"Log level." env:"LOG_LEVEL" enum:"debug,info,warn,error" default:"info"`
	LogFile        string   `help:"Rotating log file; empty logs to stderr only." env:"LOG_FILE"`
}

// LoadDotEnv loads the given env files, or .env when none are given.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMongo:
		if c.MongoURI == "" {
			return errors.New("MONGOSTRING is required for the mongo store")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite store")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	if c.PasetoSecret != "" {
		if _, err := auth.DecodeKey(c.PasetoSecret); err != nil {
			return err
		}
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }
