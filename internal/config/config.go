// Package config handles loading and parsing application configuration.
// It supports two sources for the file path (in priority order):
//  1. An environment variable:  CONFIG_PATH=/path/to/config.yaml
//  2. A command-line flag:      --config=/path/to/config.yaml
//
// Every value in the file can be overridden by the environment variable
// named in its env:"..." tag. A .env file in the working directory is
// loaded into the environment first, if one exists.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Storage drivers accepted in storage.driver.
const (
	DriverSQLite     = "sqlite"      // database/sql + go-sqlite3, hand-written SQL
	DriverGormSQLite = "gorm-sqlite" // gorm over sqlite
	DriverPostgres   = "postgres"    // gorm over postgres
	DriverMySQL      = "mysql"       // gorm over mysql
)

// Config is the root configuration structure.
type Config struct {
	// Env controls log format and verbosity: "dev", "staging" or "prod".
	Env string `yaml:"env" env:"ENV" env-required:"true"`

	Storage      Storage      `yaml:"storage"`
	HTTPServer   HTTPServer   `yaml:"http_server"`
	CORS         CORS         `yaml:"cors"`
	Pagination   Pagination   `yaml:"pagination"`
	Confirmation Confirmation `yaml:"confirmation"`
	Redis        Redis        `yaml:"redis"`
	Auth         Auth         `yaml:"auth"`
}

// Storage selects and locates the record store.
type Storage struct {
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"sqlite"`
	// Path is the sqlite database file, used by the sqlite drivers.
	Path string `yaml:"path" env:"STORAGE_PATH"`
	// DSN is the connection string for postgres and mysql.
	DSN string `yaml:"dsn" env:"STORAGE_DSN"`
}

// HTTPServer holds settings specific to the HTTP server.
type HTTPServer struct {
	Addr            string        `yaml:"address" env:"HTTP_SERVER_ADDR" env-required:"true"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

// CORS lists the origins allowed to call the API from a browser.
type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"*" env-separator:","`
}

// Pagination bounds list requests.
type Pagination struct {
	MaxLimit int `yaml:"max_limit" env:"PAGINATION_MAX_LIMIT" env-default:"100"`
}

// Confirmation configures the delete confirmation tokens.
type Confirmation struct {
	// Required rejects DELETE requests that carry no valid token.
	Required bool          `yaml:"required" env:"CONFIRM_REQUIRED" env-default:"false"`
	TTL      time.Duration `yaml:"ttl" env:"CONFIRM_TTL" env-default:"2m"`
}

// Redis locates the token store. An empty Addr keeps tokens in memory.
type Redis struct {
	Addr     string `yaml:"address" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// Auth enables bearer token checks on /api when JWTSecret is set.
type Auth struct {
	JWTSecret string `yaml:"jwt_secret" env:"AUTH_JWT_SECRET"`
}

// Load reads the YAML file at path, applies environment overrides and
// checks the result.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverSQLite, DriverGormSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for driver %q", c.Storage.Driver)
		}
	case DriverPostgres, DriverMySQL:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for driver %q", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Pagination.MaxLimit < 1 {
		return errors.New("pagination.max_limit must be at least 1")
	}
	if c.Confirmation.TTL <= 0 {
		return errors.New("confirmation.ttl must be positive")
	}
	return nil
}

// MustLoad reads, validates, and returns the application config.
// Functions prefixed with "Must" exit the process on failure, so if this
// returns, the config is valid.
func MustLoad() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("cannot load .env: %s", err.Error())
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		flags := flag.String("config", "", "Path to the configuration YAML file")
		flag.Parse()
		configPath = *flags
	}

	if configPath == "" {
		log.Fatal("config path is not set: use --config flag or CONFIG_PATH env var")
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatal(err.Error())
	}
	return cfg
}
