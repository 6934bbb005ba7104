// Package config handles loading application configuration.
//
// Values come from the process environment. Sources, in priority order:
//  1. Variables already set in the environment
//  2. A .env file in the working directory, if one exists
//  3. An optional YAML file named by CONFIG_PATH or --config
//  4. The env-default tags below
package config

import (
	"flag"
	"log"
	"net"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

// Config is the root configuration structure. Every field maps to a YAML
// key and can be overridden by the matching environment variable.
type Config struct {
	// Env controls log format and verbosity: "dev", "staging" or "prod".
	Env string `yaml:"env" env:"ENV" env-default:"dev"`

	// StorageDriver selects the backend: "mongo" or "sqlite".
	StorageDriver string `yaml:"storage_driver" env:"STORAGE_DRIVER" env-default:"mongo"`

	// MongoURI is the MongoDB connection string.
	MongoURI string `yaml:"mongo_uri" env:"MONGO_URI" env-default:"mongodb://localhost:27017/test"`

	// MongoDatabase overrides the database named in MongoURI.
	MongoDatabase string `yaml:"mongo_database" env:"MONGO_DATABASE"`

	// MongoCollection is the collection holding person documents.
	MongoCollection string `yaml:"mongo_collection" env:"MONGO_COLLECTION" env-default:"people"`

	// StoragePath is the SQLite file used when StorageDriver is "sqlite".
	StoragePath string `yaml:"storage_path" env:"STORAGE_PATH" env-default:"storage/people.db"`

	HTTPServer `yaml:"http_server"`
}

// HTTPServer holds settings specific to the HTTP server.
type HTTPServer struct {
	// Port is used when Addr is empty; the server listens on all interfaces.
	Port string `yaml:"port" env:"PORT" env-default:"3000"`

	// Addr is a full listen address such as "localhost:8082".
	Addr string `yaml:"address" env:"HTTP_SERVER_ADDR"`
}

// ListenAddr is the address the HTTP server binds to.
func (s HTTPServer) ListenAddr() string {
	if s.Addr != "" {
		return s.Addr
	}
	return net.JoinHostPort("", s.Port)
}

// Load reads the configuration. configPath may be empty, in which case only
// the environment is consulted.
func Load(configPath string) (*Config, error) {
	// A missing .env file is normal outside local development.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "loading .env file")
	}

	var cfg Config
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, errors.Wrapf(err, "config file '%s'", configPath)
		}
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, errors.Wrap(err, "reading config file")
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, errors.Wrap(err, "reading config from environment")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case DriverMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required for the mongo storage driver")
		}
	case DriverSQLite:
		if c.StoragePath == "" {
			return errors.New("STORAGE_PATH is required for the sqlite storage driver")
		}
	default:
		return errors.Errorf("unknown storage driver '%s'", c.StorageDriver)
	}
	return nil
}

// MustLoad resolves the config path from CONFIG_PATH or the --config flag,
// loads the configuration and exits the process if anything is wrong.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		flags := flag.String("config", "", "Path to an optional configuration YAML file")
		flag.Parse()
		configPath = *flags
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot load config: %s", err.Error())
	}
	return cfg
}
