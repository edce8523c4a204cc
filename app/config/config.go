// Package config reads process configuration from the environment and
// builds the logger and database connections from it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverNeo4j  = "neo4j"
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

// Config holds every setting of the server.
type Config struct {
	Port            string
	StoreDriver     string
	StoreTimeout    time.Duration
	ShutdownTimeout time.Duration

	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	MongoURI      string
	MongoDatabase string

	LogLevel  string
	LogFormat string
	LogDir    string
}

// Load reads an optional .env file from the working directory and then the
// environment. Variables already set in the environment win over .env.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the environment alone.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:          getenv("PORT", "3000"),
		StoreDriver:   strings.ToLower(getenv("STORE_DRIVER", DriverNeo4j)),
		Neo4jURI:      getenv("NEO4J_URI", "neo4j://localhost:7687"),
		Neo4jUser:     getenv("NEO4J_USER", "neo4j"),
		Neo4jPassword: getenv("NEO4J_PASSWORD", "password"),
		Neo4jDatabase: os.Getenv("NEO4J_DATABASE"),
		MongoURI:      getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getenv("MONGO_DATABASE", "task_management"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		LogFormat:     getenv("LOG_FORMAT", "json"),
		LogDir:        os.Getenv("LOG_DIR"),
	}

	switch cfg.StoreDriver {
	case DriverNeo4j, DriverMongo, DriverMemory:
	default:
		return nil, fmt.Errorf("STORE_DRIVER: unknown driver %q", cfg.StoreDriver)
	}

	var err error
	if cfg.StoreTimeout, err = duration("STORE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = duration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", key)
	}
	return d, nil
}
