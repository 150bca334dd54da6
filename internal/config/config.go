// Package config loads daemon configuration from environment variables
// with validated defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dnw3/synapse/store"
)

type (
	// Config holds configuration settings for the synapse daemon
	Config struct {
		// API server
		APIHost  string
		APIPort  int
		LogLevel string

		// Persistence
		StoreBackend      string
		CheckpointBackend string
		FileRoot          string
		BucketURL         string
		Redis             store.RedisConfig

		// Graph hosting
		GraphDir       string
		RecursionLimit int

		ShutdownTimeout time.Duration
	}
)

const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendBlob   = "blob"

	// CheckpointStore persists checkpoints as documents in the configured
	// store; CheckpointJournal event-sources them through a Redis journal
	CheckpointStore   = "store"
	CheckpointJournal = "journal"

	DefaultAPIHost         = "0.0.0.0"
	DefaultAPIPort         = 8080
	DefaultFileRoot        = "./data"
	DefaultGraphDir        = "./graphs"
	DefaultRecursionLimit  = 100
	DefaultShutdownTimeout = 10 * time.Second

	MaxTCPPort        = 65535
	MaxRecursionLimit = 1_000_000
)

var (
	ErrInvalidAPIPort        = errors.New("invalid API port")
	ErrInvalidStoreBackend   = errors.New("invalid store backend")
	ErrInvalidRecursionLimit = errors.New(
		"recursion limit must be positive",
	)
	ErrMissingBucketURL = errors.New(
		"blob backend requires SYNAPSE_BUCKET_URL",
	)
	ErrInvalidCheckpointBackend = errors.New(
		"invalid checkpoint backend",
	)
)

// NewDefaultConfig creates a configuration with sensible defaults for all
// daemon settings
func NewDefaultConfig() *Config {
	return &Config{
		APIHost:           DefaultAPIHost,
		APIPort:           DefaultAPIPort,
		LogLevel:          "info",
		StoreBackend:      BackendMemory,
		CheckpointBackend: CheckpointStore,
		FileRoot:          DefaultFileRoot,
		Redis: store.RedisConfig{
			Addr:   store.DefaultRedisAddr,
			Prefix: store.DefaultRedisPrefix,
		},
		GraphDir:        DefaultGraphDir,
		RecursionLimit:  DefaultRecursionLimit,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// LoadFromEnv populates configuration values from SYNAPSE_* environment
// variables. Unset or unparseable values leave the existing setting intact
func (c *Config) LoadFromEnv() {
	loadEnvString("SYNAPSE_API_HOST", &c.APIHost)
	loadEnvString("SYNAPSE_LOG_LEVEL", &c.LogLevel)
	loadEnvString("SYNAPSE_STORE_BACKEND", &c.StoreBackend)
	loadEnvString("SYNAPSE_CHECKPOINT_BACKEND", &c.CheckpointBackend)
	loadEnvString("SYNAPSE_FILE_ROOT", &c.FileRoot)
	loadEnvString("SYNAPSE_BUCKET_URL", &c.BucketURL)
	loadEnvString("SYNAPSE_GRAPH_DIR", &c.GraphDir)
	loadEnvString("SYNAPSE_REDIS_ADDR", &c.Redis.Addr)
	loadEnvString("SYNAPSE_REDIS_PASSWORD", &c.Redis.Password)
	loadEnvString("SYNAPSE_REDIS_PREFIX", &c.Redis.Prefix)

	loadEnvInt("SYNAPSE_API_PORT", &c.APIPort, 1, MaxTCPPort)
	loadEnvInt("SYNAPSE_REDIS_DB", &c.Redis.DB, 0, 15)
	loadEnvInt(
		"SYNAPSE_RECURSION_LIMIT", &c.RecursionLimit, 1, MaxRecursionLimit,
	)
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}
	if c.RecursionLimit <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRecursionLimit,
			c.RecursionLimit)
	}

	switch c.StoreBackend {
	case BackendMemory, BackendFile, BackendRedis:
	case BackendBlob:
		if c.BucketURL == "" {
			return ErrMissingBucketURL
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStoreBackend, c.StoreBackend)
	}

	switch c.CheckpointBackend {
	case CheckpointStore, CheckpointJournal:
		return nil
	default:
		return fmt.Errorf(
			"%w: %q", ErrInvalidCheckpointBackend, c.CheckpointBackend,
		)
	}
}

func loadEnvString(name string, target *string) {
	if value := os.Getenv(name); value != "" {
		*target = value
	}
}

func loadEnvInt(name string, target *int, min, max int) {
	value := os.Getenv(name)
	if value == "" {
		return
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < min || parsed > max {
		return
	}
	*target = parsed
}
