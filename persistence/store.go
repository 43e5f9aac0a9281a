package persistence

import (
	"errors"
	"time"
)

// Common store errors.
var (
	ErrNotFound     = errors.New("task not found")
	ErrStoreClosed  = errors.New("store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// StoreType selects the task store backend.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

// RedisConfig contains connection settings for the Redis backend.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string `json:"addr" yaml:"addr"`

	// Password is the Redis password (optional).
	Password string `json:"password" yaml:"password"`

	// DB is the Redis database number.
	DB int `json:"db" yaml:"db"`

	// PoolSize is the connection pool size.
	PoolSize int `json:"pool_size" yaml:"pool_size"`
}

// Config is the task store configuration shared by all backends.
type Config struct {
	// Type is the storage backend type.
	Type StoreType `json:"type" yaml:"type"`

	// KeyPrefix namespaces every key written by the store.
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`

	// Retention is how long terminal tasks are kept before cleanup.
	Retention time.Duration `json:"retention" yaml:"retention"`

	// CleanupInterval is how often the retention sweep runs.
	// Zero disables the background sweep.
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval"`

	// Redis configuration (only used when Type is "redis").
	Redis RedisConfig `json:"redis" yaml:"redis"`
}

// DefaultConfig returns the default task store configuration.
func DefaultConfig() Config {
	return Config{
		Type:            StoreTypeMemory,
		KeyPrefix:       "careflow:task:",
		Retention:       1 * time.Hour,
		CleanupInterval: 5 * time.Minute,
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			DB:       0,
			PoolSize: 10,
		},
	}
}
