package persistence

import "fmt"

// NewTaskStore creates a TaskStore for the configured backend.
// An empty type falls back to the in-memory store.
func NewTaskStore(config Config) (TaskStore, error) {
	switch config.Type {
	case StoreTypeMemory, "":
		return NewMemoryTaskStore(config), nil
	case StoreTypeRedis:
		return NewRedisTaskStore(config)
	default:
		return nil, fmt.Errorf("unsupported task store type: %s", config.Type)
	}
}
