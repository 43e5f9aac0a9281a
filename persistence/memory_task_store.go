package persistence

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryTaskStore is an in-memory implementation of TaskStore.
// Suitable for single-node deployments and testing. Data is lost on
// restart.
type MemoryTaskStore struct {
	tasks  map[string]*Task
	mu     sync.RWMutex
	closed bool
	config Config
	stop   chan struct{}
}

// NewMemoryTaskStore creates a new in-memory task store. When the
// configured cleanup interval is positive, a background sweep removes
// terminal tasks past their retention.
func NewMemoryTaskStore(config Config) *MemoryTaskStore {
	store := &MemoryTaskStore{
		tasks:  make(map[string]*Task),
		config: config,
		stop:   make(chan struct{}),
	}

	if config.CleanupInterval > 0 {
		go store.cleanupLoop(config.CleanupInterval)
	}

	return store
}

// Close closes the store.
func (s *MemoryTaskStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.stop)
	}
	return nil
}

// Ping checks if the store is healthy.
func (s *MemoryTaskStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Save persists a task to the store. Missing IDs and timestamps are
// filled in. The stored copy is detached from the caller's pointer.
func (s *MemoryTaskStore) Save(ctx context.Context, task *Task) error {
	if task == nil {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if task.ID == "" {
		task.ID = uuid.New().String()
	}

	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	if task.Status == "" {
		task.Status = TaskStatusPending
	}

	s.tasks[task.ID] = task.clone()

	return nil
}

// Get retrieves a task by ID.
func (s *MemoryTaskStore) Get(ctx context.Context, taskID string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrNotFound
	}

	return task.clone(), nil
}

// List retrieves tasks matching the filter, newest first.
func (s *MemoryTaskStore) List(ctx context.Context, filter Filter) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	result := make([]*Task, 0)
	for _, task := range s.tasks {
		if filter.matches(task) {
			result = append(result, task.clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// UpdateStatus transitions a task to the given status.
func (s *MemoryTaskStore) UpdateStatus(ctx context.Context, taskID string, status TaskStatus, result json.RawMessage, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	task, ok := s.tasks[taskID]
	if !ok {
		return ErrNotFound
	}

	now := time.Now()
	task.Status = status
	task.UpdatedAt = now

	if result != nil {
		task.Result = result
	}
	if errMsg != "" {
		task.Error = errMsg
	}
	if status.IsTerminal() && task.CompletedAt == nil {
		task.CompletedAt = &now
	}

	return nil
}

// Delete removes a task from the store.
func (s *MemoryTaskStore) Delete(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, ok := s.tasks[taskID]; !ok {
		return ErrNotFound
	}

	delete(s.tasks, taskID)

	return nil
}

// Cleanup removes terminal tasks older than the specified duration.
func (s *MemoryTaskStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	cutoff := time.Now().Add(-olderThan)
	count := 0

	for taskID, task := range s.tasks {
		if !task.Status.IsTerminal() {
			continue
		}

		checkTime := task.UpdatedAt
		if task.CompletedAt != nil {
			checkTime = *task.CompletedAt
		}

		if checkTime.Before(cutoff) {
			delete(s.tasks, taskID)
			count++
		}
	}

	return count, nil
}

// Stats returns statistics about the task store.
func (s *MemoryTaskStore) Stats(ctx context.Context) (*TaskStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	stats := &TaskStats{
		StatusCounts: make(map[TaskStatus]int64),
		AgentCounts:  make(map[string]int64),
	}

	var oldestPending time.Time

	for _, task := range s.tasks {
		stats.Total++
		stats.StatusCounts[task.Status]++

		if task.AgentID != "" {
			stats.AgentCounts[task.AgentID]++
		}

		if task.Status == TaskStatusPending {
			if oldestPending.IsZero() || task.CreatedAt.Before(oldestPending) {
				oldestPending = task.CreatedAt
			}
		}
	}

	if !oldestPending.IsZero() {
		stats.OldestPendingAge = time.Since(oldestPending)
	}

	return stats, nil
}

// cleanupLoop runs the periodic retention sweep.
func (s *MemoryTaskStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			_, _ = s.Cleanup(context.Background(), s.config.Retention)
		}
	}
}

// Ensure MemoryTaskStore implements TaskStore.
var _ TaskStore = (*MemoryTaskStore)(nil)
