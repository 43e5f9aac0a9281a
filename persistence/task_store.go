package persistence

import (
	"context"
	"encoding/json"
	"time"
)

// TaskStore defines the interface for async task persistence.
// The A2A server records every asynchronous exchange here so that
// results can be polled after the submitting request has returned.
type TaskStore interface {
	// Save persists a task (create or update).
	Save(ctx context.Context, task *Task) error

	// Get retrieves a task by ID.
	Get(ctx context.Context, taskID string) (*Task, error)

	// List retrieves tasks matching the filter criteria.
	List(ctx context.Context, filter Filter) ([]*Task, error)

	// UpdateStatus transitions a task to the given status. A non-nil
	// result replaces the stored result; a non-empty errMsg records the
	// failure reason.
	UpdateStatus(ctx context.Context, taskID string, status TaskStatus, result json.RawMessage, errMsg string) error

	// Delete removes a task from the store.
	Delete(ctx context.Context, taskID string) error

	// Cleanup removes terminal tasks older than the specified duration.
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)

	// Stats returns statistics about the task store.
	Stats(ctx context.Context) (*TaskStats, error)

	// Ping checks if the store is healthy.
	Ping(ctx context.Context) error

	// Close closes the store and releases resources.
	Close() error
}

// TaskStatus represents the status of an async task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task is waiting to be executed.
	TaskStatusPending TaskStatus = "pending"

	// TaskStatusRunning indicates the task is currently executing.
	TaskStatusRunning TaskStatus = "running"

	// TaskStatusCompleted indicates the task completed successfully.
	TaskStatusCompleted TaskStatus = "completed"

	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"

	// TaskStatusTimeout indicates the task exceeded its execution deadline.
	TaskStatusTimeout TaskStatus = "timeout"
)

// IsTerminal returns true if the status is a terminal state.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusTimeout:
		return true
	default:
		return false
	}
}

// IsValid returns true for a known task status.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusTimeout:
		return true
	default:
		return false
	}
}

// Task represents one persisted asynchronous exchange.
// Request and Result hold marshaled protocol envelopes; the store never
// interprets them, which keeps it independent of the wire format.
type Task struct {
	// ID is the unique identifier for the task.
	ID string `json:"id"`

	// AgentID is the agent executing this task.
	AgentID string `json:"agent_id"`

	// Intent is the request intent, kept denormalized for filtering.
	Intent string `json:"intent,omitempty"`

	// Status is the current task status.
	Status TaskStatus `json:"status"`

	// Request is the marshaled request envelope.
	Request json.RawMessage `json:"request,omitempty"`

	// Result is the marshaled reply envelope (when completed).
	Result json.RawMessage `json:"result,omitempty"`

	// Error contains the error message (when failed).
	Error string `json:"error,omitempty"`

	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the task was last updated.
	UpdatedAt time.Time `json:"updated_at"`

	// CompletedAt is when the task reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsTerminal returns true if the task is in a terminal state.
func (t *Task) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// Duration returns the total task duration, or the time since creation
// for tasks that have not finished yet.
func (t *Task) Duration() time.Duration {
	if t.CompletedAt != nil {
		return t.CompletedAt.Sub(t.CreatedAt)
	}
	return time.Since(t.CreatedAt)
}

// clone returns a copy so callers cannot mutate stored state.
func (t *Task) clone() *Task {
	c := *t
	return &c
}

// Filter defines criteria for listing tasks.
type Filter struct {
	// AgentID filters by executing agent.
	AgentID string `json:"agent_id,omitempty"`

	// Intent filters by request intent.
	Intent string `json:"intent,omitempty"`

	// Status filters by status (any of).
	Status []TaskStatus `json:"status,omitempty"`

	// CreatedBefore filters tasks created before this time.
	CreatedBefore *time.Time `json:"created_before,omitempty"`

	// Limit is the maximum number of tasks to return (0 = no limit).
	Limit int `json:"limit,omitempty"`
}

func (f Filter) matches(task *Task) bool {
	if f.AgentID != "" && task.AgentID != f.AgentID {
		return false
	}
	if f.Intent != "" && task.Intent != f.Intent {
		return false
	}
	if len(f.Status) > 0 {
		found := false
		for _, status := range f.Status {
			if task.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.CreatedBefore != nil && !task.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	return true
}

// TaskStats contains statistics about the task store.
type TaskStats struct {
	// Total is the total number of tasks in the store.
	Total int64 `json:"total"`

	// StatusCounts is the task count per status.
	StatusCounts map[TaskStatus]int64 `json:"status_counts"`

	// AgentCounts is the task count per agent.
	AgentCounts map[string]int64 `json:"agent_counts"`

	// OldestPendingAge is the age of the oldest pending task.
	OldestPendingAge time.Duration `json:"oldest_pending_age"`
}
