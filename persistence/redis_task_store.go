package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisTaskStore is a Redis-based implementation of TaskStore.
// Suitable for multi-node deployments where any replica may answer a
// result poll. Task payloads live in plain keys with sorted sets for
// status, agent and global indexes.
type RedisTaskStore struct {
	client    *redis.Client
	keyPrefix string
	config    Config
}

// NewRedisTaskStore creates a new Redis-based task store and verifies
// the connection.
func NewRedisTaskStore(config Config) (*RedisTaskStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
		PoolSize: config.Redis.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	keyPrefix := config.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "careflow:task:"
	}

	return &RedisTaskStore{
		client:    client,
		keyPrefix: keyPrefix,
		config:    config,
	}, nil
}

// Close closes the store.
func (s *RedisTaskStore) Close() error {
	return s.client.Close()
}

// Ping checks if the store is healthy.
func (s *RedisTaskStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisTaskStore) taskKey(taskID string) string {
	return s.keyPrefix + "data:" + taskID
}

func (s *RedisTaskStore) statusKey(status TaskStatus) string {
	return s.keyPrefix + "status:" + string(status)
}

func (s *RedisTaskStore) agentKey(agentID string) string {
	return s.keyPrefix + "agent:" + agentID
}

func (s *RedisTaskStore) allTasksKey() string {
	return s.keyPrefix + "all"
}

// Save persists a task to the store.
func (s *RedisTaskStore) Save(ctx context.Context, task *Task) error {
	if task == nil {
		return ErrInvalidInput
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

	// Old status is needed to keep the status indexes consistent.
	oldTask, _ := s.Get(ctx, task.ID)

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	score := float64(task.CreatedAt.UnixNano())

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.taskKey(task.ID), data, 0)
	if oldTask != nil && oldTask.Status != task.Status {
		pipe.ZRem(ctx, s.statusKey(oldTask.Status), task.ID)
	}
	pipe.ZAdd(ctx, s.statusKey(task.Status), redis.Z{Score: score, Member: task.ID})
	pipe.ZAdd(ctx, s.allTasksKey(), redis.Z{Score: score, Member: task.ID})
	if task.AgentID != "" {
		pipe.ZAdd(ctx, s.agentKey(task.AgentID), redis.Z{Score: score, Member: task.ID})
	}

	_, err = pipe.Exec(ctx)
	return err
}

// Get retrieves a task by ID.
func (s *RedisTaskStore) Get(ctx context.Context, taskID string) (*Task, error) {
	data, err := s.client.Get(ctx, s.taskKey(taskID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}

	return &task, nil
}

// List retrieves tasks matching the filter, newest first.
func (s *RedisTaskStore) List(ctx context.Context, filter Filter) ([]*Task, error) {
	var taskIDs []string
	var err error

	// Narrowest available index first.
	switch {
	case len(filter.Status) == 1:
		taskIDs, err = s.client.ZRange(ctx, s.statusKey(filter.Status[0]), 0, -1).Result()
	case filter.AgentID != "":
		taskIDs, err = s.client.ZRange(ctx, s.agentKey(filter.AgentID), 0, -1).Result()
	default:
		taskIDs, err = s.client.ZRange(ctx, s.allTasksKey(), 0, -1).Result()
	}
	if err != nil {
		return nil, err
	}

	result := make([]*Task, 0)
	for _, taskID := range taskIDs {
		task, err := s.Get(ctx, taskID)
		if err != nil {
			continue
		}
		if filter.matches(task) {
			result = append(result, task)
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
func (s *RedisTaskStore) UpdateStatus(ctx context.Context, taskID string, status TaskStatus, result json.RawMessage, errMsg string) error {
	task, err := s.Get(ctx, taskID)
	if err != nil {
		return err
	}

	oldStatus := task.Status
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

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.taskKey(taskID), data, 0)
	if oldStatus != status {
		pipe.ZRem(ctx, s.statusKey(oldStatus), taskID)
		pipe.ZAdd(ctx, s.statusKey(status), redis.Z{
			Score:  float64(task.CreatedAt.UnixNano()),
			Member: taskID,
		})
	}

	_, err = pipe.Exec(ctx)
	return err
}

// Delete removes a task from the store.
func (s *RedisTaskStore) Delete(ctx context.Context, taskID string) error {
	task, err := s.Get(ctx, taskID)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.taskKey(taskID))
	pipe.ZRem(ctx, s.statusKey(task.Status), taskID)
	pipe.ZRem(ctx, s.allTasksKey(), taskID)
	if task.AgentID != "" {
		pipe.ZRem(ctx, s.agentKey(task.AgentID), taskID)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// Cleanup removes terminal tasks older than the specified duration.
// The status indexes are scored by creation time, so the cutoff is
// applied on the index before individual deletes.
func (s *RedisTaskStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan).UnixNano()
	count := 0

	for _, status := range []TaskStatus{TaskStatusCompleted, TaskStatusFailed, TaskStatusTimeout} {
		taskIDs, err := s.client.ZRangeByScore(ctx, s.statusKey(status), &redis.ZRangeBy{
			Min: "-inf",
			Max: strconv.FormatInt(cutoff, 10),
		}).Result()
		if err != nil {
			continue
		}
		for _, taskID := range taskIDs {
			if err := s.Delete(ctx, taskID); err == nil {
				count++
			}
		}
	}

	return count, nil
}

// Stats returns statistics about the task store.
func (s *RedisTaskStore) Stats(ctx context.Context) (*TaskStats, error) {
	stats := &TaskStats{
		StatusCounts: make(map[TaskStatus]int64),
		AgentCounts:  make(map[string]int64),
	}

	total, err := s.client.ZCard(ctx, s.allTasksKey()).Result()
	if err != nil {
		return nil, err
	}
	stats.Total = total

	statuses := []TaskStatus{
		TaskStatusPending,
		TaskStatusRunning,
		TaskStatusCompleted,
		TaskStatusFailed,
		TaskStatusTimeout,
	}
	for _, status := range statuses {
		count, err := s.client.ZCard(ctx, s.statusKey(status)).Result()
		if err == nil && count > 0 {
			stats.StatusCounts[status] = count
		}
	}

	oldest, err := s.client.ZRangeWithScores(ctx, s.statusKey(TaskStatusPending), 0, 0).Result()
	if err == nil && len(oldest) > 0 {
		ts := time.Unix(0, int64(oldest[0].Score))
		stats.OldestPendingAge = time.Since(ts)
	}

	agentKeys, err := s.client.Keys(ctx, s.keyPrefix+"agent:*").Result()
	if err == nil {
		for _, key := range agentKeys {
			agentID := key[len(s.keyPrefix+"agent:"):]
			count, err := s.client.ZCard(ctx, key).Result()
			if err == nil {
				stats.AgentCounts[agentID] = count
			}
		}
	}

	return stats, nil
}

// Ensure RedisTaskStore implements TaskStore.
var _ TaskStore = (*RedisTaskStore)(nil)
