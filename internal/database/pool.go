package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PoolConfig holds connection pool tuning knobs.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	MaxOpenConns        int           `yaml:"max_open_conns" json:"max_open_conns"`
	ConnMaxLifetime     time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime     time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval"`
}

// DefaultPoolConfig returns pool settings suitable for the demo fleet.
// SQLite tolerates few writers, so the open ceiling stays modest.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:        10,
		MaxOpenConns:        100,
		ConnMaxLifetime:     time.Hour,
		ConnMaxIdleTime:     10 * time.Minute,
		HealthCheckInterval: 30 * time.Second,
	}
}

// PoolManager wraps a gorm.DB with pool configuration, periodic health
// checks and transaction helpers shared by the agent stores.
type PoolManager struct {
	db     *gorm.DB
	config PoolConfig
	logger *zap.Logger
	stopCh chan struct{}
}

// NewPoolManager configures the underlying sql.DB pool and starts the
// health check loop when an interval is set.
func NewPoolManager(db *gorm.DB, config PoolConfig, logger *zap.Logger) (*PoolManager, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	pm := &PoolManager{
		db:     db,
		config: config,
		logger: logger.Named("database"),
		stopCh: make(chan struct{}),
	}

	if config.HealthCheckInterval > 0 {
		go pm.healthCheckLoop()
	}

	pm.logger.Info("connection pool configured",
		zap.Int("max_idle_conns", config.MaxIdleConns),
		zap.Int("max_open_conns", config.MaxOpenConns),
		zap.Duration("conn_max_lifetime", config.ConnMaxLifetime))

	return pm, nil
}

// DB returns the managed gorm handle.
func (pm *PoolManager) DB() *gorm.DB {
	return pm.db
}

// Ping verifies connectivity.
func (pm *PoolManager) Ping(ctx context.Context) error {
	sqlDB, err := pm.db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Stats reports the raw sql.DB pool statistics.
func (pm *PoolManager) Stats() (sql.DBStats, error) {
	sqlDB, err := pm.db.DB()
	if err != nil {
		return sql.DBStats{}, fmt.Errorf("get sql.DB: %w", err)
	}
	return sqlDB.Stats(), nil
}

// GetStats returns pool statistics as a map for health endpoints.
func (pm *PoolManager) GetStats() map[string]any {
	stats, err := pm.Stats()
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	return map[string]any{
		"open_connections":    stats.OpenConnections,
		"in_use":              stats.InUse,
		"idle":                stats.Idle,
		"wait_count":          stats.WaitCount,
		"wait_duration_ms":    stats.WaitDuration.Milliseconds(),
		"max_idle_closed":     stats.MaxIdleClosed,
		"max_lifetime_closed": stats.MaxLifetimeClosed,
	}
}

// Close stops the health check loop and closes the pool.
func (pm *PoolManager) Close() error {
	select {
	case <-pm.stopCh:
	default:
		close(pm.stopCh)
	}

	sqlDB, err := pm.db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	return sqlDB.Close()
}

func (pm *PoolManager) healthCheckLoop() {
	ticker := time.NewTicker(pm.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := pm.Ping(ctx); err != nil {
				pm.logger.Warn("database health check failed", zap.Error(err))
			}
			cancel()
		case <-pm.stopCh:
			return
		}
	}
}

// TransactionFunc runs inside a transaction and rolls back on error.
type TransactionFunc func(tx *gorm.DB) error

// WithTransaction executes fn in a single transaction.
func (pm *PoolManager) WithTransaction(ctx context.Context, fn TransactionFunc) error {
	return pm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx)
	})
}

// WithTransactionRetry retries fn on transient failures with exponential
// backoff. Non-retryable errors and context cancellation end the loop
// immediately.
func (pm *PoolManager) WithTransactionRetry(ctx context.Context, maxRetries int, fn TransactionFunc) error {
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			backoff := time.Duration(1<<uint(i)) * 100 * time.Millisecond
			pm.logger.Debug("retrying transaction",
				zap.Int("attempt", i),
				zap.Duration("backoff", backoff))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = pm.WithTransaction(ctx, fn)
		if lastErr == nil {
			return nil
		}
		if !isRetryableError(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("transaction failed after %d retries: %w", maxRetries, lastErr)
}

// isRetryableError reports whether the error is worth another attempt.
// Covers serialization conflicts, dropped connections and the SQLite
// busy states the demo database produces under concurrent writes.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	retryable := []string{
		"deadlock",
		"serialization failure",
		"40001",
		"connection reset",
		"connection refused",
		"broken pipe",
		"lock timeout",
		"lock wait timeout",
		"bad connection",
		"database is locked",
		"database table is locked",
	}
	for _, s := range retryable {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
