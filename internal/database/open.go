package database

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	sqlitecgo "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the configured database and returns a gorm handle.
//
// Supported drivers:
//
//	sqlite   - pure Go build, the demo default (file path or :memory: DSN)
//	sqlite3  - cgo sqlite build, for deployments that already link libsqlite3
//	mysql    - standard DSN
//	postgres - standard DSN
func Open(driver, dsn string, logger *zap.Logger) (*gorm.DB, error) {
	if driver == "" {
		return nil, fmt.Errorf("database driver not configured")
	}
	if dsn == "" {
		return nil, fmt.Errorf("database dsn not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "sqlite3":
		dialector = sqlitecgo.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: sqlite, sqlite3, mysql, postgres)", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	logger.Info("Database connected", zap.String("driver", driver))
	return db, nil
}
