package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/BaSui01/careflow/customerdb"
	"github.com/BaSui01/careflow/internal/database"
	"github.com/BaSui01/careflow/mcp"
)

// =============================================================================
// 🔧 mcp 命令：stdio 工具服务器
// =============================================================================

// runMCP runs the customer database tool server on stdin/stdout.
// stdout carries the wire protocol, all logging goes to stderr.
func runMCP(args []string) {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	noSeed := fs.Bool("no-seed", false, "Skip writing the demo dataset on startup")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := stderrLogger(cfg.Log)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}

	poolCfg := database.DefaultPoolConfig()
	if cfg.Database.MaxOpenConns > 0 {
		poolCfg.MaxOpenConns = cfg.Database.MaxOpenConns
	}
	if cfg.Database.MaxIdleConns > 0 {
		poolCfg.MaxIdleConns = cfg.Database.MaxIdleConns
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		poolCfg.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
	}

	pool, err := database.NewPoolManager(db, poolCfg, logger)
	if err != nil {
		logger.Fatal("Failed to init connection pool", zap.Error(err))
	}
	defer pool.Close()

	// 全新数据库先建表; 已迁移过的库此调用是空操作
	if err := customerdb.AutoMigrate(db); err != nil {
		logger.Fatal("Failed to create schema", zap.Error(err))
	}

	// 演示数据写入是幂等的
	if !*noSeed {
		if err := customerdb.Seed(ctx, db); err != nil {
			logger.Fatal("Failed to seed demo dataset", zap.Error(err))
		}
	}

	store := customerdb.NewStore(pool, logger)

	srv := mcp.NewServer("careflow-customerdb", Version, logger)
	if err := customerdb.RegisterTools(srv, store); err != nil {
		logger.Fatal("Failed to register tools", zap.Error(err))
	}

	logger.Info("Tool server listening on stdio",
		zap.String("driver", cfg.Database.Driver),
	)

	if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil &&
		!errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		logger.Fatal("Tool server exited", zap.Error(err))
	}

	logger.Info("Tool server stopped")
}
