// =============================================================================
// CareFlow 主入口
// =============================================================================
// 客服网格统一入口，三个代理角色共用一个二进制，
// 含 HTTP 服务、MCP 工具服务器、健康检查、Prometheus 指标
//
// 使用方法:
//
//	careflow serve --role router            # 启动路由代理
//	careflow serve --role data              # 启动数据代理
//	careflow serve --role support           # 启动支持代理
//	careflow mcp                            # 以 stdio 运行工具服务器
//	careflow migrate up --seed              # 建表并写入演示数据
//	careflow scenarios                      # 运行演示场景
//	careflow version                        # 显示版本信息
//	careflow health                         # 健康检查
// =============================================================================

// @title CareFlow API
// @version 1.0.0
// @description CareFlow is a multi-agent customer-service mesh: a routing agent
// @description classifies customer queries and fans them out over the A2A protocol
// @description to a customer-data agent and a support agent backed by an MCP tool
// @description server and an LLM.

// @contact.name CareFlow Team
// @contact.url https://github.com/BaSui01/careflow

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8100
// @BasePath /
// @schemes http https

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API key for authentication

package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/careflow/config"
	"github.com/BaSui01/careflow/internal/telemetry"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "mcp":
		runMCP(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "scenarios":
		runScenarios(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	role := fs.String("role", "", "Agent role: router, data, support")
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	if !validRole(*role) {
		fmt.Fprintf(os.Stderr, "Invalid --role %q (expected router, data or support)\n", *role)
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting CareFlow",
		zap.String("role", *role),
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	// Initialize OpenTelemetry
	otelProviders, err := telemetry.Init(cfg.Telemetry, *role, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	server := NewServer(cfg, *role, logger, otelProviders)

	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	server.WaitForShutdown()

	logger.Info("CareFlow stopped", zap.String("role", *role))
}

// validRole 校验 serve 角色
func validRole(role string) bool {
	switch role {
	case RoleRouter, RoleData, RoleSupport:
		return true
	default:
		return false
	}
}

// loadConfig 加载并验证配置
func loadConfig(configPath string) (*config.Config, error) {
	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", fmt.Sprintf("http://localhost:%d", config.DefaultRouterPort), "Server address")
	fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("OK")
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("CareFlow %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`CareFlow - Multi-Agent Customer Service Mesh

Usage:
  careflow <command> [options]

Commands:
  serve      Start an agent (--role router|data|support)
  mcp        Run the customer database tool server on stdio
  migrate    Database migration commands
  scenarios  Run the demo scenarios against a live router
  version    Show version information
  health     Check agent health
  help       Show this help message

Options for 'serve':
  --role <role>     Agent role: router, data, support (required)
  --config <path>   Path to configuration file (YAML)

Migration subcommands:
  migrate up [--seed]  Apply all pending migrations (optionally seed demo data)
  migrate down         Rollback the last migration
  migrate status       Show migration status
  migrate version      Show current migration version
  migrate goto <v>     Migrate to a specific version
  migrate force <v>    Force set migration version
  migrate reset        Rollback all migrations
  migrate seed         Write the demo dataset

Examples:
  careflow serve --role router
  careflow serve --role data --config /etc/careflow/config.yaml
  careflow migrate up --seed
  careflow scenarios --router http://localhost:8100
  careflow health --addr http://localhost:8100
  careflow version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}
	if cfg.Format == "console" {
		zapConfig.Encoding = "console"
	}

	opts := []zap.Option{}
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	logger, err := zapConfig.Build(opts...)
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}

	return logger
}

// stderrLogger 构建只写 stderr 的 logger。
// mcp 子命令的 stdout 是协议信道，日志绝不能混入。
func stderrLogger(cfg config.LogConfig) *zap.Logger {
	cfg.OutputPaths = []string{"stderr"}
	return initLogger(cfg)
}
