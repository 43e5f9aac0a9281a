package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/careflow/a2a"
	"github.com/BaSui01/careflow/agent/data"
	"github.com/BaSui01/careflow/agent/router"
	"github.com/BaSui01/careflow/agent/support"
	"github.com/BaSui01/careflow/api/handlers"
	"github.com/BaSui01/careflow/classify"
	"github.com/BaSui01/careflow/config"
	"github.com/BaSui01/careflow/internal/cache"
	"github.com/BaSui01/careflow/internal/metrics"
	"github.com/BaSui01/careflow/internal/server"
	"github.com/BaSui01/careflow/internal/telemetry"
	"github.com/BaSui01/careflow/llm"
	"github.com/BaSui01/careflow/llm/providers/hfrouter"
	"github.com/BaSui01/careflow/mcp"
	"github.com/BaSui01/careflow/persistence"
)

// 代理角色
const (
	RoleRouter  = "router"
	RoleData    = "data"
	RoleSupport = "support"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 CareFlow 单个代理进程的主服务器
type Server struct {
	cfg    *config.Config
	role   string
	logger *zap.Logger

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 协议层
	a2aServer *a2a.HTTPServer
	taskStore persistence.TaskStore

	// 角色依赖
	mcpClient    *mcp.StdioClient
	cacheManager *cache.Manager

	// Handlers
	healthHandler *handlers.HealthHandler
	queryHandler  *handlers.QueryHandler

	// 指标收集器
	metricsCollector *metrics.Collector

	// 遥测
	otelProviders *telemetry.Providers

	// 清理回调，按注册逆序执行
	cleanups []func(context.Context) error

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, role string, logger *zap.Logger, otelProviders *telemetry.Providers) *Server {
	return &Server{
		cfg:           cfg,
		role:          role,
		logger:        logger,
		otelProviders: otelProviders,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化指标收集器
	s.metricsCollector = metrics.NewCollector("careflow", s.logger)

	// 2. 初始化健康检查
	s.healthHandler = handlers.NewHealthHandler(s.logger)

	// 3. 初始化任务存储（A2A 异步路径）
	if err := s.initTaskStore(); err != nil {
		return fmt.Errorf("failed to init task store: %w", err)
	}

	// 4. 按角色装配代理
	mux := http.NewServeMux()
	if err := s.buildRole(mux); err != nil {
		return fmt.Errorf("failed to build %s agent: %w", s.role, err)
	}

	// 5. 启动 HTTP 服务器
	if err := s.startHTTPServer(mux); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 6. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.String("role", s.role),
		zap.Int("http_port", s.httpPort()),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)

	return nil
}

// httpPort 返回本角色监听端口，显式配置优先于角色默认值。
func (s *Server) httpPort() int {
	if s.cfg.Server.HTTPPort > 0 {
		return s.cfg.Server.HTTPPort
	}
	switch s.role {
	case RoleData:
		return s.cfg.Agents.DataPort
	case RoleSupport:
		return s.cfg.Agents.SupportPort
	default:
		return s.cfg.Agents.RouterPort
	}
}

// baseURL 是本代理对外公布的地址，写入代理卡。
func (s *Server) baseURL() string {
	switch s.role {
	case RoleData:
		return s.cfg.Agents.DataURL
	case RoleSupport:
		return s.cfg.Agents.SupportURL
	default:
		return s.cfg.Agents.RouterURL
	}
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initTaskStore 初始化 A2A 异步任务存储
func (s *Server) initTaskStore() error {
	storeCfg := persistence.DefaultConfig()
	storeCfg.Type = persistence.StoreType(s.cfg.TaskStore.Type)
	if s.cfg.TaskStore.TTL > 0 {
		storeCfg.Retention = s.cfg.TaskStore.TTL
	}
	if s.cfg.TaskStore.KeyPrefix != "" {
		storeCfg.KeyPrefix = s.cfg.TaskStore.KeyPrefix
	}
	storeCfg.Redis = persistence.RedisConfig{
		Addr:     s.cfg.Redis.Addr,
		Password: s.cfg.Redis.Password,
		DB:       s.cfg.Redis.DB,
		PoolSize: s.cfg.Redis.PoolSize,
	}

	store, err := persistence.NewTaskStore(storeCfg)
	if err != nil {
		return err
	}
	s.taskStore = store
	s.cleanups = append(s.cleanups, func(context.Context) error { return store.Close() })
	return nil
}

// newA2AServer 构建带任务存储与鉴权配置的 A2A 服务器
func (s *Server) newA2AServer(agentID string) *a2a.HTTPServer {
	serverCfg := a2a.DefaultServerConfig()
	serverCfg.AgentID = agentID
	serverCfg.RequestTimeout = s.cfg.Agents.DispatchTimeout
	serverCfg.Logger = s.logger

	if s.cfg.Auth.Enabled && len(s.cfg.Auth.APIKeys) > 0 {
		serverCfg.EnableAuth = true
		serverCfg.AuthToken = s.cfg.Auth.APIKeys[0]
	}

	srv := a2a.NewHTTPServerWithTaskStore(serverCfg, s.taskStore)
	s.a2aServer = srv
	return srv
}

// newLLMProvider 构建 HF 路由 Provider 并套上指标装饰器
func (s *Server) newLLMProvider() llm.Provider {
	provider := hfrouter.New(hfrouter.Config{
		APIKey:       s.cfg.LLM.APIKey,
		BaseURL:      s.cfg.LLM.BaseURL,
		DefaultModel: s.cfg.LLM.Model,
		Timeout:      s.cfg.LLM.Timeout,
		WarmupDelay:  s.cfg.LLM.WarmupDelay,
		MaxRetries:   s.cfg.LLM.MaxRetries,
	}, s.logger)

	return llm.WithInstrumentation(provider, s.metricsCollector, s.logger)
}

// newMCPClient 拉起工具服务器子进程并完成握手
func (s *Server) newMCPClient() (*mcp.StdioClient, error) {
	clientCfg := mcp.DefaultClientConfig(s.cfg.MCP.Command, s.cfg.MCP.Args...)
	clientCfg.ClientName = "careflow-" + s.role
	clientCfg.ClientVersion = Version
	clientCfg.Logger = s.logger

	client := mcp.NewStdioClient(clientCfg)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.MCP.StartupTimeout)
	defer cancel()

	if err := client.Spawn(ctx); err != nil {
		return nil, fmt.Errorf("spawn tool server: %w", err)
	}

	s.mcpClient = client
	s.cleanups = append(s.cleanups, func(context.Context) error { return client.Close() })

	s.healthHandler.RegisterCheck(handlers.NewPingCheck("mcp", client.Ping))
	return client, nil
}

// buildRole 装配角色专属的代理与路由
func (s *Server) buildRole(mux *http.ServeMux) error {
	switch s.role {
	case RoleRouter:
		return s.buildRouter(mux)
	case RoleData:
		return s.buildData(mux)
	case RoleSupport:
		return s.buildSupport(mux)
	default:
		return fmt.Errorf("unknown role %q", s.role)
	}
}

// buildRouter 装配路由代理：分类器、A2A 客户端、查询编排入口
func (s *Server) buildRouter(mux *http.ServeMux) error {
	provider := s.newLLMProvider()
	s.healthHandler.RegisterCheck(handlers.NewPingCheck("llm", func(ctx context.Context) error {
		_, err := provider.HealthCheck(ctx)
		return err
	}))

	classifier := classify.NewChain(
		classify.NewLLMClassifier(provider, s.cfg.LLM.Model, s.logger),
		classify.NewKeywordClassifier(s.logger),
		s.logger,
	)

	// 分类缓存可选：Redis 不可达时降级为直连分类器
	if s.cfg.Redis.Addr != "" {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.Addr = s.cfg.Redis.Addr
		cacheCfg.Password = s.cfg.Redis.Password
		cacheCfg.DB = s.cfg.Redis.DB
		cacheCfg.PoolSize = s.cfg.Redis.PoolSize
		cacheCfg.MinIdleConns = s.cfg.Redis.MinIdleConns

		manager, err := cache.NewManager(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn("classification cache unavailable", zap.Error(err))
		} else {
			s.cacheManager = manager
			s.cleanups = append(s.cleanups, func(context.Context) error { return manager.Close() })
		}
	}

	clientCfg := a2a.DefaultClientConfig()
	clientCfg.AgentID = router.AgentID
	clientCfg.Timeout = s.cfg.Agents.DispatchTimeout
	client := a2a.NewHTTPClient(clientCfg)

	agent, err := router.New(router.Config{
		Classifier:      classifier,
		Client:          client,
		DataAgentURL:    s.cfg.Agents.DataURL,
		SupportAgentURL: s.cfg.Agents.SupportURL,
		DispatchTimeout: s.cfg.Agents.DispatchTimeout,
		Cache:           s.cacheManager,
		Metrics:         s.metricsCollector,
		Logger:          s.logger,
	})
	if err != nil {
		return err
	}

	a2aServer := s.newA2AServer(router.AgentID)
	agent.Register(a2aServer)
	a2aServer.SetCard(agent.Card(s.baseURL()))

	s.queryHandler = handlers.NewQueryHandler(agent, s.logger)
	mux.HandleFunc("/query", s.queryHandler.HandleQuery)
	mux.HandleFunc("/agents", s.queryHandler.HandleAgents)

	s.mountCommon(mux, a2aServer)
	s.logger.Info("Router agent initialized",
		zap.String("data_url", s.cfg.Agents.DataURL),
		zap.String("support_url", s.cfg.Agents.SupportURL),
	)
	return nil
}

// buildData 装配数据代理：MCP 客户端 + 数据意图处理器
func (s *Server) buildData(mux *http.ServeMux) error {
	client, err := s.newMCPClient()
	if err != nil {
		return err
	}

	agent, err := data.New(data.Config{
		Tools:   client,
		Metrics: s.metricsCollector,
		Logger:  s.logger,
	})
	if err != nil {
		return err
	}

	a2aServer := s.newA2AServer(data.AgentID)
	agent.Register(a2aServer)
	a2aServer.SetCard(agent.Card(s.baseURL()))

	s.mountCommon(mux, a2aServer)
	s.logger.Info("Data agent initialized")
	return nil
}

// buildSupport 装配支持代理：MCP 客户端 + LLM 草拟确认文案
func (s *Server) buildSupport(mux *http.ServeMux) error {
	client, err := s.newMCPClient()
	if err != nil {
		return err
	}

	provider := s.newLLMProvider()

	agent, err := support.New(support.Config{
		Tools:    client,
		Provider: provider,
		Model:    s.cfg.LLM.Model,
		Metrics:  s.metricsCollector,
		Logger:   s.logger,
	})
	if err != nil {
		return err
	}

	a2aServer := s.newA2AServer(support.AgentID)
	agent.Register(a2aServer)
	a2aServer.SetCard(agent.Card(s.baseURL()))

	s.mountCommon(mux, a2aServer)
	s.logger.Info("Support agent initialized")
	return nil
}

// mountCommon 挂载健康、版本端点并把其余路径交给 A2A 服务器
func (s *Server) mountCommon(mux *http.ServeMux, a2aServer *a2a.HTTPServer) {
	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit, s.role))

	// /.well-known/agent.json, /agent_card, /a2a/*
	mux.Handle("/", a2aServer)
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer(mux *http.ServeMux) error {
	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics", "/.well-known/agent.json"}
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
		MetricsMiddleware(s.metricsCollector),
		OTelTracing(),
	}
	if s.cfg.Auth.Enabled {
		if len(s.cfg.Auth.APIKeys) > 0 {
			middlewares = append(middlewares, APIKeyAuth(s.cfg.Auth.APIKeys, skipAuthPaths, s.logger))
		} else if s.cfg.Auth.JWTSecret != "" {
			middlewares = append(middlewares, JWTAuth(s.cfg.Auth.JWTSecret, skipAuthPaths, s.logger))
		}
	}

	handler := Chain(mux, middlewares...)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.httpPort()),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     s.cfg.Server.IdleTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.httpPort()))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...", zap.String("role", s.role))

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// 0. 停止 rate limiter 清理 goroutine
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	// 1. 关闭 HTTP 服务器
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 2. 关闭 Metrics 服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 3. 角色依赖按注册逆序清理（MCP 子进程、任务存储、缓存）
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		if err := s.cleanups[i](ctx); err != nil {
			s.logger.Error("Cleanup error", zap.Error(err))
		}
	}

	// 4. 冲刷遥测
	if s.otelProviders != nil {
		if err := s.otelProviders.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
