// =============================================================================
// 📦 CareFlow 默认配置
// =============================================================================
// 提供所有配置项的开箱即用默认值，默认拓扑为
// 路由 :8100 / 数据 :8101 / 支持 :8102 / Metrics :9100
// =============================================================================
package config

import "time"

// 默认角色端口
const (
	DefaultRouterPort  = 8100
	DefaultDataPort    = 8101
	DefaultSupportPort = 8102
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Agents:    DefaultAgentsConfig(),
		Database:  DefaultDatabaseConfig(),
		Redis:     DefaultRedisConfig(),
		LLM:       DefaultLLMConfig(),
		MCP:       DefaultMCPConfig(),
		TaskStore: DefaultTaskStoreConfig(),
		Auth:      DefaultAuthConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        0, // 按角色选择
		MetricsPort:     9100,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    60 * time.Second, // LLM 回复较慢
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultAgentsConfig 返回默认代理拓扑
func DefaultAgentsConfig() AgentsConfig {
	return AgentsConfig{
		RouterPort:      DefaultRouterPort,
		DataPort:        DefaultDataPort,
		SupportPort:     DefaultSupportPort,
		RouterURL:       "http://localhost:8100",
		DataURL:         "http://localhost:8101",
		SupportURL:      "http://localhost:8102",
		DispatchTimeout: 30 * time.Second,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "careflow",
		Password:        "",
		Name:            "careflow.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置，
// 指向 Hugging Face 推理路由
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:    "hf-router",
		APIKey:      "",
		BaseURL:     "https://router.huggingface.co/v1",
		Model:       "meta-llama/Llama-3.2-3B-Instruct",
		Timeout:     2 * time.Minute,
		MaxRetries:  2,
		WarmupDelay: 10 * time.Second,
	}
}

// DefaultMCPConfig 返回默认 MCP 配置，
// 默认拉起自身的 mcp 子命令作为工具服务器
func DefaultMCPConfig() MCPConfig {
	return MCPConfig{
		Command:        "careflow",
		Args:           []string{"mcp"},
		StartupTimeout: 10 * time.Second,
		CallTimeout:    30 * time.Second,
	}
}

// DefaultTaskStoreConfig 返回默认任务存储配置
func DefaultTaskStoreConfig() TaskStoreConfig {
	return TaskStoreConfig{
		Type:      "memory",
		TTL:       time.Hour,
		KeyPrefix: "careflow:task:",
	}
}

// DefaultAuthConfig 返回默认鉴权配置
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		Enabled:   false,
		JWTSecret: "",
		APIKeys:   nil,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "careflow",
		SampleRate:   0.1,
	}
}
