// 配置加载器与默认配置测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- 默认配置测试 ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// 验证服务器默认值
	assert.Equal(t, 0, cfg.Server.HTTPPort)
	assert.Equal(t, 9100, cfg.Server.MetricsPort)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout)

	// 验证代理拓扑默认值
	assert.Equal(t, 8100, cfg.Agents.RouterPort)
	assert.Equal(t, 8101, cfg.Agents.DataPort)
	assert.Equal(t, 8102, cfg.Agents.SupportPort)
	assert.Equal(t, "http://localhost:8101", cfg.Agents.DataURL)

	// 验证 Database 默认值
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "careflow.db", cfg.Database.Name)

	// 验证 LLM 默认值
	assert.Equal(t, "hf-router", cfg.LLM.Provider)
	assert.Equal(t, "https://router.huggingface.co/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "meta-llama/Llama-3.2-3B-Instruct", cfg.LLM.Model)
	assert.Equal(t, 10*time.Second, cfg.LLM.WarmupDelay)

	// 验证 MCP 默认值
	assert.Equal(t, "careflow", cfg.MCP.Command)
	assert.Equal(t, []string{"mcp"}, cfg.MCP.Args)

	// 验证任务存储默认值
	assert.Equal(t, "memory", cfg.TaskStore.Type)
	assert.Equal(t, "careflow:task:", cfg.TaskStore.KeyPrefix)

	// 验证 Log 默认值
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestDefaultConfig_Validates(t *testing.T) {
	// 默认配置必须自洽
	assert.NoError(t, DefaultConfig().Validate())
}

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8100, cfg.Agents.RouterPort)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "careflow.yaml")

	yamlContent := `
server:
  metrics_port: 9200
  read_timeout: 60s

agents:
  router_port: 18100
  data_url: "http://data.internal:8101"
  dispatch_timeout: 45s

database:
  driver: "postgres"
  host: "db.internal"
  port: 5432
  user: "care"
  name: "careflow"

llm:
  model: "meta-llama/Llama-3.1-8B-Instruct"
  max_retries: 5

log:
  level: "debug"
  format: "console"
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	// YAML 值覆盖默认值
	assert.Equal(t, 9200, cfg.Server.MetricsPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)

	assert.Equal(t, 18100, cfg.Agents.RouterPort)
	assert.Equal(t, "http://data.internal:8101", cfg.Agents.DataURL)
	assert.Equal(t, 45*time.Second, cfg.Agents.DispatchTimeout)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "db.internal", cfg.Database.Host)

	assert.Equal(t, "meta-llama/Llama-3.1-8B-Instruct", cfg.LLM.Model)
	assert.Equal(t, 5, cfg.LLM.MaxRetries)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	// 未覆盖的字段保持默认值
	assert.Equal(t, 8101, cfg.Agents.DataPort)
	assert.Equal(t, "hf-router", cfg.LLM.Provider)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("CAREFLOW_SERVER_METRICS_PORT", "9300")
	t.Setenv("CAREFLOW_AGENTS_ROUTER_PORT", "28100")
	t.Setenv("CAREFLOW_AGENTS_SUPPORT_URL", "http://support.internal:8102")
	t.Setenv("CAREFLOW_DATABASE_DRIVER", "mysql")
	t.Setenv("CAREFLOW_DATABASE_NAME", "care_prod")
	t.Setenv("CAREFLOW_LLM_API_KEY", "hf_test_key")
	t.Setenv("CAREFLOW_LLM_TIMEOUT", "90s")
	t.Setenv("CAREFLOW_TASK_STORE_TYPE", "redis")
	t.Setenv("CAREFLOW_AUTH_API_KEYS", "key-a, key-b")
	t.Setenv("CAREFLOW_LOG_LEVEL", "warn")
	t.Setenv("CAREFLOW_TELEMETRY_ENABLED", "true")
	t.Setenv("CAREFLOW_TELEMETRY_SAMPLE_RATE", "0.5")
	t.Setenv("CAREFLOW_SERVER_RATE_LIMIT_RPS", "50")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 9300, cfg.Server.MetricsPort)
	assert.Equal(t, 28100, cfg.Agents.RouterPort)
	assert.Equal(t, "http://support.internal:8102", cfg.Agents.SupportURL)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "care_prod", cfg.Database.Name)
	assert.Equal(t, "hf_test_key", cfg.LLM.APIKey)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "redis", cfg.TaskStore.Type)
	assert.Equal(t, []string{"key-a", "key-b"}, cfg.Auth.APIKeys)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 0.5, cfg.Telemetry.SampleRate)
	assert.Equal(t, 50, cfg.Server.RateLimitRPS)
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "careflow.yaml")

	yamlContent := `
log:
  level: "debug"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	t.Setenv("CAREFLOW_LOG_LEVEL", "error")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	// 环境变量优先于文件
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoader_HFTokenFallback(t *testing.T) {
	t.Setenv("CAREFLOW_LLM_API_KEY", "")
	t.Setenv("HF_TOKEN", "hf_fallback_token")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "hf_fallback_token", cfg.LLM.APIKey)

	// 显式 API Key 优先于 HF_TOKEN
	t.Setenv("CAREFLOW_LLM_API_KEY", "hf_explicit")
	cfg, err = NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "hf_explicit", cfg.LLM.APIKey)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath("/nonexistent/careflow.yaml").
		Load()
	require.NoError(t, err)
	assert.Equal(t, 8100, cfg.Agents.RouterPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "broken.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server: [not a map"), 0644))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	assert.Error(t, err)
}

func TestLoader_WithValidator(t *testing.T) {
	called := false
	_, err := NewLoader().
		WithValidator(func(c *Config) error {
			called = true
			return nil
		}).
		Load()
	require.NoError(t, err)
	assert.True(t, called)
}

// --- 验证测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "valid defaults",
			mutate:  func(c *Config) {},
			wantErr: nil,
		},
		{
			name:    "bad metrics port",
			mutate:  func(c *Config) { c.Server.MetricsPort = -1 },
			wantErr: ErrInvalidPort,
		},
		{
			name:    "bad router port",
			mutate:  func(c *Config) { c.Agents.RouterPort = 70000 },
			wantErr: ErrInvalidPort,
		},
		{
			name:    "bad driver",
			mutate:  func(c *Config) { c.Database.Driver = "oracle" },
			wantErr: ErrInvalidDriver,
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: ErrInvalidLogLevel,
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: ErrInvalidLogFormat,
		},
		{
			name:    "bad sample rate",
			mutate:  func(c *Config) { c.Telemetry.SampleRate = 1.5 },
			wantErr: ErrInvalidSampleRate,
		},
		{
			name:    "auth enabled without secret",
			mutate:  func(c *Config) { c.Auth.Enabled = true },
			wantErr: ErrMissingJWTSecret,
		},
		{
			name:    "bad task store",
			mutate:  func(c *Config) { c.TaskStore.Type = "mongo" },
			wantErr: ErrMissingTaskStore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		cfg      DatabaseConfig
		expected string
	}{
		{
			name: "postgres",
			cfg: DatabaseConfig{
				Driver: "postgres", Host: "localhost", Port: 5432,
				User: "care", Password: "pw", Name: "careflow", SSLMode: "disable",
			},
			expected: "host=localhost port=5432 user=care password=pw dbname=careflow sslmode=disable",
		},
		{
			name: "mysql",
			cfg: DatabaseConfig{
				Driver: "mysql", Host: "localhost", Port: 3306,
				User: "care", Password: "pw", Name: "careflow",
			},
			expected: "care:pw@tcp(localhost:3306)/careflow?parseTime=true",
		},
		{
			name:     "sqlite",
			cfg:      DatabaseConfig{Driver: "sqlite", Name: "careflow.db"},
			expected: "careflow.db",
		},
		{
			name:     "sqlite3 cgo",
			cfg:      DatabaseConfig{Driver: "sqlite3", Name: "careflow.db"},
			expected: "careflow.db",
		},
		{
			name:     "unknown",
			cfg:      DatabaseConfig{Driver: "oracle"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cfg.DSN())
		})
	}
}
