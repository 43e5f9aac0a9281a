package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/careflow/types"
)

// 关闭时等待子进程退出的默认时限，超时后强制终止
const defaultCloseTimeout = 5 * time.Second

// ClientConfig 客户端配置
type ClientConfig struct {
	Command       string        // 工具服务器可执行文件
	Args          []string      // 启动参数
	Env           []string      // 附加环境变量（KEY=VALUE 形式）
	ClientName    string        // initialize 上报的客户端名称
	ClientVersion string        // initialize 上报的客户端版本
	CloseTimeout  time.Duration // 等待子进程退出的时限
	Logger        *zap.Logger
}

// DefaultClientConfig 返回启动给定命令的默认配置
func DefaultClientConfig(command string, args ...string) ClientConfig {
	return ClientConfig{
		Command:       command,
		Args:          args,
		ClientName:    "careflow",
		ClientVersion: "1.0.0",
		CloseTimeout:  defaultCloseTimeout,
	}
}

// StdioClient 通过 stdio 与 MCP 工具服务器通信的客户端。
// 请求单飞：同一时刻仅一个请求在途，ID 单调递增。
type StdioClient struct {
	config ClientConfig

	cmd   *exec.Cmd
	stdin io.WriteCloser
	lines chan []byte

	nextID  atomic.Int64
	callMu  sync.Mutex // 串行化整个请求往返
	writeMu sync.Mutex // 保护写路径

	mu         sync.Mutex
	attached   bool
	closed     bool
	serverInfo *ServerInfo

	logger *zap.Logger
}

// NewStdioClient 创建 MCP 客户端
func NewStdioClient(config ClientConfig) *StdioClient {
	if config.ClientName == "" {
		config.ClientName = "careflow"
	}
	if config.CloseTimeout <= 0 {
		config.CloseTimeout = defaultCloseTimeout
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StdioClient{
		config: config,
		lines:  make(chan []byte, 16),
		logger: logger.With(zap.String("component", "mcp_client")),
	}
}

// Spawn 启动配置的工具服务器子进程并完成 initialize 握手。
// 子进程 stderr 透传到当前进程，stdout/stdin 作为协议管道。
func (c *StdioClient) Spawn(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("mcp client is closed")
	}
	if c.attached {
		c.mu.Unlock()
		return fmt.Errorf("mcp client already connected")
	}

	cmd := exec.Command(c.config.Command, c.config.Args...)
	cmd.Stderr = os.Stderr
	if len(c.config.Env) > 0 {
		cmd.Env = append(os.Environ(), c.config.Env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("open stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("open stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("start tool server %q: %w", c.config.Command, err)
	}

	c.cmd = cmd
	c.stdin = stdin
	c.attached = true
	c.mu.Unlock()

	c.logger.Info("tool server started",
		zap.String("command", c.config.Command),
		zap.Int("pid", cmd.Process.Pid),
	)

	go c.readLoop(stdout)

	if err := c.initialize(ctx); err != nil {
		_ = stdin.Close()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()

		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		return fmt.Errorf("initialize tool server: %w", err)
	}

	return nil
}

// Attach 在已有的读写管道上完成 initialize 握手。
// 用于进程内对接，管道的生命周期由调用方负责。
func (c *StdioClient) Attach(ctx context.Context, r io.Reader, w io.WriteCloser) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("mcp client is closed")
	}
	if c.attached {
		c.mu.Unlock()
		return fmt.Errorf("mcp client already connected")
	}

	c.stdin = w
	c.attached = true
	c.mu.Unlock()

	go c.readLoop(r)

	return c.initialize(ctx)
}

// ServerInfo 返回握手得到的服务器标识，未连接时为 nil
func (c *StdioClient) ServerInfo() *ServerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.serverInfo == nil {
		return nil
	}

	info := *c.serverInfo
	return &info
}

// CallTool 调用远端工具并返回其文本内容中的 JSON 负载。
// RPC 层与工具层的失败均以 TOOL_FAILED 错误码返回。
func (c *StdioClient) CallTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	c.logger.Debug("calling tool", zap.String("name", name))

	result, err := c.roundTrip(ctx, MethodCallTool, CallParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}

	var call CallResult
	if err := json.Unmarshal(result, &call); err != nil {
		return nil, fmt.Errorf("parse tool result: %w", err)
	}

	text, ok := firstText(call.Content)

	if call.IsError {
		if !ok {
			text = "tool call failed"
		}
		return nil, types.NewError(types.ErrToolFailed, text)
	}

	if !ok {
		return nil, fmt.Errorf("tool %s returned no text content", name)
	}

	return json.RawMessage(text), nil
}

// ListTools 列出远端工具
func (c *StdioClient) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	result, err := c.roundTrip(ctx, MethodListTools, nil)
	if err != nil {
		return nil, err
	}

	var list ListToolsResult
	if err := json.Unmarshal(result, &list); err != nil {
		return nil, fmt.Errorf("parse tool list: %w", err)
	}

	return list.Tools, nil
}

// Ping 探测服务器存活
func (c *StdioClient) Ping(ctx context.Context) error {
	_, err := c.roundTrip(ctx, MethodPing, nil)
	return err
}

// Close 关闭客户端：关闭 stdin 通知服务器退出，等待子进程结束，
// 超时后强制终止。重复调用返回 nil。
func (c *StdioClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	stdin := c.stdin
	cmd := c.cmd
	c.mu.Unlock()

	if stdin != nil {
		if err := stdin.Close(); err != nil {
			c.logger.Warn("failed to close stdin", zap.Error(err))
		}
	}

	if cmd == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			c.logger.Warn("tool server exited with error", zap.Error(err))
		}
	case <-time.After(c.config.CloseTimeout):
		c.logger.Warn("tool server did not exit, killing",
			zap.Duration("timeout", c.config.CloseTimeout),
		)
		_ = cmd.Process.Kill()
		<-done
	}

	c.logger.Info("mcp client closed")

	return nil
}

// initialize 发送握手请求并校验协议版本
func (c *StdioClient) initialize(ctx context.Context) error {
	params := InitializeParams{
		ProtocolVersion: ProtocolVersion,
		ClientInfo: ClientInfo{
			Name:    c.config.ClientName,
			Version: c.config.ClientVersion,
		},
	}

	result, err := c.roundTrip(ctx, MethodInitialize, params)
	if err != nil {
		return err
	}

	var init InitializeResult
	if err := json.Unmarshal(result, &init); err != nil {
		return fmt.Errorf("parse initialize result: %w", err)
	}

	if init.ProtocolVersion != ProtocolVersion {
		return fmt.Errorf("unsupported protocol version: %s", init.ProtocolVersion)
	}

	c.mu.Lock()
	c.serverInfo = &init.ServerInfo
	c.mu.Unlock()

	c.logger.Info("connected to MCP server",
		zap.String("server", init.ServerInfo.Name),
		zap.String("version", init.ServerInfo.Version),
	)

	return nil
}

// roundTrip 发送请求并等待匹配 ID 的响应。
// 读到非 JSON 行时本次调用以解析错误失败；迟到的陈旧响应
// 在后续调用中按 ID 不匹配被丢弃，借此重新对齐。
func (c *StdioClient) roundTrip(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("mcp client is closed")
	}
	if !c.attached {
		c.mu.Unlock()
		return nil, fmt.Errorf("mcp client not connected")
	}
	c.mu.Unlock()

	id := c.nextID.Add(1)

	req, err := NewRequest(id, method, params)
	if err != nil {
		return nil, err
	}

	c.callMu.Lock()
	defer c.callMu.Unlock()

	if err := c.writeRequest(req); err != nil {
		return nil, err
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case raw, ok := <-c.lines:
			if !ok {
				return nil, fmt.Errorf("mcp server closed the stream")
			}

			var resp Response
			if err := json.Unmarshal(raw, &resp); err != nil {
				return nil, fmt.Errorf("parse response: %w", err)
			}

			respID, numeric := numericID(resp.ID)
			if !numeric || respID != id {
				c.logger.Debug("discarding stale response", zap.Any("id", resp.ID))
				continue
			}

			if resp.Error != nil {
				return nil, types.NewError(types.ErrToolFailed, resp.Error.Message).WithCause(resp.Error)
			}

			return resp.Result, nil
		}
	}
}

// writeRequest 序列化并写出单行请求
func (c *StdioClient) writeRequest(req *Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.stdin.Write(append(body, '\n')); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	return nil
}

// readLoop 持续读取服务器输出，按行送入通道
func (c *StdioClient) readLoop(r io.Reader) {
	defer close(c.lines)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		c.lines <- line
	}

	if err := scanner.Err(); err != nil {
		c.logger.Warn("read loop terminated", zap.Error(err))
	}
}

// numericID 将线路上的响应 ID 归一化为 int64。
// JSON 数字经 encoding/json 解码后为 float64。
func numericID(v any) (int64, bool) {
	switch id := v.(type) {
	case float64:
		return int64(id), true
	case int64:
		return id, true
	case int:
		return int64(id), true
	}
	return 0, false
}

// firstText 返回第一个 text 类型内容块的文本
func firstText(blocks []ContentBlock) (string, bool) {
	for _, block := range blocks {
		if block.Type == "text" {
			return block.Text, true
		}
	}
	return "", false
}
