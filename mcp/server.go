package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// 单行消息上限（1 MiB），超过按扫描错误处理
const maxLineBytes = 1 << 20

// 单次工具调用的执行超时
const toolCallTimeout = 30 * time.Second

// ToolHandler 工具处理函数
type ToolHandler func(ctx context.Context, args map[string]any) (any, error)

// registeredTool 已注册工具：描述 + 处理函数
type registeredTool struct {
	descriptor ToolDescriptor
	handler    ToolHandler
}

// Server 基于换行分隔 JSON-RPC 的 MCP 服务器
type Server struct {
	name    string
	version string

	tools   map[string]*registeredTool
	toolsMu sync.RWMutex

	writeMu sync.Mutex

	logger *zap.Logger
}

// NewServer 创建 MCP 服务器
func NewServer(name, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	return &Server{
		name:    name,
		version: version,
		tools:   make(map[string]*registeredTool),
		logger:  logger.With(zap.String("component", "mcp_server")),
	}
}

// RegisterTool 注册工具
func (s *Server) RegisterTool(name, description string, schema *Schema, handler ToolHandler) error {
	if name == "" {
		return fmt.Errorf("tool name is required")
	}

	if handler == nil {
		return fmt.Errorf("tool handler is required")
	}

	s.toolsMu.Lock()
	defer s.toolsMu.Unlock()

	s.tools[name] = &registeredTool{
		descriptor: ToolDescriptor{
			Name:        name,
			Description: description,
			InputSchema: schema,
		},
		handler: handler,
	}

	s.logger.Info("tool registered", zap.String("name", name))

	return nil
}

// ListTools 按名称排序列出所有已注册工具
func (s *Server) ListTools() []ToolDescriptor {
	s.toolsMu.RLock()
	defer s.toolsMu.RUnlock()

	tools := make([]ToolDescriptor, 0, len(s.tools))
	for _, tool := range s.tools {
		tools = append(tools, tool.descriptor)
	}

	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Name < tools[j].Name
	})

	return tools
}

// CallTool 调用工具（带 30 秒超时控制）
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	s.toolsMu.RLock()
	tool, ok := s.tools[name]
	s.toolsMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}

	s.logger.Debug("calling tool",
		zap.String("name", name),
		zap.Any("args", args),
	)

	callCtx, cancel := context.WithTimeout(ctx, toolCallTimeout)
	defer cancel()

	result, err := tool.handler(callCtx, args)
	if err != nil {
		s.logger.Error("tool call failed",
			zap.String("name", name),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Debug("tool call succeeded", zap.String("name", name))

	return result, nil
}

// ---------------------------------------------------------------------------
// Serve 消息循环（换行分隔 JSON-RPC）
// ---------------------------------------------------------------------------

// Serve 在 r/w 上运行 JSON-RPC 循环，直到 EOF 或上下文取消。
// 解析失败返回 -32700，未知方法返回 -32601；工具执行错误以
// CallResult.IsError 形式在带内返回，不中断循环。上下文取消
// 与 EOF 均返回 nil。
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.logger.Info("mcp server ready",
		zap.String("name", s.name),
		zap.String("version", s.version),
	)

	lines := make(chan []byte)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

		for scanner.Scan() {
			line := make([]byte, len(scanner.Bytes()))
			copy(line, scanner.Bytes())

			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil {
			scanErr <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("mcp server stopped")
			return nil
		case err := <-scanErr:
			return fmt.Errorf("read request: %w", err)
		case line, ok := <-lines:
			if !ok {
				s.logger.Info("mcp server stopped", zap.String("reason", "eof"))
				return nil
			}

			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}

			if err := s.handleLine(ctx, w, line); err != nil {
				return err
			}
		}
	}
}

// handleLine 处理单行请求，返回值仅携带传输层写入错误
func (s *Server) handleLine(ctx context.Context, w io.Writer, line []byte) error {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.logger.Warn("malformed request", zap.Error(err))
		return s.writeResponse(w, NewErrorResponse(nil, ErrorCodeParseError, fmt.Sprintf("parse error: %v", err)))
	}

	if req.JSONRPC != JSONRPCVersion || req.Method == "" {
		return s.writeResponse(w, NewErrorResponse(req.ID, ErrorCodeInvalidRequest, "invalid request"))
	}

	// 无 ID 的请求是通知，处理后不回写响应
	if req.ID == nil {
		s.logger.Debug("ignoring notification", zap.String("method", req.Method))
		return nil
	}

	var resp *Response
	switch req.Method {
	case MethodInitialize:
		resp = s.handleInitialize(&req)
	case MethodListTools:
		resp = s.handleListTools(&req)
	case MethodCallTool:
		resp = s.handleCallTool(ctx, &req)
	case MethodPing:
		resp = s.handlePing(&req)
	default:
		resp = NewErrorResponse(req.ID, ErrorCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}

	return s.writeResponse(w, resp)
}

func (s *Server) handleInitialize(req *Request) *Response {
	var params InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err == nil && params.ClientInfo.Name != "" {
			s.logger.Info("client initialized",
				zap.String("client", params.ClientInfo.Name),
				zap.String("client_version", params.ClientInfo.Version),
			)
		}
	}

	result := InitializeResult{
		ProtocolVersion: ProtocolVersion,
		ServerInfo:      ServerInfo{Name: s.name, Version: s.version},
		Capabilities:    Capabilities{Tools: ToolsCapability{}},
	}

	return s.mustResponse(req.ID, result)
}

func (s *Server) handleListTools(req *Request) *Response {
	return s.mustResponse(req.ID, ListToolsResult{Tools: s.ListTools()})
}

func (s *Server) handleCallTool(ctx context.Context, req *Request) *Response {
	var params CallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return NewErrorResponse(req.ID, ErrorCodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}

	if params.Name == "" {
		return NewErrorResponse(req.ID, ErrorCodeInvalidParams, "tool name is required")
	}

	result, err := s.CallTool(ctx, params.Name, params.Arguments)
	if err != nil {
		return s.mustResponse(req.ID, CallResult{
			Content: []ContentBlock{TextContent(err.Error())},
			IsError: true,
		})
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return s.mustResponse(req.ID, CallResult{
			Content: []ContentBlock{TextContent(fmt.Sprintf("serialize tool result: %v", err))},
			IsError: true,
		})
	}

	return s.mustResponse(req.ID, CallResult{
		Content: []ContentBlock{TextContent(string(resultJSON))},
	})
}

func (s *Server) handlePing(req *Request) *Response {
	return s.mustResponse(req.ID, struct{}{})
}

// mustResponse 序列化结果为响应，失败则降级为内部错误
func (s *Server) mustResponse(id any, result any) *Response {
	resp, err := NewResponse(id, result)
	if err != nil {
		s.logger.Error("failed to encode result", zap.Error(err))
		return NewErrorResponse(id, ErrorCodeInternalError, "failed to encode result")
	}
	return resp
}

// writeResponse 序列化并写出单行响应
func (s *Server) writeResponse(w io.Writer, resp *Response) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := w.Write(append(body, '\n')); err != nil {
		s.logger.Error("failed to write response", zap.Error(err))
		return fmt.Errorf("write response: %w", err)
	}

	return nil
}
