package mcp

import (
	"encoding/json"
	"fmt"
)

// MCP (Model Context Protocol) 线路类型
// 基于 JSON-RPC 2.0，每行一个 JSON 对象（换行分隔）

// ProtocolVersion 当前实现的 MCP 协议版本
const ProtocolVersion = "2024-11-05"

// JSONRPCVersion JSON-RPC 协议版本
const JSONRPCVersion = "2.0"

// 标准方法名
const (
	MethodInitialize = "initialize"
	MethodListTools  = "tools/list"
	MethodCallTool   = "tools/call"
	MethodPing       = "ping"
)

// JSON-RPC 2.0 标准错误码
const (
	ErrorCodeParseError     = -32700
	ErrorCodeInvalidRequest = -32600
	ErrorCodeMethodNotFound = -32601
	ErrorCodeInvalidParams  = -32602
	ErrorCodeInternalError  = -32603
)

// Request JSON-RPC 请求
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response JSON-RPC 响应
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError JSON-RPC 错误对象
type RPCError struct {
	Code    int    `json:"code"`    // 标准错误码
	Message string `json:"message"` // 错误描述
	Data    any    `json:"data,omitempty"`
}

// Error 实现 error 接口
func (e *RPCError) Error() string {
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

// NewRequest 创建 JSON-RPC 请求，params 为 nil 时省略参数字段
func NewRequest(id any, method string, params any) (*Request, error) {
	req := &Request{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Method:  method,
	}

	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params for %s: %w", method, err)
		}
		req.Params = raw
	}

	return req, nil
}

// NewResponse 创建成功响应
func NewResponse(id any, result any) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}

	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  raw,
	}, nil
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(id any, code int, message string) *Response {
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &RPCError{
			Code:    code,
			Message: message,
		},
	}
}

// ServerInfo 服务器标识
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ClientInfo 客户端标识
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ToolsCapability 工具能力声明
type ToolsCapability struct{}

// Capabilities 服务器能力集合
type Capabilities struct {
	Tools ToolsCapability `json:"tools"`
}

// InitializeParams initialize 请求参数
type InitializeParams struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ClientInfo      ClientInfo `json:"clientInfo"`
}

// InitializeResult initialize 响应结果
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
	Capabilities    Capabilities `json:"capabilities"`
}

// Schema 工具输入的 JSON Schema 子集
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
}

// ObjectSchema 构造对象类型 Schema
func ObjectSchema(properties map[string]*Schema, required ...string) *Schema {
	return &Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

// ToolDescriptor 工具描述，tools/list 返回的条目
type ToolDescriptor struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	InputSchema *Schema `json:"inputSchema,omitempty"`
}

// ListToolsResult tools/list 响应结果
type ListToolsResult struct {
	Tools []ToolDescriptor `json:"tools"`
}

// CallParams tools/call 请求参数
type CallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ContentBlock 响应内容块，目前仅支持 text 类型
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// TextContent 构造单个文本内容块
func TextContent(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

// CallResult tools/call 响应结果，工具级失败通过 IsError 标记
type CallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}
