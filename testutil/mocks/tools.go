// MockToolCaller 是 MCP 工具调用方的测试模拟实现。
//
// 支持按工具名预置结果、错误注入与调用记录。
package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// ToolCall 记录单次工具调用。
type ToolCall struct {
	Name string
	Args map[string]any
}

// MockToolCaller 按工具名返回预置结果, 满足数据代理与支持代理的
// ToolCaller 接口。
type MockToolCaller struct {
	mu sync.Mutex

	results map[string]json.RawMessage
	errors  map[string]error
	calls   []ToolCall
}

// NewMockToolCaller 创建模拟工具调用方。
func NewMockToolCaller() *MockToolCaller {
	return &MockToolCaller{
		results: make(map[string]json.RawMessage),
		errors:  make(map[string]error),
	}
}

// WithResult 预置某个工具的返回值, v 会被序列化为 JSON。
func (m *MockToolCaller) WithResult(tool string, v any) *MockToolCaller {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[tool] = data
	return m
}

// WithError 预置某个工具的调用错误。
func (m *MockToolCaller) WithError(tool string, err error) *MockToolCaller {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[tool] = err
	return m
}

// Calls 返回已记录的调用副本。
func (m *MockToolCaller) Calls() []ToolCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ToolCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsTo 返回指定工具的调用记录。
func (m *MockToolCaller) CallsTo(tool string) []ToolCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ToolCall
	for _, c := range m.calls {
		if c.Name == tool {
			out = append(out, c)
		}
	}
	return out
}

// CallTool 实现工具调用接口。
func (m *MockToolCaller) CallTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, ToolCall{Name: name, Args: args})
	err, hasErr := m.errors[name]
	result, hasResult := m.results[name]
	m.mu.Unlock()

	if hasErr {
		return nil, err
	}
	if !hasResult {
		return nil, fmt.Errorf("no result configured for tool %q", name)
	}
	return result, nil
}
