// MockProvider 是 llm.Provider 的测试模拟实现。
//
// 支持脚本化响应队列、请求记录与错误注入。
package mocks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/BaSui01/careflow/llm"
)

// MockProvider 按入队顺序返回脚本化的补全结果。
// 队列耗尽后返回 defaultContent。
type MockProvider struct {
	mu sync.Mutex

	name           string
	queue          []completionStep
	requests       []llm.ChatRequest
	defaultContent string
	healthErr      error
}

type completionStep struct {
	content string
	err     error
}

// NewMockProvider 创建模拟 Provider。
func NewMockProvider() *MockProvider {
	return &MockProvider{
		name:           "mock",
		defaultContent: "OK",
	}
}

// WithName 设置 Provider 名称。
func (m *MockProvider) WithName(name string) *MockProvider {
	m.name = name
	return m
}

// WithResponse 追加一条将按序返回的回复文本。
func (m *MockProvider) WithResponse(content string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, completionStep{content: content})
	return m
}

// WithClassification 追加一条意图分类 JSON 响应。
func (m *MockProvider) WithClassification(intents []string, entities map[string]any) *MockProvider {
	payload := map[string]any{
		"reasoning": "scripted classification",
		"intents":   intents,
		"entities":  entities,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return m.WithResponse(string(data))
}

// WithError 追加一条将按序返回的错误。
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, completionStep{err: err})
	return m
}

// WithHealthError 让 HealthCheck 返回给定错误。
func (m *MockProvider) WithHealthError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthErr = err
	return m
}

// Requests 返回已记录的请求副本。
func (m *MockProvider) Requests() []llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.ChatRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// CallCount 返回 Completion 的调用次数。
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Completion 实现 llm.Provider。
func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.requests = append(m.requests, *req)

	step := completionStep{content: m.defaultContent}
	if len(m.queue) > 0 {
		step = m.queue[0]
		m.queue = m.queue[1:]
	}
	m.mu.Unlock()

	if step.err != nil {
		return nil, step.err
	}

	return &llm.ChatResponse{
		ID:       "mock-completion",
		Provider: m.name,
		Model:    req.Model,
		Choices: []llm.ChatChoice{
			{
				Index:        0,
				FinishReason: "stop",
				Message:      llm.Message{Role: llm.RoleAssistant, Content: step.content},
			},
		},
		Usage:     llm.ChatUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
		CreatedAt: time.Now(),
	}, nil
}

// HealthCheck 实现 llm.Provider。
func (m *MockProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	m.mu.Lock()
	err := m.healthErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &llm.HealthStatus{Healthy: true, Latency: time.Millisecond}, nil
}

// Name 实现 llm.Provider。
func (m *MockProvider) Name() string {
	return m.name
}
