package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/BaSui01/careflow/internal/tlsutil"
)

// cardCacheTTL 是已发现代理卡的缓存有效期.
const cardCacheTTL = 5 * time.Minute

// Client 定义 A2A 客户端操作的接口.
type Client interface {
	// Discover 从远程代理检索代理卡.
	Discover(ctx context.Context, baseURL string) (*AgentCard, error)
	// Send 同步发送消息并等待回复.
	Send(ctx context.Context, baseURL string, msg *Message) (*Message, error)
	// SendAsync 异步发送消息并返回任务 ID.
	SendAsync(ctx context.Context, baseURL string, msg *Message) (string, error)
	// TaskResult 按任务 ID 检索异步任务的结果.
	TaskResult(ctx context.Context, baseURL, taskID string) (*Message, error)
}

// ClientConfig 持有 A2A 客户端的配置.
type ClientConfig struct {
	// Timeout 是 HTTP 请求的默认超时.
	Timeout time.Duration
	// RetryCount 是失败请求的重试次数.
	RetryCount int
	// RetryDelay 是重试之间的延迟.
	RetryDelay time.Duration
	// Headers 是请求中要附加的额外信头.
	Headers map[string]string
	// AgentID 是发起请求的本地代理标识符.
	AgentID string
}

// DefaultClientConfig 返回带有合理默认值的客户端配置.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Timeout:    10 * time.Second,
		RetryCount: 3,
		RetryDelay: 1 * time.Second,
		Headers:    make(map[string]string),
		AgentID:    "default-agent",
	}
}

// HTTPClient 是 Client 基于 HTTP 的默认实现.
type HTTPClient struct {
	config     *ClientConfig
	httpClient *http.Client
	// 已发现代理卡的缓存, 按基础 URL 索引
	cardCache map[string]*cachedCard
	cacheMu   sync.RWMutex
}

type cachedCard struct {
	card      *AgentCard
	expiresAt time.Time
}

// NewHTTPClient 以给定的配置创建新的 HTTPClient.
func NewHTTPClient(config *ClientConfig) *HTTPClient {
	if config == nil {
		config = DefaultClientConfig()
	}

	return &HTTPClient{
		config:     config,
		httpClient: tlsutil.Client(config.Timeout),
		cardCache:  make(map[string]*cachedCard),
	}
}

// Discover 从给定基础 URL 的远程代理检索代理卡.
// 代理卡预期在 "/.well-known/agent.json" 提供.
func (c *HTTPClient) Discover(ctx context.Context, baseURL string) (*AgentCard, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: empty base url", ErrRemoteUnavailable)
	}

	// 先查缓存
	c.cacheMu.RLock()
	if cached, ok := c.cardCache[baseURL]; ok && time.Now().Before(cached.expiresAt) {
		c.cacheMu.RUnlock()
		return cached.card, nil
	}
	c.cacheMu.RUnlock()

	discoveryURL := baseURL + "/.well-known/agent.json"

	// 带重试执行请求
	var resp *http.Response
	var lastErr error
	for i := 0; i <= c.config.RetryCount; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoveryURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range c.config.Headers {
			req.Header.Set(k, v)
		}

		resp, lastErr = c.httpClient.Do(req)
		if lastErr == nil && resp.StatusCode < http.StatusInternalServerError {
			break
		}
		if i == c.config.RetryCount {
			break
		}
		if resp != nil {
			resp.Body.Close()
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.config.RetryDelay):
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, lastErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status code %d", ErrRemoteUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var card AgentCard
	if err := json.Unmarshal(body, &card); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	if err := card.Validate(); err != nil {
		return nil, err
	}

	c.cacheMu.Lock()
	c.cardCache[baseURL] = &cachedCard{
		card:      &card,
		expiresAt: time.Now().Add(cardCacheTTL),
	}
	c.cacheMu.Unlock()

	return &card, nil
}

// InvalidateCard 从缓存中移除某个基础 URL 的代理卡.
func (c *HTTPClient) InvalidateCard(baseURL string) {
	c.cacheMu.Lock()
	delete(c.cardCache, baseURL)
	c.cacheMu.Unlock()
}

// Send 同步发送消息并等待回复.
// 远程代理的协议级错误作为错误类型的信封返回, 而不是 Go 错误.
func (c *HTTPClient) Send(ctx context.Context, baseURL string, msg *Message) (*Message, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", ErrInvalidMessage)
	}
	if msg.From == "" {
		msg.From = c.config.AgentID
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	messageURL := baseURL + "/a2a/messages"

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize message: %w", err)
	}

	// 带重试执行请求, 每次尝试重建请求体
	var resp *http.Response
	var lastErr error
	for i := 0; i <= c.config.RetryCount; i++ {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, messageURL, bytes.NewReader(body))
		if reqErr != nil {
			return nil, fmt.Errorf("failed to create request: %w", reqErr)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		for k, v := range c.config.Headers {
			req.Header.Set(k, v)
		}

		resp, lastErr = c.httpClient.Do(req)
		if lastErr == nil && resp.StatusCode < http.StatusInternalServerError {
			break
		}
		if i == c.config.RetryCount {
			break
		}
		if resp != nil {
			resp.Body.Close()
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.config.RetryDelay):
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, lastErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d, body: %s", ErrRemoteUnavailable, resp.StatusCode, string(respBody))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var reply Message
	if err := json.Unmarshal(respBody, &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	return &reply, nil
}

// SendAsync 异步发送消息并返回任务 ID.
// 调用方用 TaskResult 轮询结果.
func (c *HTTPClient) SendAsync(ctx context.Context, baseURL string, msg *Message) (string, error) {
	if msg == nil {
		return "", fmt.Errorf("%w: nil message", ErrInvalidMessage)
	}
	if msg.From == "" {
		msg.From = c.config.AgentID
	}
	if err := msg.Validate(); err != nil {
		return "", err
	}

	asyncURL := baseURL + "/a2a/messages/async"

	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to serialize message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, asyncURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: status %d, body: %s", ErrRemoteUnavailable, resp.StatusCode, string(respBody))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var asyncResp AsyncResponse
	if err := json.Unmarshal(respBody, &asyncResp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	if asyncResp.TaskID == "" {
		return "", fmt.Errorf("%w: missing task_id in response", ErrInvalidMessage)
	}

	return asyncResp.TaskID, nil
}

// TaskResult 按任务 ID 检索异步任务的结果.
// 任务仍在处理时返回 ErrTaskNotReady, 任务不存在时返回 ErrTaskNotFound.
func (c *HTTPClient) TaskResult(ctx context.Context, baseURL, taskID string) (*Message, error) {
	if taskID == "" {
		return nil, fmt.Errorf("%w: empty task_id", ErrInvalidMessage)
	}
	if baseURL == "" {
		return nil, fmt.Errorf("%w: empty base url", ErrRemoteUnavailable)
	}

	resultURL := fmt.Sprintf("%s/a2a/tasks/%s/result", baseURL, taskID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// 任务已终结, 解析结果信封
	case http.StatusAccepted:
		return nil, ErrTaskNotReady
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	default:
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d, body: %s", ErrRemoteUnavailable, resp.StatusCode, string(respBody))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result Message
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	return &result, nil
}

// AsyncResponse 是异步消息提交的响应.
type AsyncResponse struct {
	// TaskID 是用于检索结果的任务标识符.
	TaskID string `json:"task_id"`
	// Status 表示任务的当前状态.
	Status string `json:"status"`
	// Message 是可读的状态说明.
	Message string `json:"message,omitempty"`
}

// 确保 HTTPClient 实现 Client 接口.
var _ Client = (*HTTPClient)(nil)
