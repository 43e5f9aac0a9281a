// =============================================================================
// CareFlow Hugging Face Router Provider
// =============================================================================
// OpenAI-compatible chat completions against the HF Inference Router.
// Serverless backends scale to zero, so the first request after idle
// often gets a 503 while the model instance spins up. The provider
// waits out the warmup window and retries instead of failing the query.
// =============================================================================

package hfrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/careflow/internal/tlsutil"
	"github.com/BaSui01/careflow/llm"
	"github.com/BaSui01/careflow/llm/providers"
	"github.com/BaSui01/careflow/llm/tokenizer"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL 是 HF Inference Router 的 OpenAI 兼容入口。
	DefaultBaseURL = "https://router.huggingface.co/v1"

	// DefaultModel 是客服网格默认使用的指令模型。
	DefaultModel = "meta-llama/Llama-3.2-3B-Instruct"

	providerName = "hf-router"

	// jsonInstruction 追加到 system 提示末尾。json_object 响应格式
	// 并非所有路由后端都强制执行，提示层需再约束一次。
	jsonInstruction = "IMPORTANT: Output ONLY valid JSON."

	// 未显式指定时的请求参数：分类走低温度，文案生成走较高温度。
	defaultMaxTokens = 500
	jsonTemperature  = 0.1
	proseTemperature = 0.7
)

// Config holds the configuration for the HF Router provider.
type Config struct {
	// APIKey is the Hugging Face access token.
	APIKey string

	// BaseURL overrides DefaultBaseURL. Any OpenAI-compatible endpoint
	// (self-hosted vLLM, a cloud gateway) works here.
	BaseURL string

	// DefaultModel is used when the request does not name a model.
	DefaultModel string

	// Timeout is the HTTP client timeout. Defaults to 2m; small instruct
	// models normally answer well within that.
	Timeout time.Duration

	// WarmupDelay is how long to wait after a 503 before retrying.
	// Defaults to 10s.
	WarmupDelay time.Duration

	// MaxRetries bounds the number of warmup retries. Defaults to 1.
	MaxRetries int
}

// Provider calls the HF Router chat completions API.
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

var _ llm.Provider = (*Provider)(nil)

// New creates an HF Router provider with the given config.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.WarmupDelay == 0 {
		cfg.WarmupDelay = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:    cfg,
		client: tlsutil.Client(cfg.Timeout),
		logger: logger.Named("llm.hfrouter"),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return providerName }

func (p *Provider) endpoint(path string) string {
	return strings.TrimRight(p.cfg.BaseURL, "/") + path
}

func (p *Provider) buildHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
}

// Completion performs a non-streaming chat completion.
// A 503 from the router means the model is still warming up; the call
// sleeps WarmupDelay and retries up to MaxRetries times.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := providers.ChooseModel(req, p.cfg.DefaultModel)

	messages := req.Messages
	if req.JSONMode {
		messages = withJSONInstruction(messages)
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = proseTemperature
		if req.JSONMode {
			temperature = jsonTemperature
		}
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	body := providers.OpenAICompatRequest{
		Model:       model,
		Messages:    providers.ConvertMessagesToOpenAI(messages),
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
	if req.JSONMode {
		body.ResponseFormat = &providers.ResponseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Info("Model warming up, waiting before retry",
				zap.String("model", model),
				zap.Duration("delay", p.cfg.WarmupDelay),
				zap.Int("attempt", attempt))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.cfg.WarmupDelay):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint("/chat/completions"), bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		p.buildHeaders(httpReq)

		resp, err := p.client.Do(httpReq)
		if err != nil {
			return nil, &llm.Error{
				Code: llm.ErrUpstreamError, Message: err.Error(),
				HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
			}
		}

		if resp.StatusCode == http.StatusServiceUnavailable && attempt < p.cfg.MaxRetries {
			msg := providers.ReadErrorMessage(resp.Body)
			resp.Body.Close()
			lastErr = providers.MapHTTPError(resp.StatusCode, msg, p.Name())
			continue
		}
		if resp.StatusCode >= 400 {
			msg := providers.ReadErrorMessage(resp.Body)
			resp.Body.Close()
			return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
		}

		var oaResp providers.OpenAICompatResponse
		err = json.NewDecoder(resp.Body).Decode(&oaResp)
		resp.Body.Close()
		if err != nil {
			return nil, &llm.Error{
				Code: llm.ErrUpstreamError, Message: err.Error(),
				HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
			}
		}

		result := providers.ToLLMChatResponse(oaResp, p.Name())
		if oaResp.Created != 0 {
			result.CreatedAt = time.Unix(oaResp.Created, 0)
		}
		if oaResp.Usage == nil {
			// 部分后端不回传 usage，用分词器估算补齐。
			result.Usage = estimateUsage(model, req.Messages, result)
		}
		return result, nil
	}
	return nil, lastErr
}

// withJSONInstruction 在 system 提示末尾追加严格 JSON 约束；
// 没有 system 消息时插入一条。不修改调用方的切片。
func withJSONInstruction(messages []llm.Message) []llm.Message {
	out := make([]llm.Message, len(messages))
	copy(out, messages)
	for i, m := range out {
		if m.Role == llm.RoleSystem {
			out[i].Content = m.Content + "\n\n" + jsonInstruction
			return out
		}
	}
	return append([]llm.Message{{Role: llm.RoleSystem, Content: jsonInstruction}}, out...)
}

// HealthCheck verifies the router is reachable and the token is accepted.
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint("/models"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := providers.ReadErrorMessage(resp.Body)
		return &llm.HealthStatus{Healthy: false, Latency: latency},
			fmt.Errorf("%s health check failed: status=%d msg=%s", p.Name(), resp.StatusCode, msg)
	}

	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

// ListModels returns the models visible to the configured token.
func (p *Provider) ListModels(ctx context.Context) ([]llm.Model, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint("/models"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &llm.Error{
			Code: llm.ErrUpstreamError, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	var modelsResp struct {
		Object string      `json:"object"`
		Data   []llm.Model `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&modelsResp); err != nil {
		return nil, &llm.Error{
			Code: llm.ErrUpstreamError, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		}
	}
	return modelsResp.Data, nil
}

func estimateUsage(model string, prompt []llm.Message, resp *llm.ChatResponse) llm.ChatUsage {
	tok := tokenizer.GetTokenizerOrEstimator(model)

	msgs := make([]tokenizer.Message, 0, len(prompt))
	for _, m := range prompt {
		msgs = append(msgs, tokenizer.Message{Role: string(m.Role), Content: m.Content})
	}
	promptTokens, err := tok.CountMessages(msgs)
	if err != nil {
		return llm.ChatUsage{}
	}

	completionTokens := 0
	for _, c := range resp.Choices {
		n, err := tok.CountTokens(c.Message.Content)
		if err != nil {
			return llm.ChatUsage{}
		}
		completionTokens += n
	}

	return llm.ChatUsage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		Estimated:        true,
	}
}
