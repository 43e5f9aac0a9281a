package llm

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/careflow/internal/metrics"
	"go.uber.org/zap"
)

// InstrumentedProvider 为底层 Provider 附加指标与日志。
// 遵循装饰器模式：增强原有 Provider 而不修改其代码。
type InstrumentedProvider struct {
	provider  Provider
	collector *metrics.Collector
	logger    *zap.Logger
}

var _ Provider = (*InstrumentedProvider)(nil)

// WithInstrumentation 包装 provider。collector 为 nil 时仅记录日志。
func WithInstrumentation(provider Provider, collector *metrics.Collector, logger *zap.Logger) *InstrumentedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedProvider{
		provider:  provider,
		collector: collector,
		logger:    logger.Named("llm"),
	}
}

func (p *InstrumentedProvider) Name() string { return p.provider.Name() }

func (p *InstrumentedProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()
	resp, err := p.provider.Completion(ctx, req)
	elapsed := time.Since(start)

	model := ""
	if req != nil {
		model = req.Model
	}
	if resp != nil && resp.Model != "" {
		model = resp.Model
	}

	if err != nil {
		status := errorStatus(err)
		if p.collector != nil {
			p.collector.RecordLLMRequest(p.provider.Name(), model, status, elapsed, 0, 0)
		}
		p.logger.Warn("LLM completion failed",
			zap.String("provider", p.provider.Name()),
			zap.String("model", model),
			zap.String("status", status),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return nil, err
	}

	if p.collector != nil {
		p.collector.RecordLLMRequest(p.provider.Name(), model, "ok", elapsed,
			resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}
	p.logger.Debug("LLM completion finished",
		zap.String("provider", p.provider.Name()),
		zap.String("model", model),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Bool("estimated_usage", resp.Usage.Estimated),
		zap.Duration("elapsed", elapsed))
	return resp, nil
}

func (p *InstrumentedProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return p.provider.HealthCheck(ctx)
}

// errorStatus 把错误折叠为低基数的指标标签。
func errorStatus(err error) string {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return string(llmErr.Code)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return string(ErrUpstreamTimeout)
	}
	return "error"
}
