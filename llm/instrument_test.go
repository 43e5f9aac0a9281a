package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/BaSui01/careflow/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	resp  *ChatResponse
	err   error
	calls int
}

func (f *fakeProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return &HealthStatus{Healthy: true, Latency: time.Millisecond}, nil
}

func (f *fakeProvider) Name() string { return "fake" }

// gatherCounterTotal 汇总默认注册表中某个 counter 的全部标签值。
func gatherCounterTotal(t *testing.T, name string) float64 {
	t.Helper()
	mfs, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestWithInstrumentation_Success(t *testing.T) {
	collector := metrics.NewCollector("llm_instr_ok", zap.NewNop())

	fake := &fakeProvider{
		resp: &ChatResponse{
			Model:   "m",
			Choices: []ChatChoice{{Message: Message{Role: RoleAssistant, Content: "hi"}}},
			Usage:   ChatUsage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
		},
	}
	p := WithInstrumentation(fake, collector, zap.NewNop())

	resp, err := p.Completion(context.Background(), &ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, fake.resp, resp)
	assert.Equal(t, "fake", p.Name())
	assert.Equal(t, 1, fake.calls)

	assert.InDelta(t, 1.0, gatherCounterTotal(t, "llm_instr_ok_llm_requests_total"), 1e-9)
	assert.InDelta(t, 5.0, gatherCounterTotal(t, "llm_instr_ok_llm_tokens_used_total"), 1e-9)
}

func TestWithInstrumentation_Error(t *testing.T) {
	collector := metrics.NewCollector("llm_instr_err", zap.NewNop())

	fake := &fakeProvider{err: &Error{Code: ErrRateLimited, Message: "slow down", HTTPStatus: 429}}
	p := WithInstrumentation(fake, collector, zap.NewNop())

	_, err := p.Completion(context.Background(), &ChatRequest{Model: "m"})
	require.Error(t, err)

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrRateLimited, llmErr.Code)
	assert.InDelta(t, 1.0, gatherCounterTotal(t, "llm_instr_err_llm_requests_total"), 1e-9)
}

func TestWithInstrumentation_NilCollector(t *testing.T) {
	fake := &fakeProvider{resp: &ChatResponse{Model: "m"}}
	p := WithInstrumentation(fake, nil, nil)

	resp, err := p.Completion(context.Background(), &ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "m", resp.Model)

	status, err := p.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"llm error uses code", &Error{Code: ErrModelWarmingUp}, "LLM_MODEL_WARMING_UP"},
		{"wrapped llm error", fmt.Errorf("call: %w", &Error{Code: ErrUnauthorized}), "LLM_UNAUTHORIZED"},
		{"deadline exceeded", context.DeadlineExceeded, "LLM_UPSTREAM_TIMEOUT"},
		{"generic error", errors.New("boom"), "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorStatus(tt.err))
		})
	}
}
