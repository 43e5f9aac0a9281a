package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/careflow/llm"
)

// scriptedProvider returns a canned completion and records the request.
type scriptedProvider struct {
	content string
	err     error
	gotReq  *llm.ChatRequest
}

func (p *scriptedProvider) Completion(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.gotReq = req
	if p.err != nil {
		return nil, p.err
	}
	return &llm.ChatResponse{
		Model: "test-model",
		Choices: []llm.ChatChoice{
			{Message: llm.Message{Role: llm.RoleAssistant, Content: p.content}},
		},
	}, nil
}

func (p *scriptedProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

// stubClassifier returns a fixed result, for chain wiring tests.
type stubClassifier struct {
	result *Result
	err    error
}

func (s *stubClassifier) Classify(context.Context, string) (*Result, error) {
	return s.result, s.err
}

func TestCatalogMembership(t *testing.T) {
	assert.Len(t, Catalog(), 10)
	for _, intent := range Catalog() {
		assert.True(t, Known(intent), intent)
	}
	assert.False(t, Known("teleport_customer"))
	assert.False(t, Known(""))
}

func TestLLMClassifier(t *testing.T) {
	provider := &scriptedProvider{
		content: `{"reasoning":"User asks for profile details.","intents":["get_customer_info"],"entities":{"customer_id":1}}`,
	}
	c := NewLLMClassifier(provider, "", zap.NewNop())

	result, err := c.Classify(context.Background(), "What tier is customer 1 on?")
	require.NoError(t, err)

	assert.Equal(t, "User asks for profile details.", result.Reasoning)
	assert.Equal(t, []string{IntentGetCustomerInfo}, result.Intents)
	assert.Equal(t, SourceLLM, result.Source)
	assert.EqualValues(t, 1, result.Entities["customer_id"])

	require.NotNil(t, provider.gotReq)
	assert.True(t, provider.gotReq.JSONMode)
	require.Len(t, provider.gotReq.Messages, 2)
	assert.Equal(t, llm.RoleSystem, provider.gotReq.Messages[0].Role)
	assert.Contains(t, provider.gotReq.Messages[0].Content, "AVAILABLE INTENTS")
	assert.Equal(t, "What tier is customer 1 on?", provider.gotReq.Messages[1].Content)
}

func TestLLMClassifierFencedOutput(t *testing.T) {
	provider := &scriptedProvider{
		content: "```json\n{\"reasoning\":\"r\",\"intents\":[\"refund_request\"],\"entities\":{}}\n```",
	}
	c := NewLLMClassifier(provider, "", zap.NewNop())

	result, err := c.Classify(context.Background(), "I want my money back")
	require.NoError(t, err)
	assert.Equal(t, []string{IntentRefundRequest}, result.Intents)
}

func TestLLMClassifierFiltersUnknownIntents(t *testing.T) {
	provider := &scriptedProvider{
		content: `{"reasoning":"r","intents":["refund_request","teleport_customer"],"entities":{}}`,
	}
	c := NewLLMClassifier(provider, "", zap.NewNop())

	result, err := c.Classify(context.Background(), "refund and teleport please")
	require.NoError(t, err)
	assert.Equal(t, []string{IntentRefundRequest}, result.Intents)
}

func TestLLMClassifierAllIntentsUnknown(t *testing.T) {
	provider := &scriptedProvider{
		content: `{"reasoning":"r","intents":["teleport_customer"],"entities":{}}`,
	}
	c := NewLLMClassifier(provider, "", zap.NewNop())

	result, err := c.Classify(context.Background(), "beam me up")
	require.NoError(t, err)
	assert.Empty(t, result.Intents)
	assert.NotNil(t, result.Entities)
}

func TestLLMClassifierProviderError(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("model unavailable")}
	c := NewLLMClassifier(provider, "", zap.NewNop())

	_, err := c.Classify(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "intent completion")
}

func TestLLMClassifierMalformedOutput(t *testing.T) {
	provider := &scriptedProvider{content: "Sure, I will route that for you!"}
	c := NewLLMClassifier(provider, "", zap.NewNop())

	_, err := c.Classify(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse intent output")
}

func TestKeywordClassifier(t *testing.T) {
	c := NewKeywordClassifier(zap.NewNop())

	tests := []struct {
		text string
		want string
	}{
		{"I want a refund for this charge", IntentRefundRequest},
		{"Please give me my MONEY BACK", IntentRefundRequest},
		{"I need to cancel my plan", IntentCancelSubscription},
		{"Show all active customers", IntentListCustomers},
		{"Please update my email address", IntentUpdateEmail},
		{"Show me my ticket history", IntentGetCustomerHistory},
		{"What is the status of my ticket", IntentShowTicketStatus},
		{"Hello there", IntentSupportRequest},
		// refund outranks cancel when both appear
		{"cancel that refund", IntentRefundRequest},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			result, err := c.Classify(context.Background(), tt.text)
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, result.Intents)
			assert.Equal(t, SourceFallback, result.Source)
			assert.NotNil(t, result.Entities)
		})
	}
}

func TestChainPrefersPrimary(t *testing.T) {
	primary := &stubClassifier{result: &Result{
		Reasoning: "model",
		Intents:   []string{IntentRefundRequest},
		Entities:  map[string]any{"reason": "billing error"},
	}}
	chain := NewChain(primary, NewKeywordClassifier(zap.NewNop()), zap.NewNop())

	result, err := chain.Classify(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "model", result.Reasoning)
	assert.Equal(t, []string{IntentRefundRequest}, result.Intents)
}

func TestChainFallsBackOnError(t *testing.T) {
	primary := &stubClassifier{err: errors.New("boom")}
	chain := NewChain(primary, NewKeywordClassifier(zap.NewNop()), zap.NewNop())

	result, err := chain.Classify(context.Background(), "I want a refund")
	require.NoError(t, err)
	assert.Equal(t, []string{IntentRefundRequest}, result.Intents)
	assert.Equal(t, SourceFallback, result.Source)
}

func TestChainFallsBackOnEmptyIntents(t *testing.T) {
	primary := &stubClassifier{result: &Result{Intents: []string{}}}
	chain := NewChain(primary, NewKeywordClassifier(zap.NewNop()), zap.NewNop())

	result, err := chain.Classify(context.Background(), "check my ticket")
	require.NoError(t, err)
	assert.Equal(t, []string{IntentShowTicketStatus}, result.Intents)
}

func TestChainWithoutPrimary(t *testing.T) {
	chain := NewChain(nil, NewKeywordClassifier(zap.NewNop()), zap.NewNop())

	result, err := chain.Classify(context.Background(), "cancel everything")
	require.NoError(t, err)
	assert.Equal(t, []string{IntentCancelSubscription}, result.Intents)
}
