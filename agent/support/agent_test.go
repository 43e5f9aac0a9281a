package support

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/careflow/a2a"
	"github.com/BaSui01/careflow/llm"
	"github.com/BaSui01/careflow/types"
)

type scriptedTools struct {
	calls   []toolCall
	results map[string]any
	errs    map[string]error
}

type toolCall struct {
	name string
	args map[string]any
}

func (s *scriptedTools) CallTool(_ context.Context, name string, args map[string]any) (json.RawMessage, error) {
	s.calls = append(s.calls, toolCall{name: name, args: args})

	if err, ok := s.errs[name]; ok {
		return nil, err
	}

	result, ok := s.results[name]
	if !ok {
		return json.RawMessage("null"), nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return data, nil
}

type scriptedProvider struct {
	reply    string
	err      error
	requests []*llm.ChatRequest
}

func (p *scriptedProvider) Completion(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	return &llm.ChatResponse{
		Model: "scripted",
		Choices: []llm.ChatChoice{{
			Message: llm.Message{Role: llm.RoleAssistant, Content: p.reply},
		}},
	}, nil
}

func (p *scriptedProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

func newTestAgent(t *testing.T, cfg Config) *Agent {
	t.Helper()
	if cfg.Tools == nil {
		cfg.Tools = &scriptedTools{}
	}
	agent, err := New(cfg)
	require.NoError(t, err)
	return agent
}

func request(intent string, payload any) *a2a.Message {
	return a2a.NewRequest("router", AgentID, intent, payload)
}

func replyPayload(t *testing.T, msg *a2a.Message) Reply {
	t.Helper()
	reply, ok := msg.Payload.(Reply)
	require.True(t, ok)
	return reply
}

func TestNewRequiresTools(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestSupportRequestLogsInquiry(t *testing.T) {
	agent := newTestAgent(t, Config{})

	msg := request("support_request", map[string]any{
		"customer_id": float64(1),
		"text":        "hello there",
	})

	out, err := agent.Handle(context.Background(), msg)
	require.NoError(t, err)
	require.True(t, out.IsResponse())

	reply := replyPayload(t, out)
	assert.Equal(t, "General inquiry logged.", reply.Action)
	assert.Equal(t, "Action processed: General inquiry logged.", reply.AnswerText)
}

func TestRefundUsesReferenceGenerator(t *testing.T) {
	agent := newTestAgent(t, Config{
		RefundRef: func() string { return "REF-123456" },
	})

	msg := request("refund_request", map[string]any{
		"customer_id": float64(1),
		"text":        "I want my money back",
	})

	out, err := agent.Handle(context.Background(), msg)
	require.NoError(t, err)

	reply := replyPayload(t, out)
	assert.Equal(t, "Refund initiated (ref REF-123456).", reply.Action)

	data, ok := reply.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "REF-123456", data["refund_id"])
	assert.Equal(t, "ok", data["status"])
}

func TestDefaultRefundReferenceFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^REF-\d{6}$`)
	for i := 0; i < 20; i++ {
		assert.Regexp(t, pattern, newRefundRef())
	}
}

func TestCancelSubscription(t *testing.T) {
	agent := newTestAgent(t, Config{})

	out, err := agent.Handle(context.Background(), request("cancel_subscription", map[string]any{
		"customer_id": float64(3),
		"text":        "cancel my subscription",
	}))
	require.NoError(t, err)

	assert.Equal(t, "Cancellation request received.", replyPayload(t, out).Action)
}

func TestUpgradeRequest(t *testing.T) {
	agent := newTestAgent(t, Config{})

	out, err := agent.Handle(context.Background(), request("upgrade_request", map[string]any{
		"customer_id": float64(3),
		"text":        "upgrade me please",
	}))
	require.NoError(t, err)

	assert.Equal(t, "Upgrade request recorded.", replyPayload(t, out).Action)
}

func TestShowTicketStatusFound(t *testing.T) {
	tools := &scriptedTools{results: map[string]any{
		"list_tickets": []any{
			map[string]any{"id": 1, "issue": "Cannot login"},
			map[string]any{"id": 2, "issue": "Billing error"},
		},
	}}
	agent := newTestAgent(t, Config{Tools: tools})

	out, err := agent.Handle(context.Background(), request("show_ticket_status", map[string]any{
		"customer_id": float64(1),
		"text":        "show my tickets",
	}))
	require.NoError(t, err)

	reply := replyPayload(t, out)
	assert.Equal(t, "Found 2 tickets.", reply.Action)

	list, ok := reply.Data.([]any)
	require.True(t, ok)
	assert.Len(t, list, 2)

	require.Len(t, tools.calls, 1)
	assert.Equal(t, "list_tickets", tools.calls[0].name)
	assert.Equal(t, []any{uint(1)}, tools.calls[0].args["customer_ids"])
}

func TestShowTicketStatusEmpty(t *testing.T) {
	tools := &scriptedTools{results: map[string]any{"list_tickets": []any{}}}
	agent := newTestAgent(t, Config{Tools: tools})

	out, err := agent.Handle(context.Background(), request("show_ticket_status", map[string]any{
		"customer_id": float64(9),
		"text":        "any tickets?",
	}))
	require.NoError(t, err)

	assert.Equal(t, "No tickets found.", replyPayload(t, out).Action)
}

func TestShowTicketStatusRequiresCustomerID(t *testing.T) {
	agent := newTestAgent(t, Config{})

	_, err := agent.Handle(context.Background(), request("show_ticket_status", map[string]any{
		"text": "where are my tickets",
	}))
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidInput, types.GetErrorCode(err))
}

func TestEscalatePrefersReasonEntity(t *testing.T) {
	tools := &scriptedTools{results: map[string]any{
		"create_ticket": map[string]any{"id": 42, "issue": "billing error", "priority": "medium"},
	}}
	agent := newTestAgent(t, Config{Tools: tools})

	out, err := agent.Handle(context.Background(), request("escalate_issue", map[string]any{
		"customer_id": float64(1),
		"text":        "I am unhappy",
		"entities":    map[string]any{"reason": "billing error"},
	}))
	require.NoError(t, err)

	assert.Equal(t, "Escalation ticket #42 created.", replyPayload(t, out).Action)

	require.Len(t, tools.calls, 1)
	assert.Equal(t, "create_ticket", tools.calls[0].name)
	assert.Equal(t, "billing error", tools.calls[0].args["issue"])
	assert.Equal(t, "medium", tools.calls[0].args["priority"])
}

func TestEscalateFallsBackToQueryText(t *testing.T) {
	tools := &scriptedTools{results: map[string]any{
		"create_ticket": map[string]any{"id": 7},
	}}
	agent := newTestAgent(t, Config{Tools: tools})

	_, err := agent.Handle(context.Background(), request("escalate_issue", map[string]any{
		"customer_id": float64(1),
		"text":        "nothing works, talk to a human",
	}))
	require.NoError(t, err)

	require.Len(t, tools.calls, 1)
	assert.Equal(t, "nothing works, talk to a human", tools.calls[0].args["issue"])
}

func TestEscalateToolFailure(t *testing.T) {
	tools := &scriptedTools{errs: map[string]error{
		"create_ticket": errors.New("database locked"),
	}}
	agent := newTestAgent(t, Config{Tools: tools})

	_, err := agent.Handle(context.Background(), request("escalate_issue", map[string]any{
		"customer_id": float64(1),
		"text":        "escalate this",
	}))
	require.Error(t, err)
	assert.Equal(t, types.ErrToolFailed, types.GetErrorCode(err))
}

func TestAnswerTextDraftedByProvider(t *testing.T) {
	provider := &scriptedProvider{reply: "Done! Your refund is on the way."}
	agent := newTestAgent(t, Config{
		Provider:  provider,
		RefundRef: func() string { return "REF-000001" },
	})

	out, err := agent.Handle(context.Background(), request("refund_request", map[string]any{
		"customer_id": float64(1),
		"text":        "refund please",
	}))
	require.NoError(t, err)

	assert.Equal(t, "Done! Your refund is on the way.", replyPayload(t, out).AnswerText)

	require.Len(t, provider.requests, 1)
	req := provider.requests[0]
	assert.False(t, req.JSONMode)
	require.Len(t, req.Messages, 2)
	assert.Contains(t, req.Messages[0].Content, "Refund initiated (ref REF-000001).")
	assert.Contains(t, req.Messages[0].Content, "refund please")
}

func TestAnswerFallsBackOnProviderError(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("model cold")}
	agent := newTestAgent(t, Config{Provider: provider})

	out, err := agent.Handle(context.Background(), request("upgrade_request", map[string]any{
		"customer_id": float64(1),
		"text":        "upgrade me",
	}))
	require.NoError(t, err)

	assert.Equal(t, "Action processed: Upgrade request recorded.", replyPayload(t, out).AnswerText)
}

func TestAnswerFallsBackOnBlankCompletion(t *testing.T) {
	provider := &scriptedProvider{reply: "   "}
	agent := newTestAgent(t, Config{Provider: provider})

	out, err := agent.Handle(context.Background(), request("support_request", map[string]any{
		"customer_id": float64(1),
		"text":        "hi",
	}))
	require.NoError(t, err)

	assert.Equal(t, "Action processed: General inquiry logged.", replyPayload(t, out).AnswerText)
}

func TestUnknownSupportIntent(t *testing.T) {
	agent := newTestAgent(t, Config{})

	_, err := agent.Handle(context.Background(), request("get_customer_info", map[string]any{
		"customer_id": float64(1),
	}))
	require.Error(t, err)
	assert.Equal(t, types.ErrIntentUnsupported, types.GetErrorCode(err))
}

func TestCardListsSupportIntents(t *testing.T) {
	agent := newTestAgent(t, Config{})

	card := agent.Card("http://localhost:8102")
	require.NoError(t, card.Validate())

	assert.Equal(t, AgentID, card.Name)
	for _, intent := range []string{
		"support_request", "refund_request", "cancel_subscription",
		"upgrade_request", "show_ticket_status", "escalate_issue",
	} {
		assert.True(t, card.HasIntent(intent), intent)
	}
}

type registrarStub struct {
	a2a.Server
	intents []string
}

func (r *registrarStub) RegisterHandler(intent string, _ a2a.Handler) {
	r.intents = append(r.intents, intent)
}

func TestRegisterCoversCatalogAndFallback(t *testing.T) {
	agent := newTestAgent(t, Config{})

	stub := &registrarStub{}
	agent.Register(stub)

	assert.ElementsMatch(t, []string{
		"support_request",
		"refund_request",
		"cancel_subscription",
		"upgrade_request",
		"show_ticket_status",
		"escalate_issue",
		"*",
	}, stub.intents)
}
