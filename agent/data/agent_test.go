package data

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/careflow/a2a"
	"github.com/BaSui01/careflow/types"
)

// scriptedTools records tool calls and replays canned results.
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

func newTestAgent(t *testing.T, tools *scriptedTools) *Agent {
	t.Helper()
	agent, err := New(Config{Tools: tools})
	require.NoError(t, err)
	return agent
}

func request(intent string, payload any) *a2a.Message {
	return a2a.NewRequest("router", AgentID, intent, payload)
}

func TestNewRequiresTools(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestHandleGetCustomerInfoNormalizesPayload(t *testing.T) {
	tools := &scriptedTools{results: map[string]any{
		"get_customer": map[string]any{"id": 1, "name": "Alice Johnson"},
	}}
	agent := newTestAgent(t, tools)

	msg := request("get_customer_info", map[string]any{
		"customer_id": float64(1),
		"status":      "active",
	})

	reply, err := agent.Handle(context.Background(), msg)
	require.NoError(t, err)
	require.True(t, reply.IsResponse())
	assert.Equal(t, msg.CorrelationID, reply.CorrelationID)

	require.Len(t, tools.calls, 1)
	assert.Equal(t, "get_customer", tools.calls[0].name)
	assert.Equal(t, map[string]any{"customer_id": float64(1)}, tools.calls[0].args)

	payload, ok := reply.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Alice Johnson", payload["name"])
}

func TestHandleListCustomersPassesPayloadThrough(t *testing.T) {
	tools := &scriptedTools{results: map[string]any{
		"list_customers": []any{map[string]any{"id": 1}},
	}}
	agent := newTestAgent(t, tools)

	msg := request("list_customers", map[string]any{
		"customer_id": float64(1),
		"status":      "active",
	})

	reply, err := agent.Handle(context.Background(), msg)
	require.NoError(t, err)
	require.True(t, reply.IsResponse())

	require.Len(t, tools.calls, 1)
	assert.Equal(t, "list_customers", tools.calls[0].name)
	assert.Equal(t, "active", tools.calls[0].args["status"])

	list, ok := reply.Payload.([]any)
	require.True(t, ok)
	assert.Len(t, list, 1)
}

func TestHandleUpdateEmailMapsUpdatesToData(t *testing.T) {
	tools := &scriptedTools{results: map[string]any{
		"update_customer": map[string]any{"id": 1, "email": "new@email.com"},
	}}
	agent := newTestAgent(t, tools)

	msg := request("update_email", map[string]any{
		"customer_id": float64(1),
		"updates":     map[string]any{"email": "new@email.com"},
	})

	_, err := agent.Handle(context.Background(), msg)
	require.NoError(t, err)

	require.Len(t, tools.calls, 1)
	assert.Equal(t, "update_customer", tools.calls[0].name)
	assert.Equal(t, map[string]any{
		"customer_id": float64(1),
		"data":        map[string]any{"email": "new@email.com"},
	}, tools.calls[0].args)
}

func TestHandleUpdateEmailWithoutUpdatesSendsEmptyData(t *testing.T) {
	tools := &scriptedTools{errs: map[string]error{
		"update_customer": errors.New("update data object is required"),
	}}
	agent := newTestAgent(t, tools)

	msg := request("update_email", map[string]any{"customer_id": float64(1)})

	_, err := agent.Handle(context.Background(), msg)
	require.Error(t, err)
	assert.Equal(t, types.ErrToolFailed, types.GetErrorCode(err))

	require.Len(t, tools.calls, 1)
	assert.Equal(t, map[string]any{}, tools.calls[0].args["data"])
}

func TestHandleUpdateCustomerPassesPayloadThrough(t *testing.T) {
	tools := &scriptedTools{results: map[string]any{
		"update_customer": map[string]any{"id": 2},
	}}
	agent := newTestAgent(t, tools)

	msg := request("update_customer", map[string]any{
		"customer_id": float64(2),
		"data":        map[string]any{"phone": "555-0000"},
	})

	_, err := agent.Handle(context.Background(), msg)
	require.NoError(t, err)

	require.Len(t, tools.calls, 1)
	assert.Equal(t, map[string]any{"phone": "555-0000"}, tools.calls[0].args["data"])
}

func TestHandleGetCustomerHistory(t *testing.T) {
	tools := &scriptedTools{results: map[string]any{
		"get_customer_history": map[string]any{
			"customer": map[string]any{"id": 1},
			"tickets":  []any{},
		},
	}}
	agent := newTestAgent(t, tools)

	msg := request("get_customer_history", map[string]any{
		"customer_id": float64(1),
		"entities":    map[string]any{},
	})

	reply, err := agent.Handle(context.Background(), msg)
	require.NoError(t, err)
	require.True(t, reply.IsResponse())

	require.Len(t, tools.calls, 1)
	assert.Equal(t, "get_customer_history", tools.calls[0].name)
	assert.Equal(t, map[string]any{"customer_id": float64(1)}, tools.calls[0].args)
}

func TestHandleUnknownIntent(t *testing.T) {
	tools := &scriptedTools{}
	agent := newTestAgent(t, tools)

	msg := request("refund_request", map[string]any{"customer_id": float64(1)})

	_, err := agent.Handle(context.Background(), msg)
	require.Error(t, err)
	assert.Equal(t, types.ErrIntentUnsupported, types.GetErrorCode(err))
	assert.Empty(t, tools.calls)
}

func TestHandleUnknownCustomerMapsNullToNotFound(t *testing.T) {
	// get_customer 对未知 ID 返回 null, 代理应转成 NOT_FOUND 错误
	tools := &scriptedTools{}
	agent := newTestAgent(t, tools)

	msg := request("get_customer_info", map[string]any{"customer_id": float64(99999)})

	_, err := agent.Handle(context.Background(), msg)
	require.Error(t, err)
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "99999")
}

func TestHandleToolFailure(t *testing.T) {
	tools := &scriptedTools{errs: map[string]error{
		"get_customer": errors.New("connection refused"),
	}}
	agent := newTestAgent(t, tools)

	msg := request("get_customer_info", map[string]any{"customer_id": float64(1)})

	_, err := agent.Handle(context.Background(), msg)
	require.Error(t, err)
	assert.Equal(t, types.ErrToolFailed, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "get_customer")
}

func TestHandleNonObjectPayload(t *testing.T) {
	tools := &scriptedTools{errs: map[string]error{
		"get_customer": errors.New("customer_id argument is required"),
	}}
	agent := newTestAgent(t, tools)

	msg := request("get_customer_info", "not an object")

	_, err := agent.Handle(context.Background(), msg)
	require.Error(t, err)

	require.Len(t, tools.calls, 1)
	assert.Empty(t, tools.calls[0].args)
}

func TestCardListsDataIntents(t *testing.T) {
	tools := &scriptedTools{}
	agent := newTestAgent(t, tools)

	card := agent.Card("http://localhost:8101")
	require.NoError(t, card.Validate())

	assert.Equal(t, AgentID, card.Name)
	for _, intent := range []string{"get_customer_info", "get_customer_history", "update_email", "list_customers"} {
		assert.True(t, card.HasIntent(intent), intent)
	}
	assert.True(t, card.HasCapability("customer_lookup"))
}

// registrarStub records handler registrations.
type registrarStub struct {
	a2a.Server
	intents []string
}

func (r *registrarStub) RegisterHandler(intent string, _ a2a.Handler) {
	r.intents = append(r.intents, intent)
}

func TestRegisterCoversCatalogAndFallback(t *testing.T) {
	tools := &scriptedTools{}
	agent := newTestAgent(t, tools)

	stub := &registrarStub{}
	agent.Register(stub)

	assert.ElementsMatch(t, []string{
		"get_customer_info",
		"get_customer_history",
		"update_email",
		"list_customers",
		"update_customer",
		"*",
	}, stub.intents)
}
