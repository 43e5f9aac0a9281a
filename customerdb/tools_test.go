package customerdb

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/careflow/mcp"
	"github.com/BaSui01/careflow/types"
)

// newToolServer registers the full tool set on a fresh server backed by a
// seeded store.
func newToolServer(t *testing.T) (*mcp.Server, *Store) {
	t.Helper()

	store, _ := newTestStore(t)
	srv := mcp.NewServer("customer-support", "1.0.0", zap.NewNop())
	require.NoError(t, RegisterTools(srv, store))

	return srv, store
}

func TestRegisterToolsExposesAllSeven(t *testing.T) {
	srv, _ := newToolServer(t)

	descriptors := srv.ListTools()
	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.Name)
	}

	assert.Equal(t, []string{
		ToolCreateTicket,
		ToolGetCustomer,
		ToolGetCustomerHistory,
		ToolListCustomers,
		ToolListTickets,
		ToolResetDB,
		ToolUpdateCustomer,
	}, names)

	for _, d := range descriptors {
		switch d.Name {
		case ToolGetCustomer, ToolGetCustomerHistory:
			assert.Equal(t, []string{"customer_id"}, d.InputSchema.Required)
		case ToolUpdateCustomer:
			assert.ElementsMatch(t, []string{"customer_id", "data"}, d.InputSchema.Required)
		case ToolCreateTicket:
			assert.ElementsMatch(t, []string{"customer_id", "issue", "priority"}, d.InputSchema.Required)
		case ToolListTickets:
			assert.Equal(t, []string{"customer_ids"}, d.InputSchema.Required)
		}
	}
}

func TestToolGetCustomer(t *testing.T) {
	srv, _ := newToolServer(t)

	result, err := srv.CallTool(context.Background(), ToolGetCustomer, map[string]any{
		"customer_id": float64(1),
	})
	require.NoError(t, err)

	customer, ok := result.(*Customer)
	require.True(t, ok)
	assert.Equal(t, "Ashwin Ram", customer.Name)
}

func TestToolGetCustomerMissingReturnsNil(t *testing.T) {
	srv, _ := newToolServer(t)

	result, err := srv.CallTool(context.Background(), ToolGetCustomer, map[string]any{
		"customer_id": float64(999),
	})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestToolGetCustomerRequiresID(t *testing.T) {
	srv, _ := newToolServer(t)

	_, err := srv.CallTool(context.Background(), ToolGetCustomer, map[string]any{})
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidInput, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "customer_id is required")

	_, err = srv.CallTool(context.Background(), ToolGetCustomer, map[string]any{
		"customer_id": "one",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "customer_id must be a positive integer")
}

func TestToolListCustomers(t *testing.T) {
	srv, _ := newToolServer(t)

	result, err := srv.CallTool(context.Background(), ToolListCustomers, map[string]any{
		"status": "active",
		"limit":  float64(3),
	})
	require.NoError(t, err)

	customers, ok := result.([]Customer)
	require.True(t, ok)
	require.Len(t, customers, 3)
	assert.EqualValues(t, 1, customers[0].ID)
	assert.EqualValues(t, 2, customers[1].ID)
	assert.EqualValues(t, 4, customers[2].ID)
}

func TestToolUpdateCustomer(t *testing.T) {
	srv, _ := newToolServer(t)

	result, err := srv.CallTool(context.Background(), ToolUpdateCustomer, map[string]any{
		"customer_id": float64(4),
		"data":        map[string]any{"email": "olivia.smith@newmail.com", "tier": "Enterprise"},
	})
	require.NoError(t, err)

	customer, ok := result.(*Customer)
	require.True(t, ok)
	assert.Equal(t, "olivia.smith@newmail.com", customer.Email)
	assert.Equal(t, TierEnterprise, customer.Tier)
}

func TestToolUpdateCustomerRequiresData(t *testing.T) {
	srv, _ := newToolServer(t)
	ctx := context.Background()

	_, err := srv.CallTool(ctx, ToolUpdateCustomer, map[string]any{
		"customer_id": float64(4),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update data object is required")

	_, err = srv.CallTool(ctx, ToolUpdateCustomer, map[string]any{
		"customer_id": float64(4),
		"data":        "email=foo",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update data object is required")
}

func TestToolCreateTicket(t *testing.T) {
	srv, _ := newToolServer(t)

	result, err := srv.CallTool(context.Background(), ToolCreateTicket, map[string]any{
		"customer_id": float64(2),
		"issue":       "Subscription renewed twice",
		"priority":    "High",
	})
	require.NoError(t, err)

	ticket, ok := result.(*Ticket)
	require.True(t, ok)
	assert.EqualValues(t, 18, ticket.ID)
	assert.Equal(t, TicketOpen, ticket.Status)
	assert.Equal(t, PriorityHigh, ticket.Priority)
}

func TestToolGetCustomerHistory(t *testing.T) {
	srv, _ := newToolServer(t)

	result, err := srv.CallTool(context.Background(), ToolGetCustomerHistory, map[string]any{
		"customer_id": float64(5),
	})
	require.NoError(t, err)

	history, ok := result.(*History)
	require.True(t, ok)
	assert.Equal(t, "Ethan Brown", history.Customer.Name)
	assert.Len(t, history.Tickets, 3)
}

func TestToolListTickets(t *testing.T) {
	srv, _ := newToolServer(t)
	ctx := context.Background()

	result, err := srv.CallTool(ctx, ToolListTickets, map[string]any{
		"customer_ids": []any{float64(1), float64(2)},
	})
	require.NoError(t, err)

	tickets, ok := result.([]Ticket)
	require.True(t, ok)
	assert.Len(t, tickets, 5)

	result, err = srv.CallTool(ctx, ToolListTickets, map[string]any{
		"customer_ids": []any{float64(1)},
		"status":       "open",
	})
	require.NoError(t, err)

	tickets, ok = result.([]Ticket)
	require.True(t, ok)
	require.Len(t, tickets, 1)
	assert.Equal(t, "Cannot login to system", tickets[0].Issue)
}

func TestToolListTicketsValidation(t *testing.T) {
	srv, _ := newToolServer(t)
	ctx := context.Background()

	_, err := srv.CallTool(ctx, ToolListTickets, map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "customer_ids is required")

	_, err = srv.CallTool(ctx, ToolListTickets, map[string]any{
		"customer_ids": []any{"two"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "customer_ids must contain positive integers")

	result, err := srv.CallTool(ctx, ToolListTickets, map[string]any{
		"customer_ids": []any{},
	})
	require.NoError(t, err)
	tickets, ok := result.([]Ticket)
	require.True(t, ok)
	assert.Empty(t, tickets)
}

func TestToolResetDB(t *testing.T) {
	srv, store := newToolServer(t)
	ctx := context.Background()

	_, err := store.CreateTicket(ctx, 1, "Throwaway ticket", "low")
	require.NoError(t, err)

	result, err := srv.CallTool(ctx, ToolResetDB, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "Database reset completed.", result)

	tickets, err := store.ListTickets(ctx, TicketFilter{CustomerIDs: []uint{1}})
	require.NoError(t, err)
	assert.Len(t, tickets, 2)
}

// TestToolWireContract drives a full stdio session and checks the
// JSON-in-text payloads the agents rely on.
func TestToolWireContract(t *testing.T) {
	srv, _ := newToolServer(t)

	var input strings.Builder
	for i, call := range []struct {
		name string
		args map[string]any
	}{
		{ToolGetCustomer, map[string]any{"customer_id": 1}},
		{ToolGetCustomer, map[string]any{"customer_id": 999}},
		{ToolResetDB, nil},
	} {
		req, err := mcp.NewRequest(i+1, mcp.MethodCallTool, mcp.CallParams{
			Name:      call.name,
			Arguments: call.args,
		})
		require.NoError(t, err)

		body, err := json.Marshal(req)
		require.NoError(t, err)
		input.Write(append(body, '\n'))
	}

	var out bytes.Buffer
	require.NoError(t, srv.Serve(context.Background(), strings.NewReader(input.String()), &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)

	texts := make([]string, 0, len(lines))
	for _, line := range lines {
		var resp mcp.Response
		require.NoError(t, json.Unmarshal([]byte(line), &resp))
		require.Nil(t, resp.Error)

		var call mcp.CallResult
		require.NoError(t, json.Unmarshal(resp.Result, &call))
		require.False(t, call.IsError)
		require.Len(t, call.Content, 1)
		texts = append(texts, call.Content[0].Text)
	}

	var found Customer
	require.NoError(t, json.Unmarshal([]byte(texts[0]), &found))
	assert.Equal(t, "Ashwin Ram", found.Name)

	assert.Equal(t, "null", texts[1])
	assert.Equal(t, `"Database reset completed."`, texts[2])
}
