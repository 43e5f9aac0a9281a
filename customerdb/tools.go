package customerdb

import (
	"context"
	"fmt"

	"github.com/BaSui01/careflow/mcp"
	"github.com/BaSui01/careflow/types"
)

// Tool names exposed by the stdio tool server.
const (
	ToolGetCustomer        = "get_customer"
	ToolListCustomers      = "list_customers"
	ToolUpdateCustomer     = "update_customer"
	ToolCreateTicket       = "create_ticket"
	ToolGetCustomerHistory = "get_customer_history"
	ToolListTickets        = "list_tickets"
	ToolResetDB            = "reset_db"
)

// RegisterTools registers the customer database tools on the MCP server.
// Handlers return plain Go values; the server serializes them into the
// text content block of the tool result.
func RegisterTools(srv *mcp.Server, store *Store) error {
	tools := []struct {
		name        string
		description string
		schema      *mcp.Schema
		handler     mcp.ToolHandler
	}{
		{
			name:        ToolGetCustomer,
			description: "Retrieves a customer by their ID.",
			schema: mcp.ObjectSchema(map[string]*mcp.Schema{
				"customer_id": {Type: "integer", Description: "Customer ID"},
			}, "customer_id"),
			handler: store.toolGetCustomer,
		},
		{
			name:        ToolListCustomers,
			description: "Lists customers with optional filters for status or tier.",
			schema: mcp.ObjectSchema(map[string]*mcp.Schema{
				"status": {Type: "string", Enum: []string{StatusActive, StatusDisabled}},
				"tier":   {Type: "string", Enum: []string{TierStandard, TierPremium, TierEnterprise}},
				"limit":  {Type: "integer", Description: "Maximum rows to return"},
			}),
			handler: store.toolListCustomers,
		},
		{
			name:        ToolUpdateCustomer,
			description: "Updates customer details (email, tier, billing_info).",
			schema: mcp.ObjectSchema(map[string]*mcp.Schema{
				"customer_id": {Type: "integer", Description: "Customer ID"},
				"data": {
					Type:        "object",
					Description: "Fields to change: name, email, phone, status, tier, billing_info",
				},
			}, "customer_id", "data"),
			handler: store.toolUpdateCustomer,
		},
		{
			name:        ToolCreateTicket,
			description: "Creates a support ticket for a customer.",
			schema: mcp.ObjectSchema(map[string]*mcp.Schema{
				"customer_id": {Type: "integer", Description: "Customer ID"},
				"issue":       {Type: "string", Description: "Issue description"},
				"priority":    {Type: "string", Enum: []string{PriorityLow, PriorityMedium, PriorityHigh}},
			}, "customer_id", "issue", "priority"),
			handler: store.toolCreateTicket,
		},
		{
			name:        ToolGetCustomerHistory,
			description: "Retrieves ticket history for a specific customer.",
			schema: mcp.ObjectSchema(map[string]*mcp.Schema{
				"customer_id": {Type: "integer", Description: "Customer ID"},
			}, "customer_id"),
			handler: store.toolGetCustomerHistory,
		},
		{
			name:        ToolListTickets,
			description: "Lists tickets for specific customers with optional filters.",
			schema: mcp.ObjectSchema(map[string]*mcp.Schema{
				"customer_ids": {Type: "array", Items: &mcp.Schema{Type: "integer"}},
				"status":       {Type: "string", Enum: []string{TicketOpen, TicketInProgress, TicketResolved}},
				"priority":     {Type: "string", Enum: []string{PriorityLow, PriorityMedium, PriorityHigh}},
			}, "customer_ids"),
			handler: store.toolListTickets,
		},
		{
			name:        ToolResetDB,
			description: "Resets the demo database to its seeded state.",
			schema:      mcp.ObjectSchema(nil),
			handler:     store.toolResetDB,
		},
	}

	for _, tool := range tools {
		if err := srv.RegisterTool(tool.name, tool.description, tool.schema, tool.handler); err != nil {
			return fmt.Errorf("register tool %s: %w", tool.name, err)
		}
	}

	return nil
}

// toolGetCustomer returns the customer row, or nil (JSON null) when the id
// does not exist. A missing customer is not an error at the tool level.
func (s *Store) toolGetCustomer(ctx context.Context, args map[string]any) (any, error) {
	id, err := uintArg(args, "customer_id")
	if err != nil {
		return nil, err
	}

	customer, err := s.GetCustomer(ctx, id)
	if err != nil {
		if types.GetErrorCode(err) == types.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}

	return customer, nil
}

func (s *Store) toolListCustomers(ctx context.Context, args map[string]any) (any, error) {
	filter := ListFilter{Limit: intArg(args, "limit", 0)}
	if status, ok := stringArg(args, "status"); ok {
		filter.Status = &status
	}
	if tier, ok := stringArg(args, "tier"); ok {
		filter.Tier = &tier
	}

	return s.ListCustomers(ctx, filter)
}

func (s *Store) toolUpdateCustomer(ctx context.Context, args map[string]any) (any, error) {
	id, err := uintArg(args, "customer_id")
	if err != nil {
		return nil, err
	}

	data, ok := args["data"].(map[string]any)
	if !ok {
		return nil, types.NewError(types.ErrInvalidInput, "update data object is required")
	}

	return s.UpdateCustomer(ctx, id, data)
}

func (s *Store) toolCreateTicket(ctx context.Context, args map[string]any) (any, error) {
	id, err := uintArg(args, "customer_id")
	if err != nil {
		return nil, err
	}

	issue, _ := stringArg(args, "issue")
	priority, _ := stringArg(args, "priority")

	return s.CreateTicket(ctx, id, issue, priority)
}

func (s *Store) toolGetCustomerHistory(ctx context.Context, args map[string]any) (any, error) {
	id, err := uintArg(args, "customer_id")
	if err != nil {
		return nil, err
	}

	return s.GetCustomerHistory(ctx, id)
}

func (s *Store) toolListTickets(ctx context.Context, args map[string]any) (any, error) {
	ids, err := uintSliceArg(args, "customer_ids")
	if err != nil {
		return nil, err
	}

	filter := TicketFilter{CustomerIDs: ids}
	if status, ok := stringArg(args, "status"); ok {
		filter.Status = &status
	}
	if priority, ok := stringArg(args, "priority"); ok {
		filter.Priority = &priority
	}

	return s.ListTickets(ctx, filter)
}

func (s *Store) toolResetDB(ctx context.Context, _ map[string]any) (any, error) {
	if err := s.ResetDemoData(ctx); err != nil {
		return nil, err
	}

	return "Database reset completed.", nil
}

// uintArg reads a required id argument. JSON decoding delivers numbers as
// float64; direct Go callers may pass integer types.
func uintArg(args map[string]any, key string) (uint, error) {
	value, ok := args[key]
	if !ok || value == nil {
		return 0, types.NewError(types.ErrInvalidInput, fmt.Sprintf("%s is required", key))
	}

	if id, ok := toUint(value); ok {
		return id, nil
	}

	return 0, types.NewError(types.ErrInvalidInput, fmt.Sprintf("%s must be a positive integer", key))
}

// uintSliceArg reads a required list of ids. An empty list is valid.
func uintSliceArg(args map[string]any, key string) ([]uint, error) {
	raw, ok := args[key].([]any)
	if !ok {
		return nil, types.NewError(types.ErrInvalidInput, fmt.Sprintf("%s is required", key))
	}

	ids := make([]uint, 0, len(raw))
	for _, value := range raw {
		id, ok := toUint(value)
		if !ok {
			return nil, types.NewError(types.ErrInvalidInput, fmt.Sprintf("%s must contain positive integers", key))
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func stringArg(args map[string]any, key string) (string, bool) {
	s, ok := args[key].(string)
	return s, ok && s != ""
}

func intArg(args map[string]any, key string, def int) int {
	switch n := args[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return def
}

func toUint(value any) (uint, bool) {
	switch n := value.(type) {
	case float64:
		if n >= 0 {
			return uint(n), true
		}
	case int:
		if n >= 0 {
			return uint(n), true
		}
	case int64:
		if n >= 0 {
			return uint(n), true
		}
	case uint:
		return n, true
	}
	return 0, false
}
