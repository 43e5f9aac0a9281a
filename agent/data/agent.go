// Package data implements the customer data agent: an A2A facade that
// maps data intents onto the MCP customer database tools.
package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/careflow/a2a"
	"github.com/BaSui01/careflow/classify"
	"github.com/BaSui01/careflow/internal/metrics"
	"github.com/BaSui01/careflow/types"
)

// AgentID identifies this agent in A2A envelopes.
const AgentID = "customer_data_agent"

// Version is reported on the agent card.
const Version = "1.0.0"

// ToolCaller is the subset of the MCP client the agent needs.
// The stdio client satisfies it; tests swap in a scripted implementation.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error)
}

// Config holds the dependencies for the data agent.
type Config struct {
	// Tools reaches the customer database tool server.
	Tools ToolCaller
	// Metrics records tool call outcomes. Optional.
	Metrics *metrics.Collector
	// Logger is the log instance. Optional.
	Logger *zap.Logger
}

// Agent serves the data intents over A2A. Every intent resolves to a
// single MCP tool call; the tool's JSON result becomes the reply
// payload, except that a null customer lookup surfaces as a NOT_FOUND
// error instead of an empty success.
type Agent struct {
	tools   ToolCaller
	metrics *metrics.Collector
	logger  *zap.Logger
}

// New creates the data agent.
func New(cfg Config) (*Agent, error) {
	if cfg.Tools == nil {
		return nil, fmt.Errorf("data agent: tool caller is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Agent{
		tools:   cfg.Tools,
		metrics: cfg.Metrics,
		logger:  logger.With(zap.String("component", "data_agent")),
	}, nil
}

// Card describes this agent for discovery.
func (a *Agent) Card(baseURL string) *a2a.AgentCard {
	return a2a.NewAgentCard(
		AgentID,
		"Accesses the customer database via MCP to fetch and update customer records.",
		baseURL,
		Version,
	).
		AddCapability("customer_lookup", "Fetch customer profiles, lists and ticket history", a2a.CapabilityTypeQuery).
		AddCapability("customer_update", "Apply field updates to customer records", a2a.CapabilityTypeTask).
		AddIntent(classify.IntentGetCustomerInfo).
		AddIntent(classify.IntentGetCustomerHistory).
		AddIntent(classify.IntentUpdateEmail).
		AddIntent(classify.IntentListCustomers).
		SetMetadata("backend", "mcp")
}

// Register mounts the agent on an A2A server: one handler per data
// intent plus a catch-all that rejects anything outside the mapping.
func (a *Agent) Register(srv a2a.Server) {
	srv.RegisterHandler(classify.IntentGetCustomerInfo, a.Handle)
	srv.RegisterHandler(classify.IntentGetCustomerHistory, a.Handle)
	srv.RegisterHandler(classify.IntentUpdateEmail, a.Handle)
	srv.RegisterHandler(classify.IntentListCustomers, a.Handle)
	srv.RegisterHandler("update_customer", a.Handle)
	srv.RegisterHandler("*", a.Handle)
}

// Handle executes one data intent. Handler errors ride back to the
// caller as protocol error envelopes, so plain errors are fine here.
func (a *Agent) Handle(ctx context.Context, msg *a2a.Message) (*a2a.Message, error) {
	payload := payloadObject(msg.Payload)

	tool, args, err := a.resolve(msg.Intent, payload)
	if err != nil {
		a.logger.Warn("unroutable intent",
			zap.String("intent", msg.Intent),
			zap.String("from", msg.From),
		)
		return nil, err
	}

	a.logger.Info("dispatching tool call",
		zap.String("intent", msg.Intent),
		zap.String("tool", tool),
		zap.String("correlation_id", msg.CorrelationID),
	)

	start := time.Now()
	raw, err := a.tools.CallTool(ctx, tool, args)
	a.recordToolCall(tool, err, time.Since(start))
	if err != nil {
		return nil, types.NewError(types.ErrToolFailed, fmt.Sprintf("tool %s: %v", tool, err)).
			WithAgent(AgentID).
			WithCause(err)
	}

	var result any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, types.NewError(types.ErrToolFailed, fmt.Sprintf("tool %s: malformed result", tool)).
				WithAgent(AgentID).
				WithCause(err)
		}
	}

	// get_customer 对未知 ID 返回 null; 对调用方这是一次明确的查无此人
	if result == nil && tool == "get_customer" {
		return nil, types.NewError(types.ErrNotFound, fmt.Sprintf("customer %v not found", args["customer_id"])).
			WithAgent(AgentID)
	}

	return msg.CreateReply(a2a.MessageTypeResponse, result), nil
}

// resolve maps an intent onto the tool name and arguments.
func (a *Agent) resolve(intent string, payload map[string]any) (string, map[string]any, error) {
	switch intent {
	case classify.IntentGetCustomerInfo:
		return "get_customer", normalizeID(payload), nil

	case classify.IntentListCustomers:
		return "list_customers", payload, nil

	case classify.IntentUpdateEmail:
		// The tool expects a "data" object; the router sends "updates".
		updates, _ := payload["updates"].(map[string]any)
		if updates == nil {
			updates = map[string]any{}
		}
		return "update_customer", map[string]any{
			"customer_id": payload["customer_id"],
			"data":        updates,
		}, nil

	case "update_customer":
		return "update_customer", payload, nil

	case classify.IntentGetCustomerHistory:
		return "get_customer_history", normalizeID(payload), nil

	default:
		return "", nil, types.NewError(types.ErrIntentUnsupported, fmt.Sprintf("unknown data intent: %s", intent)).
			WithAgent(AgentID)
	}
}

func (a *Agent) recordToolCall(tool string, err error, elapsed time.Duration) {
	if a.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	a.metrics.RecordMCPToolCall(tool, status, elapsed)
}

// payloadObject coerces the envelope payload into an argument map.
// Non-object payloads degrade to an empty map so the tool layer can
// produce the precise validation error.
func payloadObject(payload any) map[string]any {
	if m, ok := payload.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// normalizeID strips routing leftovers (status, updates, entities)
// down to the single customer_id argument the lookup tools declare.
func normalizeID(payload map[string]any) map[string]any {
	if id, ok := payload["customer_id"]; ok {
		return map[string]any{"customer_id": id}
	}
	return payload
}
