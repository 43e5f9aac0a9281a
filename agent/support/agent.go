// Package support implements the support agent: ticket actions over
// MCP plus an LLM-drafted conversational confirmation for each action.
package support

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/careflow/a2a"
	"github.com/BaSui01/careflow/classify"
	"github.com/BaSui01/careflow/internal/metrics"
	"github.com/BaSui01/careflow/llm"
	"github.com/BaSui01/careflow/types"
)

// AgentID identifies this agent in A2A envelopes.
const AgentID = "support_agent"

// Version is reported on the agent card.
const Version = "1.0.0"

// ToolCaller is the subset of the MCP client the agent needs for
// ticket lookup and creation.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error)
}

// Config holds the dependencies for the support agent.
type Config struct {
	// Tools reaches the customer database tool server.
	Tools ToolCaller
	// Provider drafts the conversational answer text. Nil falls back
	// to the template answer for every action.
	Provider llm.Provider
	// Model overrides the provider's default model.
	Model string
	// Metrics records tool call outcomes. Optional.
	Metrics *metrics.Collector
	// Logger is the log instance. Optional.
	Logger *zap.Logger
	// RefundRef generates refund references. Defaults to a
	// uuid-derived REF-nnnnnn value; tests pin it.
	RefundRef func() string
}

// Agent serves the support intents over A2A.
type Agent struct {
	tools     ToolCaller
	provider  llm.Provider
	model     string
	metrics   *metrics.Collector
	logger    *zap.Logger
	refundRef func() string
}

// Reply is the payload shape for every support response.
type Reply struct {
	Action     string `json:"action"`
	AnswerText string `json:"answer_text"`
	Data       any    `json:"data,omitempty"`
}

// New creates the support agent.
func New(cfg Config) (*Agent, error) {
	if cfg.Tools == nil {
		return nil, fmt.Errorf("support agent: tool caller is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	refundRef := cfg.RefundRef
	if refundRef == nil {
		refundRef = newRefundRef
	}

	return &Agent{
		tools:     cfg.Tools,
		provider:  cfg.Provider,
		model:     cfg.Model,
		metrics:   cfg.Metrics,
		logger:    logger.With(zap.String("component", "support_agent")),
		refundRef: refundRef,
	}, nil
}

// Card describes this agent for discovery.
func (a *Agent) Card(baseURL string) *a2a.AgentCard {
	return a2a.NewAgentCard(
		AgentID,
		"Handles tickets and support actions with LLM-drafted confirmations.",
		baseURL,
		Version,
	).
		AddCapability("ticket_management", "Create escalation tickets and report ticket status", a2a.CapabilityTypeTask).
		AddCapability("account_actions", "Process refund, cancellation and upgrade requests", a2a.CapabilityTypeTask).
		AddIntent(classify.IntentSupportRequest).
		AddIntent(classify.IntentRefundRequest).
		AddIntent(classify.IntentCancelSubscription).
		AddIntent(classify.IntentUpgradeRequest).
		AddIntent(classify.IntentShowTicketStatus).
		AddIntent(classify.IntentEscalateIssue).
		SetMetadata("backend", "mcp+llm")
}

// Register mounts the agent on an A2A server.
func (a *Agent) Register(srv a2a.Server) {
	srv.RegisterHandler(classify.IntentSupportRequest, a.Handle)
	srv.RegisterHandler(classify.IntentRefundRequest, a.Handle)
	srv.RegisterHandler(classify.IntentCancelSubscription, a.Handle)
	srv.RegisterHandler(classify.IntentUpgradeRequest, a.Handle)
	srv.RegisterHandler(classify.IntentShowTicketStatus, a.Handle)
	srv.RegisterHandler(classify.IntentEscalateIssue, a.Handle)
	srv.RegisterHandler("*", a.Handle)
}

// actionResult is what performing an intent produced, before the
// answer text is drafted.
type actionResult struct {
	description string
	data        any
}

// Handle executes one support intent and drafts the reply text.
func (a *Agent) Handle(ctx context.Context, msg *a2a.Message) (*a2a.Message, error) {
	payload := payloadObject(msg.Payload)

	customerID, _ := uintValue(payload["customer_id"])
	text, _ := payload["text"].(string)
	entities, _ := payload["entities"].(map[string]any)

	a.logger.Info("handling support intent",
		zap.String("intent", msg.Intent),
		zap.Uint("customer_id", customerID),
		zap.String("correlation_id", msg.CorrelationID),
	)

	result, err := a.perform(ctx, msg.Intent, customerID, text, entities)
	if err != nil {
		return nil, err
	}

	reply := Reply{
		Action:     result.description,
		AnswerText: a.draftAnswer(ctx, result.description, result.data, text),
		Data:       result.data,
	}

	return msg.CreateReply(a2a.MessageTypeResponse, reply), nil
}

// perform runs the action behind an intent. Ticket intents go through
// MCP; account actions resolve locally.
func (a *Agent) perform(ctx context.Context, intent string, customerID uint, text string, entities map[string]any) (*actionResult, error) {
	switch intent {
	case classify.IntentSupportRequest:
		return &actionResult{
			description: "General inquiry logged.",
			data:        map[string]any{"status": "ok"},
		}, nil

	case classify.IntentRefundRequest:
		ref := a.refundRef()
		return &actionResult{
			description: fmt.Sprintf("Refund initiated (ref %s).", ref),
			data:        map[string]any{"status": "ok", "refund_id": ref},
		}, nil

	case classify.IntentCancelSubscription:
		return &actionResult{
			description: "Cancellation request received.",
			data:        map[string]any{"status": "ok"},
		}, nil

	case classify.IntentUpgradeRequest:
		return &actionResult{
			description: "Upgrade request recorded.",
			data:        map[string]any{"status": "ok"},
		}, nil

	case classify.IntentShowTicketStatus:
		return a.showTicketStatus(ctx, customerID)

	case classify.IntentEscalateIssue:
		return a.escalateIssue(ctx, customerID, text, entities)

	default:
		return nil, types.NewError(types.ErrIntentUnsupported, fmt.Sprintf("unknown support intent: %s", intent)).
			WithAgent(AgentID)
	}
}

func (a *Agent) showTicketStatus(ctx context.Context, customerID uint) (*actionResult, error) {
	if customerID == 0 {
		return nil, types.NewError(types.ErrInvalidInput, "customer_id is required").WithAgent(AgentID)
	}

	raw, err := a.callTool(ctx, "list_tickets", map[string]any{
		"customer_ids": []any{customerID},
	})
	if err != nil {
		return nil, err
	}

	var tickets []any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &tickets); err != nil {
			return nil, types.NewError(types.ErrToolFailed, "tool list_tickets: malformed result").
				WithAgent(AgentID).
				WithCause(err)
		}
	}

	description := "No tickets found."
	if len(tickets) > 0 {
		description = fmt.Sprintf("Found %d tickets.", len(tickets))
	}

	return &actionResult{description: description, data: tickets}, nil
}

func (a *Agent) escalateIssue(ctx context.Context, customerID uint, text string, entities map[string]any) (*actionResult, error) {
	issue := text
	if reason, ok := entities["reason"].(string); ok && strings.TrimSpace(reason) != "" {
		issue = reason
	}

	raw, err := a.callTool(ctx, "create_ticket", map[string]any{
		"customer_id": customerID,
		"issue":       issue,
		"priority":    "medium",
	})
	if err != nil {
		return nil, err
	}

	var ticket struct {
		ID uint `json:"id"`
	}
	if err := json.Unmarshal(raw, &ticket); err != nil {
		return nil, types.NewError(types.ErrEscalationFailed, "tool create_ticket: malformed result").
			WithAgent(AgentID).
			WithCause(err)
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		data = nil
	}

	return &actionResult{
		description: fmt.Sprintf("Escalation ticket #%d created.", ticket.ID),
		data:        data,
	}, nil
}

func (a *Agent) callTool(ctx context.Context, tool string, args map[string]any) (json.RawMessage, error) {
	start := time.Now()
	raw, err := a.tools.CallTool(ctx, tool, args)
	elapsed := time.Since(start)

	if a.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		a.metrics.RecordMCPToolCall(tool, status, elapsed)
	}

	if err != nil {
		return nil, types.NewError(types.ErrToolFailed, fmt.Sprintf("tool %s: %v", tool, err)).
			WithAgent(AgentID).
			WithCause(err)
	}
	return raw, nil
}

// draftAnswer asks the model to phrase the completed action as a
// short chat message. Any failure degrades to the template answer
// so support replies never depend on model availability.
func (a *Agent) draftAnswer(ctx context.Context, action string, details any, customerText string) string {
	fallback := "Action processed: " + action
	if a.provider == nil {
		return fallback
	}

	detailJSON, err := json.Marshal(details)
	if err != nil {
		detailJSON = []byte("null")
	}

	prompt := fmt.Sprintf(`You are a helpful Customer Support Chatbot.

User Query: %q
System Action: %s
Details: %s

INSTRUCTIONS:
- Draft a very short, direct chat response (1-2 sentences).
- CONFIRM the action was done.
- NO "Dear Customer" headers.
- NO "Best Regards" signatures.
- NO emails. Be conversational and concise.`, customerText, action, detailJSON)

	resp, err := a.provider.Completion(ctx, &llm.ChatRequest{
		Model: a.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: prompt},
			{Role: llm.RoleUser, Content: "Draft chat response"},
		},
	})
	if err != nil {
		a.logger.Warn("answer drafting failed", zap.Error(err))
		return fallback
	}

	text, err := llm.FirstText(resp)
	if err != nil || strings.TrimSpace(text) == "" {
		return fallback
	}
	return strings.TrimSpace(text)
}

// newRefundRef derives a six digit refund reference from a fresh UUID.
func newRefundRef() string {
	id := uuid.New()
	return fmt.Sprintf("REF-%06d", binary.BigEndian.Uint32(id[0:4])%1000000)
}

func payloadObject(payload any) map[string]any {
	if m, ok := payload.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// uintValue converts JSON-decoded or native numeric values.
func uintValue(value any) (uint, bool) {
	switch v := value.(type) {
	case float64:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case uint:
		return v, true
	case json.Number:
		n, err := v.Int64()
		if err != nil || n < 0 {
			return 0, false
		}
		return uint(n), true
	default:
		return 0, false
	}
}
