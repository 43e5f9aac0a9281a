// Package router implements the routing agent: it classifies customer
// queries, fans the intents out to the specialist agents over A2A and
// aggregates their responses.
package router

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/careflow/a2a"
	"github.com/BaSui01/careflow/api"
	"github.com/BaSui01/careflow/classify"
	"github.com/BaSui01/careflow/internal/cache"
	"github.com/BaSui01/careflow/internal/metrics"
	"github.com/BaSui01/careflow/types"
)

// AgentID identifies this agent in A2A envelopes.
const AgentID = "router"

// Version is reported on the agent card.
const Version = "1.0.0"

// Downstream agent identifiers, matching the IDs their servers
// announce on their agent cards.
const (
	dataAgentID    = "customer_data_agent"
	supportAgentID = "support_agent"
)

// sourceCache marks classifications served from the result cache.
const sourceCache = "cache"

// dataIntents are served by the data agent; every other intent routes
// to the support agent.
var dataIntents = map[string]bool{
	classify.IntentGetCustomerInfo:    true,
	classify.IntentGetCustomerHistory: true,
	classify.IntentUpdateEmail:        true,
	classify.IntentListCustomers:      true,
}

// escalationIntents mark results that need a human follow-up.
var escalationIntents = map[string]bool{
	classify.IntentRefundRequest:      true,
	classify.IntentCancelSubscription: true,
	classify.IntentUpgradeRequest:     true,
	classify.IntentEscalateIssue:      true,
	classify.IntentUpdateEmail:        true,
}

var (
	emailPattern   = regexp.MustCompile(`[\w.-]+@[\w.-]+`)
	integerPattern = regexp.MustCompile(`\d+`)
)

// Dispatcher abstracts the A2A client used to reach downstream agents.
// *a2a.HTTPClient satisfies it.
type Dispatcher interface {
	Send(ctx context.Context, baseURL string, msg *a2a.Message) (*a2a.Message, error)
	Discover(ctx context.Context, baseURL string) (*a2a.AgentCard, error)
}

// Config holds the dependencies for the routing agent.
type Config struct {
	// Classifier resolves query text into intents.
	Classifier classify.Classifier
	// Client dispatches A2A messages to the specialist agents.
	Client Dispatcher
	// DataAgentURL is the base URL of the customer data agent.
	DataAgentURL string
	// SupportAgentURL is the base URL of the support agent.
	SupportAgentURL string
	// DispatchTimeout bounds each downstream call. Defaults to 30s.
	DispatchTimeout time.Duration
	// Cache stores classification results keyed by query text.
	// Optional; nil disables caching.
	Cache *cache.Manager
	// CacheTTL overrides the cache's default TTL when set.
	CacheTTL time.Duration
	// Metrics records classification and dispatch outcomes. Optional.
	Metrics *metrics.Collector
	// Logger is the log instance. Optional.
	Logger *zap.Logger
}

// Agent orchestrates one customer query across the mesh.
type Agent struct {
	classifier classify.Classifier
	client     Dispatcher
	dataURL    string
	supportURL string
	timeout    time.Duration
	cache      *cache.Manager
	cacheTTL   time.Duration
	metrics    *metrics.Collector
	logger     *zap.Logger
}

// New creates the routing agent.
func New(cfg Config) (*Agent, error) {
	if cfg.Classifier == nil {
		return nil, fmt.Errorf("router agent: classifier is required")
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("router agent: a2a client is required")
	}
	if cfg.DataAgentURL == "" || cfg.SupportAgentURL == "" {
		return nil, fmt.Errorf("router agent: downstream agent urls are required")
	}
	timeout := cfg.DispatchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Agent{
		classifier: cfg.Classifier,
		client:     cfg.Client,
		dataURL:    cfg.DataAgentURL,
		supportURL: cfg.SupportAgentURL,
		timeout:    timeout,
		cache:      cfg.Cache,
		cacheTTL:   cfg.CacheTTL,
		metrics:    cfg.Metrics,
		logger:     logger.With(zap.String("component", "router_agent")),
	}, nil
}

// Card describes this agent for discovery. The router advertises the
// whole intent catalog since every query enters the mesh through it.
func (a *Agent) Card(baseURL string) *a2a.AgentCard {
	card := a2a.NewAgentCard(
		AgentID,
		"Classifies customer queries and routes them to the specialist agents.",
		baseURL,
		Version,
	).
		AddCapability("intent_routing", "Classify queries and dispatch them to downstream agents", a2a.CapabilityTypeTask).
		AddCapability("query_orchestration", "Aggregate multi-intent results into one response", a2a.CapabilityTypeQuery).
		SetEndpoint("query", "/query")

	for _, intent := range classify.Catalog() {
		card.AddIntent(intent)
	}
	return card
}

// Register mounts the protocol surface. The router answers any direct
// A2A message with an acknowledgement; mesh traffic enters via Query.
func (a *Agent) Register(srv a2a.Server) {
	srv.RegisterHandler("*", a.HandleA2A)
}

// HandleA2A acknowledges direct A2A traffic for protocol compliance.
func (a *Agent) HandleA2A(_ context.Context, msg *a2a.Message) (*a2a.Message, error) {
	return msg.CreateReply(a2a.MessageTypeResponse, map[string]any{"status": "ok"}), nil
}

// Query runs one customer query through the mesh: classify, plan,
// dispatch in parallel, aggregate. A downstream failure degrades only
// the affected intent; the rest of the results survive.
func (a *Agent) Query(ctx context.Context, req api.QueryRequest) (*api.QueryResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "text is required")
	}

	start := time.Now()

	result, err := a.classifyQuery(ctx, text)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "intent classification failed").WithCause(err)
	}

	customerID := resolveCustomerID(req, result.Entities, text)

	a.logger.Info("query classified",
		zap.Strings("intents", result.Intents),
		zap.String("source", result.Source),
		zap.Uint("customer_id", customerID),
	)

	plans := make([]plan, 0, len(result.Intents))
	for _, intent := range result.Intents {
		plans = append(plans, a.buildPlan(intent, customerID, text, result.Entities))
	}

	results := make([]api.QueryResult, len(plans))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range plans {
		g.Go(func() error {
			results[i] = a.dispatch(gctx, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resp := &api.QueryResponse{
		Query:           req.Text,
		Results:         results,
		AgentsConsulted: consultedAgents(plans),
		ElapsedMS:       time.Since(start).Milliseconds(),
	}

	a.logger.Info("query complete",
		zap.Int("results", len(resp.Results)),
		zap.Int64("elapsed_ms", resp.ElapsedMS),
	)

	return resp, nil
}

// Peers fetches the downstream agent cards through the client cache.
func (a *Agent) Peers(ctx context.Context) ([]*a2a.AgentCard, error) {
	var cards []*a2a.AgentCard
	for _, url := range []string{a.dataURL, a.supportURL} {
		card, err := a.client.Discover(ctx, url)
		if err != nil {
			return cards, fmt.Errorf("discover %s: %w", url, err)
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// classifyQuery consults the cache before the classifier chain.
// Cache failures never fail the query.
func (a *Agent) classifyQuery(ctx context.Context, text string) (*classify.Result, error) {
	key := cacheKey(text)

	if a.cache != nil {
		lookup := time.Now()
		var cached classify.Result
		err := a.cache.GetJSON(ctx, key, &cached)
		if err == nil && len(cached.Intents) > 0 {
			cached.Source = sourceCache
			if cached.Entities == nil {
				cached.Entities = map[string]any{}
			}
			a.recordClassification(&cached, time.Since(lookup))
			a.logger.Debug("classification cache hit", zap.Strings("intents", cached.Intents))
			return &cached, nil
		}
		if err != nil && !cache.IsCacheMiss(err) {
			a.logger.Warn("classification cache read failed", zap.Error(err))
		}
	}

	start := time.Now()
	result, err := a.classifier.Classify(ctx, text)
	if err != nil {
		return nil, err
	}
	a.recordClassification(result, time.Since(start))

	if a.cache != nil && len(result.Intents) > 0 {
		if err := a.cache.SetJSON(ctx, key, result, a.cacheTTL); err != nil {
			a.logger.Debug("classification cache write failed", zap.Error(err))
		}
	}

	return result, nil
}

func (a *Agent) recordClassification(result *classify.Result, elapsed time.Duration) {
	if a.metrics == nil {
		return
	}
	for _, intent := range result.Intents {
		a.metrics.RecordIntentClassification(intent, result.Source, elapsed)
	}
}

// plan is one intent resolved into a downstream dispatch.
type plan struct {
	intent   string
	agentID  string
	baseURL  string
	payload  map[string]any
	escalate bool
}

// buildPlan resolves the target agent and enriches the payload with
// the entities the downstream tools expect.
func (a *Agent) buildPlan(intent string, customerID uint, text string, entities map[string]any) plan {
	if dataIntents[intent] {
		payload := map[string]any{"customer_id": customerID}

		switch intent {
		case classify.IntentListCustomers:
			status, _ := entities["status_filter"].(string)
			if status == "" && strings.Contains(strings.ToLower(text), "active") {
				status = "active"
			}
			if status != "" {
				payload["status"] = strings.ToLower(status)
			}

		case classify.IntentUpdateEmail:
			email, _ := entities["email"].(string)
			if email == "" {
				email = emailPattern.FindString(text)
			}
			updates := map[string]any{}
			if email != "" {
				updates["email"] = email
			}
			payload["updates"] = updates
		}

		return plan{
			intent:   intent,
			agentID:  dataAgentID,
			baseURL:  a.dataURL,
			payload:  payload,
			escalate: escalationIntents[intent],
		}
	}

	return plan{
		intent:  intent,
		agentID: supportAgentID,
		baseURL: a.supportURL,
		payload: map[string]any{
			"customer_id": customerID,
			"text":        text,
			"entities":    entities,
		},
		escalate: escalationIntents[intent],
	}
}

// dispatch sends one planned intent downstream and shapes the result.
func (a *Agent) dispatch(ctx context.Context, p plan) api.QueryResult {
	out := api.QueryResult{Intent: p.intent, RequiresEscalation: p.escalate}

	dctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	msg := a2a.NewRequest(AgentID, p.agentID, p.intent, p.payload)

	a.logger.Info("dispatching intent",
		zap.String("intent", p.intent),
		zap.String("agent", p.agentID),
		zap.Bool("requires_escalation", p.escalate),
	)

	start := time.Now()
	reply, err := a.client.Send(dctx, p.baseURL, msg)
	elapsed := time.Since(start)

	switch {
	case err != nil:
		a.logger.Warn("agent dispatch failed",
			zap.String("agent", p.agentID),
			zap.String("intent", p.intent),
			zap.Error(err),
		)
		out.Status = "error"
		out.Data = err.Error()

	case reply.IsError():
		out.Status = "error"
		out.Data = errorText(reply)

	default:
		out.Status = "ok"
		out.Data = reply.Payload
	}

	a.recordDispatch(p, out.Status, elapsed)
	return out
}

func (a *Agent) recordDispatch(p plan, status string, elapsed time.Duration) {
	if a.metrics == nil {
		return
	}
	a.metrics.RecordAgentDispatch(p.agentID, p.intent, status, elapsed)
	if p.escalate {
		a.metrics.RecordEscalation(p.intent)
	}
}

// errorText extracts the text from an error envelope payload.
func errorText(msg *a2a.Message) string {
	if payload, ok := msg.Payload.(map[string]any); ok {
		if text, ok := payload["error"].(string); ok && text != "" {
			return text
		}
	}
	return "agent returned an error"
}

// consultedAgents lists the dispatched agent IDs, deduplicated in
// dispatch order.
func consultedAgents(plans []plan) []string {
	seen := make(map[string]bool, 2)
	out := make([]string, 0, 2)
	for _, p := range plans {
		if seen[p.agentID] {
			continue
		}
		seen[p.agentID] = true
		out = append(out, p.agentID)
	}
	return out
}

// resolveCustomerID prefers the explicit request field, then the
// classifier's customer_id entity, then the first integer in the text.
func resolveCustomerID(req api.QueryRequest, entities map[string]any, text string) uint {
	if req.CustomerID > 0 {
		return req.CustomerID
	}
	if id, ok := uintValue(entities["customer_id"]); ok && id > 0 {
		return id
	}
	if m := integerPattern.FindString(text); m != "" {
		if n, err := strconv.ParseUint(m, 10, 32); err == nil {
			return uint(n)
		}
	}
	return 0
}

// cacheKey hashes the normalized query text.
func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(text))))
	return "intent:" + hex.EncodeToString(sum[:])
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
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return 0, false
		}
		return uint(n), true
	default:
		return 0, false
	}
}
