package classify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/careflow/llm"
)

// systemPrompt 要求模型先给出一句 reasoning 再列意图，
// 小模型带上思维链后路由准确率明显更高。
const systemPrompt = `You are the Senior Orchestrator for a Customer Service System.
Your job is to analyze the user's request and route it to the correct internal function.

AVAILABLE INTENTS:
- get_customer_info: User asks for profile details (name, tier, phone).
- get_customer_history: User asks for past tickets or history.
- update_email: User explicitly wants to change their email address.
- list_customers: User asks for a list of people (e.g. "active customers", "all users").
- refund_request: User wants money back or is angry about billing.
- cancel_subscription: User wants to stop the service.
- upgrade_request: User wants to upgrade/change tier.
- show_ticket_status: User asks about specific open tickets or status.
- escalate_issue: User wants to open a new ticket, complain, or talk to a human.
- support_request: General help/greeting if nothing else fits.

INSTRUCTIONS:
1. reasoning: Explain WHY you chose the intent in 1 short sentence.
2. intents: The list of matching intents (usually 1, but can be multiple).
3. entities: Extract 'email' (if updating), 'status_filter' (if listing), or 'reason' (if escalating).

EXAMPLE JSON OUTPUT:
{
    "reasoning": "User mentioned billing error and wants money back.",
    "intents": ["refund_request"],
    "entities": { "email": null, "reason": "billing error" }
}`

// LLMClassifier 调用模型做意图识别。JSON Mode 下温度与
// token 上限由 provider 按模式取默认值。
type LLMClassifier struct {
	provider llm.Provider
	model    string
	logger   *zap.Logger
}

// NewLLMClassifier 创建基于模型的分类器。model 为空时使用
// provider 的默认模型。
func NewLLMClassifier(provider llm.Provider, model string, logger *zap.Logger) *LLMClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMClassifier{
		provider: provider,
		model:    model,
		logger:   logger.With(zap.String("component", "intent_classifier")),
	}
}

// Classify 请求模型输出结构化分类。目录外的意图被过滤并告警；
// 过滤后可能得到空意图列表，由调用方决定是否兜底。
func (c *LLMClassifier) Classify(ctx context.Context, text string) (*Result, error) {
	resp, err := c.provider.Completion(ctx, &llm.ChatRequest{
		Model: c.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: text},
		},
		JSONMode: true,
	})
	if err != nil {
		return nil, fmt.Errorf("intent completion: %w", err)
	}

	raw, err := llm.FirstText(resp)
	if err != nil {
		return nil, fmt.Errorf("intent completion: %w", err)
	}

	var result Result
	if err := llm.DecodeJSON(raw, &result); err != nil {
		return nil, fmt.Errorf("parse intent output: %w", err)
	}

	kept := result.Intents[:0]
	for _, intent := range result.Intents {
		if !Known(intent) {
			c.logger.Warn("dropping unknown intent", zap.String("intent", intent))
			continue
		}
		kept = append(kept, intent)
	}
	result.Intents = kept

	if result.Entities == nil {
		result.Entities = map[string]any{}
	}
	result.Source = SourceLLM

	c.logger.Debug("intents classified",
		zap.String("reasoning", result.Reasoning),
		zap.Strings("intents", result.Intents),
	)

	return &result, nil
}
