package classify

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// KeywordClassifier 是确定性的关键词兜底，规则按优先级短路：
// 命中第一条即返回，全部落空归为 support_request。
type KeywordClassifier struct {
	logger *zap.Logger
}

// NewKeywordClassifier 创建关键词分类器。
func NewKeywordClassifier(logger *zap.Logger) *KeywordClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeywordClassifier{
		logger: logger.With(zap.String("component", "keyword_classifier")),
	}
}

// Classify 大小写不敏感地匹配关键词，永不失败。
func (c *KeywordClassifier) Classify(_ context.Context, text string) (*Result, error) {
	lower := strings.ToLower(text)

	var intent string
	switch {
	case strings.Contains(lower, "refund") || strings.Contains(lower, "money back"):
		intent = IntentRefundRequest
	case strings.Contains(lower, "cancel"):
		intent = IntentCancelSubscription
	case strings.Contains(lower, "active") && strings.Contains(lower, "customers"):
		intent = IntentListCustomers
	case strings.Contains(lower, "email") && strings.Contains(lower, "update"):
		intent = IntentUpdateEmail
	case strings.Contains(lower, "history"):
		intent = IntentGetCustomerHistory
	case strings.Contains(lower, "ticket"):
		intent = IntentShowTicketStatus
	default:
		intent = IntentSupportRequest
	}

	c.logger.Debug("keyword fallback matched", zap.String("intent", intent))

	return &Result{
		Reasoning: "keyword fallback",
		Intents:   []string{intent},
		Entities:  map[string]any{},
		Source:    SourceFallback,
	}, nil
}
