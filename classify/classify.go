package classify

import "context"

// 十个路由意图，路由代理据此决定下游代理与载荷。
const (
	IntentGetCustomerInfo    = "get_customer_info"
	IntentGetCustomerHistory = "get_customer_history"
	IntentUpdateEmail        = "update_email"
	IntentListCustomers      = "list_customers"
	IntentRefundRequest      = "refund_request"
	IntentCancelSubscription = "cancel_subscription"
	IntentUpgradeRequest     = "upgrade_request"
	IntentShowTicketStatus   = "show_ticket_status"
	IntentEscalateIssue      = "escalate_issue"
	IntentSupportRequest     = "support_request"
)

var catalog = []string{
	IntentGetCustomerInfo,
	IntentGetCustomerHistory,
	IntentUpdateEmail,
	IntentListCustomers,
	IntentRefundRequest,
	IntentCancelSubscription,
	IntentUpgradeRequest,
	IntentShowTicketStatus,
	IntentEscalateIssue,
	IntentSupportRequest,
}

var catalogSet = func() map[string]bool {
	set := make(map[string]bool, len(catalog))
	for _, intent := range catalog {
		set[intent] = true
	}
	return set
}()

// Catalog 返回全部已知意图，顺序固定。
func Catalog() []string {
	out := make([]string, len(catalog))
	copy(out, catalog)
	return out
}

// Known 判断 intent 是否在目录内。
func Known(intent string) bool {
	return catalogSet[intent]
}

// 分类来源标记，用于指标与日志，不进入线格式。
const (
	SourceLLM      = "llm"
	SourceFallback = "fallback"
)

// Result 是一次分类的输出。Entities 按意图可能携带
// email、status_filter、reason、customer_id 等提取值。
type Result struct {
	Reasoning string         `json:"reasoning"`
	Intents   []string       `json:"intents"`
	Entities  map[string]any `json:"entities,omitempty"`

	// Source 标记结果出自哪个分类器。
	Source string `json:"-"`
}

// Classifier 把一段用户文本归类为一个或多个意图。
type Classifier interface {
	Classify(ctx context.Context, text string) (*Result, error)
}
