// Package fixtures 提供测试数据工厂: 十个意图的样例查询、
// 预置分类结果与演示客户数据。
package fixtures

import "github.com/BaSui01/careflow/classify"

// SampleQueries 是每个意图的一条代表性客户消息。
var SampleQueries = map[string]string{
	classify.IntentGetCustomerInfo:    "Get customer information for customer ID 1",
	classify.IntentGetCustomerHistory: "Show me my purchase history",
	classify.IntentUpdateEmail:        "Update my email to new.address@example.com",
	classify.IntentListCustomers:      "Show me all active customers",
	classify.IntentRefundRequest:      "I want a refund for last month's charge",
	classify.IntentCancelSubscription: "I'd like to cancel my subscription",
	classify.IntentUpgradeRequest:     "I want to upgrade my plan to premium",
	classify.IntentShowTicketStatus:   "What's the status of my support ticket?",
	classify.IntentEscalateIssue:      "This keeps happening, I need to speak to a manager",
	classify.IntentSupportRequest:     "How do I change my notification settings?",
}

// Classification 构造给定意图的分类结果。
func Classification(intents ...string) *classify.Result {
	return &classify.Result{
		Reasoning: "fixture classification",
		Intents:   intents,
		Entities:  map[string]any{},
	}
}

// ClassificationWithEntities 构造带实体的分类结果。
func ClassificationWithEntities(intents []string, entities map[string]any) *classify.Result {
	return &classify.Result{
		Reasoning: "fixture classification",
		Intents:   intents,
		Entities:  entities,
	}
}
