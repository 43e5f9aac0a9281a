package scenarios

import (
	"fmt"

	"github.com/BaSui01/careflow/api"
)

// Scenario 是一条可复跑的演示对话。
type Scenario struct {
	// Name 是场景的短标识
	Name string
	// Description 说明场景演示的路由行为
	Description string
	// Request 是发往 /query 的请求
	Request api.QueryRequest
	// Check 校验聚合响应的形状
	Check func(resp *api.QueryResponse) error
}

// All 返回全部六个典型场景, 按演示顺序排列。
func All() []Scenario {
	return []Scenario{
		{
			Name:        "simple-data-query",
			Description: "单意图数据查询, 只咨询数据代理",
			Request: api.QueryRequest{
				Text: "Get customer information for customer ID 1",
			},
			Check: func(resp *api.QueryResponse) error {
				if err := expectIntents(resp, "get_customer_info"); err != nil {
					return err
				}
				return expectAgent(resp, "customer_data_agent")
			},
		},
		{
			Name:        "coordinated-upgrade",
			Description: "升级请求走支持代理并标记人工升级",
			Request: api.QueryRequest{
				Text:       "I want to upgrade my plan to premium",
				CustomerID: 1,
			},
			Check: func(resp *api.QueryResponse) error {
				if err := expectIntents(resp, "upgrade_request"); err != nil {
					return err
				}
				if err := expectAgent(resp, "support_agent"); err != nil {
					return err
				}
				return expectEscalation(resp, "upgrade_request")
			},
		},
		{
			Name:        "active-customers-open-tickets",
			Description: "复合数据查询, 列表意图带筛选实体",
			Request: api.QueryRequest{
				Text: "Show me all active customers that have open tickets",
			},
			Check: func(resp *api.QueryResponse) error {
				if err := expectIntents(resp, "list_customers"); err != nil {
					return err
				}
				return expectAgent(resp, "customer_data_agent")
			},
		},
		{
			Name:        "angry-refund",
			Description: "愤怒客户索要退款, 必须触发人工升级",
			Request: api.QueryRequest{
				Text:       "This is unacceptable! I demand a refund immediately!",
				CustomerID: 2,
			},
			Check: func(resp *api.QueryResponse) error {
				if err := expectIntents(resp, "refund_request"); err != nil {
					return err
				}
				return expectEscalation(resp, "refund_request")
			},
		},
		{
			Name:        "email-update-history",
			Description: "多意图消息, 同时分发到数据代理的两个操作",
			Request: api.QueryRequest{
				Text:       "Update my email to new.address@example.com and show me my purchase history",
				CustomerID: 4,
			},
			Check: func(resp *api.QueryResponse) error {
				if err := expectIntents(resp, "update_email", "get_customer_history"); err != nil {
					return err
				}
				return expectAgent(resp, "customer_data_agent")
			},
		},
		{
			Name:        "cancellation-negotiation",
			Description: "退订协商走支持代理并进入人工升级",
			Request: api.QueryRequest{
				Text:       "I'm thinking about cancelling my subscription, what are my options?",
				CustomerID: 5,
			},
			Check: func(resp *api.QueryResponse) error {
				if err := expectIntents(resp, "cancel_subscription"); err != nil {
					return err
				}
				if err := expectAgent(resp, "support_agent"); err != nil {
					return err
				}
				return expectEscalation(resp, "cancel_subscription")
			},
		},
	}
}

// expectIntents 要求响应里出现全部给定意图。
func expectIntents(resp *api.QueryResponse, intents ...string) error {
	if len(resp.Results) == 0 {
		return fmt.Errorf("no results in response")
	}
	seen := make(map[string]string, len(resp.Results))
	for _, r := range resp.Results {
		seen[r.Intent] = r.Status
	}
	for _, intent := range intents {
		status, ok := seen[intent]
		if !ok {
			return fmt.Errorf("intent %q missing from results (got %v)", intent, resultIntents(resp))
		}
		if status != "ok" {
			return fmt.Errorf("intent %q returned status %q", intent, status)
		}
	}
	return nil
}

// expectAgent 要求给定代理出现在 agents_consulted 里。
func expectAgent(resp *api.QueryResponse, agent string) error {
	for _, a := range resp.AgentsConsulted {
		if a == agent {
			return nil
		}
	}
	return fmt.Errorf("agent %q not consulted (got %v)", agent, resp.AgentsConsulted)
}

// expectEscalation 要求给定意图的结果带人工升级标记。
func expectEscalation(resp *api.QueryResponse, intent string) error {
	for _, r := range resp.Results {
		if r.Intent == intent {
			if !r.RequiresEscalation {
				return fmt.Errorf("intent %q should require escalation", intent)
			}
			return nil
		}
	}
	return fmt.Errorf("intent %q missing from results", intent)
}

func resultIntents(resp *api.QueryResponse) []string {
	intents := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		intents = append(intents, r.Intent)
	}
	return intents
}
