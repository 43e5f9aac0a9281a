package scenarios

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/careflow/api"
)

// =============================================================================
// 🧪 测试辅助
// =============================================================================

// cannedRouter 按请求文本返回预置的聚合响应
func cannedRouter(t *testing.T, responses map[string]*api.QueryResponse) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/query", r.URL.Path)

		var req api.QueryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp, ok := responses[req.Text]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"success": false,
				"error":   map[string]any{"code": "INVALID_REQUEST", "message": "unexpected query"},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": resp})
	}))
}

func okResult(intent string, escalate bool) api.QueryResult {
	return api.QueryResult{Intent: intent, Status: "ok", Data: map[string]any{}, RequiresEscalation: escalate}
}

// =============================================================================
// 🧪 Runner 测试
// =============================================================================

func TestRunnerAllScenariosPass(t *testing.T) {
	all := All()
	require.Len(t, all, 6)

	responses := map[string]*api.QueryResponse{
		all[0].Request.Text: {
			Results:         []api.QueryResult{okResult("get_customer_info", false)},
			AgentsConsulted: []string{"customer_data_agent"},
		},
		all[1].Request.Text: {
			Results:         []api.QueryResult{okResult("upgrade_request", true)},
			AgentsConsulted: []string{"support_agent"},
		},
		all[2].Request.Text: {
			Results:         []api.QueryResult{okResult("list_customers", false)},
			AgentsConsulted: []string{"customer_data_agent"},
		},
		all[3].Request.Text: {
			Results:         []api.QueryResult{okResult("refund_request", true)},
			AgentsConsulted: []string{"support_agent"},
		},
		all[4].Request.Text: {
			Results: []api.QueryResult{
				okResult("update_email", true),
				okResult("get_customer_history", false),
			},
			AgentsConsulted: []string{"customer_data_agent"},
		},
		all[5].Request.Text: {
			Results:         []api.QueryResult{okResult("cancel_subscription", true)},
			AgentsConsulted: []string{"support_agent"},
		},
	}

	server := cannedRouter(t, responses)
	defer server.Close()

	runner := NewRunner(server.URL)
	results := runner.RunAll(context.Background(), all)

	require.Len(t, results, len(all))
	for _, result := range results {
		assert.True(t, result.Passed(), "scenario %s: %v", result.Scenario.Name, result.Err)
	}
}

func TestRunnerDetectsMissingIntent(t *testing.T) {
	all := All()
	responses := map[string]*api.QueryResponse{
		all[0].Request.Text: {
			Results:         []api.QueryResult{okResult("support_request", false)},
			AgentsConsulted: []string{"support_agent"},
		},
	}

	server := cannedRouter(t, responses)
	defer server.Close()

	runner := NewRunner(server.URL)
	result := runner.Run(context.Background(), all[0])

	require.False(t, result.Passed())
	assert.Contains(t, result.Err.Error(), "get_customer_info")
}

func TestRunnerDetectsMissingEscalation(t *testing.T) {
	all := All()
	// angry-refund 返回了意图但没有升级标记
	responses := map[string]*api.QueryResponse{
		all[3].Request.Text: {
			Results:         []api.QueryResult{okResult("refund_request", false)},
			AgentsConsulted: []string{"support_agent"},
		},
	}

	server := cannedRouter(t, responses)
	defer server.Close()

	runner := NewRunner(server.URL)
	result := runner.Run(context.Background(), all[3])

	require.False(t, result.Passed())
	assert.Contains(t, result.Err.Error(), "escalation")
}

func TestRunnerSurfacesErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   map[string]any{"code": "AGENT_UNAVAILABLE", "message": "support agent unreachable"},
		})
	}))
	defer server.Close()

	runner := NewRunner(server.URL)
	result := runner.Run(context.Background(), All()[0])

	require.False(t, result.Passed())
	assert.Contains(t, result.Err.Error(), "support agent unreachable")
	assert.Contains(t, result.Err.Error(), "AGENT_UNAVAILABLE")
}

func TestRunnerRunAllContinuesAfterFailure(t *testing.T) {
	all := All()[:2]
	// 只给第二个场景预置响应, 第一个会失败
	responses := map[string]*api.QueryResponse{
		all[1].Request.Text: {
			Results:         []api.QueryResult{okResult("upgrade_request", true)},
			AgentsConsulted: []string{"support_agent"},
		},
	}

	server := cannedRouter(t, responses)
	defer server.Close()

	runner := NewRunner(server.URL)
	results := runner.RunAll(context.Background(), all)

	require.Len(t, results, 2)
	assert.False(t, results[0].Passed())
	assert.True(t, results[1].Passed())
}
