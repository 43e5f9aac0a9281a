package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/careflow/a2a"
	"github.com/BaSui01/careflow/api"
	"github.com/BaSui01/careflow/types"
)

// =============================================================================
// 🧪 测试辅助类型
// =============================================================================

// mockQueryService 模拟路由代理
type mockQueryService struct {
	resp  *api.QueryResponse
	err   error
	cards []*a2a.AgentCard
	last  api.QueryRequest
}

func (m *mockQueryService) Query(_ context.Context, req api.QueryRequest) (*api.QueryResponse, error) {
	m.last = req
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func (m *mockQueryService) Peers(context.Context) ([]*a2a.AgentCard, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.cards, nil
}

func postQuery(t *testing.T, handler *QueryHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	handler.HandleQuery(w, r)
	return w
}

// =============================================================================
// 🧪 QueryHandler 测试
// =============================================================================

func TestHandleQuerySuccess(t *testing.T) {
	service := &mockQueryService{resp: &api.QueryResponse{
		Query: "Get customer information for ID 1",
		Results: []api.QueryResult{
			{Intent: "get_customer_info", Status: "ok", Data: map[string]any{"id": float64(1)}},
		},
		AgentsConsulted: []string{"customer_data_agent"},
	}}
	handler := NewQueryHandler(service, zap.NewNop())

	w := postQuery(t, handler, `{"text":"Get customer information for ID 1"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Get customer information for ID 1", service.last.Text)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.True(t, resp.Success)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var qr api.QueryResponse
	require.NoError(t, json.Unmarshal(data, &qr))
	require.Len(t, qr.Results, 1)
	assert.Equal(t, "get_customer_info", qr.Results[0].Intent)
	assert.Equal(t, []string{"customer_data_agent"}, qr.AgentsConsulted)
}

func TestHandleQueryServiceError(t *testing.T) {
	service := &mockQueryService{err: types.NewError(types.ErrInvalidRequest, "text is required")}
	handler := NewQueryHandler(service, zap.NewNop())

	w := postQuery(t, handler, `{"text":""}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrInvalidRequest), resp.Error.Code)
}

func TestHandleQueryRejectsWrongMethod(t *testing.T) {
	handler := NewQueryHandler(&mockQueryService{}, zap.NewNop())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/query", nil)
	handler.HandleQuery(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, http.MethodPost, w.Header().Get("Allow"))
}

func TestHandleQueryRejectsBadContentType(t *testing.T) {
	handler := NewQueryHandler(&mockQueryService{}, zap.NewNop())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"text":"hi"}`))
	r.Header.Set("Content-Type", "text/plain")
	handler.HandleQuery(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAgentsListsPeerCards(t *testing.T) {
	service := &mockQueryService{cards: []*a2a.AgentCard{
		a2a.NewAgentCard("customer_data_agent", "data", "http://data.test", "1.0.0"),
		a2a.NewAgentCard("support_agent", "support", "http://support.test", "1.0.0"),
	}}
	handler := NewQueryHandler(service, zap.NewNop())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/agents", nil)
	handler.HandleAgents(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.True(t, resp.Success)
}

func TestHandleAgentsDiscoveryFailure(t *testing.T) {
	service := &mockQueryService{err: types.NewError(types.ErrAgentUnavailable, "support agent unreachable")}
	handler := NewQueryHandler(service, zap.NewNop())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/agents", nil)
	handler.HandleAgents(w, r)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
