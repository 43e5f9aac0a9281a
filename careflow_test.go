package careflow

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/careflow/api"
)

// 进程内网格测试走关键词分类器, 不依赖 LLM 与网络。

func newTestMesh(t *testing.T) *Mesh {
	t.Helper()
	mesh, err := NewMesh(context.Background(),
		WithDatabase("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { mesh.Close() })
	return mesh
}

func TestMeshRoutesDataIntent(t *testing.T) {
	mesh := newTestMesh(t)

	resp, err := mesh.Query(context.Background(), api.QueryRequest{
		Text:       "Show me my purchase history",
		CustomerID: 1,
	})
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "get_customer_history", resp.Results[0].Intent)
	assert.Equal(t, "ok", resp.Results[0].Status)
	assert.False(t, resp.Results[0].RequiresEscalation)
	assert.Contains(t, resp.AgentsConsulted, "customer_data_agent")
}

func TestMeshRoutesRefundEscalation(t *testing.T) {
	mesh := newTestMesh(t)

	resp, err := mesh.Query(context.Background(), api.QueryRequest{
		Text:       "I want a refund for last month's charge",
		CustomerID: 2,
	})
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "refund_request", resp.Results[0].Intent)
	assert.Equal(t, "ok", resp.Results[0].Status)
	assert.True(t, resp.Results[0].RequiresEscalation)
	assert.Contains(t, resp.AgentsConsulted, "support_agent")
}

func TestMeshRoutesListCustomers(t *testing.T) {
	mesh := newTestMesh(t)

	resp, err := mesh.Query(context.Background(), api.QueryRequest{
		Text: "Show me all active customers",
	})
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "list_customers", resp.Results[0].Intent)
	assert.Equal(t, "ok", resp.Results[0].Status)
}

func TestMeshToolClientDirectCall(t *testing.T) {
	mesh := newTestMesh(t)

	raw, err := mesh.Tools().CallTool(context.Background(), "get_customer", map[string]any{"customer_id": 1})
	require.NoError(t, err)

	var customer struct {
		ID    uint   `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(raw, &customer))
	assert.Equal(t, uint(1), customer.ID)
	assert.Equal(t, "Ashwin Ram", customer.Name)
}

// 全新数据库上网格必须自行建表, 不依赖事先跑过 migrate。
func TestMeshBootstrapsSchemaOnFreshDatabase(t *testing.T) {
	mesh, err := NewMesh(context.Background(),
		WithDatabase("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared"),
		WithoutSeed(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { mesh.Close() })

	// 未播种时表存在但为空
	raw, err := mesh.Tools().CallTool(context.Background(), "list_customers", map[string]any{})
	require.NoError(t, err)

	var customers []json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &customers))
	assert.Empty(t, customers)
}

func TestMeshPeerDiscovery(t *testing.T) {
	mesh := newTestMesh(t)

	cards, err := mesh.Router.Peers(context.Background())
	require.NoError(t, err)
	require.Len(t, cards, 2)

	names := []string{cards[0].Name, cards[1].Name}
	assert.Contains(t, names, "customer_data_agent")
	assert.Contains(t, names, "support_agent")
}
