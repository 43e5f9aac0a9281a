package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

// promauto 注册到默认 registry，重复注册会 panic，
// 每个测试用独立命名空间规避。
func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.llmRequestsTotal)
	assert.NotNil(t, collector.llmTokensUsed)
	assert.NotNil(t, collector.intentClassificationsTotal)
	assert.NotNil(t, collector.agentDispatchesTotal)
	assert.NotNil(t, collector.mcpToolCallsTotal)
	assert.NotNil(t, collector.tasksTotal)
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHTTPRequest("POST", "/query", 200, 100*time.Millisecond, 1024, 2048)

	count := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.Greater(t, count, 0)

	collector.RecordHTTPRequest("POST", "/query", 200, 50*time.Millisecond, 512, 1024)

	newCount := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.GreaterOrEqual(t, newCount, count)
}

func TestCollector_RecordLLMRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordLLMRequest(
		"hf-router",
		"meta-llama/Llama-3.2-3B-Instruct",
		"success",
		500*time.Millisecond,
		100, // prompt tokens
		50,  // completion tokens
	)

	assert.Greater(t, testutil.CollectAndCount(collector.llmRequestsTotal), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.llmTokensUsed), 0)
}

func TestCollector_RecordIntentClassification(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordIntentClassification("refund_request", "llm", 800*time.Millisecond)
	collector.RecordIntentClassification("support_request", "fallback", time.Millisecond)

	assert.Greater(t, testutil.CollectAndCount(collector.intentClassificationsTotal), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.intentClassificationSeconds), 0)
}

func TestCollector_RecordAgentDispatch(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordAgentDispatch("data-agent", "get_customer_info", "success", time.Second)
	collector.RecordEscalation("refund_request")

	assert.Greater(t, testutil.CollectAndCount(collector.agentDispatchesTotal), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.agentEscalationsTotal), 0)
}

func TestCollector_RecordMCPToolCall(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordMCPToolCall("get_customer", "success", 20*time.Millisecond)

	assert.Greater(t, testutil.CollectAndCount(collector.mcpToolCallsTotal), 0)
}

func TestCollector_RecordDatabaseQuery(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordDBQuery("careflow", "SELECT", 20*time.Millisecond)
	collector.RecordDBConnections("careflow", 10, 5)

	assert.Greater(t, testutil.CollectAndCount(collector.dbQueryDuration), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.dbConnectionsOpen), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.dbConnectionsIdle), 0)
}

func TestCollector_RecordTasks(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordTaskStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.tasksInFlight))

	collector.RecordTaskFinished("completed")
	assert.Equal(t, 0.0, testutil.ToFloat64(collector.tasksInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.tasksTotal.WithLabelValues("completed")))
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			collector.RecordHTTPRequest("POST", "/query", 200, 100*time.Millisecond, 1024, 2048)
			collector.RecordLLMRequest("hf-router", "meta-llama/Llama-3.2-3B-Instruct", "success", 500*time.Millisecond, 100, 50)
			collector.RecordMCPToolCall("list_customers", "success", 5*time.Millisecond)
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	assert.Greater(t, testutil.CollectAndCount(collector.httpRequestsTotal), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.llmRequestsTotal), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.mcpToolCallsTotal), 0)

	assert.Equal(t, 30.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "/query", "2xx"))+
		testutil.ToFloat64(collector.llmRequestsTotal.WithLabelValues("hf-router", "meta-llama/Llama-3.2-3B-Instruct", "success"))+
		testutil.ToFloat64(collector.mcpToolCallsTotal.WithLabelValues("list_customers", "success")))
}
