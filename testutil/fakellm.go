package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// 🤖 假 LLM 服务器
// =============================================================================

// FakeLLMRequest 记录一次 /chat/completions 调用的关键字段。
type FakeLLMRequest struct {
	Model    string
	Messages []FakeLLMMessage
	JSONMode bool
}

// FakeLLMMessage 是请求里的一条消息。
type FakeLLMMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FakeLLM 是 OpenAI 兼容的假聊天补全服务器。
// 响应按入队顺序出队, 队列耗尽后返回 defaultContent。
type FakeLLM struct {
	mu             sync.Mutex
	server         *httptest.Server
	queue          []string
	requests       []FakeLLMRequest
	failStatus     int
	failMessage    string
	defaultContent string
}

// NewFakeLLMServer 启动假 LLM 服务器, 随测试结束自动关闭。
func NewFakeLLMServer(t *testing.T) *FakeLLM {
	t.Helper()
	f := &FakeLLM{defaultContent: "OK"}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

// URL 返回服务器根地址, 作为 Provider 的 BaseURL。
func (f *FakeLLM) URL() string {
	return f.server.URL
}

// Enqueue 追加一条将按序返回的回复文本。
func (f *FakeLLM) Enqueue(content string) *FakeLLM {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, content)
	return f
}

// EnqueueClassification 追加一条意图分类 JSON 响应。
func (f *FakeLLM) EnqueueClassification(intents []string, entities map[string]any) *FakeLLM {
	payload := map[string]any{
		"reasoning": "scripted classification",
		"intents":   intents,
		"entities":  entities,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return f.Enqueue(string(data))
}

// FailWith 让后续请求以给定状态码失败, 直到再次调用 Recover。
func (f *FakeLLM) FailWith(status int, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failStatus = status
	f.failMessage = message
}

// Recover 清除 FailWith 设置的失败注入。
func (f *FakeLLM) Recover() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failStatus = 0
	f.failMessage = ""
}

// Requests 返回已记录的请求副本。
func (f *FakeLLM) Requests() []FakeLLMRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeLLMRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

func (f *FakeLLM) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/chat/completions" || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var body struct {
		Model          string           `json:"model"`
		Messages       []FakeLLMMessage `json:"messages"`
		ResponseFormat *struct {
			Type string `json:"type"`
		} `json:"response_format"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.requests = append(f.requests, FakeLLMRequest{
		Model:    body.Model,
		Messages: body.Messages,
		JSONMode: body.ResponseFormat != nil && body.ResponseFormat.Type == "json_object",
	})

	if f.failStatus != 0 {
		status, message := f.failStatus, f.failMessage
		f.mu.Unlock()
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": message},
		})
		return
	}

	content := f.defaultContent
	if len(f.queue) > 0 {
		content = f.queue[0]
		f.queue = f.queue[1:]
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-fake",
		"model":   body.Model,
		"created": time.Now().Unix(),
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     10,
			"completion_tokens": 20,
			"total_tokens":      30,
		},
	})
}
