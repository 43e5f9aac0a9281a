package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/careflow/persistence"
	"github.com/BaSui01/careflow/types"
	"go.uber.org/zap"
)

// Handler 处理按意图分发的入站信封.
// 返回的错误作为协议级错误信封回给调用方, 传输层保持 200.
type Handler func(ctx context.Context, msg *Message) (*Message, error)

// Server 定义 A2A 服务器操作的接口.
type Server interface {
	// RegisterHandler 为某个意图注册处理器. "*" 匹配所有未注册的意图.
	RegisterHandler(intent string, h Handler)
	// SetCard 设置在发现端点提供的代理卡.
	SetCard(card *AgentCard)
	// ServeHTTP 实现 http.Handler 来服务 A2A 请求.
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// ServerConfig 持有 A2A 服务器的配置.
type ServerConfig struct {
	// AgentID 是此服务器所代表代理的标识符.
	AgentID string
	// RequestTimeout 是同步请求处理的超时.
	RequestTimeout time.Duration
	// TaskTimeout 是异步任务执行的超时.
	TaskTimeout time.Duration
	// MaxBodyBytes 是请求体的大小上限.
	MaxBodyBytes int64
	// EnableAuth 开启对入站请求的认证.
	EnableAuth bool
	// AuthToken 是 EnableAuth 开启时预期的令牌.
	AuthToken string
	// Logger 是日志实例.
	Logger *zap.Logger
}

// DefaultServerConfig 返回带有合理默认值的服务器配置.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		AgentID:        "agent",
		RequestTimeout: 30 * time.Second,
		TaskTimeout:    60 * time.Second,
		MaxBodyBytes:   1 << 20,
		EnableAuth:     false,
		Logger:         zap.NewNop(),
	}
}

// HTTPServer 是 Server 基于 HTTP 的默认实现.
// 异步任务状态通过 persistence.TaskStore 持久化, 服务重启后仍可轮询.
type HTTPServer struct {
	config *ServerConfig
	logger *zap.Logger

	// handlers 按意图存储已注册的处理器
	handlers   map[string]Handler
	handlersMu sync.RWMutex

	// card 是发现端点提供的代理卡
	card   *AgentCard
	cardMu sync.RWMutex

	// tasks 为异步任务提供持久化存储
	tasks persistence.TaskStore
}

// NewHTTPServer 以给定的配置创建新的 HTTPServer, 默认使用内存任务存储.
func NewHTTPServer(config *ServerConfig) *HTTPServer {
	if config == nil {
		config = DefaultServerConfig()
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = 60 * time.Second
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 1 << 20
	}

	return &HTTPServer{
		config:   config,
		logger:   config.Logger,
		handlers: make(map[string]Handler),
		tasks:    persistence.NewMemoryTaskStore(persistence.DefaultConfig()),
	}
}

// NewHTTPServerWithTaskStore 创建使用给定任务存储的新 HTTPServer.
func NewHTTPServerWithTaskStore(config *ServerConfig, store persistence.TaskStore) *HTTPServer {
	server := NewHTTPServer(config)
	if store != nil {
		server.tasks = store
	}
	return server
}

// SetTaskStore 设置异步任务的持久化存储.
func (s *HTTPServer) SetTaskStore(store persistence.TaskStore) {
	if store != nil {
		s.tasks = store
	}
}

// RegisterHandler 为某个意图注册处理器. "*" 匹配所有未注册的意图.
func (s *HTTPServer) RegisterHandler(intent string, h Handler) {
	s.handlersMu.Lock()
	s.handlers[intent] = h
	s.handlersMu.Unlock()

	s.logger.Debug("handler registered",
		zap.String("agent_id", s.config.AgentID),
		zap.String("intent", intent),
	)
}

// SetCard 设置在发现端点提供的代理卡.
func (s *HTTPServer) SetCard(card *AgentCard) {
	s.cardMu.Lock()
	s.card = card
	s.cardMu.Unlock()
}

// handlerFor 检索某个意图的处理器, 没有精确匹配时回退到 "*".
func (s *HTTPServer) handlerFor(intent string) (Handler, bool) {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()

	if h, ok := s.handlers[intent]; ok {
		return h, true
	}
	if h, ok := s.handlers["*"]; ok {
		return h, true
	}
	return nil, false
}

// ServeHTTP 实现 http.Handler 来服务 A2A 请求.
func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.config.EnableAuth {
		if !s.authenticate(r) {
			s.writeError(w, http.StatusUnauthorized, ErrAuthFailed)
			return
		}
	}

	path := r.URL.Path
	method := r.Method

	switch {
	case path == "/.well-known/agent.json" && method == http.MethodGet:
		s.handleAgentCard(w, r)
	case path == "/agent_card" && method == http.MethodGet:
		// 旧版发现路径的别名
		s.handleAgentCard(w, r)
	case path == "/a2a/messages" && method == http.MethodPost:
		s.handleSyncMessage(w, r)
	case path == "/a2a/messages/async" && method == http.MethodPost:
		s.handleAsyncMessage(w, r)
	case strings.HasPrefix(path, "/a2a/tasks/") && strings.HasSuffix(path, "/result") && method == http.MethodGet:
		s.handleTaskResult(w, r)
	case path == "/health" && method == http.MethodGet:
		s.handleHealth(w, r)
	default:
		s.writeError(w, http.StatusNotFound, fmt.Errorf("endpoint not found: %s %s", method, path))
	}
}

// authenticate 检查请求是否通过认证.
func (s *HTTPServer) authenticate(r *http.Request) bool {
	if !s.config.EnableAuth {
		return true
	}

	auth := r.Header.Get("Authorization")
	if auth == "" {
		return false
	}

	// 支持 "Bearer <token>" 格式
	if strings.HasPrefix(auth, "Bearer ") {
		token := strings.TrimPrefix(auth, "Bearer ")
		return token == s.config.AuthToken
	}

	return auth == s.config.AuthToken
}

// handleAgentCard 处理 GET /.well-known/agent.json 和 GET /agent_card.
func (s *HTTPServer) handleAgentCard(w http.ResponseWriter, _ *http.Request) {
	s.cardMu.RLock()
	card := s.card
	s.cardMu.RUnlock()

	if card == nil {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("agent card not configured"))
		return
	}

	s.writeJSON(w, http.StatusOK, card)
}

// handleHealth 处理 GET /health.
func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"agent":  s.config.AgentID,
	})
}

// handleSyncMessage 处理 POST /a2a/messages (同步).
func (s *HTTPServer) handleSyncMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := s.parseMessage(w, r)
	if err != nil {
		s.writeProtocolError(w, err)
		return
	}

	handler, ok := s.handlerFor(msg.Intent)
	if !ok {
		unsupported := types.NewError(types.ErrIntentUnsupported,
			fmt.Sprintf("no handler registered for intent %q", msg.Intent))
		s.writeJSON(w, http.StatusOK, msg.CreateError(unsupported.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()

	start := time.Now()
	s.logger.Info("handling message",
		zap.String("message_id", msg.ID),
		zap.String("intent", msg.Intent),
		zap.String("from", msg.From),
	)

	reply, err := handler(ctx, msg)
	if err != nil {
		// 处理器错误作为协议错误搭乘信封, 传输层保持 200
		s.logger.Warn("handler failed",
			zap.String("message_id", msg.ID),
			zap.String("intent", msg.Intent),
			zap.Error(err),
		)
		s.writeJSON(w, http.StatusOK, msg.CreateError(err.Error()))
		return
	}
	if reply == nil {
		reply = msg.CreateReply(MessageTypeResponse, nil)
	}

	s.logger.Info("message handled",
		zap.String("message_id", msg.ID),
		zap.String("intent", msg.Intent),
		zap.Duration("duration", time.Since(start)),
	)

	s.writeJSON(w, http.StatusOK, reply)
}

// handleAsyncMessage 处理 POST /a2a/messages/async.
func (s *HTTPServer) handleAsyncMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := s.parseMessage(w, r)
	if err != nil {
		s.writeProtocolError(w, err)
		return
	}

	handler, ok := s.handlerFor(msg.Intent)
	if !ok {
		unsupported := types.NewError(types.ErrIntentUnsupported,
			fmt.Sprintf("no handler registered for intent %q", msg.Intent))
		s.writeJSON(w, http.StatusOK, msg.CreateError(unsupported.Error()))
		return
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to serialize message: %w", err))
		return
	}

	task := &persistence.Task{
		AgentID: s.config.AgentID,
		Intent:  msg.Intent,
		Status:  persistence.TaskStatusPending,
		Request: raw,
	}
	if err := s.tasks.Save(r.Context(), task); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to accept task: %w", err))
		return
	}

	go s.executeAsyncTask(task.ID, msg, handler)

	s.logger.Info("async task accepted",
		zap.String("task_id", task.ID),
		zap.String("intent", msg.Intent),
		zap.String("from", msg.From),
	)

	s.writeJSON(w, http.StatusAccepted, AsyncResponse{
		TaskID:  task.ID,
		Status:  "accepted",
		Message: "Task accepted for processing",
	})
}

// executeAsyncTask 在后台运行处理器并把结果写入任务存储.
func (s *HTTPServer) executeAsyncTask(taskID string, msg *Message, handler Handler) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.TaskTimeout)
	defer cancel()

	if err := s.tasks.UpdateStatus(ctx, taskID, persistence.TaskStatusRunning, nil, ""); err != nil {
		s.logger.Warn("failed to mark task running",
			zap.String("task_id", taskID),
			zap.Error(err),
		)
	}

	reply, err := handler(ctx, msg)

	var (
		status persistence.TaskStatus
		result json.RawMessage
		errMsg string
	)
	switch {
	case err == nil:
		if reply == nil {
			reply = msg.CreateReply(MessageTypeResponse, nil)
		}
		if result, err = json.Marshal(reply); err != nil {
			status = persistence.TaskStatusFailed
			result = nil
			errMsg = fmt.Sprintf("failed to serialize result: %v", err)
		} else {
			status = persistence.TaskStatusCompleted
		}
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil:
		status = persistence.TaskStatusTimeout
		errMsg = err.Error()
	default:
		status = persistence.TaskStatusFailed
		errMsg = err.Error()
	}

	// 处理器可能已经耗尽了执行上下文, 状态写入用新的上下文
	updateCtx, updateCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer updateCancel()

	if err := s.tasks.UpdateStatus(updateCtx, taskID, status, result, errMsg); err != nil {
		s.logger.Error("failed to record task result",
			zap.String("task_id", taskID),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("async task finished",
		zap.String("task_id", taskID),
		zap.String("status", string(status)),
	)
}

// handleTaskResult 处理 GET /a2a/tasks/{taskID}/result.
func (s *HTTPServer) handleTaskResult(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/a2a/tasks/")
	taskID := strings.TrimSuffix(path, "/result")

	if taskID == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("missing task_id"))
		return
	}

	task, err := s.tasks.Get(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID))
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	switch task.Status {
	case persistence.TaskStatusPending, persistence.TaskStatusRunning:
		s.writeJSON(w, http.StatusAccepted, AsyncResponse{
			TaskID:  taskID,
			Status:  string(task.Status),
			Message: "Task is still processing",
		})
	case persistence.TaskStatusCompleted:
		if len(task.Result) == 0 {
			s.writeJSON(w, http.StatusOK, s.taskErrorEnvelope(task, "task completed without result"))
			return
		}
		// 存储的结果已经是序列化的信封, 原样转发
		s.writeJSON(w, http.StatusOK, task.Result)
	case persistence.TaskStatusFailed, persistence.TaskStatusTimeout:
		s.writeJSON(w, http.StatusOK, s.taskErrorEnvelope(task, task.Error))
	default:
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("unknown task status: %s", task.Status))
	}
}

// taskErrorEnvelope 为失败的任务构造错误信封, 尽量复用原始请求的寻址.
func (s *HTTPServer) taskErrorEnvelope(task *persistence.Task, text string) *Message {
	var req Message
	if len(task.Request) > 0 {
		if err := json.Unmarshal(task.Request, &req); err == nil {
			return req.CreateError(text)
		}
	}
	return NewMessage(MessageTypeError, s.config.AgentID, "", task.Intent, map[string]any{"error": text})
}

// parseMessage 解析并验证请求体中的 A2A 信封, 同时应用大小限制.
func (s *HTTPServer) parseMessage(w http.ResponseWriter, r *http.Request) (*Message, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrMessageTooLarge, maxErr.Limit)
		}
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	return ParseMessage(body)
}

// writeProtocolError 为无法回复的请求写出尽力而为的错误信封.
func (s *HTTPServer) writeProtocolError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, ErrMessageTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}

	s.logger.Warn("rejected message",
		zap.Int("status", status),
		zap.Error(err),
	)

	envelope := NewMessage(MessageTypeError, s.config.AgentID, "", "", map[string]any{"error": err.Error()})
	s.writeJSON(w, status, envelope)
}

// CleanupExpiredTasks 从任务存储中删除超过保留期的终态任务.
func (s *HTTPServer) CleanupExpiredTasks(ctx context.Context, maxAge time.Duration) int {
	removed, err := s.tasks.Cleanup(ctx, maxAge)
	if err != nil {
		s.logger.Warn("failed to cleanup task store", zap.Error(err))
		return 0
	}
	return removed
}

// StartCleanupLoop 启动后台 goroutine 定期清理过期任务, 直到上下文取消.
func (s *HTTPServer) StartCleanupLoop(ctx context.Context, interval, maxAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if count := s.CleanupExpiredTasks(ctx, maxAge); count > 0 {
					s.logger.Debug("cleaned up expired tasks", zap.Int("count", count))
				}
			}
		}
	}()
}

// TaskStats 返回任务存储的统计数据.
func (s *HTTPServer) TaskStats(ctx context.Context) (*persistence.TaskStats, error) {
	return s.tasks.Stats(ctx)
}

// Close 关闭底层任务存储.
func (s *HTTPServer) Close() error {
	return s.tasks.Close()
}

// writeJSON 写出 JSON 响应.
func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

// writeError 写出普通的错误响应.
func (s *HTTPServer) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Warn("request error",
		zap.Int("status", status),
		zap.Error(err),
	)

	s.writeJSON(w, status, map[string]string{
		"error": err.Error(),
	})
}

// 确保 HTTPServer 实现 Server 接口.
var _ Server = (*HTTPServer)(nil)
