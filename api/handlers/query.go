package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/careflow/a2a"
	"github.com/BaSui01/careflow/api"
)

// =============================================================================
// 🧭 查询编排 Handler
// =============================================================================

// QueryService 是路由代理暴露给 HTTP 层的能力。
// *router.Agent 满足此接口。
type QueryService interface {
	Query(ctx context.Context, req api.QueryRequest) (*api.QueryResponse, error)
	Peers(ctx context.Context) ([]*a2a.AgentCard, error)
}

// QueryHandler 查询编排入口处理器
type QueryHandler struct {
	service QueryService
	logger  *zap.Logger
}

// NewQueryHandler 创建查询处理器
func NewQueryHandler(service QueryService, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{
		service: service,
		logger:  logger.With(zap.String("component", "query_handler")),
	}
}

// HandleQuery 处理 POST /query 请求
// @Summary 客户查询编排
// @Description 分类查询意图并并行分发到专责代理，返回聚合结果
// @Tags 查询
// @Accept json
// @Produce json
// @Param request body api.QueryRequest true "查询请求"
// @Success 200 {object} Response{data=api.QueryResponse} "聚合结果"
// @Failure 400 {object} Response "请求无效"
// @Failure 500 {object} Response "编排失败"
// @Router /query [post]
func (h *QueryHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.QueryRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	resp, err := h.service.Query(r.Context(), req)
	if err != nil {
		WriteErrorFrom(w, err, h.logger)
		return
	}

	WriteSuccess(w, resp)
}

// HandleAgents 处理 GET /agents 请求
// @Summary 下游代理列表
// @Description 返回路由代理发现的下游代理卡
// @Tags 查询
// @Produce json
// @Success 200 {object} Response "代理卡列表"
// @Failure 503 {object} Response "下游代理不可达"
// @Router /agents [get]
func (h *QueryHandler) HandleAgents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cards, err := h.service.Peers(r.Context())
	if err != nil {
		h.logger.Warn("peer discovery failed", zap.Error(err))
		WriteErrorFrom(w, err, h.logger)
		return
	}

	WriteSuccess(w, map[string]any{"agents": cards})
}
