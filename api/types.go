package api

import "time"

// =============================================================================
// 查询编排类型
// =============================================================================

// QueryRequest 代表一次进入网格的客户查询。
// @Description 客户查询请求结构
type QueryRequest struct {
	// 查询文本
	Text string `json:"text" example:"Get customer information for ID 1" binding:"required"`
	// 客户 ID, 缺省时从分类实体或文本中的第一个整数推导
	CustomerID uint `json:"customer_id,omitempty" example:"1"`
}

// QueryResult 代表单个意图经过下游代理后的结果。
// @Description 单意图路由结果结构
type QueryResult struct {
	// 意图名
	Intent string `json:"intent" example:"get_customer_info"`
	// 结果状态 (ok 或 error)
	Status string `json:"status" example:"ok"`
	// 下游代理返回的数据, 错误时为错误文本
	Data any `json:"data"`
	// 是否需要人工升级
	RequiresEscalation bool `json:"requires_escalation" example:"false"`
}

// QueryResponse 代表聚合后的查询响应。
// @Description 聚合查询响应结构
type QueryResponse struct {
	// 原始查询文本
	Query string `json:"query" example:"Get customer information for ID 1"`
	// 各意图的路由结果, 顺序与分类输出一致
	Results []QueryResult `json:"results"`
	// 本次查询咨询过的代理, 按分发顺序去重
	AgentsConsulted []string `json:"agents_consulted" example:"customer_data_agent"`
	// 端到端耗时(毫秒)
	ElapsedMS int64 `json:"elapsed_ms" example:"412"`
}

// =============================================================================
// 运维类型
// =============================================================================

// VersionInfo 代表构建版本信息。
// @Description 版本信息结构
type VersionInfo struct {
	// 语义化版本号
	Version string `json:"version" example:"1.0.0"`
	// 构建时间
	BuildTime string `json:"build_time,omitempty" example:"2026-01-12T10:00:00Z"`
	// Git 提交哈希
	GitCommit string `json:"git_commit,omitempty" example:"a1b2c3d"`
	// 运行角色 (router, data, support)
	Role string `json:"role,omitempty" example:"router"`
}

// HealthReport 代表健康检查的聚合结果。
// @Description 健康检查响应结构
type HealthReport struct {
	// 总体状态 (healthy, degraded, unhealthy)
	Status string `json:"status" example:"healthy"`
	// 各检查项的状态
	Checks map[string]CheckResult `json:"checks,omitempty"`
	// 检查时间
	Timestamp time.Time `json:"timestamp"`
}

// CheckResult 代表单个健康检查项的结果。
// @Description 单项健康检查结果
type CheckResult struct {
	// 检查状态 (ok, error)
	Status string `json:"status" example:"ok"`
	// 失败原因
	Error string `json:"error,omitempty"`
	// 检查耗时
	Latency string `json:"latency,omitempty" example:"2ms"`
}
