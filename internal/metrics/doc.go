// 版权所有 2025 CareFlow Authors. 版权所有。
// 根据 Apache License 2.0 许可证授权。

/*
包 metrics 提供基于 Prometheus 的客服网格指标采集，覆盖 HTTP、
LLM、意图分类、Agent 分发、MCP 工具、数据库与异步任务七个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，所有指标按 namespace（默认 careflow）隔离，
由独立的 metrics 端口经 promhttp 暴露。

# 主要能力

  - HTTP 指标：请求总数、耗时、请求/响应体大小，
    状态码归类为 2xx/3xx/4xx/5xx。
  - LLM 指标：请求总数、耗时、Token 用量（prompt/completion），
    按 provider/model 分组。
  - 意图分类指标：分类次数与耗时，source 区分 llm 与 fallback，
    可直接观察降级比例。
  - Agent 分发指标：路由代理向数据/支持代理的分发次数、耗时、
    升级（escalation）计数。
  - MCP 工具指标：工具调用次数与耗时，按 tool 分组。
  - 数据库指标：连接数 Gauge 与查询耗时 Histogram。
  - 异步任务指标：在途任务 Gauge 与按终态分组的任务总数。
*/
package metrics
