// Package scenarios 内置六个典型客服对话场景, 用于演示与端到端验证。
//
// 每个场景向路由代理的 /query 发送一条客户消息, 并校验聚合响应的形状:
// 命中的意图、咨询过的下游代理、是否触发人工升级。
// scenarios 子命令按顺序驱动全部场景并打印结果,
// 集成测试则用进程内网格加假 LLM 服务器跑同一组场景。
package scenarios
