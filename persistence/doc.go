// 版权所有 2025 CareFlow Authors. 版权所有。
// 此源代码的使用由 Apache-2.0 许可规范，该许可可以
// 在 LICENSE 文件中找到。

/*
包 persistence 为异步 A2A 任务提供持久化存储抽象及多后端实现。

# 概述

A2A 异步路径在接受请求后立即返回任务 ID，真正的处理在后台进行。
本包负责记录每个任务的生命周期（pending → running →
completed/failed/timeout），使得提交方可以在之后轮询结果，
并支持在多副本部署下由任意节点应答轮询。

# 核心模型

  - Task: 一次异步交换的持久化记录，Request/Result 字段保存原始
    协议信封（json.RawMessage），存储层不解析其内容。
  - TaskStatus: 任务状态机，IsTerminal 判定终态。
  - Config: 统一配置，涵盖后端选择、键前缀与保留策略。

# 后端实现

  - Memory: 内存实现，带周期性保留清扫，适合单节点与测试。
  - Redis: 基于 go-redis 的实现，利用 Sorted Set 状态索引与
    Pipeline 批量操作，适合多副本生产部署。

通过工厂函数按配置创建存储实例：

	store, err := persistence.NewTaskStore(config)
*/
package persistence
