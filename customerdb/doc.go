// 版权所有 2025 CareFlow Authors. 版权所有。
// 根据 Apache License 2.0 许可证授权。

// Package customerdb 提供客服演示库的数据模型、存取与 MCP 工具注册。
//
// # 概述
//
// 两张表：customers（账户、档位、账单信息）与 tickets（工单，
// 外键级联删除）。枚举值统一小写校验：status active|disabled、
// tier standard|premium|enterprise、工单 status open|in_progress|resolved、
// priority low|medium|high。
//
// # 主要能力
//
//   - Store: 基于 PoolManager 的读写操作，错误统一为 types.Error 编码
//   - Seed / ResetDemoData: 写入固定演示数据（10 位客户、17 条工单）
//   - RegisterTools: 把七个数据库操作注册为 MCP 工具，
//     供数据代理与支持代理通过 stdio 子进程调用
//
// 工具结果与原始行结构一一对应；get_customer 对不存在的 id
// 返回 JSON null 而非错误。
package customerdb
