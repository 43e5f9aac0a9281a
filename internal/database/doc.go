// 版权所有 2025 CareFlow Authors. 版权所有。
// 根据 Apache License 2.0 许可证授权。

// Package database 提供数据库连接与连接池管理。
//
// # 概述
//
// 客服示例默认使用纯 Go 的 SQLite 驱动，零外部依赖即可运行；
// 同时保留 sqlite3(cgo)、MySQL、PostgreSQL 三种后端以便生产部署。
//
// # 主要能力
//
//   - Open: 按配置选择驱动并建立 gorm 连接
//   - PoolManager: 连接池参数、周期健康检查、统计信息
//   - WithTransaction / WithTransactionRetry: 事务封装与指数退避重试
//
// SQLite 在并发写入时会返回 "database is locked"，
// 重试判定将其视为瞬态错误。
package database
