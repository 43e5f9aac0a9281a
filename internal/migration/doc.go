// 版权所有 2025 CareFlow Authors. 版权所有。
// 根据 Apache License 2.0 许可证授权。

/*
包 migration 提供客服数据库的 Schema 迁移管理，支持 PostgreSQL、
MySQL 与 SQLite 三种方言，基于 golang-migrate 实现。

# 概述

本包通过 embed.FS 内嵌各方言的 SQL 迁移文件（customers 与 tickets
两张表、索引与 updated_at 触发器），结合 golang-migrate 引擎实现
版本化的 Schema 变更。SQLite 走 modernc 纯 Go 驱动，开箱即用。

# 核心接口与类型

  - Migrator：迁移器接口，Up/Down/DownAll/Steps/Goto/Force/
    Version/Status/Info/Close 完整操作集。
  - DefaultMigrator：基于 golang-migrate 的默认实现。
  - Config / DatabaseType：迁移配置与方言枚举。
  - CLI：命令行交互层，careflow migrate 子命令的输出格式化。

# 工厂函数

NewMigratorFromConfig / NewMigratorFromDatabaseConfig / NewMigratorFromURL
支持从应用配置或显式 URL 创建迁移器；ParseDatabaseType 与
BuildDatabaseURL 负责方言解析与连接串拼接。
*/
package migration
