// Copyright (c) CareFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 CareFlow 服务端程序入口。

# 概述

cmd/careflow 是客服网格的统一可执行入口。三个代理角色（router、data、
support）共用一个二进制，通过 serve --role 选择角色；mcp 子命令把客户
数据库工具服务器跑在 stdio 上；migrate 管理数据库 schema 与演示数据；
scenarios 驱动六个典型端到端对话。

# 核心类型

  - Server           — 主服务器，按角色装配代理并管理 HTTP、Metrics 双端口
  - Middleware        — HTTP 中间件函数签名 func(http.Handler) http.Handler
  - migrateFlags      — migrate 子命令共享的数据库定位参数

# 主要能力

  - 子命令：serve、mcp、migrate、scenarios、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
    CORS、RateLimiter（基于 IP）、MetricsMiddleware、OTelTracing、
    APIKeyAuth / JWTAuth（HS256）
  - 角色装配：router 挂 /query 与 /agents，data/support 只暴露 A2A 面
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 优雅关闭：信号监听 → 关闭 HTTP → 关闭 Metrics → 逆序清理依赖 → 冲刷遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
