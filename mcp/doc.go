// Package mcp 实现 Model Context Protocol (MCP) 的 stdio 子集。
//
// 本包提供基于换行分隔 JSON-RPC 2.0 的 MCP 服务端与客户端，
// 覆盖 initialize、tools/list、tools/call 与 ping 方法，
// 供数据与支持 Agent 通过子进程调用工具服务器。
package mcp
