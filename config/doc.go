// Package config 提供客服网格的配置管理功能。
//
// 支持从 YAML 文件与 CAREFLOW_ 前缀环境变量加载配置，
// 优先级为 默认值 → 文件 → 环境变量；LLM API Key 为空时
// 回退读取 HF_TOKEN。Validate 返回可用 errors.Is 判别的
// 哨兵错误。
package config
