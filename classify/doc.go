// 版权所有 2025 CareFlow Authors. 版权所有。
// 根据 Apache License 2.0 许可证授权。

// Package classify 把用户的自然语言请求归类为路由意图。
//
// # 概述
//
// 路由代理分发前先经过本包：LLMClassifier 以 JSON Mode 提示模型
// 输出 reasoning / intents / entities 三段结构；模型失败或没有
// 给出可用意图时，KeywordClassifier 用关键词规则兜底。
// Chain 把两者串起来，保证任何输入都得到至少一个目录内意图。
//
// # 意图目录
//
// 十个意图固定不变，数据类四个路由到数据代理，
// 其余路由到支持代理。目录外的意图在进入路由前即被过滤。
package classify
