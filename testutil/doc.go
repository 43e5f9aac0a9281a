// Copyright 2026 CareFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 CareFlow 测试的共享工具和辅助函数。

# 概述

testutil 包为整个项目的单元测试与集成测试提供统一的辅助能力，
避免各包重复实现相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 异步断言: AssertEventuallyTrue / WaitFor，支持超时轮询等待条件满足
  - 数据工具: MustJSON / MustParseJSON，简化测试数据构造
  - 假 LLM 服务器: NewFakeLLMServer 提供 OpenAI 兼容的
    /chat/completions 端点，按请求脚本化返回分类 JSON 或回复文案

# 子包

  - testutil/mocks: Mock 实现，包括 MockProvider（llm.Provider）与
    MockToolCaller（MCP 工具调用方），均支持脚本化响应与错误注入
  - testutil/fixtures: 测试数据工厂，提供十个意图的样例查询、
    预置分类结果与演示客户数据

# 使用示例

	ctx := testutil.TestContext(t)
	provider := mocks.NewMockProvider().WithClassification([]string{"refund_request"}, nil)
	resp, err := provider.Completion(ctx, req)
	require.NoError(t, err)
*/
package testutil
