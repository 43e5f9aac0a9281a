// 版权所有 2025 CareFlow Authors. 版权所有。
// 根据 Apache License 2.0 许可证授权。

/*
包 llm 提供统一的大语言模型接入层。

# 概述

客服网格里 LLM 承担两件事：把用户问题分类为意图（JSON Mode、低温度），
以及为支持类操作生成自然语言回复（普通文本、较高温度）。
本包屏蔽上游服务商在鉴权、错误语义和冷启动行为上的差异，
对上层暴露一致的请求与响应模型。

# 核心接口

  - [Provider]：同步补全、健康检查与标识，具体实现见 providers 子包
  - [InstrumentedProvider]：装饰器，为任意 Provider 附加指标与日志
  - [ExtractJSON] / [DecodeJSON]：从模型输出中剥离围栏并提取 JSON 对象
  - [FirstChoice] / [FirstText]：响应取值辅助

# 错误语义

所有上游失败都折叠为 [Error]，携带错误码、HTTP 状态与可重试标记。
503 对应模型冷启动（[ErrModelWarmingUp]），providers/hfrouter
会等待预热窗口后自动重试一次。
*/
package llm
