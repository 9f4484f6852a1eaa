/*
Package types 提供 evoflow 流水线的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 pipeline、evolution、store
等上层模块提供统一的类型契约。所有跨包共享的实体、枚举和错误码均定义于此，
以避免循环依赖。

# 核心类型

  - Plugin            — 租户拥有的可调用能力单元（含累计 XP / ROI）
  - AgentVersion      — 绑定到 Plugin 的版本化配置（prompt），同一时刻至多一个 active
  - ExecutionRecord   — 每次插件调用一条，只追加、不可变
  - VoteRecord        — 用户反馈事件（up / down + 可选评论），只追加
  - ChainResult       — 一次链式执行的临时结果（不落库）
  - Error / ErrorCode — 结构化错误体系，含 Retryable 标记

# 主要能力

  - 错误工具链：WrapError / AsError / IsErrorCode / IsRetryable / IsNotFound
  - 常用错误构造：NewNotFoundError / NewTimeoutError / NewRateLimitError 等
*/
package types
