package a2a

import "errors"

// 代理卡验证错误.
var (
	// ErrCardMissingName 表示代理卡缺少名称.
	ErrCardMissingName = errors.New("agent card: missing name")
	// ErrCardMissingDescription 表示代理卡缺少描述.
	ErrCardMissingDescription = errors.New("agent card: missing description")
	// ErrCardMissingURL 表示代理卡缺少 URL.
	ErrCardMissingURL = errors.New("agent card: missing url")
	// ErrCardMissingVersion 表示代理卡缺少版本.
	ErrCardMissingVersion = errors.New("agent card: missing version")
)

// A2A 协议错误.
var (
	// ErrRemoteUnavailable 表示远程代理无法访问.
	ErrRemoteUnavailable = errors.New("a2a: remote agent unavailable")
	// ErrAuthFailed 表示认证失败.
	ErrAuthFailed = errors.New("a2a: authentication failed")
	// ErrInvalidMessage 表示信封格式无效.
	ErrInvalidMessage = errors.New("a2a: invalid message format")
	// ErrMessageTooLarge 表示请求体超过了大小限制.
	ErrMessageTooLarge = errors.New("a2a: message too large")
	// ErrTaskNotFound 表示请求的异步任务不存在.
	ErrTaskNotFound = errors.New("a2a: task not found")
	// ErrTaskNotReady 表示异步任务仍在处理中.
	ErrTaskNotReady = errors.New("a2a: task not ready")
)

// A2A 信封验证错误.
var (
	// ErrMessageMissingID 表示信封缺少 message_id.
	ErrMessageMissingID = errors.New("a2a message: missing message_id")
	// ErrMessageMissingType 表示信封缺少类型.
	ErrMessageMissingType = errors.New("a2a message: missing type")
	// ErrMessageInvalidType 表示信封类型无效.
	ErrMessageInvalidType = errors.New("a2a message: invalid type")
	// ErrMessageMissingFrom 表示信封缺少发送方.
	ErrMessageMissingFrom = errors.New("a2a message: missing from")
	// ErrMessageMissingTo 表示信封缺少接收方.
	ErrMessageMissingTo = errors.New("a2a message: missing to")
	// ErrMessageMissingCorrelation 表示信封缺少 correlation_id.
	ErrMessageMissingCorrelation = errors.New("a2a message: missing correlation_id")
)
