package a2a

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType 代表 A2A 信封的类型.
type MessageType string

const (
	// MessageTypeRequest 表示请求消息.
	MessageTypeRequest MessageType = "request"
	// MessageTypeResponse 表示响应消息.
	MessageTypeResponse MessageType = "response"
	// MessageTypeError 表示错误消息.
	MessageTypeError MessageType = "error"
	// MessageTypeStatus 表示状态更新消息.
	MessageTypeStatus MessageType = "status"
)

// IsValid 检查消息类型是否为有效的 A2A 消息类型.
func (t MessageType) IsValid() bool {
	switch t {
	case MessageTypeRequest, MessageTypeResponse, MessageTypeError, MessageTypeStatus:
		return true
	default:
		return false
	}
}

// String 返回消息类型的字符串表示.
func (t MessageType) String() string {
	return string(t)
}

// Message 代表代理间通信的 A2A 信封.
// 一次交换中的所有信封共享同一个 correlation_id.
type Message struct {
	// ID 是此消息的唯一标识符.
	ID string `json:"message_id"`
	// Type 表示消息类型(request, response, error, status).
	Type MessageType `json:"type"`
	// From 是发送代理的标识符.
	From string `json:"from"`
	// To 是接收代理的标识符.
	To string `json:"to"`
	// Intent 是请求代理执行的操作名.
	Intent string `json:"intent"`
	// Payload 包含消息数据.
	Payload any `json:"payload"`
	// CorrelationID 把请求和它的回复关联起来.
	CorrelationID string `json:"correlation_id"`
	// Timestamp 是消息创建时间.
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage 创建新的信封, 带有生成的 ID, 新的关联 ID 和当前时间戳.
func NewMessage(msgType MessageType, from, to, intent string, payload any) *Message {
	return &Message{
		ID:            uuid.New().String(),
		Type:          msgType,
		From:          from,
		To:            to,
		Intent:        intent,
		Payload:       payload,
		CorrelationID: uuid.New().String(),
		Timestamp:     time.Now().UTC(),
	}
}

// NewRequest 创建新的请求消息.
func NewRequest(from, to, intent string, payload any) *Message {
	return NewMessage(MessageTypeRequest, from, to, intent, payload)
}

// NewResponse 创建响应消息. correlationID 为空时生成新的关联 ID.
func NewResponse(from, to, intent string, payload any, correlationID string) *Message {
	msg := NewMessage(MessageTypeResponse, from, to, intent, payload)
	if correlationID != "" {
		msg.CorrelationID = correlationID
	}
	return msg
}

// NewError 创建错误消息, 有效载荷为 {"error": text}.
func NewError(from, to, intent, text string, correlationID string) *Message {
	msg := NewMessage(MessageTypeError, from, to, intent, map[string]any{"error": text})
	if correlationID != "" {
		msg.CorrelationID = correlationID
	}
	return msg
}

// NewStatus 创建状态更新消息.
func NewStatus(from, to, intent string, payload any, correlationID string) *Message {
	msg := NewMessage(MessageTypeStatus, from, to, intent, payload)
	if correlationID != "" {
		msg.CorrelationID = correlationID
	}
	return msg
}

// Validate 检查信封是否具备所有必需字段和有效值.
func (m *Message) Validate() error {
	if m.ID == "" {
		return ErrMessageMissingID
	}
	if m.Type == "" {
		return ErrMessageMissingType
	}
	if !m.Type.IsValid() {
		return ErrMessageInvalidType
	}
	if m.From == "" {
		return ErrMessageMissingFrom
	}
	if m.To == "" {
		return ErrMessageMissingTo
	}
	if m.CorrelationID == "" {
		return ErrMessageMissingCorrelation
	}
	return nil
}

// IsRequest 检查是否为请求消息.
func (m *Message) IsRequest() bool {
	return m.Type == MessageTypeRequest
}

// IsResponse 检查是否为响应消息.
func (m *Message) IsResponse() bool {
	return m.Type == MessageTypeResponse
}

// IsError 检查是否为错误消息.
func (m *Message) IsError() bool {
	return m.Type == MessageTypeError
}

// IsStatus 检查是否为状态消息.
func (m *Message) IsStatus() bool {
	return m.Type == MessageTypeStatus
}

// CreateReply 创建此信封的回复: 交换收发方, 保留意图和关联 ID.
func (m *Message) CreateReply(msgType MessageType, payload any) *Message {
	return &Message{
		ID:            uuid.New().String(),
		Type:          msgType,
		From:          m.To,
		To:            m.From,
		Intent:        m.Intent,
		Payload:       payload,
		CorrelationID: m.CorrelationID,
		Timestamp:     time.Now().UTC(),
	}
}

// CreateError 创建错误类型的回复, 有效载荷为 {"error": text}.
func (m *Message) CreateError(text string) *Message {
	return m.CreateReply(MessageTypeError, map[string]any{"error": text})
}

// Clone 创建消息的深拷贝.
func (m *Message) Clone() *Message {
	clone := &Message{
		ID:            m.ID,
		Type:          m.Type,
		From:          m.From,
		To:            m.To,
		Intent:        m.Intent,
		CorrelationID: m.CorrelationID,
		Timestamp:     m.Timestamp,
	}

	// 有效载荷为映射或切片时通过 JSON 往返深拷贝
	if m.Payload != nil {
		data, err := json.Marshal(m.Payload)
		if err == nil {
			var payload any
			if err := json.Unmarshal(data, &payload); err == nil {
				clone.Payload = payload
			} else {
				clone.Payload = m.Payload
			}
		} else {
			clone.Payload = m.Payload
		}
	}

	return clone
}

// ToJSON 将信封序列化为 JSON 字节.
func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage 从 JSON 字节解析并验证一个信封.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
