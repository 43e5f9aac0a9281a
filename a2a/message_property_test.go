package a2a

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// genMessageType 生成一个随机有效的消息类型.
func genMessageType() *rapid.Generator[MessageType] {
	return rapid.SampledFrom([]MessageType{
		MessageTypeRequest,
		MessageTypeResponse,
		MessageTypeError,
		MessageTypeStatus,
	})
}

// genAgentID 生成有效的代理标识符.
func genAgentID() *rapid.Generator[string] {
	return rapid.StringMatching(`[a-z][a-z0-9_]{2,30}`)
}

// genIntent 生成有效的意图名.
func genIntent() *rapid.Generator[string] {
	return rapid.SampledFrom([]string{
		"get_customer_info",
		"get_customer_history",
		"update_email",
		"list_customers",
		"show_ticket_status",
		"escalate_issue",
		"refund_request",
		"cancel_subscription",
		"upgrade_request",
		"support_request",
	})
}

// genID 生成一个 UUID 形态的标识符.
func genID() *rapid.Generator[string] {
	return rapid.StringMatching(`[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}`)
}

// genTimestamp 在合理范围内生成一个 UTC 时间戳.
func genTimestamp() *rapid.Generator[time.Time] {
	return rapid.Custom(func(t *rapid.T) time.Time {
		year := rapid.IntRange(2020, 2030).Draw(t, "year")
		month := rapid.IntRange(1, 12).Draw(t, "month")
		day := rapid.IntRange(1, 28).Draw(t, "day")
		hour := rapid.IntRange(0, 23).Draw(t, "hour")
		minute := rapid.IntRange(0, 59).Draw(t, "minute")
		second := rapid.IntRange(0, 59).Draw(t, "second")
		return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	})
}

// genPayload 生成简单的可 JSON 序列化有效载荷.
func genPayload() *rapid.Generator[any] {
	return rapid.Custom(func(t *rapid.T) any {
		payloadType := rapid.IntRange(0, 4).Draw(t, "payloadType")
		switch payloadType {
		case 0:
			return rapid.StringMatching(`[a-zA-Z0-9 ]{1,80}`).Draw(t, "stringPayload")
		case 1:
			return rapid.Float64Range(-1e9, 1e9).Draw(t, "numberPayload")
		case 2:
			return rapid.Bool().Draw(t, "boolPayload")
		case 3:
			numKeys := rapid.IntRange(1, 5).Draw(t, "numKeys")
			m := make(map[string]any)
			for range numKeys {
				key := rapid.StringMatching(`[a-z][a-z_]{1,10}`).Draw(t, "mapKey")
				m[key] = rapid.StringMatching(`[a-zA-Z0-9]{1,20}`).Draw(t, "mapValue")
			}
			return m
		default:
			return nil
		}
	})
}

// genMessage 从字段生成器组装一个通过验证的信封.
func genMessage() *rapid.Generator[*Message] {
	return rapid.Custom(func(t *rapid.T) *Message {
		return &Message{
			ID:            genID().Draw(t, "id"),
			Type:          genMessageType().Draw(t, "type"),
			From:          genAgentID().Draw(t, "from"),
			To:            genAgentID().Draw(t, "to"),
			Intent:        genIntent().Draw(t, "intent"),
			Payload:       genPayload().Draw(t, "payload"),
			CorrelationID: genID().Draw(t, "correlationID"),
			Timestamp:     genTimestamp().Draw(t, "timestamp"),
		}
	})
}

func TestProperty_Message_JSONRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		msg := genMessage().Draw(rt, "msg")
		require.NoError(rt, msg.Validate(), "generated message should be valid")

		data, err := msg.ToJSON()
		require.NoError(rt, err, "serialization should not fail")

		parsed, err := ParseMessage(data)
		require.NoError(rt, err, "round-trip should parse successfully")

		assert.Equal(rt, msg.ID, parsed.ID, "message_id should survive the round-trip")
		assert.Equal(rt, msg.Type, parsed.Type, "type should survive the round-trip")
		assert.Equal(rt, msg.From, parsed.From, "from should survive the round-trip")
		assert.Equal(rt, msg.To, parsed.To, "to should survive the round-trip")
		assert.Equal(rt, msg.Intent, parsed.Intent, "intent should survive the round-trip")
		assert.Equal(rt, msg.CorrelationID, parsed.CorrelationID, "correlation_id should survive the round-trip")
		assert.True(rt, msg.Timestamp.Equal(parsed.Timestamp), "timestamp should survive the round-trip")

		if msg.Payload != nil {
			expected, err := json.Marshal(msg.Payload)
			require.NoError(rt, err)
			actual, err := json.Marshal(parsed.Payload)
			require.NoError(rt, err)
			assert.JSONEq(rt, string(expected), string(actual), "payload should survive the round-trip")
		}
	})
}

func TestProperty_CreateReply_Invariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		msg := genMessage().Draw(rt, "msg")
		replyType := genMessageType().Draw(rt, "replyType")
		payload := genPayload().Draw(rt, "payload")

		reply := msg.CreateReply(replyType, payload)

		assert.Equal(rt, msg.CorrelationID, reply.CorrelationID, "reply should preserve the correlation id")
		assert.Equal(rt, msg.To, reply.From, "reply sender should be the original recipient")
		assert.Equal(rt, msg.From, reply.To, "reply recipient should be the original sender")
		assert.Equal(rt, msg.Intent, reply.Intent, "reply should carry the original intent")
		assert.NotEqual(rt, msg.ID, reply.ID, "reply should get a fresh message id")
		assert.NoError(rt, reply.Validate(), "reply should always be a valid message")
		assert.Equal(rt, time.UTC, reply.Timestamp.Location(), "reply timestamp should be UTC")
	})
}

func TestProperty_Constructors_AlwaysValidate(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		msgType := genMessageType().Draw(rt, "msgType")
		from := genAgentID().Draw(rt, "from")
		to := genAgentID().Draw(rt, "to")
		intent := genIntent().Draw(rt, "intent")
		payload := genPayload().Draw(rt, "payload")

		msg := NewMessage(msgType, from, to, intent, payload)
		assert.NoError(rt, msg.Validate(), "constructor output should always validate")
		assert.Equal(rt, time.UTC, msg.Timestamp.Location(), "constructor timestamp should be UTC")
		assert.NotEmpty(rt, msg.CorrelationID, "constructor should assign a correlation id")
	})
}

func TestProperty_CreateError_PayloadShape(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		msg := genMessage().Draw(rt, "msg")
		text := rapid.StringMatching(`[a-zA-Z0-9 :._-]{1,120}`).Draw(rt, "text")

		errReply := msg.CreateError(text)

		assert.Equal(rt, MessageTypeError, errReply.Type, "error reply should have the error type")
		assert.Equal(rt, msg.CorrelationID, errReply.CorrelationID, "error reply should preserve the correlation id")

		payload, ok := errReply.Payload.(map[string]any)
		require.True(rt, ok, "error payload should decode as a generic object")
		assert.Equal(rt, text, payload["error"], "error payload should carry the error text")
	})
}

func TestProperty_Clone_Independent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		msg := genMessage().Draw(rt, "msg")
		clone := msg.Clone()

		assert.Equal(rt, msg.ID, clone.ID, "clone should copy the message id")
		assert.Equal(rt, msg.CorrelationID, clone.CorrelationID, "clone should copy the correlation id")

		// mutating a cloned map payload must not leak into the original
		if m, ok := clone.Payload.(map[string]any); ok && len(m) > 0 {
			original, err := json.Marshal(msg.Payload)
			require.NoError(rt, err)

			for k := range m {
				m[k] = "mutated"
				break
			}

			after, err := json.Marshal(msg.Payload)
			require.NoError(rt, err)
			assert.JSONEq(rt, string(original), string(after), "original payload should be unaffected by clone mutation")
		}
	})
}
