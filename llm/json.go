package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON 从模型输出中提取一个 JSON 对象。
// 即使开启了 JSON Mode，小模型仍可能把对象包在 ```json 围栏
// 或解释性文字里，这里先剥离围栏，再截取最外层的花括号区间。
func ExtractJSON(text string) (json.RawMessage, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model output")
	}
	s = s[start : end+1]

	if !json.Valid([]byte(s)) {
		return nil, fmt.Errorf("model output is not valid JSON")
	}
	return json.RawMessage(s), nil
}

// DecodeJSON 提取模型输出中的 JSON 对象并反序列化到 v。
func DecodeJSON(text string, v any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode model output: %w", err)
	}
	return nil
}
