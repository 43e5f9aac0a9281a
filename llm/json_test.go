package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "plain object",
			input: `{"intent":"refund_request"}`,
			want:  `{"intent":"refund_request"}`,
		},
		{
			name:  "json fence",
			input: "```json\n{\"intent\":\"support_request\"}\n```",
			want:  `{"intent":"support_request"}`,
		},
		{
			name:  "bare fence",
			input: "```\n{\"a\":1}\n```",
			want:  `{"a":1}`,
		},
		{
			name:  "leading prose",
			input: `Here is the classification: {"intent":"update_email","confidence":0.9}`,
			want:  `{"intent":"update_email","confidence":0.9}`,
		},
		{
			name:  "trailing prose",
			input: `{"intent":"cancel_subscription"} Let me know if you need anything else.`,
			want:  `{"intent":"cancel_subscription"}`,
		},
		{
			name:  "nested object",
			input: `{"outer":{"inner":true}}`,
			want:  `{"outer":{"inner":true}}`,
		},
		{
			name:  "surrounding whitespace",
			input: "\n\n  {\"x\": 2}  \n",
			want:  `{"x": 2}`,
		},
		{
			name:    "no object",
			input:   "I could not classify that query.",
			wantErr: true,
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
		{
			name:    "unbalanced braces",
			input:   `{"intent": "refund_request"`,
			wantErr: true,
		},
		{
			name:    "garbage between braces",
			input:   `{not json at all}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := ExtractJSON(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(raw))
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}

	err := DecodeJSON("```json\n{\"intent\":\"get_customer_info\",\"confidence\":0.85}\n```", &out)
	require.NoError(t, err)
	assert.Equal(t, "get_customer_info", out.Intent)
	assert.InDelta(t, 0.85, out.Confidence, 1e-9)
}

func TestDecodeJSON_TypeMismatch(t *testing.T) {
	var out struct {
		Confidence float64 `json:"confidence"`
	}
	err := DecodeJSON(`{"confidence":"high"}`, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode model output")
}
