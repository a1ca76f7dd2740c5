package ai

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON_StripsFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  \n{\"a\":1}\n  ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.input))
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Text string `json:"text"`
	}
	err := DecodeJSON("```json\n{\"text\":\"hello\"}\n```", &out)
	require.NoError(t, err)
	assert.Equal(t, "hello", out.Text)
}

func TestDecodeJSON_RepairsUnquotedKeys(t *testing.T) {
	var out map[string]string
	err := DecodeJSON(`{text": "hello", kind": "greeting"}`, &out)
	require.NoError(t, err)
	assert.Equal(t, "hello", out["text"])
	assert.Equal(t, "greeting", out["kind"])
}

func TestDecodeJSON_ParseFailure(t *testing.T) {
	var out map[string]string
	err := DecodeJSON("definitely not json", &out)
	require.Error(t, err)

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, KindParse, pe.Kind)
	assert.False(t, pe.Retryable())
}
