package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{
			name: "text only",
			msg:  New(RoleAssistant, "", Text("hello")),
		},
		{
			name: "leading text and tool call",
			msg: New(RoleAssistant, "parent-id",
				Text("leading text"),
				ToolCall("t1", "read", json.RawMessage(`{"path":"a"}`)),
			),
		},
		{
			name: "thinking block",
			msg:  New(RoleAssistant, "", Thinking("reasoning...", "sig")),
		},
		{
			name: "image block",
			msg:  New(RoleUser, "", Image("base64==", "image/png")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.msg)
			require.NoError(t, err)

			var got Message
			require.NoError(t, json.Unmarshal(data, &got))
			assert.Equal(t, tt.msg, got)
		})
	}
}

func TestMessage_TextProjection(t *testing.T) {
	m := New(RoleAssistant, "", Text("Hello, "), Text("world"))
	assert.Equal(t, "Hello, world", m.TextProjection())
}

func TestMessage_ToolCalls(t *testing.T) {
	m := New(RoleAssistant, "",
		Text("leading"),
		ToolCall("t1", "read", nil),
		ToolCall("t2", "grep", nil),
	)
	calls := m.ToolCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "t1", calls[0].ToolCallID)
	assert.Equal(t, "t2", calls[1].ToolCallID)
}

func TestMessage_StripThinking(t *testing.T) {
	m := New(RoleAssistant, "", Thinking("trace", ""), Text("answer"))
	stripped := m.StripThinking()
	require.Len(t, stripped.Content, 1)
	assert.Equal(t, BlockText, stripped.Content[0].Type)
}

func TestTranscript_PriorToolCall(t *testing.T) {
	var tr Transcript
	tr = tr.Append(New(RoleAssistant, "", ToolCall("t1", "read", nil)))

	block, ok := tr.PriorToolCall("t1")
	require.True(t, ok)
	assert.Equal(t, "read", block.ToolCallName)

	_, ok = tr.PriorToolCall("missing")
	assert.False(t, ok)
}

func TestContentBlock_Validate(t *testing.T) {
	assert.NoError(t, Text("x").Validate())
	assert.Error(t, ContentBlock{Type: "bogus"}.Validate())
}
