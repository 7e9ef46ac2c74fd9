package llm

import (
	"encoding/json"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicMessages_MergesConsecutiveSameRole(t *testing.T) {
	msgs := []RequestMessage{
		{Role: "user", Content: []RequestContentBlock{{Type: "text", Text: "hi"}}},
		{Role: "tool", Content: []RequestContentBlock{{Type: "tool_result", ToolCallID: "t1", ToolResultContent: "contents"}}},
		{Role: "assistant", Content: []RequestContentBlock{{Type: "text", Text: "done"}}},
	}

	out, err := anthropicMessages(msgs)
	require.NoError(t, err)

	// user + tool both map to anthropic's "user" role and must merge into
	// one message; the trailing assistant message stays separate.
	require.Len(t, out, 2)
	assert.Equal(t, anthropic.MessageParamRoleUser, out[0].Role)
	assert.Len(t, out[0].Content, 2)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, out[1].Role)
}

func TestAnthropicMessages_KeepsToolCallWithUnrepairableArguments(t *testing.T) {
	msgs := []RequestMessage{
		{Role: "assistant", Content: []RequestContentBlock{{
			Type:              "tool_call",
			ToolCallID:        "t1",
			ToolCallName:      "read",
			ToolCallArguments: json.RawMessage(`{"path": "a.txt"`), // missing closing brace
		}}},
	}

	out, err := anthropicMessages(msgs)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Len(t, out[0].Content, 1)
}

func TestAnthropicStopReason(t *testing.T) {
	cases := map[anthropic.StopReason]StopReason{
		anthropic.StopReasonEndTurn:      StopEndTurn,
		anthropic.StopReasonToolUse:      StopToolUse,
		anthropic.StopReasonMaxTokens:    StopMaxTokens,
		anthropic.StopReasonStopSequence: StopStopSequence,
	}
	for in, want := range cases {
		assert.Equal(t, want, anthropicStopReason(in))
	}
}

func TestAnthropicUsage(t *testing.T) {
	u := anthropicUsage(anthropic.Usage{InputTokens: 10, OutputTokens: 20})
	assert.Equal(t, Usage{InputTokens: 10, OutputTokens: 20}, u)
}

func TestAnthropicDecoder_TracksIndexToID(t *testing.T) {
	d := newAnthropicDecoder()
	d.indexToID[0] = "t1"

	ev := d.decodeStop(0)
	require.Equal(t, EventToolCallEnd, ev.Kind)
	assert.Equal(t, "t1", ev.ToolCallID)

	// a text block index was never a tool call, so its stop is a no-op
	d.indexToID[1] = ""
	ev = d.decodeStop(1)
	assert.Equal(t, StreamEvent{}, ev)
}
