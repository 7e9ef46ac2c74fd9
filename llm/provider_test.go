package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrain_AssemblesTextAndToolCalls(t *testing.T) {
	events := make(chan StreamEvent, 16)
	events <- TextDelta("hel")
	events <- TextDelta("lo")
	events <- ToolCallStart("t1", "read")
	events <- ToolCallDelta("t1", `{"path":`)
	events <- ToolCallDelta("t1", `"a"}`)
	events <- ToolCallEnd("t1")
	events <- UsageEvent(Usage{InputTokens: 3, OutputTokens: 5})
	events <- Done(StopToolUse)
	close(events)

	resp, err := Drain(context.Background(), &Stream{Events: events})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text)
	assert.Equal(t, StopToolUse, resp.Reason)
	assert.Equal(t, Usage{InputTokens: 3, OutputTokens: 5}, resp.Usage)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "t1", resp.ToolCalls[0].ID)
	assert.Equal(t, `{"path":"a"}`, resp.ToolCalls[0].Arguments)
}

func TestDrain_ReturnsErrorEvent(t *testing.T) {
	events := make(chan StreamEvent, 4)
	events <- TextDelta("partial")
	events <- Error(assert.AnError)
	close(events)

	resp, err := Drain(context.Background(), &Stream{Events: events})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, "partial", resp.Text)
}

func TestDrain_MultipleToolCallsPreserveOrder(t *testing.T) {
	events := make(chan StreamEvent, 16)
	events <- ToolCallStart("t1", "a")
	events <- ToolCallStart("t2", "b")
	events <- ToolCallDelta("t2", "x")
	events <- ToolCallDelta("t1", "y")
	events <- Done(StopToolUse)
	close(events)

	resp, err := Drain(context.Background(), &Stream{Events: events})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, "t1", resp.ToolCalls[0].ID)
	assert.Equal(t, "y", resp.ToolCalls[0].Arguments)
	assert.Equal(t, "t2", resp.ToolCalls[1].ID)
	assert.Equal(t, "x", resp.ToolCalls[1].Arguments)
}
