// Package llm defines the polymorphic provider contract (spec §2.4) and the
// normalized StreamEvent alphabet that every vendor decoder must emit
// (spec §4.1), generalized from sidekick's llm.ToolChat/ChatMessageDelta
// pairing into separate provider backends sharing one event stream shape.
package llm

import (
	"context"
	"encoding/json"

	"rot/tool"
)

// Request is what an Agent Core builds from the transcript, registered
// tools, and system prompt each BuildRequest state (spec §3 Request).
type Request struct {
	Messages    []RequestMessage
	Tools       []tool.Spec
	System      string
	MaxTokens   int
	Model       string
	Temperature *float32
	Thinking    *ThinkingConfig
}

// ThinkingConfig requests an extended-reasoning budget from providers that
// support it (Anthropic's "thinking" blocks).
type ThinkingConfig struct {
	BudgetTokens int
}

// RequestMessage is the provider-facing flattening of message.Message: a
// role plus the same ContentBlocks, since providers need the tagged-union
// shape (text/tool_use/tool_result) rather than sidekick's flat ChatMessage.
type RequestMessage struct {
	Role    string
	Content []RequestContentBlock
}

type RequestContentBlock struct {
	Type              string
	Text              string
	ToolCallID        string
	ToolCallName      string
	ToolCallArguments json.RawMessage
	ToolResultContent string
	ToolResultIsError bool
}

// StopReason is the closed set of terminal reasons a Done event may carry
// (spec §3: "reason ∈ {EndTurn, ToolUse, MaxTokens, StopSequence}").
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopToolUse      StopReason = "tool_use"
	StopMaxTokens    StopReason = "max_tokens"
	StopStopSequence StopReason = "stop_sequence"
)

// EventKind tags the closed StreamEvent alphabet (spec §3).
type EventKind string

const (
	EventTextDelta     EventKind = "text_delta"
	EventThinkingDelta EventKind = "thinking_delta"
	EventToolCallStart EventKind = "tool_call_start"
	EventToolCallDelta EventKind = "tool_call_delta"
	EventToolCallEnd   EventKind = "tool_call_end"
	EventUsage         EventKind = "usage"
	EventDone          EventKind = "done"
	EventError         EventKind = "error"
)

// StreamEvent is the normalized event every provider decoder emits,
// regardless of wire format (spec §4.1).
type StreamEvent struct {
	Kind EventKind

	Delta string // TextDelta, ThinkingDelta, ToolCallDelta

	ToolCallID   string // ToolCallStart, ToolCallDelta, ToolCallEnd
	ToolCallName string // ToolCallStart

	Usage Usage // Usage; also may ride along with Done

	Reason StopReason // Done

	Err error // Error
}

// Usage is the last-write-wins token accounting for a turn (spec §4.1:
// "the last Usage received is authoritative for the turn").
type Usage struct {
	InputTokens  int
	OutputTokens int
}

func TextDelta(delta string) StreamEvent { return StreamEvent{Kind: EventTextDelta, Delta: delta} }
func ThinkingDelta(delta string) StreamEvent {
	return StreamEvent{Kind: EventThinkingDelta, Delta: delta}
}
func ToolCallStart(id, name string) StreamEvent {
	return StreamEvent{Kind: EventToolCallStart, ToolCallID: id, ToolCallName: name}
}
func ToolCallDelta(id, delta string) StreamEvent {
	return StreamEvent{Kind: EventToolCallDelta, ToolCallID: id, Delta: delta}
}
func ToolCallEnd(id string) StreamEvent { return StreamEvent{Kind: EventToolCallEnd, ToolCallID: id} }
func UsageEvent(u Usage) StreamEvent    { return StreamEvent{Kind: EventUsage, Usage: u} }
func Done(reason StopReason) StreamEvent {
	return StreamEvent{Kind: EventDone, Reason: reason}
}
func Error(err error) StreamEvent { return StreamEvent{Kind: EventError, Err: err} }

// Stream is the lazy, single-consumer, forward-only sequence of spec §4.1:
// "terminates after yielding exactly one Done{reason} or an Error". Callers
// range over Events until the channel closes; a failure arrives as an
// EventError event on the channel.
type Stream struct {
	Events <-chan StreamEvent
	cancel context.CancelFunc
}

// Close releases the provider request's context. Safe to call after the
// stream has been fully drained.
func (s *Stream) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// PendingToolCall is the ephemeral per-turn assembly buffer of spec §3,
// promoted to a ToolCall content block on ToolCallEnd or Done.
type PendingToolCall struct {
	ID        string
	Name      string
	Arguments string
}
