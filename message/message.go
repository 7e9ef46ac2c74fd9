// Package message defines the immutable conversation data model: Message,
// the ContentBlock tagged union, and transcript helpers used by the agent
// core (spec §3).
package message

import (
	"time"

	"github.com/segmentio/ksuid"
)

// Role identifies who produced a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// Message is an immutable record once appended to a transcript. Ids are
// ksuid values, which sort lexicographically by creation time — the same
// property sidekick relies on ksuid for throughout its domain and flow
// packages.
type Message struct {
	ID        string         `json:"id"`
	ParentID  string         `json:"parentId,omitempty"`
	Timestamp int64          `json:"timestamp"`
	Role      Role           `json:"role"`
	Content   []ContentBlock `json:"content"`
}

// New constructs a Message with a fresh lexicographically time-ordered id.
func New(role Role, parentID string, content ...ContentBlock) Message {
	return Message{
		ID:        ksuid.New().String(),
		ParentID:  parentID,
		Timestamp: time.Now().Unix(),
		Role:      role,
		Content:   content,
	}
}

// TextProjection concatenates the text of text blocks in order, per spec §3.
func (m Message) TextProjection() string {
	var out string
	for _, b := range m.Content {
		if b.Type == BlockText {
			out += b.Text
		}
	}
	return out
}

// ToolCalls returns the ordered ToolCall blocks in the message.
func (m Message) ToolCalls() []ContentBlock {
	var out []ContentBlock
	for _, b := range m.Content {
		if b.Type == BlockToolCall {
			out = append(out, b)
		}
	}
	return out
}

// StripThinking returns a copy of m with Thinking blocks removed, for use
// when re-sending a transcript to a provider (invariant P3).
func (m Message) StripThinking() Message {
	out := m
	out.Content = nil
	for _, b := range m.Content {
		if b.Type != BlockThinking {
			out.Content = append(out.Content, b)
		}
	}
	return out
}

// Transcript is an ordered, append-only sequence of Messages.
type Transcript []Message

// Append returns a new transcript with msg appended; the caller owns
// ordering (spec §5: "the transcript is owned by the caller").
func (t Transcript) Append(msg Message) Transcript {
	return append(t, msg)
}

// PriorToolCall looks up a ToolCall content block by id anywhere earlier in
// the transcript, used to validate invariant P1 ("every ToolResult
// references a prior ToolCall").
func (t Transcript) PriorToolCall(id string) (ContentBlock, bool) {
	for _, m := range t {
		for _, b := range m.Content {
			if b.Type == BlockToolCall && b.ToolCallID == id {
				return b, true
			}
		}
	}
	return ContentBlock{}, false
}
