package message

import (
	"encoding/json"
	"fmt"
)

// BlockType discriminates the ContentBlock tagged union.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockImage      BlockType = "image"
	BlockToolCall   BlockType = "tool_call"
	BlockToolResult BlockType = "tool_result"
	BlockThinking   BlockType = "thinking"
)

// ContentBlock is a tagged variant of a message's content. Exactly one of
// the type-specific fields is populated, matching the Type discriminant.
// This mirrors the shape of sidekick's llm.ChatMessageDelta union but
// generalizes it to a closed five-case content model instead of a flat
// text+tool-calls message.
type ContentBlock struct {
	Type BlockType `json:"type"`

	// Text holds the payload for BlockText.
	Text string `json:"text,omitempty"`

	// Image holds the payload for BlockImage.
	ImageData     string `json:"imageData,omitempty"`
	ImageMimeType string `json:"imageMimeType,omitempty"`

	// ToolCall holds the payload for BlockToolCall.
	ToolCallID        string          `json:"toolCallId,omitempty"`
	ToolCallName      string          `json:"toolCallName,omitempty"`
	ToolCallArguments json.RawMessage `json:"toolCallArguments,omitempty"`

	// ToolResult holds the payload for BlockToolResult.
	ToolResultCallID  string `json:"toolResultCallId,omitempty"`
	ToolResultContent string `json:"toolResultContent,omitempty"`
	ToolResultIsError bool   `json:"toolResultIsError,omitempty"`

	// Thinking holds the payload for BlockThinking. Thinking blocks are
	// never forwarded to a provider as input (invariant P3 / spec §3).
	ThinkingText      string `json:"thinkingText,omitempty"`
	ThinkingSignature string `json:"thinkingSignature,omitempty"`
}

func Text(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

func Image(data, mimeType string) ContentBlock {
	return ContentBlock{Type: BlockImage, ImageData: data, ImageMimeType: mimeType}
}

func ToolCall(id, name string, arguments json.RawMessage) ContentBlock {
	return ContentBlock{Type: BlockToolCall, ToolCallID: id, ToolCallName: name, ToolCallArguments: arguments}
}

func ToolResult(toolCallID, content string, isError bool) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolResultCallID: toolCallID, ToolResultContent: content, ToolResultIsError: isError}
}

func Thinking(text, signature string) ContentBlock {
	return ContentBlock{Type: BlockThinking, ThinkingText: text, ThinkingSignature: signature}
}

// Validate rejects a block whose discriminant doesn't match any known case.
func (b ContentBlock) Validate() error {
	switch b.Type {
	case BlockText, BlockImage, BlockToolCall, BlockToolResult, BlockThinking:
		return nil
	default:
		return fmt.Errorf("message: unknown content block type %q", b.Type)
	}
}
