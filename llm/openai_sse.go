package llm

import (
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// openaiDecoder turns go-openai's choices[].delta stream frames into the
// normalized StreamEvent alphabet. The wire variant identifies tool-call
// deltas by an integer index (ToolCall.Index) rather than a stable id on
// every fragment, so the decoder maintains the same positional-index-to-id
// map spec §4.1 requires, keyed here by index instead of content-block
// index since OpenAI has no separate content_block_start frame: the id
// arrives (once) on the delta that starts a new tool call.
type openaiDecoder struct {
	indexToID map[int]string
	started   map[int]bool
}

func newOpenAIDecoder() *openaiDecoder {
	return &openaiDecoder{indexToID: make(map[int]string), started: make(map[int]bool)}
}

func (d *openaiDecoder) decodeChoice(delta openai.ChatCompletionStreamChoiceDelta) []StreamEvent {
	var out []StreamEvent

	if delta.Content != "" {
		out = append(out, TextDelta(delta.Content))
	}

	for _, tc := range delta.ToolCalls {
		index := 0
		if tc.Index != nil {
			index = *tc.Index
		}
		id, known := d.indexToID[index]
		if tc.ID != "" {
			id = cleanToolCallName(tc.ID)
			d.indexToID[index] = id
			known = true
		}
		if !known {
			continue
		}
		if !d.started[index] && tc.Function.Name != "" {
			d.started[index] = true
			out = append(out, ToolCallStart(id, cleanToolCallName(tc.Function.Name)))
		}
		if tc.Function.Arguments != "" {
			out = append(out, ToolCallDelta(id, tc.Function.Arguments))
		}
	}

	return out
}

// cleanToolCallName strips the rare malformed prefixes some
// OpenAI-compatible endpoints emit on tool/function names.
func cleanToolCallName(name string) string {
	for _, prefix := range []string{"tools.", "tool.", "functions.", "function."} {
		name = strings.TrimPrefix(name, prefix)
	}
	return name
}

func openaiStopReason(reason openai.FinishReason) StopReason {
	switch reason {
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return StopToolUse
	case openai.FinishReasonLength:
		return StopMaxTokens
	case openai.FinishReasonStop:
		return StopStopSequence
	default:
		return StopEndTurn
	}
}

func openaiUsage(u *openai.Usage) Usage {
	if u == nil {
		return Usage{}
	}
	return Usage{InputTokens: u.PromptTokens, OutputTokens: u.CompletionTokens}
}
