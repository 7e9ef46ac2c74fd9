package llm

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
)

// anthropicDecoder turns the Anthropic SDK's typed streaming events into
// the normalized StreamEvent alphabet, maintaining the positional
// index-to-id map spec §4.1 requires for the "content_block_*ith positional
// index" wire variant: content_block_start carries both the index and the
// real tool-call id, and every later content_block_delta on that index
// must be attributed back to that id.
type anthropicDecoder struct {
	indexToID map[int64]string
}

func newAnthropicDecoder() *anthropicDecoder {
	return &anthropicDecoder{indexToID: make(map[int64]string)}
}

// decodeStart handles a content_block_start frame, returning the
// normalized event(s) it produces and registering the index for later
// deltas.
func (d *anthropicDecoder) decodeStart(index int64, block anthropic.ContentBlockStartEventContentBlockUnion) []StreamEvent {
	switch b := block.AsAny().(type) {
	case anthropic.TextBlock:
		d.indexToID[index] = ""
		if b.Text == "" {
			return nil
		}
		return []StreamEvent{TextDelta(b.Text)}
	case anthropic.ThinkingBlock:
		d.indexToID[index] = ""
		if b.Thinking == "" {
			return nil
		}
		return []StreamEvent{ThinkingDelta(b.Thinking)}
	case anthropic.ToolUseBlock:
		d.indexToID[index] = block.ID
		return []StreamEvent{ToolCallStart(block.ID, block.Name)}
	default:
		return nil
	}
}

// decodeDelta handles a content_block_delta frame, resolving index to the
// id registered at content_block_start time.
func (d *anthropicDecoder) decodeDelta(index int64, delta anthropic.RawContentBlockDeltaUnion) StreamEvent {
	switch v := delta.AsAny().(type) {
	case anthropic.TextDelta:
		return TextDelta(v.Text)
	case anthropic.ThinkingDelta:
		return ThinkingDelta(v.Thinking)
	case anthropic.InputJSONDelta:
		id := d.indexToID[index]
		return ToolCallDelta(id, v.PartialJSON)
	default:
		return StreamEvent{} // unparseable frame: skipped silently (spec §4.1)
	}
}

// decodeStop handles a content_block_stop frame: only tool-use blocks
// produce a normalized ToolCallEnd, matching spec §4.1's obligation that
// every ToolCallStart is eventually followed by a ToolCallEnd.
func (d *anthropicDecoder) decodeStop(index int64) StreamEvent {
	id, ok := d.indexToID[index]
	if !ok || id == "" {
		return StreamEvent{}
	}
	return ToolCallEnd(id)
}

func anthropicStopReason(reason anthropic.StopReason) StopReason {
	switch reason {
	case anthropic.StopReasonEndTurn, anthropic.StopReasonStopSequence:
		if reason == anthropic.StopReasonStopSequence {
			return StopStopSequence
		}
		return StopEndTurn
	case anthropic.StopReasonToolUse:
		return StopToolUse
	case anthropic.StopReasonMaxTokens:
		return StopMaxTokens
	default:
		return StopEndTurn
	}
}

func anthropicUsage(u anthropic.Usage) Usage {
	return Usage{
		InputTokens:  int(u.InputTokens),
		OutputTokens: int(u.OutputTokens),
	}
}

func anthropicError(kind, message string) error {
	return fmt.Errorf("%s: %s", kind, message)
}
