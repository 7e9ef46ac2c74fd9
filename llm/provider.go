package llm

import "context"

// Provider is the polymorphic LLM provider contract of spec §2.4:
// "{name, models, current_model, set_model, stream(request), complete(request)}".
type Provider interface {
	Name() string
	Models() []string
	CurrentModel() string
	SetModel(model string) error

	// Stream yields a lazy sequence of normalized StreamEvents (spec §4.1).
	Stream(ctx context.Context, req Request) (*Stream, error)

	// Complete is the non-streaming convenience path used by callers that
	// don't need incremental deltas; implementations drain Stream and
	// assemble the equivalent terminal values.
	Complete(ctx context.Context, req Request) (CompleteResponse, error)
}

// CompleteResponse is the assembled result of draining a Stream to
// completion: the concatenated text, any tool calls, final usage, and stop
// reason.
type CompleteResponse struct {
	Text      string
	ToolCalls []PendingToolCall
	Usage     Usage
	Reason    StopReason
}

// Drain consumes a Stream to completion and assembles a CompleteResponse,
// shared by every Provider's Complete method so wire-specific code only
// has to implement Stream.
func Drain(ctx context.Context, s *Stream) (CompleteResponse, error) {
	defer s.Close()

	var resp CompleteResponse
	pending := map[string]*PendingToolCall{}
	var order []string

	for ev := range s.Events {
		switch ev.Kind {
		case EventTextDelta:
			resp.Text += ev.Delta
		case EventToolCallStart:
			pending[ev.ToolCallID] = &PendingToolCall{ID: ev.ToolCallID, Name: ev.ToolCallName}
			order = append(order, ev.ToolCallID)
		case EventToolCallDelta:
			if pc, ok := pending[ev.ToolCallID]; ok {
				pc.Arguments += ev.Delta
			}
		case EventToolCallEnd:
			// nothing further to do; promotion happens at assembly time
		case EventUsage:
			resp.Usage = ev.Usage
		case EventDone:
			resp.Reason = ev.Reason
		case EventError:
			return resp, ev.Err
		}
	}

	for _, id := range order {
		resp.ToolCalls = append(resp.ToolCalls, *pending[id])
	}

	if err := ctx.Err(); err != nil {
		return resp, err
	}
	return resp, nil
}
