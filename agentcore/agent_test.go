package agentcore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rot/llm"
	"rot/permission"
	"rot/task"
	"rot/tool"
)

// scriptedProvider yields one queued turn per Stream call, in order, so a
// test can drive the loop through several BuildRequest/Stream/Assemble
// rounds deterministically.
type scriptedProvider struct {
	calls [][]llm.StreamEvent
	n     int
}

func provider(turns ...[]llm.StreamEvent) *scriptedProvider {
	return &scriptedProvider{calls: turns}
}

func (p *scriptedProvider) Name() string         { return "scripted" }
func (p *scriptedProvider) Models() []string      { return []string{"scripted-1"} }
func (p *scriptedProvider) CurrentModel() string  { return "scripted-1" }
func (p *scriptedProvider) SetModel(string) error { return nil }

func (p *scriptedProvider) Stream(ctx context.Context, req llm.Request) (*llm.Stream, error) {
	if p.n >= len(p.calls) {
		p.n++
		return eventStream(llm.Done(llm.StopEndTurn)), nil
	}
	events := p.calls[p.n]
	p.n++
	return eventStream(events...), nil
}

func (p *scriptedProvider) Complete(ctx context.Context, req llm.Request) (llm.CompleteResponse, error) {
	s, err := p.Stream(ctx, req)
	if err != nil {
		return llm.CompleteResponse{}, err
	}
	return llm.Drain(ctx, s)
}

func eventStream(events ...llm.StreamEvent) *llm.Stream {
	ch := make(chan llm.StreamEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return &llm.Stream{Events: ch}
}

// echoTool is a minimal tool.Tool that echoes its "value" argument back.
type echoTool struct{ name string }

func (e echoTool) Name() string        { return e.name }
func (e echoTool) Description() string { return "echoes value" }
func (e echoTool) ParametersSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object"}
}
func (e echoTool) Execute(ctx context.Context, args json.RawMessage, tc tool.Context) (tool.Result, error) {
	var parsed struct {
		Value string `json:"value"`
	}
	_ = json.Unmarshal(args, &parsed)
	return tool.Result{OutputText: "echo:" + parsed.Value}, nil
}

func newTestAgent(t *testing.T, p llm.Provider) *Agent {
	t.Helper()
	registry := tool.NewRegistry()
	require.NoError(t, registry.Register(echoTool{name: "echo"}))
	require.NoError(t, registry.Register(TaskTool{}))

	perms := permission.New()
	perms.HandleResponse("echo", permission.AllowAlways)

	controller := task.NewController(10, 2)
	cfg := AgentConfig{MaxIterations: 5, TaskPolicy: DefaultTaskPolicy()}

	agent := New(cfg, p, registry, perms, nil, controller)
	agent.WorkspaceRoot = "/workspace"
	return agent
}

func TestProcess_NoToolCallsReturnsImmediately(t *testing.T) {
	p := provider([]llm.StreamEvent{llm.TextDelta("hello there"), llm.Done(llm.StopEndTurn)})
	agent := newTestAgent(t, p)

	final, transcript, err := agent.Process(context.Background(), nil, "s1", 0, "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", final.TextProjection())
	// user message + assistant message
	require.Len(t, transcript, 2)
}

func TestProcess_DispatchesToolCallAndLoopsAgain(t *testing.T) {
	p := provider(
		[]llm.StreamEvent{
			llm.ToolCallStart("c1", "echo"),
			llm.ToolCallDelta("c1", `{"value":"x"}`),
			llm.ToolCallEnd("c1"),
			llm.Done(llm.StopToolUse),
		},
		[]llm.StreamEvent{llm.TextDelta("done"), llm.Done(llm.StopEndTurn)},
	)
	agent := newTestAgent(t, p)

	final, transcript, err := agent.Process(context.Background(), nil, "s1", 0, "go")
	require.NoError(t, err)
	assert.Equal(t, "done", final.TextProjection())
	// user, assistant(tool_call), tool(result), assistant(final)
	require.Len(t, transcript, 4)
	assert.Contains(t, transcript[2].Content[0].ToolResultContent, "echo:x")
}

func TestProcess_SurfacesMaxIterations(t *testing.T) {
	loop := []llm.StreamEvent{
		llm.ToolCallStart("c1", "echo"),
		llm.ToolCallDelta("c1", `{"value":"x"}`),
		llm.ToolCallEnd("c1"),
		llm.Done(llm.StopToolUse),
	}
	p := provider(loop, loop, loop)
	agent := newTestAgent(t, p)
	agent.Config.MaxIterations = 3

	_, _, err := agent.Process(context.Background(), nil, "s1", 0, "go")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max iterations")
}

func TestProcess_UnknownToolNameProducesErrorResult(t *testing.T) {
	p := provider(
		[]llm.StreamEvent{
			llm.ToolCallStart("c1", "does_not_exist"),
			llm.ToolCallEnd("c1"),
			llm.Done(llm.StopToolUse),
		},
		[]llm.StreamEvent{llm.TextDelta("ok"), llm.Done(llm.StopEndTurn)},
	)
	agent := newTestAgent(t, p)

	_, transcript, err := agent.Process(context.Background(), nil, "s1", 0, "go")
	require.NoError(t, err)
	toolMsg := transcript[2]
	assert.True(t, toolMsg.Content[0].ToolResultIsError)
}
