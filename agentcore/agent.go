package agentcore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rot/agenterr"
	"rot/llm"
	"rot/logger"
	"rot/message"
	"rot/permission"
	"rot/task"
	"rot/tool"
)

// SessionLinker optionally creates child-session records linked to a
// parent session (spec §4.4 step 4: "a link entry is appended to the
// parent session; a fresh session receives the child's transcript").
// On-disk session persistence is out of the core's scope (spec
// Non-goals), so this is an interface the core calls through rather than
// a concrete store; a nil Linker simply means delegation proceeds without
// recording a child session id.
type SessionLinker interface {
	NewChildSession(parentSessionID string) string
}

// Agent drives a conversation to a terminal assistant message (spec §4.2,
// §2.8). There is no Temporal workflow beneath it the way sidekick's
// dev/llm_loop.go has one; the loop here owns its own iteration bound and
// tool dispatch directly.
type Agent struct {
	Config      AgentConfig
	Provider    llm.Provider
	Registry    *tool.Registry
	Permissions *permission.System
	Approver    permission.Approver

	TaskController *task.Controller
	Profiles       map[string]SubAgentProfile
	Sessions       SessionLinker

	WorkspaceRoot string
	SandboxMode   tool.SandboxMode
	NetworkAccess bool
	CallTimeout   int64 // seconds, per tool.Context.Timeout

	// RedactPaths, when true, strips the workspace root from tool output
	// text before it is appended to the transcript (supplemented feature,
	// ported from the teacher's removeWorkingDirFromPaths).
	RedactPaths bool
}

// New constructs an Agent ready to Process turns.
func New(cfg AgentConfig, provider llm.Provider, registry *tool.Registry, perms *permission.System, approver permission.Approver, controller *task.Controller) *Agent {
	return &Agent{
		Config:         cfg,
		Provider:       provider,
		Registry:       registry,
		Permissions:    perms,
		Approver:       approver,
		TaskController: controller,
		Profiles:       make(map[string]SubAgentProfile),
		CallTimeout:    120,
	}
}

// Process implements the loop state machine of spec §4.2: BuildRequest →
// Stream → Assemble → Terminate?/Dispatch, mutating transcript in place
// (by value here, since Go transcripts are returned, not aliased) and
// returning the final assistant message.
func (a *Agent) Process(ctx context.Context, transcript message.Transcript, sessionID string, taskDepth int, userInput string) (message.Message, message.Transcript, error) {
	transcript = transcript.Append(message.New(message.RoleUser, "", message.Text(userInput)))

	for iteration := 1; iteration <= a.Config.MaxIterations; iteration++ {
		req := a.buildRequest(transcript)

		stream, err := a.Provider.Stream(ctx, req)
		if err != nil {
			return message.Message{}, transcript, agenterr.Wrap(agenterr.ErrProviderTransport, "stream")
		}

		resp, err := llm.Drain(ctx, stream)
		if err != nil {
			return message.Message{}, transcript, agenterr.Wrap(agenterr.ErrProviderProtocol, err.Error())
		}

		assistantMsg := assembleAssistantMessage(resp)
		transcript = transcript.Append(assistantMsg)

		if resp.Reason != llm.StopToolUse || len(resp.ToolCalls) == 0 {
			return assistantMsg, transcript, nil
		}

		results := a.dispatch(ctx, assistantMsg, sessionID, taskDepth)
		transcript = transcript.Append(message.New(message.RoleTool, assistantMsg.ID, results...))

		logger.Get().Debug().
			Str("session_id", sessionID).
			Int("iteration", iteration).
			Int("tool_calls", len(resp.ToolCalls)).
			Msg("agent iteration dispatched tool calls")
	}

	return message.Message{}, transcript, agenterr.NewMaxIterations(a.Config.MaxIterations)
}

// buildRequest constructs a Request from the transcript, registered
// tools, and system prompt (spec §4.2 BuildRequest). Thinking blocks are
// elided and system-role messages are carried in the system slot rather
// than as messages (spec §4.2 "Message conversion for the provider").
func (a *Agent) buildRequest(transcript message.Transcript) llm.Request {
	req := llm.Request{
		Tools:     a.Registry.List(),
		System:    a.Config.SystemPrompt,
		MaxTokens: a.Config.MaxTokens,
	}

	for _, m := range transcript {
		if m.Role == message.RoleSystem {
			continue
		}
		stripped := m.StripThinking()
		req.Messages = append(req.Messages, toRequestMessage(stripped))
	}
	return req
}

// toRequestMessage flattens a message.Message into the provider-facing
// shape. Tool-role messages carry ToolResult blocks forward as-is; the
// user/assistant role mapping each provider adapter applies internally
// decides whether that travels as a "user" or "tool" role on the wire
// (spec §14 Open Question decision).
func toRequestMessage(m message.Message) llm.RequestMessage {
	rm := llm.RequestMessage{Role: string(m.Role)}
	for _, b := range m.Content {
		rb := llm.RequestContentBlock{Type: string(b.Type)}
		switch b.Type {
		case message.BlockText:
			rb.Text = b.Text
		case message.BlockToolCall:
			rb.ToolCallID = b.ToolCallID
			rb.ToolCallName = b.ToolCallName
			rb.ToolCallArguments = b.ToolCallArguments
		case message.BlockToolResult:
			rb.ToolCallID = b.ToolResultCallID
			rb.ToolResultContent = b.ToolResultContent
			rb.ToolResultIsError = b.ToolResultIsError
		}
		rm.Content = append(rm.Content, rb)
	}
	return rm
}

// assembleAssistantMessage builds the assistant Message of spec §4.2
// Assemble: optional text block, then tool-call blocks in emission order.
func assembleAssistantMessage(resp llm.CompleteResponse) message.Message {
	var blocks []message.ContentBlock
	if resp.Text != "" {
		blocks = append(blocks, message.Text(resp.Text))
	}
	for _, tc := range resp.ToolCalls {
		args := json.RawMessage(message.RepairJSON(tc.Arguments))
		if !json.Valid(args) {
			args = json.RawMessage("null")
		}
		blocks = append(blocks, message.ToolCall(tc.ID, tc.Name, args))
	}
	return message.New(message.RoleAssistant, "", blocks...)
}

// newToolContext builds the ToolContext for one dispatch round, wiring a
// Delegate closure bound to this call's task depth so recursive "task"
// tool calls enforce spec §4.4 step 2's depth check without needing the
// depth threaded through the tool.Delegate interface itself.
func (a *Agent) newToolContext(sessionID string, taskDepth int) tool.Context {
	return NewToolContext(
		a.WorkspaceRoot,
		sessionID,
		time.Duration(a.CallTimeout)*time.Second,
		a.SandboxMode,
		a.NetworkAccess,
		taskDepth,
		a.Config.TaskPolicy.MaxDepth,
		&delegateFunc{agent: a, sessionID: sessionID, taskDepth: taskDepth},
	)
}

// delegateFunc adapts Agent.delegate into the tool.Delegate interface,
// capturing the calling tool context's session id and task depth.
type delegateFunc struct {
	agent     *Agent
	sessionID string
	taskDepth int
}

func (d *delegateFunc) Delegate(ctx context.Context, agentName, prompt string) (tool.Result, error) {
	return d.agent.delegate(ctx, d.sessionID, d.taskDepth, agentName, prompt)
}

// delegate implements spec §4.4's "Delegated execution" steps 1-7.
func (a *Agent) delegate(ctx context.Context, parentSessionID string, taskDepth int, agentName, prompt string) (tool.Result, error) {
	profile, ok := a.Profiles[agentName]
	if !ok || !profile.Delegatable {
		return tool.Result{}, fmt.Errorf("%w: %q", agenterr.ErrSubagentUnknown, agentName)
	}

	if taskDepth >= a.Config.TaskPolicy.MaxDepth {
		return tool.Result{}, fmt.Errorf("%w: max task depth %d reached", agenterr.ErrToolPermissionDenied, a.Config.TaskPolicy.MaxDepth)
	}

	timeout := a.Config.TaskPolicy.TaskTimeout
	result, err := task.Run(ctx, a.TaskController, timeout, func(runCtx context.Context) (tool.Result, error) {
		childSessionID := parentSessionID
		if a.Sessions != nil {
			childSessionID = a.Sessions.NewChildSession(parentSessionID)
		} else {
			childSessionID = uuid.New().String()
		}

		subAgent := a.subAgentFor(profile)
		finalMsg, _, err := subAgent.Process(runCtx, nil, childSessionID, taskDepth+1, prompt)
		if err != nil {
			return tool.Result{}, err
		}

		meta, _ := json.Marshal(map[string]string{
			"child_session_id": childSessionID,
			"agent_name":       agentName,
		})
		return tool.Result{OutputText: finalMsg.TextProjection(), Metadata: meta}, nil
	})
	if err != nil {
		return tool.Result{}, err
	}
	return result, nil
}

// subAgentFor builds the sub-invocation Agent for a delegated profile:
// same registry/permissions/provider/task controller, but its own
// AgentConfig (system prompt, iteration cap) per spec §4.4 step 5.
func (a *Agent) subAgentFor(profile SubAgentProfile) *Agent {
	cfg := profile.Config
	if cfg.MaxIterations == 0 {
		cfg = a.Config
	}
	cfg.SystemPrompt = profile.SystemPrompt
	cfg.AgentName = profile.Name

	sub := *a
	sub.Config = cfg
	sub.Profiles = a.Profiles
	return &sub
}

