package agentcore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"rot/agenterr"
	"rot/message"
	"rot/permission"
	"rot/tool"
)

// commandPermissions is the command-pattern policy applied to any tool
// call that carries a shell command argument (spec §13's "auto-allow
// pattern list, not a hardcoded tool-name set" decision). A deployer
// wiring a real shell tool can replace this with
// permission.MergeCommandPermissions(permission.BaseCommandPermissions(), ...)
// to layer on project-specific rules.
var commandPermissions = permission.BaseCommandPermissions()

// shellCommandArgs matches the "command" argument shape sidekick's own
// run-command tool uses; any tool call whose arguments unmarshal into
// this gets the finer-grained command-pattern check before the per-tool
// ledger check runs.
type shellCommandArgs struct {
	Command string `json:"command"`
}

// extractShellCommand reports whether args carries a non-empty "command"
// field, and returns it.
func extractShellCommand(args json.RawMessage) (string, bool) {
	var parsed shellCommandArgs
	if err := json.Unmarshal(args, &parsed); err != nil || parsed.Command == "" {
		return "", false
	}
	return parsed.Command, true
}

// taskToolName is the delegation tool's reserved name (spec §4.3 step 3,
// §4.4): calls to this tool name are dispatched concurrently, everything
// else sequentially.
const taskToolName = "task"

// dispatch implements spec §4.3 Tool Dispatch & Permissions steps 2-4 for
// one assistant message's accumulated tool calls, reusing the teacher's
// dev/handle_tool_call.go idiom of index-captured goroutines for the
// parallel ("task") branch, which write into an index-keyed result slice
// under a sync.WaitGroup, generalized over plain context.Context instead of
// a Temporal workflow.Context.
func (a *Agent) dispatch(ctx context.Context, assistantMsg message.Message, sessionID string, taskDepth int) []message.ContentBlock {
	calls := assistantMsg.ToolCalls()
	results := make([]message.ContentBlock, len(calls))

	type job struct {
		index int
		call  message.ContentBlock
	}

	var taskJobs, seqJobs []job
	for i, call := range calls {
		if call.ToolCallName == taskToolName {
			taskJobs = append(taskJobs, job{i, call})
		} else {
			seqJobs = append(seqJobs, job{i, call})
		}
	}

	var wg sync.WaitGroup
	for _, j := range taskJobs {
		j := j
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[j.index] = a.executeOne(ctx, j.call, sessionID, taskDepth)
		}()
	}

	for _, j := range seqJobs {
		results[j.index] = a.executeOne(ctx, j.call, sessionID, taskDepth)
	}

	wg.Wait()

	// Writing into results[j.index] rather than appending as each job
	// finishes is what gives spec §4.3 step 4's deterministic re-order:
	// results come out sorted by original tool-call position regardless
	// of actual completion order.
	return results
}

// executeOne runs the full per-call pipeline of spec §4.3 steps 1-2 for a
// single ToolCall block and returns its ToolResult content block. A tool
// execution error is never fatal to the turn: every failure path here
// returns an is_error=true ToolResult instead of propagating.
func (a *Agent) executeOne(ctx context.Context, call message.ContentBlock, sessionID string, taskDepth int) message.ContentBlock {
	t, ok := a.Registry.Get(call.ToolCallName)
	if !ok {
		return message.ToolResult(call.ToolCallID, fmt.Sprintf("unknown tool %q", call.ToolCallName), true)
	}

	allowed, denyReason := a.resolvePermission(call.ToolCallName, call.ToolCallArguments)
	if !allowed {
		return message.ToolResult(call.ToolCallID, denyReason, true)
	}

	tc := a.newToolContext(sessionID, taskDepth)
	res, err := t.Execute(ctx, call.ToolCallArguments, tc)
	if err != nil {
		return message.ToolResult(call.ToolCallID, describeToolError(err), true)
	}

	text := res.OutputText
	if a.RedactPaths {
		text = removeWorkingDirFromPaths(text, a.WorkspaceRoot)
	}
	return message.ToolResult(call.ToolCallID, text, res.IsError)
}

// resolvePermission applies spec §4.3 step 2, with the command-pattern
// layer (permission/command_pattern.go, permission/extract.go) running
// first for any tool call carrying a shell command: a denied command
// pattern overrides the per-tool-name ledger outright, and an
// auto-approved one skips straight through without consulting it.
// Anything the command-pattern layer leaves at "require approval" (or any
// tool call without a command argument at all) falls through to the
// per-tool-name ledger below. The no-callback fail-safe ("if approval is
// required but no callback is installed, synthesize an error result and
// skip") is handled here rather than inside permission.System.Resolve,
// since that call never persists a ledger entry for an unanswered
// prompt — only a human's actual Always response should do that.
func (a *Agent) resolvePermission(toolName string, args json.RawMessage) (allowed bool, denyReason string) {
	argsSummary := summarizeArgs(args)

	if cmd, ok := extractShellCommand(args); ok {
		verdict, msg := permission.EvaluateScriptPermission(commandPermissions, cmd)
		switch verdict {
		case permission.PermissionDeny:
			if msg == "" {
				msg = "command denied by command-pattern policy"
			}
			return false, msg
		case permission.PermissionAutoApprove:
			return true, ""
		}
		// PermissionRequireApproval: fall through to the per-tool-name ledger.
	}

	if a.Permissions.IsDenied(toolName) {
		return false, "denied for this session"
	}
	if !a.Permissions.RequiresApproval(toolName) {
		return true, ""
	}
	if a.Approver == nil {
		return false, "approval required but no approver installed"
	}
	if a.Permissions.Resolve(toolName, argsSummary, a.Approver) {
		return true, ""
	}
	return false, "denied for this session"
}

func describeToolError(err error) string {
	switch {
	case isErrKind(err, agenterr.ErrToolTimeout):
		return "tool timed out"
	case isErrKind(err, agenterr.ErrToolPermissionDenied):
		return err.Error()
	default:
		return err.Error()
	}
}

func isErrKind(err, kind error) bool {
	return err != nil && strings.Contains(err.Error(), kind.Error())
}

func summarizeArgs(args json.RawMessage) string {
	const max = 200
	s := string(args)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

// removeWorkingDirFromPaths strips the workspace root prefix from any
// occurrence in text, ported from the teacher's
// dev/handle_tool_call.go:removeWorkingDirFromPaths (supplemented
// feature, off by default — spec §13).
func removeWorkingDirFromPaths(text, workspaceRoot string) string {
	if workspaceRoot == "" {
		return text
	}
	prefix := strings.TrimSuffix(workspaceRoot, "/") + "/"
	return strings.ReplaceAll(text, prefix, "")
}

// taskToolArgs is the {agent_name, prompt} payload the model must supply
// when calling the "task" tool (spec §4.4 "Delegated execution").
type taskToolArgs struct {
	AgentName string `json:"agent_name"`
	Prompt    string `json:"prompt"`
}

// TaskTool is the built-in delegation tool: it does nothing but validate
// its arguments and hand off to the ToolContext's Delegate, which the
// Agent wires to its own delegate method per call (spec §4.4).
type TaskTool struct{}

func (TaskTool) Name() string        { return taskToolName }
func (TaskTool) Description() string { return "Delegate a sub-task to a named sub-agent." }

func (TaskTool) ParametersSchema() *jsonschema.Schema {
	props := orderedmap.New[string, *jsonschema.Schema](
		orderedmap.WithInitialData(
			orderedmap.Pair[string, *jsonschema.Schema]{
				Key:   "agent_name",
				Value: &jsonschema.Schema{Type: "string", Description: "Name of the delegatable sub-agent profile to invoke."},
			},
			orderedmap.Pair[string, *jsonschema.Schema]{
				Key:   "prompt",
				Value: &jsonschema.Schema{Type: "string", Description: "The task prompt to hand to the sub-agent."},
			},
		),
	)
	return &jsonschema.Schema{
		Type:       "object",
		Required:   []string{"agent_name", "prompt"},
		Properties: props,
	}
}

func (TaskTool) Execute(ctx context.Context, args json.RawMessage, tc tool.Context) (tool.Result, error) {
	var parsed taskToolArgs
	if err := json.Unmarshal(args, &parsed); err != nil || parsed.AgentName == "" || parsed.Prompt == "" {
		return tool.Result{}, fmt.Errorf("%w: task requires agent_name and prompt", agenterr.ErrToolInvalidParameters)
	}
	if tc.Delegate == nil {
		return tool.Result{}, fmt.Errorf("%w: no delegate available in this context", agenterr.ErrToolPermissionDenied)
	}
	return tc.Delegate.Delegate(ctx, parsed.AgentName, parsed.Prompt)
}
