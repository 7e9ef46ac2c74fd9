package agentcore

import (
	"time"

	"rot/tool"
)

// NewToolContext constructs the per-turn ToolContext (spec §3: "ToolContext
// is constructed per-turn and cloned per tool call"). executeOne builds a
// fresh Context for each dispatched tool call, so a tool mutating its own
// copy (none currently do, but the contract allows it) can never affect a
// sibling call.
func NewToolContext(
	workspaceRoot string,
	sessionID string,
	timeout time.Duration,
	sandboxMode tool.SandboxMode,
	networkAccess bool,
	taskDepth int,
	maxTaskDepth int,
	delegate tool.Delegate,
) tool.Context {
	return tool.Context{
		WorkspaceRoot: workspaceRoot,
		SessionID:     sessionID,
		Timeout:       int64(timeout.Seconds()),
		SandboxMode:   sandboxMode,
		NetworkAccess: networkAccess,
		TaskDepth:     taskDepth,
		MaxTaskDepth:  maxTaskDepth,
		Delegate:      delegate,
	}
}
