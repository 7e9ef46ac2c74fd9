// Package tool defines the Tool capability contract and per-call context
// (spec §2.2, §3 ToolContext). Generalized from sidekick's common.Tool
// (name/description/JSON-schema parameters) into a full Tool interface with
// an execute method, and from its env/RunCommandActivityInput shape into
// ToolContext.
package tool

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// SandboxMode is the filesystem sandbox mode for tool execution (spec
// GLOSSARY: "one of {read-only, workspace-write, full-access}").
type SandboxMode string

const (
	SandboxReadOnly        SandboxMode = "read-only"
	SandboxWorkspaceWrite  SandboxMode = "workspace-write"
	SandboxDangerFullAccess SandboxMode = "full-access"
)

// Delegate lets a tool (namely the "task" tool) recurse into the agent
// core without tool creating an import cycle between tool and agentcore.
type Delegate interface {
	Delegate(ctx context.Context, agentName, prompt string) (Result, error)
}

// Context is the per-call ToolContext of spec §3: constructed per-turn and
// cloned per tool call.
type Context struct {
	WorkspaceRoot  string
	SessionID      string
	Timeout        int64 // seconds
	SandboxMode    SandboxMode
	NetworkAccess  bool
	TaskDepth      int
	MaxTaskDepth   int
	Delegate       Delegate
}

// Clone returns a copy of ctx, matching spec §3's "ToolContext is
// constructed per-turn and cloned per tool call" lifecycle note.
func (c Context) Clone() Context {
	return c
}

// Result is a tool's successful reply (spec §4.3: "execute(args, context)
// → {output_text, metadata, is_error} | ToolError").
type Result struct {
	OutputText string
	Metadata   json.RawMessage
	IsError    bool
}

// Tool is the polymorphic capability contract of spec §2.2.
type Tool interface {
	Name() string
	Description() string
	ParametersSchema() *jsonschema.Schema
	Execute(ctx context.Context, args json.RawMessage, tc Context) (Result, error)
}

// Spec is the {name, description, JSON schema} triple sent to a provider
// when building a Request (spec §3 Request.tools).
type Spec struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

func SpecOf(t Tool) Spec {
	return Spec{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.ParametersSchema(),
	}
}
