// Package agentcore implements the Agent Core loop of spec §4.2: the
// state machine that consumes provider events, assembles messages,
// dispatches tools, delegates to sub-agents, and returns the final
// assistant message. Config loading follows sidekick's common/local_config.go
// TOML-first pattern; the loop itself has no direct sidekick analog (sidekick
// drives its loop through a Temporal workflow, dev/llm_loop.go) and is built
// fresh over plain goroutines/channels in the teacher's concurrency idiom.
package agentcore

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"rot/tool"
)

// TaskPolicy bounds sub-agent delegation (spec §3 AgentConfig, §4.4 State).
type TaskPolicy struct {
	MaxDepth           int           `json:"maxDepth" toml:"max_depth"`
	MaxTotalTasks      int           `json:"maxTotalTasks" toml:"max_total_tasks"`
	MaxConcurrentTasks int           `json:"maxConcurrentTasks" toml:"max_concurrent_tasks"`
	TaskTimeout        time.Duration `json:"taskTimeout" toml:"task_timeout"`
}

// DefaultTaskPolicy returns conservative defaults, used when a config
// omits task_policy entirely.
func DefaultTaskPolicy() TaskPolicy {
	return TaskPolicy{
		MaxDepth:           3,
		MaxTotalTasks:      20,
		MaxConcurrentTasks: 4,
		TaskTimeout:        5 * time.Minute,
	}
}

// AgentConfig is immutable after agent construction (spec §3).
type AgentConfig struct {
	MaxIterations int        `json:"maxIterations" toml:"max_iterations"`
	AgentName     string     `json:"agentName" toml:"agent_name"`
	SystemPrompt  string     `json:"systemPrompt,omitempty" toml:"system_prompt"`
	MaxTokens     int        `json:"maxTokens,omitempty" toml:"max_tokens"`
	TaskPolicy    TaskPolicy `json:"taskPolicy" toml:"task_policy"`
}

// SubAgentProfile describes a named agent a "task" tool call may delegate
// to (spec §4.4 Delegated execution step 1). Only Delegatable profiles may
// be targeted by a delegation call.
type SubAgentProfile struct {
	Name         string `json:"name" toml:"name"`
	SystemPrompt string `json:"systemPrompt" toml:"system_prompt"`
	Delegatable  bool   `json:"delegatable" toml:"delegatable"`
	Config       AgentConfig
}

// fileConfig is the on-disk shape of an optional TOML config file,
// following sidekick's common/local_config.go pattern of a thin struct
// mirrored 1:1 onto the TOML tags above.
type fileConfig struct {
	AgentConfig AgentConfig       `toml:"agent"`
	SubAgents   []SubAgentProfile `toml:"sub_agent"`
}

// LoadConfig reads an AgentConfig and its sub-agent profiles from a TOML
// file, applying DefaultTaskPolicy where task_policy is zero-valued. This
// is optional: callers may also construct AgentConfig directly in code
// (spec Non-goals excludes config loading from the core's required
// surface, but the teacher's repos all ship a loader for operator
// convenience, so one is provided here).
func LoadConfig(path string) (AgentConfig, []SubAgentProfile, error) {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return AgentConfig{}, nil, fmt.Errorf("agentcore: load config %q: %w", path, err)
	}
	cfg := fc.AgentConfig
	if cfg.TaskPolicy.MaxConcurrentTasks == 0 && cfg.TaskPolicy.MaxTotalTasks == 0 {
		cfg.TaskPolicy = DefaultTaskPolicy()
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 50
	}
	return cfg, fc.SubAgents, nil
}

// SandboxModeFromString validates a config-file sandbox mode string
// against the closed set tool.SandboxMode defines.
func SandboxModeFromString(s string) (tool.SandboxMode, error) {
	switch tool.SandboxMode(s) {
	case tool.SandboxReadOnly, tool.SandboxWorkspaceWrite, tool.SandboxDangerFullAccess:
		return tool.SandboxMode(s), nil
	default:
		return "", fmt.Errorf("agentcore: unknown sandbox mode %q", s)
	}
}
