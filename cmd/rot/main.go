// Command rot is an informational CLI surface over the agent core (spec
// §6, §1 "out of scope: CLI argument parsing"). It is a thin driver that
// exercises agentcore/llm/tool/permission/task directly; it carries none
// of the core's invariants itself. Grounded on the teacher's cli/ package
// subcommand shape and original_source/crates/rot-cli/src/cli.rs, using
// stdlib flag since no third-party CLI framework appears anywhere in the
// retrieval pack's go.mod files.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"rot/agentcore"
	"rot/llm"
	"rot/logger"
	"rot/message"
	"rot/permission"
	"rot/task"
	"rot/tool"
)

func main() {
	provider := flag.String("provider", "anthropic", "LLM provider to use (anthropic, openai)")
	model := flag.String("model", "", "model to use (defaults to the provider's default model)")
	verbose := flag.Bool("verbose", false, "enable verbose logging")
	flag.Parse()

	if *verbose {
		os.Setenv("ROT_LOG_LEVEL", "-1")
	}
	log := logger.Get()

	args := flag.Args()
	cmd := "chat"
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	agent, err := buildAgent(*provider, *model)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build agent")
	}

	switch cmd {
	case "chat":
		runChat(agent)
	case "exec":
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "usage: rot exec <prompt>")
			os.Exit(2)
		}
		runExec(agent, args[0])
	case "session":
		runSession(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (expected chat, exec, or session)\n", cmd)
		os.Exit(2)
	}
}

// buildAgent wires a minimal Agent: a real provider, an empty tool
// registry plus the built-in "task" delegation tool, a default permission
// system, and a Task Controller from DefaultTaskPolicy. Built-in
// file/shell tools are out of the core's scope (spec §1 Out of scope), so
// this driver registers only what the core itself defines.
func buildAgent(providerName, model string) (*agentcore.Agent, error) {
	secrets := &llm.KeyringSecretManager{Fallback: &llm.EnvSecretManager{}}

	var p llm.Provider
	switch providerName {
	case "openai":
		p = llm.NewOpenAIProvider(secrets)
	case "anthropic", "":
		p = llm.NewAnthropicProvider(secrets)
	default:
		return nil, fmt.Errorf("unknown provider %q", providerName)
	}
	if model != "" {
		if err := p.SetModel(model); err != nil {
			return nil, err
		}
	}

	registry := tool.NewRegistry()
	if err := registry.Register(agentcore.TaskTool{}); err != nil {
		return nil, err
	}

	perms := permission.New()
	taskPolicy := agentcore.DefaultTaskPolicy()
	controller := task.NewController(taskPolicy.MaxTotalTasks, taskPolicy.MaxConcurrentTasks)

	cfg := agentcore.AgentConfig{
		MaxIterations: 50,
		AgentName:     "rot",
		TaskPolicy:    taskPolicy,
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	agent := agentcore.New(cfg, p, registry, perms, terminalApprover, controller)
	agent.WorkspaceRoot = wd
	agent.SandboxMode = tool.SandboxWorkspaceWrite
	agent.CallTimeout = 120
	return agent, nil
}

// terminalApprover prompts on stdin/stdout for tool calls requiring
// approval (spec §4.3 step 2's approval callback).
func terminalApprover(toolName, argsSummary string) permission.ApprovalResponse {
	fmt.Printf("approve %q %s? [y/N/always/never]: ", toolName, argsSummary)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	switch line {
	case "y\n", "yes\n":
		return permission.AllowOnce
	case "always\n":
		return permission.AllowAlways
	case "never\n":
		return permission.DenyAlways
	default:
		return permission.DenyOnce
	}
}

func runExec(agent *agentcore.Agent, prompt string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	sessionID := newSessionID()
	final, _, err := agent.Process(ctx, nil, sessionID, 0, prompt)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	fmt.Println(final.TextProjection())
}

func runChat(agent *agentcore.Agent) {
	sessionID := newSessionID()
	var transcript message.Transcript

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("rot chat — Ctrl-D to exit")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		if line == "" {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		final, next, err := agent.Process(ctx, transcript, sessionID, 0, line)
		cancel()
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		transcript = next
		fmt.Println(final.TextProjection())
	}
}

// runSession handles the "session" subcommand. On-disk session
// persistence is explicitly out of the core's scope (spec §1), so this
// surface only reports that fact rather than faking a store.
func runSession(args []string) {
	action := "list"
	if len(args) > 0 {
		action = args[0]
	}
	switch action {
	case "list":
		fmt.Println("session persistence is outside the agent core's scope; no sessions are stored by this binary")
	case "resume":
		fmt.Println("nothing to resume: this binary does not persist sessions")
	default:
		fmt.Fprintf(os.Stderr, "unknown session action %q (expected list or resume)\n", action)
		os.Exit(2)
	}
}

func newSessionID() string {
	return fmt.Sprintf("cli-%d", time.Now().UnixNano())
}
