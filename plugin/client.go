package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/sourcegraph/jsonrpc2"

	"rot/sandbox"
	"rot/tool"
)

const protocolVersion = "2025-06-18"

// ToolSpec is a single tool a plugin server advertises (spec §4.5:
// "each tool yields {name, description, input_schema}").
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// CallResult is the normalized result of tools/call (spec §4.5:
// "content[] ..., optional structuredContent, and isError").
type CallResult struct {
	Text    string
	IsError bool
}

// ServerConfig describes a stdio plugin server to spawn, grounded on
// rot-tools::mcp::McpServerConfig.
type ServerConfig struct {
	Name              string
	Command           string
	Args              []string
	Env               []string
	Cwd               string
	Policy            sandbox.Policy
	StartupTimeout    time.Duration
	ToolCallTimeout   time.Duration
}

// Client is a stdio JSON-RPC 2.0 client, single-consumer with one
// outstanding request at a time (spec §4.5 Concurrency). It reuses
// sidekick's coding/lsp Jsonrpc2LSPClient wiring of sourcegraph/jsonrpc2
// over a stdio ReadWriteCloser, generalized from the LSP protocol to MCP's
// initialize/tools-list/tools-call dialect.
type Client struct {
	mu   sync.Mutex
	conn *jsonrpc2.Conn
	cmd  *exec.Cmd

	ToolTimeout time.Duration
}

// readWriteCloser adapts a child process's stdout/stdin pipes into a
// single io.ReadWriteCloser, matching sidekick's lsp.ReadWriteCloser.
type readWriteCloser struct {
	io.Reader
	io.WriteCloser
}

func (rwc *readWriteCloser) Close() error {
	if err := rwc.WriteCloser.Close(); err != nil {
		return err
	}
	if closer, ok := rwc.Reader.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// methodNotFoundHandler answers any unsolicited server→client method with
// JSON-RPC error -32601, per spec §4.5's concurrency obligation, instead
// of sidekick's lsp.noopHandler which silently drops such messages.
type methodNotFoundHandler struct{}

func (methodNotFoundHandler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if req.Notif {
		return
	}
	_ = conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{
		Code:    jsonrpc2.CodeMethodNotFound,
		Message: fmt.Sprintf("method not found: %s", req.Method),
	})
}

// Connect spawns the plugin server under cfg.Policy's sandbox and performs
// the initialize/initialized handshake (spec §4.5 Lifecycle).
func Connect(ctx context.Context, cfg ServerConfig) (*Client, []ToolSpec, error) {
	name, args, err := sandbox.WrapCommand(cfg.Policy, cfg.Cwd, cfg.Command, cfg.Args)
	if err != nil {
		return nil, nil, fmt.Errorf("plugin: %w", err)
	}

	cmd := exec.Command(name, args...)
	cmd.Dir = cfg.Cwd
	cmd.Env = cfg.Env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("plugin: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("plugin: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("plugin: start %q: %w", cfg.Command, err)
	}

	startupCtx, cancel := context.WithTimeout(ctx, cfg.StartupTimeout)
	defer cancel()

	conn := jsonrpc2.NewConn(ctx, jsonrpc2.NewBufferedStream(&readWriteCloser{stdout, stdin}, jsonrpc2.VSCodeObjectCodec{}), methodNotFoundHandler{})

	var initResp struct {
		ServerInfo struct {
			Name string `json:"name"`
		} `json:"serverInfo"`
	}
	initParams := map[string]any{
		"protocolVersion": protocolVersion,
		"clientInfo":      map[string]string{"name": "rot", "version": "0"},
		"capabilities":    map[string]any{},
	}
	if err := conn.Call(startupCtx, "initialize", initParams, &initResp); err != nil {
		_ = cmd.Process.Kill()
		return nil, nil, fmt.Errorf("plugin: initialize %q: %w", cfg.Name, err)
	}
	if err := conn.Notify(startupCtx, "notifications/initialized", map[string]any{}); err != nil {
		_ = cmd.Process.Kill()
		return nil, nil, fmt.Errorf("plugin: initialized notify %q: %w", cfg.Name, err)
	}

	client := &Client{conn: conn, cmd: cmd, ToolTimeout: cfg.ToolCallTimeout}

	tools, err := client.listTools(startupCtx)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	return client, tools, nil
}

// listTools invokes tools/list, paginating while nextCursor is non-empty
// (spec §4.5 Discover).
func (c *Client) listTools(ctx context.Context) ([]ToolSpec, error) {
	var all []ToolSpec
	cursor := ""
	for {
		c.mu.Lock()
		var resp struct {
			Tools      []ToolSpec `json:"tools"`
			NextCursor string     `json:"nextCursor"`
		}
		params := map[string]any{}
		if cursor != "" {
			params["cursor"] = cursor
		}
		err := c.conn.Call(ctx, "tools/list", params, &resp)
		c.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("plugin: tools/list: %w", err)
		}
		all = append(all, resp.Tools...)
		if resp.NextCursor == "" {
			break
		}
		cursor = resp.NextCursor
	}
	return all, nil
}

// CallTool invokes tools/call with a per-call timeout (spec §4.5 Call,
// Timeouts). The client is single-consumer: callers serialize through the
// mutex rather than issuing concurrent Calls.
func (c *Client) CallTool(ctx context.Context, name string, arguments json.RawMessage) (CallResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.ToolTimeout)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	var resp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		StructuredContent json.RawMessage `json:"structuredContent"`
		IsError           bool            `json:"isError"`
	}

	var args any
	if len(arguments) > 0 {
		args = json.RawMessage(arguments)
	} else {
		args = map[string]any{}
	}

	err := c.conn.Call(callCtx, "tools/call", map[string]any{"name": name, "arguments": args}, &resp)
	if err != nil {
		if callCtx.Err() != nil {
			return CallResult{}, fmt.Errorf("%w: plugin tool %q", agentTimeoutErr, name)
		}
		return CallResult{}, fmt.Errorf("plugin: tools/call %q: %w", name, err)
	}

	return CallResult{Text: normalizeContent(resp.Content, resp.StructuredContent), IsError: resp.IsError}, nil
}

// normalizeContent implements spec §4.5's Normalization rule: join
// text-typed content items with newlines, fall back to pretty-printed
// structuredContent, fall back to the literal "no output".
func normalizeContent(content []struct {
	Type string `json:"type"`
	Text string `json:"text"`
}, structured json.RawMessage) string {
	var texts []string
	for _, item := range content {
		if item.Type == "text" && item.Text != "" {
			texts = append(texts, item.Text)
		}
	}
	if len(texts) > 0 {
		return strings.Join(texts, "\n")
	}
	if len(structured) > 0 {
		var pretty strings.Builder
		if err := json.Indent(&pretty, structured, "", "  "); err == nil {
			return pretty.String()
		}
		return string(structured)
	}
	return "no output"
}

// Close performs a best-effort kill of the child process (spec §4.5
// Shutdown: "on drop, best-effort kill the child").
func (c *Client) Close() error {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		return c.cmd.Process.Kill()
	}
	return nil
}

var agentTimeoutErr = fmt.Errorf("plugin tool call timed out")

// AsTool adapts a single remote tool into the tool.Tool interface so it
// can be registered under its mcp__<server>__<tool> exported name.
type remoteTool struct {
	exportedName string
	remoteName   string
	description  string
	schema       json.RawMessage
	client       *Client
}

func AsTool(client *Client, serverName string, spec ToolSpec) tool.Tool {
	return &remoteTool{
		exportedName: ExportedToolName(serverName, spec.Name),
		remoteName:   spec.Name,
		description:  spec.Description,
		schema:       spec.InputSchema,
		client:       client,
	}
}

func (t *remoteTool) Name() string        { return t.exportedName }
func (t *remoteTool) Description() string { return t.description }

// ParametersSchema unmarshals the remote server's raw JSON Schema into the
// shape the registry expects; plugin tools don't know their schema at
// compile time the way built-ins do.
func (t *remoteTool) ParametersSchema() *jsonschema.Schema {
	if len(t.schema) == 0 {
		return &jsonschema.Schema{Type: "object"}
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(t.schema, &s); err != nil {
		return &jsonschema.Schema{Type: "object"}
	}
	return &s
}

func (t *remoteTool) Execute(ctx context.Context, args json.RawMessage, _ tool.Context) (tool.Result, error) {
	res, err := t.client.CallTool(ctx, t.remoteName, args)
	if err != nil {
		return tool.Result{}, err
	}
	return tool.Result{OutputText: res.Text, IsError: res.IsError}, nil
}
