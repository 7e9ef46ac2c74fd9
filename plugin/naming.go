// Package plugin implements the stdio JSON-RPC 2.0 plugin-tool client of
// spec §2.5, grounded on sidekick's coding/lsp Jsonrpc2LSPClient (same
// sourcegraph/jsonrpc2 + stdio ReadWriteCloser pattern) generalized from
// the LSP protocol to MCP's initialize/tools-list/tools-call protocol, with
// the exact naming and sandboxing semantics taken from the genuine "rot"
// Rust sources (rot-tools/src/mcp.rs) since sidekick has no MCP client of
// its own to ground on.
package plugin

import "strings"

// ExportedToolName builds the mcp__<server>__<tool> name a plugin tool is
// registered under, exactly matching rot-tools::mcp::exported_tool_name.
func ExportedToolName(serverName, toolName string) string {
	return "mcp__" + sanitizeNameComponent(serverName) + "__" + sanitizeNameComponent(toolName)
}

// sanitizeNameComponent lowercases, replaces any non [a-z0-9] rune with
// '_', collapses repeated underscores, and trims leading/trailing
// underscores — matching rot-tools::mcp::sanitize_name_component exactly.
func sanitizeNameComponent(input string) string {
	var b strings.Builder
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r - 'A' + 'a')
		default:
			b.WriteByte('_')
		}
	}
	sanitized := b.String()
	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}
	return strings.Trim(sanitized, "_")
}

// IsValidNameComponent matches rot-tools::mcp::is_valid_name_component,
// used to validate a configured server name before it is ever sanitized.
func IsValidNameComponent(input string) bool {
	if input == "" {
		return false
	}
	for _, r := range input {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
		if !ok {
			return false
		}
	}
	return true
}
