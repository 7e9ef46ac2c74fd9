package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExportedToolName(t *testing.T) {
	assert.Equal(t, "mcp__github__search_issues", ExportedToolName("GitHub", "Search Issues"))
	assert.Equal(t, "mcp__my_server__my_tool", ExportedToolName("my-server", "my.tool"))
}

func TestSanitizeNameComponent_CollapsesUnderscores(t *testing.T) {
	assert.Equal(t, "a_b_c", sanitizeNameComponent("a!!b__c"))
	assert.Equal(t, "trimmed", sanitizeNameComponent("__trimmed__"))
}

func TestIsValidNameComponent(t *testing.T) {
	assert.True(t, IsValidNameComponent("my-server_1"))
	assert.False(t, IsValidNameComponent("my server"))
	assert.False(t, IsValidNameComponent(""))
}
