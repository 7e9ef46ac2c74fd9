package agentcore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rot/tool"
)

func TestLoadConfig_AppliesDefaultsWhenTaskPolicyOmitted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rot.toml")
	contents := `
[agent]
agent_name = "rot"
system_prompt = "be helpful"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, profiles, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "rot", cfg.AgentName)
	assert.Equal(t, "be helpful", cfg.SystemPrompt)
	assert.Equal(t, DefaultTaskPolicy(), cfg.TaskPolicy)
	assert.Equal(t, 50, cfg.MaxIterations)
	assert.Empty(t, profiles)
}

func TestLoadConfig_ReadsSubAgentProfiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rot.toml")
	contents := `
[agent]
agent_name = "rot"
max_iterations = 10

[[sub_agent]]
name = "reviewer"
system_prompt = "review code"
delegatable = true

[[sub_agent]]
name = "internal"
system_prompt = "not delegatable"
delegatable = false
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, profiles, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxIterations)
	require.Len(t, profiles, 2)
	assert.Equal(t, "reviewer", profiles[0].Name)
	assert.True(t, profiles[0].Delegatable)
	assert.False(t, profiles[1].Delegatable)
}

func TestLoadConfig_MissingFileErrors(t *testing.T) {
	_, _, err := LoadConfig("/nonexistent/path/rot.toml")
	assert.Error(t, err)
}

func TestSandboxModeFromString(t *testing.T) {
	mode, err := SandboxModeFromString("workspace-write")
	require.NoError(t, err)
	assert.Equal(t, tool.SandboxWorkspaceWrite, mode)

	_, err = SandboxModeFromString("not-a-mode")
	assert.Error(t, err)
}
