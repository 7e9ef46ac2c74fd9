package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvSecretManager_GetSecret(t *testing.T) {
	t.Setenv("ROT_TEST_SECRET", "shh")
	var sm EnvSecretManager
	v, err := sm.GetSecret("ROT_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "shh", v)
}

func TestEnvSecretManager_MissingSecret(t *testing.T) {
	var sm EnvSecretManager
	_, err := sm.GetSecret("ROT_DEFINITELY_UNSET_VAR")
	assert.Error(t, err)
}
