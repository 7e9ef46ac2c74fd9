package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	name string
}

func (s stubTool) Name() string        { return s.name }
func (s stubTool) Description() string { return "stub" }
func (s stubTool) ParametersSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object"}
}
func (s stubTool) Execute(ctx context.Context, args json.RawMessage, tc Context) (Result, error) {
	return Result{OutputText: "ok"}, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubTool{name: "read"}))

	got, ok := r.Get("read")
	require.True(t, ok)
	assert.Equal(t, "read", got.Name())
}

func TestRegistry_RejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubTool{name: "read"}))

	err := r.Register(stubTool{name: "read"})
	assert.Error(t, err)
}

func TestRegistry_ListSortedByName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubTool{name: "write"}))
	require.NoError(t, r.Register(stubTool{name: "read"}))

	specs := r.List()
	require.Len(t, specs, 2)
	assert.Equal(t, "read", specs[0].Name)
	assert.Equal(t, "write", specs[1].Name)
}

func TestRegistry_Has(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Has("read"))
	require.NoError(t, r.Register(stubTool{name: "read"}))
	assert.True(t, r.Has("read"))
}
