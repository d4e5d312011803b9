package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"mira/internal/domain"
)

type stubTool struct {
	name string
	out  any
	diff string
	err  error
}

func (s stubTool) Name() string                  { return s.name }
func (s stubTool) JSONSchema() map[string]any     { return map[string]any{"description": "stub " + s.name} }
func (s stubTool) Call(ctx context.Context, raw json.RawMessage) (any, string, error) {
	return s.out, s.diff, s.err
}

func TestDispatch_UnknownToolRendersStructuredErrorNotGoError(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	out, diff, err := r.Dispatch(context.Background(), "nope", nil)
	require.NoError(t, err)
	require.Empty(t, diff)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Equal(t, false, decoded["ok"])
	require.Contains(t, decoded["error"], "nope")
}

func TestDispatch_ToolCallErrorRendersStructuredErrorNotGoError(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Register(stubTool{name: "boom", err: domain.Invalid("bad args")})

	out, _, err := r.Dispatch(context.Background(), "boom", nil)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Equal(t, false, decoded["ok"])
	require.Contains(t, decoded["error"], "bad args")
}

func TestDispatch_SuccessReturnsJSONAndDiff(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Register(stubTool{name: "ok-tool", out: map[string]any{"value": 42}, diff: "--- a\n+++ b\n"})

	out, diff, err := r.Dispatch(context.Background(), "ok-tool", nil)
	require.NoError(t, err)
	require.Equal(t, "--- a\n+++ b\n", diff)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.EqualValues(t, 42, decoded["value"])
}

func TestSchemas_SurfacesDescriptionAndParametersFromEachTool(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Register(stubTool{name: "alpha"})
	r.Register(stubTool{name: "beta"})

	schemas := r.Schemas()
	require.Len(t, schemas, 2)
	names := map[string]bool{}
	for _, s := range schemas {
		names[s.Name] = true
	}
	require.True(t, names["alpha"])
	require.True(t, names["beta"])
}
