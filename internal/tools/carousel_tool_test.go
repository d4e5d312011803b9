package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"mira/internal/carousel"
)

func TestCarouselTool_PinThenUnpinRoundTrip(t *testing.T) {
	t.Parallel()
	tool := &CarouselTool{Ring: carousel.New(carousel.DefaultConfig())}

	_, _, err := tool.Call(context.Background(), mustJSON(t, map[string]any{"action": "pin", "text": "keep this", "ttl": 3}))
	require.NoError(t, err)

	out, _, err := tool.Call(context.Background(), mustJSON(t, map[string]any{"action": "status"}))
	require.NoError(t, err)
	status := out.(map[string]any)
	require.Len(t, status["anchors"], 1)

	out, _, err = tool.Call(context.Background(), mustJSON(t, map[string]any{"action": "unpin", "text": "keep this"}))
	require.NoError(t, err)
	removed := out.(map[string]any)
	require.Equal(t, true, removed["removed"])

	out, _, err = tool.Call(context.Background(), mustJSON(t, map[string]any{"action": "status"}))
	require.NoError(t, err)
	status = out.(map[string]any)
	require.Empty(t, status["anchors"])
}

func TestCarouselTool_UnpinMissingAnchorReportsNotRemoved(t *testing.T) {
	t.Parallel()
	tool := &CarouselTool{Ring: carousel.New(carousel.DefaultConfig())}

	out, _, err := tool.Call(context.Background(), mustJSON(t, map[string]any{"action": "unpin", "text": "never pinned"}))
	require.NoError(t, err)
	removed := out.(map[string]any)
	require.Equal(t, false, removed["removed"])
}

func TestCarouselTool_PanicThenExitPanicTransitionsMode(t *testing.T) {
	t.Parallel()
	tool := &CarouselTool{Ring: carousel.New(carousel.DefaultConfig())}

	_, _, err := tool.Call(context.Background(), mustJSON(t, map[string]any{"action": "panic"}))
	require.NoError(t, err)
	require.Equal(t, carousel.ModePanic, tool.Ring.Mode())

	_, _, err = tool.Call(context.Background(), mustJSON(t, map[string]any{"action": "exit_panic"}))
	require.NoError(t, err)
	require.NotEqual(t, carousel.ModePanic, tool.Ring.Mode())
}

func TestCarouselTool_UnknownActionRejected(t *testing.T) {
	t.Parallel()
	tool := &CarouselTool{Ring: carousel.New(carousel.DefaultConfig())}
	_, _, err := tool.Call(context.Background(), mustJSON(t, map[string]any{"action": "nonsense"}))
	require.Error(t, err)
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
