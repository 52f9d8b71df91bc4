package mcpserver

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/iotree/internal/projection"
	"github.com/agentic-research/iotree/internal/testutil"
)

func newHandlers(t *testing.T) *Handlers {
	t.Helper()
	m, err := projection.Open(context.Background(), testutil.WriteFixture(t), testutil.FixturePath, nil)
	require.NoError(t, err)
	return &Handlers{Model: m}
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return tc.Text
}

func TestNew_RegistersServer(t *testing.T) {
	assert.NotNil(t, New(newHandlers(t)))
}

func TestTree(t *testing.T) {
	h := newHandlers(t)
	ctx := context.Background()

	res, err := h.Tree(ctx, call("tree", nil))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, text(t, res), `"document": "Plant.L5X"`)

	res, err = h.Tree(ctx, call("tree", map[string]any{"path": "Local:1/Inputs/Local:1:I.DATA"}))
	require.NoError(t, err)
	out := text(t, res)
	assert.Contains(t, out, `"kind": "endpoint"`)
	assert.Contains(t, out, `"Local:1:I.DATA.0"`)
	assert.Contains(t, out, `"Local:1:I.DATA.1"`)

	res, err = h.Tree(ctx, call("tree", map[string]any{"path": "nope"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestQuery(t *testing.T) {
	h := newHandlers(t)

	res, err := h.Query(context.Background(), call("query", map[string]any{"selector": "$.modules[*].hardware"}))
	require.NoError(t, err)
	out := text(t, res)
	assert.True(t, strings.Index(out, "Local:1") < strings.Index(out, "Cube_A"))

	res, err = h.Query(context.Background(), call("query", map[string]any{"selector": "$["}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = h.Query(context.Background(), call("query", nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestEditAndSave(t *testing.T) {
	h := newHandlers(t)
	ctx := context.Background()

	res, err := h.Edit(ctx, call("edit", map[string]any{
		"path":   "Local:1/Inputs/Local:1:I.DATA/Local:1:I.DATA.1",
		"column": float64(3),
		"text":   "Stop pushbutton",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError, text(t, res))
	assert.Contains(t, text(t, res), "Parameter Comment")
	assert.True(t, h.Model.Dirty())

	res, err = h.Save(ctx, call("save", nil))
	require.NoError(t, err)
	assert.Equal(t, "saved "+testutil.FixturePath, text(t, res))
	assert.False(t, h.Model.Dirty())
}

func TestEdit_Rejected(t *testing.T) {
	h := newHandlers(t)
	ctx := context.Background()
	before := h.Model.Document()

	for _, args := range []map[string]any{
		{"path": "Local:1/Inputs/Local:1:I.FAULT", "column": float64(3), "text": "x"},
		{"path": "Local:1/Inputs/Local:1:I.FAULT", "column": float64(0), "text": "x"},
		{"path": "Local:1/Inputs/Local:1:I.FAULT", "text": "x"},
		{"path": "missing", "column": float64(1), "text": "x"},
		{"column": float64(1), "text": "x"},
	} {
		res, err := h.Edit(ctx, call("edit", args))
		require.NoError(t, err)
		assert.True(t, res.IsError, "%v", args)
	}
	assert.Equal(t, before, h.Model.Document())
}

func TestTree_ConcurrentWithEdits(t *testing.T) {
	h := newHandlers(t)
	ctx := context.Background()
	const path = "Local:1/Inputs/Local:1:I.STATUS"

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				res, err := h.Tree(ctx, call("tree", map[string]any{"path": path}))
				assert.NoError(t, err)
				assert.False(t, res.IsError)
			}
		}()
	}
	for j := 0; j < 25; j++ {
		res, err := h.Edit(ctx, call("edit", map[string]any{
			"path":   path,
			"column": float64(1),
			"text":   strings.Repeat("x", j),
		}))
		require.NoError(t, err)
		require.False(t, res.IsError)
	}
	wg.Wait()

	res, err := h.Tree(ctx, call("tree", map[string]any{"path": path}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), strings.Repeat("x", 24))
}
