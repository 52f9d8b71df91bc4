package tests

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/go-cmp/cmp"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/agentic-research/iotree/internal/config"
	"github.com/agentic-research/iotree/internal/export"
	"github.com/agentic-research/iotree/internal/mcpserver"
	"github.com/agentic-research/iotree/internal/nfsmount"
	"github.com/agentic-research/iotree/internal/projection"
	"github.com/agentic-research/iotree/internal/query"
	"github.com/agentic-research/iotree/internal/testutil"
)

// testFixture bundles the shared state for integration tests: the fixture
// document on disk, a model over it and a writable GraphFS on the model.
type testFixture struct {
	docPath string
	model   *projection.Model
	gfs     *nfsmount.GraphFS
}

const (
	dataDir  = "/Local:1/Inputs/Local:1:I.DATA"
	startDir = dataDir + "/Local:1:I.DATA.0"
	stopDir  = dataDir + "/Local:1:I.DATA.1"
)

func setup(t *testing.T) *testFixture {
	t.Helper()

	docPath := filepath.Join(t.TempDir(), "Plant.L5X")
	require.NoError(t, os.WriteFile(docPath, []byte(testutil.Fixture), 0o644))

	m := open(t, docPath)
	gfs := nfsmount.NewGraphFS(context.Background(), m)
	gfs.SetWritable()

	return &testFixture{docPath: docPath, model: m, gfs: gfs}
}

func open(t *testing.T, docPath string) *projection.Model {
	t.Helper()
	m, err := projection.Open(context.Background(), osfs.New("/"), docPath, config.Default())
	require.NoError(t, err)
	return m
}

// writeToNode opens a GraphFS file for writing, writes content, and closes it.
func writeToNode(t *testing.T, gfs *nfsmount.GraphFS, path string, content string) error {
	t.Helper()
	f, err := gfs.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	require.NoError(t, err, "open %s for write", path)
	_, err = f.Write([]byte(content))
	require.NoError(t, err, "write to %s", path)
	return f.Close()
}

func readDoc(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestIntegration_SaveWithoutEditsOnlyReframes(t *testing.T) {
	fix := setup(t)

	require.NoError(t, fix.model.Save(context.Background(), ""))

	got := readDoc(t, fix.docPath)
	require.True(t, strings.HasPrefix(got, "\xef\xbb\xbf"))
	assert.Equal(t, testutil.Fixture, strings.ReplaceAll(got[3:], "\r\n", "\n"))

	// The reframed document projects to the same tree.
	assert.Empty(t, cmp.Diff(fix.model.View(), open(t, fix.docPath).View()))
}

func TestIntegration_MountEditsPersist(t *testing.T) {
	fix := setup(t)

	require.NoError(t, writeToNode(t, fix.gfs, startDir+"/hardware_comment", "Start PB 1\n"))
	require.NoError(t, writeToNode(t, fix.gfs, stopDir+"/parameter_comment", "Stop PB\n"))

	doc := readDoc(t, fix.docPath)
	assert.Contains(t, doc, `<Comment Operand=".DATA.0"><![CDATA[Start PB 1]]></Comment>`)
	assert.Contains(t, doc, `<Tag Name="StopPB" DataType="BOOL"><Description><![CDATA[Stop PB]]></Description></Tag>`)
	assert.False(t, fix.model.Dirty())

	// A fresh load sees exactly what the live tree shows.
	reloaded := open(t, fix.docPath)
	n, err := reloaded.Lookup(strings.TrimPrefix(startDir, "/"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Local:1:I.DATA.0", "Start PB 1", `\MainProgram.StartPB`, "Start pushbutton"}, n.Values())
	n, err = reloaded.Lookup(strings.TrimPrefix(stopDir, "/"))
	require.NoError(t, err)
	assert.Equal(t, "Stop PB", n.Value(3))
	assert.Empty(t, cmp.Diff(fix.model.View(), reloaded.View()))
}

func TestIntegration_SequentialEditsReuseCreatedDescription(t *testing.T) {
	fix := setup(t)

	require.NoError(t, writeToNode(t, fix.gfs, stopDir+"/parameter_comment", "First\n"))
	require.NoError(t, writeToNode(t, fix.gfs, stopDir+"/parameter_comment", "Second\n"))

	doc := readDoc(t, fix.docPath)
	assert.Equal(t, 1, strings.Count(doc, `<Tag Name="StopPB" DataType="BOOL"><Description>`))
	assert.Contains(t, doc, "<![CDATA[Second]]>")
	assert.NotContains(t, doc, "First")
}

func TestIntegration_RejectedEditLeavesFileUntouched(t *testing.T) {
	fix := setup(t)

	// .FAULT has no connected parameter, so no tag to describe.
	err := writeToNode(t, fix.gfs, dataDir[:strings.LastIndex(dataDir, "/")]+"/Local:1:I.FAULT/parameter_comment", "x\n")
	assert.Error(t, err)
	// Illegal XML character.
	err = writeToNode(t, fix.gfs, startDir+"/hardware_comment", "bad\x01\n")
	assert.Error(t, err)

	assert.Equal(t, testutil.Fixture, readDoc(t, fix.docPath))
	assert.False(t, fix.model.Dirty())
}

func TestIntegration_ReloadAfterExternalChange(t *testing.T) {
	fix := setup(t)
	ctx := context.Background()

	stale, err := fix.model.Lookup(strings.TrimPrefix(startDir, "/"))
	require.NoError(t, err)

	changed := strings.Replace(testutil.Fixture, "Start button", "Changed outside", 1)
	require.NoError(t, os.WriteFile(fix.docPath, []byte(changed), 0o644))
	require.NoError(t, fix.model.Reload(ctx))

	assert.Error(t, fix.model.SetData(ctx, stale, 1, "x"), "nodes from before the reload are rejected")
	n, err := fix.model.Lookup(strings.TrimPrefix(startDir, "/"))
	require.NoError(t, err)
	assert.Equal(t, "Changed outside", n.Value(1))
}

func TestIntegration_ExportAndQueryAfterEdit(t *testing.T) {
	fix := setup(t)
	ctx := context.Background()
	require.NoError(t, writeToNode(t, fix.gfs, startDir+"/hardware_comment", "Start PB 1\n"))

	matches, err := query.View(fix.model.View(), `$..endpoints[*].children[?(@.hardware == "Local:1:I.DATA.0")].hardware_comment`)
	require.NoError(t, err)
	assert.Equal(t, []any{"Start PB 1"}, matches)

	dbPath := filepath.Join(t.TempDir(), "plant.db")
	require.NoError(t, export.Write(ctx, dbPath, fix.model.View()))

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	var comment, parent string
	var depth int
	require.NoError(t, db.QueryRow(
		`SELECT hardware_comment, parent_hardware, depth FROM endpoints WHERE hardware = ?`,
		"Local:1:I.DATA.0").Scan(&comment, &parent, &depth))
	assert.Equal(t, "Start PB 1", comment)
	assert.Equal(t, "Local:1:I.DATA", parent)
	assert.Equal(t, 4, depth)
}

func TestIntegration_MCPEditThenSave(t *testing.T) {
	fix := setup(t)
	ctx := context.Background()
	h := &mcpserver.Handlers{Model: fix.model}

	var req mcp.CallToolRequest
	req.Params.Name = "edit"
	req.Params.Arguments = map[string]any{
		"path":   "Cube_A/Inputs/Cube_A:I.PT01",
		"column": float64(1),
		"text":   "Line pressure",
	}
	res, err := h.Edit(ctx, req)
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, testutil.Fixture, readDoc(t, fix.docPath), "nothing is written before save")

	var save mcp.CallToolRequest
	save.Params.Name = "save"
	res, err = h.Save(ctx, save)
	require.NoError(t, err)
	require.False(t, res.IsError)

	n, err := open(t, fix.docPath).Lookup("Cube_A/Inputs/Cube_A:I.PT01")
	require.NoError(t, err)
	assert.Equal(t, "Line pressure", n.Value(1))
	assert.Equal(t, "Line pressure", n.Value(3))
}
