package cmd

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/agentic-research/iotree/api"
	"github.com/agentic-research/iotree/internal/testutil"
	"github.com/agentic-research/iotree/internal/writeback"
)

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Plant.L5X")
	require.NoError(t, os.WriteFile(path, []byte(testutil.Fixture), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestShow(t *testing.T) {
	doc := writeFixture(t)

	out, err := run(t, "show", doc)
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	assert.Equal(t, "Hardware\tHardware Comment\tConnected Parameter\tParameter Comment", lines[0])
	assert.Equal(t, "Plant.L5X", lines[1])
	assert.Equal(t, "  Local:1\tDI_Card", lines[2])
	assert.Equal(t, "    Inputs", lines[3])
	assert.Equal(t, "      Local:1:I.DATA\tInputs word", lines[4])
	assert.Equal(t, "        Local:1:I.DATA.0\tStart button\t\\MainProgram.StartPB\tStart pushbutton", lines[5])
	assert.Contains(t, out, "  Cube_A\n")
}

func TestShow_JSON(t *testing.T) {
	doc := writeFixture(t)

	out, err := run(t, "show", "--json", doc)
	require.NoError(t, err)
	var view api.Tree
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, api.Version, view.Version)
	assert.Equal(t, "Plant.L5X", view.Document)
	require.Len(t, view.Modules, 3)
	assert.Equal(t, "Local:1", view.Modules[0].Hardware)
}

func TestEdit_InPlace(t *testing.T) {
	doc := writeFixture(t)

	out, err := run(t, "edit", doc, "Local:1/Inputs/Local:1:I.FAULT", "--column", "1", "--text", "New Label")
	require.NoError(t, err)
	assert.Contains(t, out, `Hardware Comment = "New Label"`)

	got, err := os.ReadFile(doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(got, []byte("\xef\xbb\xbf")))
	assert.Contains(t, string(got), `<Comment Operand=".FAULT"><![CDATA[New Label]]></Comment>`)

	out, err = run(t, "show", doc)
	require.NoError(t, err)
	assert.Contains(t, out, "Local:1:I.FAULT\tNew Label")
}

func TestEdit_Out(t *testing.T) {
	doc := writeFixture(t)
	target := filepath.Join(t.TempDir(), "edited.L5X")

	_, err := run(t, "edit", doc, "Local:1/Inputs/Local:1:I.DATA/Local:1:I.DATA.1",
		"--column", "3", "--text", "Stop pushbutton", "--out", target)
	require.NoError(t, err)

	orig, err := os.ReadFile(doc)
	require.NoError(t, err)
	assert.Equal(t, testutil.Fixture, string(orig))

	edited, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(edited), `<Tag Name="StopPB" DataType="BOOL"><Description><![CDATA[Stop pushbutton]]></Description></Tag>`)
}

func TestEdit_Rejected(t *testing.T) {
	doc := writeFixture(t)

	_, err := run(t, "edit", doc, "Local:1/Inputs/Local:1:I.FAULT", "--column", "3", "--text", "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, writeback.ErrEditRejected)

	_, err = run(t, "edit", doc, "Local:1/Inputs/Local:1:I.FAULT", "--column", "2", "--text", "x")
	assert.ErrorIs(t, err, writeback.ErrBadColumn)

	_, err = run(t, "edit", doc, "Local:1/Inputs/Local:1:I.FAULT")
	assert.Error(t, err, "--text is required")

	got, err := os.ReadFile(doc)
	require.NoError(t, err)
	assert.Equal(t, testutil.Fixture, string(got))
}

func TestExport(t *testing.T) {
	doc := writeFixture(t)
	dbPath := filepath.Join(t.TempDir(), "plant.db")

	_, err := run(t, "export", doc, dbPath)
	require.NoError(t, err)

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var modules, endpoints int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM modules`).Scan(&modules))
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM endpoints`).Scan(&endpoints))
	assert.Equal(t, 3, modules)
	assert.Equal(t, 8, endpoints)
}

func TestQuery(t *testing.T) {
	doc := writeFixture(t)

	out, err := run(t, "query", doc, "$.modules[*].name")
	require.NoError(t, err)
	var names []string
	require.NoError(t, json.Unmarshal([]byte(out), &names))
	assert.Equal(t, []string{"DI_Card", "DO_Card", ""}, names)

	_, err = run(t, "query", doc, "$[")
	assert.Error(t, err)
}

func TestConfigAndFlags(t *testing.T) {
	doc := writeFixture(t)

	_, err := run(t, "--config", filepath.Join(t.TempDir(), "missing.hcl"), "show", doc)
	assert.Error(t, err)

	_, err = run(t, "--log-level", "loud", "show", doc)
	assert.ErrorContains(t, err, "log_level")

	cfgPath := filepath.Join(t.TempDir(), "iotree.hcl")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`frame_device_markers = ["Nothing"]`+"\n"), 0o644))
	out, err := run(t, "--config", cfgPath, "--log-format", "json", "show", doc)
	require.NoError(t, err)
	assert.Contains(t, out, "  Local:3\tCube_A\n", "Cube_A is addressed by its port once it is not a frame device")
}

func TestMissingDocument(t *testing.T) {
	_, err := run(t, "show", filepath.Join(t.TempDir(), "nope.L5X"))
	assert.Error(t, err)
}
