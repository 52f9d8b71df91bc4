// Package mcpserver exposes a projection over the Model Context Protocol:
// tools to read the tree, run JSONPath queries, edit comments and save.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/agentic-research/iotree/internal/ctxlog"
	"github.com/agentic-research/iotree/internal/graph"
	"github.com/agentic-research/iotree/internal/projection"
	"github.com/agentic-research/iotree/internal/query"
	"github.com/agentic-research/iotree/internal/writeback"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Handlers implements the tool handlers over one model. Edits are saved
// right away only when the model was opened with autosave.
type Handlers struct {
	Model *projection.Model
}

// New creates the MCP server with every tool registered.
func New(h *Handlers) *server.MCPServer {
	s := server.NewMCPServer(
		"iotree",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	s.AddTool(mcp.NewTool("tree",
		mcp.WithDescription("Return the I/O tree as JSON, or one node and its children when path is given."),
		mcp.WithString("path", mcp.Description("Node path such as Local:1/Inputs/Local:1:I.DATA")),
	), h.Tree)

	s.AddTool(mcp.NewTool("query",
		mcp.WithDescription("Evaluate a JSONPath expression against the JSON view of the tree."),
		mcp.WithString("selector", mcp.Required(), mcp.Description("JSONPath, e.g. $.modules[*].hardware")),
	), h.Query)

	s.AddTool(mcp.NewTool("edit",
		mcp.WithDescription("Set the hardware comment (column 1) or parameter comment (column 3) of an endpoint."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Endpoint node path")),
		mcp.WithNumber("column", mcp.Required(), mcp.Description("1 or 3")),
		mcp.WithString("text", mcp.Required(), mcp.Description("New comment text")),
	), h.Edit)

	s.AddTool(mcp.NewTool("save",
		mcp.WithDescription("Write the document to disk (UTF-8 with BOM, CRLF line endings)."),
		mcp.WithString("path", mcp.Description("Target path; defaults to the loaded document")),
	), h.Save)

	return s
}

// Serve runs the server over stdin/stdout until the client disconnects.
func Serve(ctx context.Context, h *Handlers) error {
	ctxlog.FromContext(ctx).Info("Serving MCP over stdio.", "document", h.Model.Path())
	return server.ServeStdio(New(h))
}

const instructions = `iotree projects an industrial controller configuration into a tree:
modules, their Inputs/Outputs groups and I/O endpoints. Each endpoint row is
[hardware, hardware comment, connected parameter, parameter comment].
Use "tree" or "query" to read, "edit" to change a comment and "save" to persist.`

type nodeView struct {
	Path     string   `json:"path"`
	Kind     string   `json:"kind"`
	Values   []string `json:"values"`
	Mismatch bool     `json:"mismatch"`
	Children []string `json:"children"`
}

func (h *Handlers) Tree(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetString("path", "")
	if path == "" {
		return jsonResult(h.Model.View())
	}

	n, err := h.Model.Lookup(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	// Keys are column 0, which edits never touch.
	v := nodeView{
		Path:     n.Path(),
		Kind:     n.Kind.String(),
		Values:   h.Model.Values(n),
		Mismatch: h.Model.Mismatch(n),
		Children: []string{},
	}
	for i := 0; i < h.Model.RowCount(n); i++ {
		v.Children = append(v.Children, h.Model.Child(n, i).Key())
	}
	return jsonResult(v)
}

func (h *Handlers) Query(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	selector, err := request.RequireString("selector")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	matches, err := query.View(h.Model.View(), selector)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(query.Render(matches)), nil
}

func (h *Handlers) Edit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	col := request.GetInt("column", -1)

	n, err := h.Model.Lookup(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := h.Model.SetData(ctx, n, col, text); err != nil {
		if errors.Is(err, writeback.ErrEditRejected) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, err
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s = %q", path, graph.Headers[col], text)), nil
}

func (h *Handlers) Save(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetString("path", "")
	if err := h.Model.Save(ctx, path); err != nil {
		return nil, err
	}
	if path == "" {
		path = h.Model.Path()
	}
	return mcp.NewToolResultText("saved " + path), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}
