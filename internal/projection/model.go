// Package projection is the query and edit surface over one loaded
// configuration document and the tree assembled from it. A single lock
// guards both: loads and edits take it exclusively, reads share it.
package projection

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	billy "github.com/go-git/go-billy/v5"

	"github.com/agentic-research/iotree/internal/config"
	"github.com/agentic-research/iotree/internal/ctxlog"
	"github.com/agentic-research/iotree/internal/document"
	"github.com/agentic-research/iotree/internal/graph"
	"github.com/agentic-research/iotree/internal/ingest"
	"github.com/agentic-research/iotree/internal/writeback"
)

// ErrStaleNode is returned (wrapped in writeback.ErrEditRejected) for edits
// on nodes of a tree that has since been reloaded.
var ErrStaleNode = errors.New("node is not part of the current tree")

// Model owns a document and its tree.
type Model struct {
	mu sync.RWMutex

	fsys     billy.Filesystem
	path     string
	autosave bool
	engine   *ingest.Engine

	doc       *document.Document
	tree      *graph.Tree
	dirty     bool
	highlight bool
}

// Open loads path from fsys and assembles its tree. A nil cfg uses
// config.Default.
func Open(ctx context.Context, fsys billy.Filesystem, path string, cfg *config.Config) (*Model, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	m := &Model{
		fsys:     fsys,
		path:     path,
		autosave: cfg.Autosave,
		engine:   ingest.NewEngine(cfg.FrameDeviceMarkers),
	}
	if err := m.Reload(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Reload re-reads the document and rebuilds the tree. Nodes handed out
// before the reload must not be used afterwards. On error the previous
// state is kept.
func (m *Model) Reload(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := document.Load(m.fsys, m.path)
	if err != nil {
		return err
	}
	modules := m.engine.Ingest(ctx, doc)
	tree := graph.Assemble(ctx, filepath.Base(m.path), modules)
	m.doc, m.tree, m.dirty = doc, tree, false

	logger.Info("Loaded document.",
		"path", m.path,
		"elements", doc.Len(),
		"modules", len(modules))
	return nil
}

// Save writes the document to path, or to the loaded path when path is "".
func (m *Model) Save(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(ctx, path)
}

func (m *Model) save(ctx context.Context, path string) error {
	if path == "" {
		path = m.path
	}
	if err := m.doc.Save(m.fsys, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	if path == m.path {
		m.dirty = false
	}
	ctxlog.FromContext(ctx).Info("Saved document.", "path", path)
	return nil
}

// Path returns the loaded document path.
func (m *Model) Path() string { return m.path }

// Dirty reports whether edits were applied since the last load or save to
// the loaded path.
func (m *Model) Dirty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dirty
}

// Document returns a copy of the document's current bytes, unframed.
func (m *Model) Document() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.doc.Bytes()
}

// Root returns the header sentinel.
func (m *Model) Root() *graph.Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Root
}

// Headers returns the column labels.
func (m *Model) Headers() []string {
	out := make([]string, len(graph.Headers))
	copy(out, graph.Headers)
	return out
}

// RowCount returns the number of children of node; nil means the root.
func (m *Model) RowCount(node *graph.Node) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.node(node).Len()
}

// ColumnCount is the same for every node.
func (m *Model) ColumnCount(*graph.Node) int {
	return graph.ColumnCount
}

// Data returns the value in column col of node.
func (m *Model) Data(node *graph.Node, col int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.node(node).Value(col)
}

// Values returns a copy of node's row.
func (m *Model) Values(node *graph.Node) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.node(node).Values()
}

// Editable reports whether column col accepts edits.
func (m *Model) Editable(col int) bool {
	return writeback.Editable(col)
}

// Parent returns node's parent, or nil for the root.
func (m *Model) Parent(node *graph.Node) *graph.Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.node(node).Parent()
}

// Child returns the row-th child of node, or nil.
func (m *Model) Child(node *graph.Node, row int) *graph.Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.node(node).Child(row)
}

// Lookup resolves a node path (see graph.Node.Path).
func (m *Model) Lookup(path string) (*graph.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Lookup(path)
}

// SetData applies an edit to column col of node. A nil error means both
// the document and the node hold text. With autosave the document is then
// saved to the loaded path.
func (m *Model) SetData(ctx context.Context, node *graph.Node, col int, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if node != nil && !m.current(node) {
		return fmt.Errorf("%w: %w", writeback.ErrEditRejected, ErrStaleNode)
	}
	if err := writeback.Apply(ctx, m.doc, node, col, text); err != nil {
		return err
	}
	m.dirty = true
	if m.autosave {
		return m.save(ctx, "")
	}
	return nil
}

// ToggleHighlight flips the highlight flag and returns the new value.
func (m *Model) ToggleHighlight() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.highlight = !m.highlight
	return m.highlight
}

func (m *Model) Highlighted() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.highlight
}

// Mismatch reports whether column 1 of node differs from column 3. It
// holds for any row kind: a module row carries its name in column 1 and
// nothing in column 3, so it always reports a mismatch.
func (m *Model) Mismatch(node *graph.Node) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := m.node(node)
	return n.Value(graph.ColHardwareComment) != n.Value(graph.ColParameterComment)
}

// node maps nil to the root. Must be called with m.mu held.
func (m *Model) node(n *graph.Node) *graph.Node {
	if n == nil {
		return m.tree.Root
	}
	return n
}

// current reports whether n belongs to the live tree. Must be called with
// m.mu held.
func (m *Model) current(n *graph.Node) bool {
	for n.Parent() != nil {
		n = n.Parent()
	}
	return n == m.tree.Root
}
