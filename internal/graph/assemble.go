package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentic-research/iotree/internal/ctxlog"
	"github.com/agentic-research/iotree/internal/ingest"
)

// Tree is an assembled hierarchy.
type Tree struct {
	Root     *Node // header sentinel
	Document *Node // single child of Root, named after the loaded file
}

// Assemble builds the hierarchy for modules.
//
// The primary pass creates module, group and leaf nodes for every endpoint
// whose hardware address has exactly two dot-separated segments. The
// secondary pass then attaches every three-segment endpoint below the leaf
// keyed by its first two segments, wherever in the tree that leaf is.
// Endpoints with any other segment count, and three-segment endpoints with
// no matching leaf, are left out.
func Assemble(ctx context.Context, docName string, modules []ingest.Module) *Tree {
	root := NewRoot()
	docNode := root.AddChild(KindDocument, docName)

	// Leaf key -> first leaf built with that key.
	leaves := make(map[string]*Node)

	for _, m := range modules {
		mod := docNode.AddChild(KindModule, m.Hardware, m.Name)
		for _, dir := range []ingest.Direction{ingest.Input, ingest.Output} {
			group := mod.AddChild(KindGroup, dir.String())
			for _, ep := range m.Group(dir) {
				if ep.Segments() != 2 {
					continue
				}
				leaf := group.AddChild(KindEndpoint, endpointRow(ep)...)
				if _, ok := leaves[ep.Hardware]; !ok {
					leaves[ep.Hardware] = leaf
				}
			}
		}
	}

	attached, omitted := 0, 0
	for _, m := range modules {
		for _, ep := range m.Endpoints() {
			switch ep.Segments() {
			case 2:
				continue
			case 3:
				if base, ok := leaves[BaseKey(ep.Hardware)]; ok {
					base.AddChild(KindEndpoint, endpointRow(ep)...)
					attached++
					continue
				}
			}
			omitted++
		}
	}

	ctxlog.FromContext(ctx).Debug("Assembled tree.",
		"modules", len(modules),
		"attached", attached,
		"omitted", omitted)
	return &Tree{Root: root, Document: docNode}
}

// BaseKey returns the first two dot-separated segments of a hardware
// address.
func BaseKey(hardware string) string {
	parts := strings.SplitN(hardware, ".", 3)
	if len(parts) < 2 {
		return hardware
	}
	return parts[0] + "." + parts[1]
}

func endpointRow(ep ingest.Endpoint) []string {
	return []string{ep.Hardware, ep.HComment, ep.Parameter, ep.PComment}
}

// Lookup resolves a node path as produced by Node.Path. At every level the
// first child with a matching key wins. The empty path is the document
// node.
func (t *Tree) Lookup(path string) (*Node, error) {
	cur := t.Document
	if path == "" {
		return cur, nil
	}
	for _, key := range strings.Split(path, "/") {
		var next *Node
		for _, c := range cur.children {
			if c.Key() == key {
				next = c
				break
			}
		}
		if next == nil {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		cur = next
	}
	return cur, nil
}

// Endpoints returns every endpoint node in display order.
func (t *Tree) Endpoints() []*Node {
	var out []*Node
	t.Document.Walk(func(n *Node) bool {
		if n.Kind == KindEndpoint {
			out = append(out, n)
		}
		return true
	})
	return out
}
