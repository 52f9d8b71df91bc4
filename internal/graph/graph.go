// Package graph holds the display hierarchy built from resolved modules:
// a header sentinel, one node for the loaded document, module nodes,
// their Inputs/Outputs groups and endpoint leaves.
package graph

import (
	"errors"
	"strings"
)

var ErrNotFound = errors.New("node not found")

// Column indices of an endpoint row.
const (
	ColHardware = iota
	ColHardwareComment
	ColParameter
	ColParameterComment

	ColumnCount
)

// Headers are the labels carried by the root sentinel.
var Headers = []string{"Hardware", "Hardware Comment", "Connected Parameter", "Parameter Comment"}

// Kind says what a node stands for.
type Kind int

const (
	KindHeader Kind = iota
	KindDocument
	KindModule
	KindGroup
	KindEndpoint
)

func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindDocument:
		return "document"
	case KindModule:
		return "module"
	case KindGroup:
		return "group"
	case KindEndpoint:
		return "endpoint"
	}
	return "unknown"
}

// Node is one row of the hierarchy. A node owns its children; the parent
// pointer is only used to find a node's position and path.
type Node struct {
	Kind Kind

	parent   *Node
	children []*Node
	values   [ColumnCount]string
	depth    int
}

// NewRoot returns the header sentinel at depth -1.
func NewRoot() *Node {
	n := &Node{Kind: KindHeader, depth: -1}
	copy(n.values[:], Headers)
	return n
}

// AddChild appends a node holding values (missing trailing columns are "")
// and returns it.
func (n *Node) AddChild(kind Kind, values ...string) *Node {
	c := &Node{Kind: kind, parent: n, depth: n.depth + 1}
	copy(c.values[:], values)
	n.children = append(n.children, c)
	return c
}

func (n *Node) Parent() *Node { return n.parent }

func (n *Node) Depth() int { return n.depth }

// Children returns the node's children. Callers must not modify the slice.
func (n *Node) Children() []*Node { return n.children }

// Len returns the number of children.
func (n *Node) Len() int { return len(n.children) }

// Child returns the i-th child, or nil when i is out of range.
func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// Row returns the node's position among its parent's children, or 0 for
// the root.
func (n *Node) Row() int {
	if n.parent == nil {
		return 0
	}
	for i, c := range n.parent.children {
		if c == n {
			return i
		}
	}
	return 0
}

// Value returns column col, or "" when col is out of range.
func (n *Node) Value(col int) string {
	if col < 0 || col >= ColumnCount {
		return ""
	}
	return n.values[col]
}

// SetValue replaces column col. Out-of-range columns are ignored.
func (n *Node) SetValue(col int, v string) {
	if col < 0 || col >= ColumnCount {
		return
	}
	n.values[col] = v
}

// Values returns a copy of the row.
func (n *Node) Values() []string {
	out := make([]string, ColumnCount)
	copy(out, n.values[:])
	return out
}

// Key is the node's first column.
func (n *Node) Key() string { return n.values[ColHardware] }

// Path joins the keys from the module level down to n with "/". The header
// and document nodes have an empty path.
func (n *Node) Path() string {
	var parts []string
	for cur := n; cur != nil && cur.depth >= 1; cur = cur.parent {
		parts = append(parts, cur.Key())
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// Walk visits n and its descendants depth-first in child order. Returning
// false from fn skips the node's subtree.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}
