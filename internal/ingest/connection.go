package ingest

import (
	"strings"

	"github.com/agentic-research/iotree/internal/document"
)

// Connection is one ParameterConnection edge with its endpoints sorted into
// the hardware side and the tag side.
type Connection struct {
	Hardware string // normalized hardware endpoint
	Tag      string // tag reference as written
}

// ParseConnection sorts a pair of endpoints. The endpoint starting with a
// backslash is the tag side; if EndPoint1 is not one, EndPoint2 is taken as
// the tag side.
func ParseConnection(endpoint1, endpoint2 string) Connection {
	hw, tag := endpoint1, endpoint2
	if strings.HasPrefix(endpoint1, `\`) {
		hw, tag = endpoint2, endpoint1
	}
	return Connection{Hardware: NormalizeHardware(hw), Tag: tag}
}

// NormalizeHardware uppercases the port segment (the second ":"-separated
// segment) of a hardware endpoint.
func NormalizeHardware(hw string) string {
	parts := strings.Split(hw, ":")
	if len(parts) < 2 {
		return hw
	}
	parts[1] = strings.ToUpper(parts[1])
	return strings.Join(parts, ":")
}

// ConnectionIndex answers hardware -> tag lookups over every
// ParameterConnection in a document. When several edges share a hardware
// endpoint the first one in document order wins.
type ConnectionIndex struct {
	edges      []Connection
	byHardware map[string]string
}

// NewConnectionIndex collects the document's ParameterConnection edges.
func NewConnectionIndex(doc *document.Document) *ConnectionIndex {
	elems := doc.FindAllByTag("ParameterConnection")
	idx := &ConnectionIndex{
		edges:      make([]Connection, 0, len(elems)),
		byHardware: make(map[string]string, len(elems)),
	}
	for _, e := range elems {
		c := ParseConnection(e.Attr("EndPoint1"), e.Attr("EndPoint2"))
		idx.edges = append(idx.edges, c)
		if _, seen := idx.byHardware[c.Hardware]; !seen {
			idx.byHardware[c.Hardware] = c.Tag
		}
	}
	return idx
}

// Resolve returns the tag reference wired to hardware, or "".
func (idx *ConnectionIndex) Resolve(hardware string) string {
	return idx.byHardware[hardware]
}

// Edges returns the parsed edges in document order.
func (idx *ConnectionIndex) Edges() []Connection {
	return idx.edges
}
