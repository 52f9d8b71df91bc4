package ingest

import "strings"

// Direction says which group an endpoint belongs to.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Input {
		return "Inputs"
	}
	return "Outputs"
}

// Prefix is the one-character marker placed between a module's hardware
// address and an endpoint operand.
func (d Direction) Prefix() string {
	if d == Input {
		return "I"
	}
	return "O"
}

// Endpoint is one physical I/O point and what it resolved to.
type Endpoint struct {
	Hardware  string // module address + ":" + direction prefix + operand
	HComment  string // hardware comment text
	Parameter string // connected tag reference, "" when unconnected
	PComment  string // description of the connected tag, "" when none
}

// Segments returns the number of dot-separated segments in the hardware
// address.
func (e Endpoint) Segments() int {
	return strings.Count(e.Hardware, ".") + 1
}

// Module is one hardware unit and its endpoints in document order.
type Module struct {
	Hardware string // HardwareAddress
	Name     string // module name; empty for frame devices
	Inputs   []Endpoint
	Outputs  []Endpoint
}

// Endpoints returns the inputs followed by the outputs.
func (m *Module) Endpoints() []Endpoint {
	out := make([]Endpoint, 0, len(m.Inputs)+len(m.Outputs))
	out = append(out, m.Inputs...)
	return append(out, m.Outputs...)
}

// Group returns the endpoints for one direction.
func (m *Module) Group(d Direction) []Endpoint {
	if d == Input {
		return m.Inputs
	}
	return m.Outputs
}
