package ingest

import (
	"strings"

	"github.com/agentic-research/iotree/internal/document"
)

// EndpointGroups are the module sections that carry per-point comments, in
// the order they are collected.
var EndpointGroups = []string{"InputTag", "InAliasTag", "OutputTag", "OutAliasTag"}

// DirectionOf maps an endpoint group name to its direction: names starting
// with "I" are inputs, everything else is an output.
func DirectionOf(group string) Direction {
	if strings.HasPrefix(group, "I") {
		return Input
	}
	return Output
}

// Extractor walks Module elements and gathers their endpoints.
type Extractor struct {
	// FrameDeviceMarkers select modules addressed by their own name.
	FrameDeviceMarkers []string
}

// IsFrameDevice reports whether the module name marks an enclosure or frame
// device.
func (x *Extractor) IsFrameDevice(name string) bool {
	for _, m := range x.FrameDeviceMarkers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

// HardwareAddress returns the join key for a module: its own name for frame
// devices, ParentModule:Address otherwise.
func (x *Extractor) HardwareAddress(module *document.Element) string {
	name := module.Attr("Name")
	if x.IsFrameDevice(name) {
		return name
	}
	return ParentAddress(module)
}

// ParentAddress returns ParentModule:Address, where Address comes from the
// module's first port.
func ParentAddress(module *document.Element) string {
	return module.Attr("ParentModule") + ":" + PortAddress(module)
}

// PortAddress returns the Address of the module's first port, or "".
func PortAddress(module *document.Element) string {
	ports := module.Child("Ports")
	if ports == nil {
		return ""
	}
	first := ports.FirstChild()
	if first == nil {
		return ""
	}
	return first.Attr("Address")
}

// Extract returns every module that has at least one endpoint, in document
// order. Endpoints are unresolved: Parameter and PComment are empty.
func (x *Extractor) Extract(doc *document.Document) []Module {
	var modules []Module
	for _, el := range doc.FindAllByTag("Module") {
		m := x.extractModule(el)
		if len(m.Inputs) == 0 && len(m.Outputs) == 0 {
			continue
		}
		modules = append(modules, m)
	}
	return modules
}

func (x *Extractor) extractModule(el *document.Element) Module {
	m := Module{
		Hardware: x.HardwareAddress(el),
		Name:     el.Attr("Name"),
	}
	if x.IsFrameDevice(m.Name) {
		m.Name = ""
	}

	for _, group := range EndpointGroups {
		dir := DirectionOf(group)
		for _, section := range el.Descendants(group) {
			for _, c := range section.Descendants("Comment") {
				ep := Endpoint{
					Hardware: m.Hardware + ":" + dir.Prefix() + c.Attr("Operand"),
					HComment: c.Text(),
				}
				if dir == Input {
					m.Inputs = append(m.Inputs, ep)
				} else {
					m.Outputs = append(m.Outputs, ep)
				}
			}
		}
	}
	return m
}
