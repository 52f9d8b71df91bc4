// Package ingest extracts hardware modules and their I/O endpoints from a
// configuration document and resolves each endpoint to the program tag it
// is wired to and that tag's description.
package ingest

import (
	"context"

	"github.com/agentic-research/iotree/internal/ctxlog"
	"github.com/agentic-research/iotree/internal/document"
)

// Engine drives extraction and the two resolution passes.
type Engine struct {
	Extractor *Extractor
}

func NewEngine(frameDeviceMarkers []string) *Engine {
	return &Engine{
		Extractor: &Extractor{FrameDeviceMarkers: frameDeviceMarkers},
	}
}

// Ingest returns the document's modules with every endpoint resolved.
// It never modifies doc.
func (e *Engine) Ingest(ctx context.Context, doc *document.Document) []Module {
	logger := ctxlog.FromContext(ctx)

	modules := e.Extractor.Extract(doc)

	// Pass 1: hardware -> tag reference.
	conns := NewConnectionIndex(doc)
	connected := 0
	for i := range modules {
		for _, group := range [][]Endpoint{modules[i].Inputs, modules[i].Outputs} {
			for j := range group {
				group[j].Parameter = conns.Resolve(group[j].Hardware)
				if group[j].Parameter != "" {
					connected++
				}
			}
		}
	}

	// Pass 2: tag reference -> description.
	descs := &DescriptionResolver{Doc: doc}
	for i := range modules {
		for _, group := range [][]Endpoint{modules[i].Inputs, modules[i].Outputs} {
			for j := range group {
				group[j].PComment = descs.Resolve(group[j].Parameter)
			}
		}
	}

	logger.Debug("Resolved endpoints.",
		"modules", len(modules),
		"connections", len(conns.Edges()),
		"connected_endpoints", connected)
	return modules
}

// ResolveEndpoint runs both resolution passes for a single endpoint.
func (e *Engine) ResolveEndpoint(doc *document.Document, ep Endpoint) Endpoint {
	ep.Parameter = NewConnectionIndex(doc).Resolve(ep.Hardware)
	ep.PComment = (&DescriptionResolver{Doc: doc}).Resolve(ep.Parameter)
	return ep
}
