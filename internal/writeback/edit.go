// Package writeback applies edits made to the display hierarchy to the
// configuration document. The target element is re-derived from the
// edited row's strings on every edit; no element pointers are kept
// between edits.
package writeback

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agentic-research/iotree/internal/ctxlog"
	"github.com/agentic-research/iotree/internal/document"
	"github.com/agentic-research/iotree/internal/graph"
	"github.com/agentic-research/iotree/internal/ingest"
)

var (
	// ErrEditRejected wraps every edit that was not applied. Neither the
	// document nor the node changed.
	ErrEditRejected = errors.New("edit rejected")

	ErrTargetNotFound = errors.New("target element not found")
	ErrBadColumn      = errors.New("column is not editable")
)

// Editable reports whether col accepts edits.
func Editable(col int) bool {
	return col == graph.ColHardwareComment || col == graph.ColParameterComment
}

// Apply writes text into the document element behind node's column col and
// then into the node itself. On failure the returned error wraps
// ErrEditRejected and nothing was modified.
func Apply(ctx context.Context, doc *document.Document, node *graph.Node, col int, text string) error {
	logger := ctxlog.FromContext(ctx)

	if node == nil {
		return fmt.Errorf("%w: no node: %w", ErrEditRejected, ErrTargetNotFound)
	}
	if err := apply(doc, node, col, text); err != nil {
		logger.Warn("Edit rejected.",
			"hardware", node.Key(),
			"column", col,
			"error", err)
		return fmt.Errorf("%w: %s column %d: %w", ErrEditRejected, node.Key(), col, err)
	}
	node.SetValue(col, text)
	logger.Debug("Edit applied.", "hardware", node.Key(), "column", col)
	return nil
}

func apply(doc *document.Document, node *graph.Node, col int, text string) error {
	if !Editable(col) {
		return ErrBadColumn
	}
	if node.Kind != graph.KindEndpoint {
		return fmt.Errorf("not an endpoint row: %w", ErrTargetNotFound)
	}
	if err := Validate(text); err != nil {
		return err
	}

	if col == graph.ColHardwareComment {
		c, err := FindHardwareComment(doc, node.Value(graph.ColHardware))
		if err != nil {
			return err
		}
		return doc.SetText(c, text)
	}

	tag, err := FindParameterTag(doc, node.Value(graph.ColParameter))
	if err != nil {
		return err
	}
	if d := tag.Child("Description"); d != nil {
		return doc.SetText(d, text)
	}
	_, err = doc.InsertFirstChild(tag, "Description", text)
	return err
}

// FindHardwareComment locates the Comment element for a hardware address
// such as "Local:1:I.DATA.0" or "Cube_A:I.PT01".
//
// The first ":" segment names the module and the last segment, minus its
// direction prefix, is the operand. Modules are searched by Name first;
// if none carries the operand, the search is repeated over modules whose
// ParentModule:Address equals the first two segments.
func FindHardwareComment(doc *document.Document, hardware string) (*document.Element, error) {
	parts := strings.Split(hardware, ":")
	last := parts[len(parts)-1]
	if len(parts) < 2 || last == "" {
		return nil, fmt.Errorf("hardware address %q: %w", hardware, ErrTargetNotFound)
	}
	operand := last[1:]

	modules := doc.FindAllByTag("Module")
	for _, m := range modules {
		if m.Attr("Name") != parts[0] {
			continue
		}
		if c := findOperand(m, operand); c != nil {
			return c, nil
		}
	}

	if len(parts) >= 3 {
		addr := parts[0] + ":" + parts[1]
		for _, m := range modules {
			if ingest.ParentAddress(m) != addr {
				continue
			}
			if c := findOperand(m, operand); c != nil {
				return c, nil
			}
		}
	}
	return nil, fmt.Errorf("no module comment for %q: %w", hardware, ErrTargetNotFound)
}

func findOperand(module *document.Element, operand string) *document.Element {
	for _, c := range module.Descendants("Comment") {
		if c.Attr("Operand") == operand {
			return c
		}
	}
	return nil
}

// FindParameterTag locates the Tag element a `\Program.Tag` reference
// points to.
func FindParameterTag(doc *document.Document, parameter string) (*document.Element, error) {
	program, tag, ok := ingest.SplitTagReference(parameter)
	if !ok {
		return nil, fmt.Errorf("parameter %q is not a tag reference: %w", parameter, ErrTargetNotFound)
	}
	t := ingest.FindTag(doc, program, tag)
	if t == nil {
		return nil, fmt.Errorf("no tag %s in program %s: %w", tag, program, ErrTargetNotFound)
	}
	return t, nil
}
