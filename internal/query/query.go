// Package query evaluates JSONPath expressions against the JSON view of an
// I/O tree.
package query

import (
	"encoding/json"
	"fmt"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/iotree/api"
)

// Generic converts the view into plain maps and slices so JSONPath can walk
// it by the view's JSON field names.
func Generic(view *api.Tree) (any, error) {
	b, err := json.Marshal(view)
	if err != nil {
		return nil, fmt.Errorf("encode view: %w", err)
	}
	data, err := oj.Parse(b)
	if err != nil {
		return nil, fmt.Errorf("decode view: %w", err)
	}
	return data, nil
}

// Run evaluates selector against root and returns the matches in order.
func Run(root any, selector string) ([]any, error) {
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
	}
	return x.Get(root), nil
}

// View evaluates selector against the JSON view.
func View(view *api.Tree, selector string) ([]any, error) {
	root, err := Generic(view)
	if err != nil {
		return nil, err
	}
	return Run(root, selector)
}

// Render formats matches as indented JSON.
func Render(matches []any) string {
	if matches == nil {
		matches = []any{}
	}
	return oj.JSON(matches, &oj.Options{Indent: 2})
}
