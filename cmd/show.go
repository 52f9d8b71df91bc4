package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentic-research/iotree/internal/graph"
	"github.com/agentic-research/iotree/internal/projection"
)

func newShowCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <document>",
		Short: "Print the I/O tree of a controller configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(m.View())
			}
			return printTree(out, m)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the JSON view instead of the indented tree")
	return cmd
}

// printTree writes one line per node: two spaces of indent per level and
// tab-separated columns with trailing empty columns dropped.
func printTree(w io.Writer, m *projection.Model) error {
	if _, err := fmt.Fprintln(w, strings.Join(m.Headers(), "\t")); err != nil {
		return err
	}
	var err error
	var walk func(n *graph.Node)
	walk = func(n *graph.Node) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", n.Depth()), row(m, n))
		for i := 0; i < m.RowCount(n); i++ {
			walk(m.Child(n, i))
		}
	}
	for i := 0; i < m.RowCount(nil); i++ {
		walk(m.Child(nil, i))
	}
	return err
}

func row(m *projection.Model, n *graph.Node) string {
	values := make([]string, m.ColumnCount(n))
	last := 0
	for col := range values {
		values[col] = m.Data(n, col)
		if values[col] != "" {
			last = col
		}
	}
	return strings.Join(values[:last+1], "\t")
}
