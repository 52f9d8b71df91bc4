package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/iotree/internal/query"
)

func newQueryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query <document> <jsonpath>",
		Short: "Evaluate a JSONPath expression against the JSON view of the tree",
		Example: `  iotree query Plant.L5X '$.modules[*].hardware'
  iotree query Plant.L5X '$..endpoints[?(@.parameter_comment == "")].hardware'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			matches, err := query.View(m.View(), args[1])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), query.Render(matches))
			return err
		},
	}
}
