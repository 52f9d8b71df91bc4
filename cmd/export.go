package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/iotree/internal/export"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <document> <output.db>",
		Short: "Write the modules and endpoints of a document to a SQLite database",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := opts.open(ctx, args[0])
			if err != nil {
				return err
			}
			if err := export.Write(ctx, args[1], m.View()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", args[0], args[1])
			return err
		},
	}
}
