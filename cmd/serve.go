package cmd

import (
	"github.com/spf13/cobra"

	"github.com/agentic-research/iotree/internal/mcpserver"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve <document>",
		Short: "Serve the tree to MCP clients over stdio",
		Long: `Serve the tree over the Model Context Protocol on stdin/stdout with the
tools tree, query, edit and save. Edits stay in memory until save is called
unless autosave is enabled in the config.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := opts.open(ctx, args[0])
			if err != nil {
				return err
			}
			return mcpserver.Serve(ctx, &mcpserver.Handlers{Model: m})
		},
	}
}
