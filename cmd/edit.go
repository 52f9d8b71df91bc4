package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agentic-research/iotree/internal/graph"
)

func newEditCmd(opts *rootOptions) *cobra.Command {
	var (
		column int
		text   string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "edit <document> <node-path>",
		Short: "Change one hardware or parameter comment and save the document",
		Long: `Change column 1 (hardware comment) or column 3 (parameter comment) of the
endpoint at node-path, e.g. Local:1/Inputs/Local:1:I.DATA/Local:1:I.DATA.0,
and save. The document is written in place unless --out is given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			// Saved once below, to --out when given.
			cfg := *opts.cfg
			cfg.Autosave = false
			m, err := openDocument(ctx, args[0], &cfg)
			if err != nil {
				return err
			}
			n, err := m.Lookup(args[1])
			if err != nil {
				return err
			}
			if err := m.SetData(ctx, n, column, text); err != nil {
				return err
			}

			target := ""
			if out != "" {
				if target, err = filepath.Abs(out); err != nil {
					return fmt.Errorf("failed to resolve %s: %w", out, err)
				}
			}
			if err := m.Save(ctx, target); err != nil {
				return err
			}
			if target == "" {
				target = m.Path()
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s = %q (saved %s)\n",
				args[1], graph.Headers[column], text, target)
			return err
		},
	}

	cmd.Flags().IntVar(&column, "column", graph.ColHardwareComment, "Column to edit: 1 (hardware comment) or 3 (parameter comment)")
	cmd.Flags().StringVar(&text, "text", "", "New comment text")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the result here instead of over the document")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}
