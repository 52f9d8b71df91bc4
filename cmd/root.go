// Package cmd implements the iotree command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/agentic-research/iotree/internal/config"
	"github.com/agentic-research/iotree/internal/ctxlog"
	"github.com/agentic-research/iotree/internal/projection"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "iotree",
		Short:         "Browse and annotate the I/O points of a controller configuration",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to an HCL config file (default "+config.DefaultFile+" if present)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format: text or json")

	root.AddCommand(
		newShowCmd(opts),
		newEditCmd(opts),
		newExportCmd(opts),
		newQueryCmd(opts),
		newServeCmd(opts),
		newMountCmd(opts),
	)
	return root
}

func (o *rootOptions) setup(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(ctx, o.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat = o.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg

	logger := ctxlog.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	cmd.SetContext(ctxlog.WithLogger(ctx, logger))
	return nil
}

// open loads the document at path from the host filesystem.
func (o *rootOptions) open(ctx context.Context, path string) (*projection.Model, error) {
	return openDocument(ctx, path, o.cfg)
}

func openDocument(ctx context.Context, path string, cfg *config.Config) (*projection.Model, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return projection.Open(ctx, osfs.New("/"), abs, cfg)
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
