package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentic-research/iotree/internal/ctxlog"
	"github.com/agentic-research/iotree/internal/nfsmount"
)

func newMountCmd(opts *rootOptions) *cobra.Command {
	var (
		writable bool
		addr     string
		noMount  bool
	)

	cmd := &cobra.Command{
		Use:   "mount <document> <mountpoint>",
		Short: "Project the tree as a filesystem over NFS",
		Long: `Serve the tree over NFS and mount it at mountpoint. Every node is a
directory; endpoint directories hold hardware_comment, parameter and
parameter_comment files. With --writable, writing a comment file applies the
edit and saves the document. Runs until interrupted.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := ctxlog.FromContext(ctx)
			mountPoint := args[1]

			m, err := opts.open(ctx, args[0])
			if err != nil {
				return err
			}
			gfs := nfsmount.NewGraphFS(ctx, m)
			if writable {
				gfs.SetWritable()
			}

			srv, err := nfsmount.NewServer(ctx, gfs, addr)
			if err != nil {
				return err
			}
			defer func() { _ = srv.Close() }()

			if noMount {
				c, err := nfsmount.MountCommand("linux", srv.Port(), mountPoint, writable)
				if err == nil {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "NFS server on port %d. Mount with:\n  %s\n", srv.Port(), c.String())
				}
			} else {
				if err := os.MkdirAll(mountPoint, 0o755); err != nil {
					return fmt.Errorf("create mountpoint: %w", err)
				}
				if err := nfsmount.Mount(srv.Port(), mountPoint, writable); err != nil {
					return err
				}
				logger.Info("Mounted.", "mountpoint", mountPoint, "writable", writable)
				defer func() {
					if err := nfsmount.Unmount(mountPoint); err != nil {
						logger.Error("Unmount failed.", "mountpoint", mountPoint, "error", err)
					}
				}()
			}

			sig, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-sig.Done()
			logger.Info("Shutting down.")

			if m.Dirty() {
				return m.Save(ctx, "")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&writable, "writable", "w", false, "Allow editing comment files")
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:0", "NFS listen address")
	cmd.Flags().BoolVar(&noMount, "no-mount", false, "Only run the NFS server and print the mount command")
	return cmd
}
