package nfsmount

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"runtime"

	billy "github.com/go-git/go-billy/v5"
	nfs "github.com/willscott/go-nfs"
	nfshelper "github.com/willscott/go-nfs/helpers"

	"github.com/agentic-research/iotree/internal/ctxlog"
)

// handleCacheSize bounds the file handle cache of the NFS handler.
const handleCacheSize = 4096

// Server manages the NFS server lifecycle.
type Server struct {
	listener net.Listener
}

// NewServer starts an NFS server on addr (":0" for an ephemeral port)
// backed by fs.
func NewServer(ctx context.Context, fs billy.Filesystem, addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("nfs listen: %w", err)
	}

	handler := nfshelper.NewNullAuthHandler(fs)
	cacheHelper := nfshelper.NewCachingHandler(handler, handleCacheSize)

	logger := ctxlog.FromContext(ctx)
	go func() {
		if err := nfs.Serve(listener, cacheHelper); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Error("NFS server stopped.", "error", err)
		}
	}()

	logger.Info("NFS server listening.", "addr", listener.Addr().String())
	return &Server{listener: listener}, nil
}

// Port returns the TCP port the NFS server is listening on.
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Close stops the NFS server by closing the listener.
func (s *Server) Close() error {
	return s.listener.Close()
}

// MountCommand builds the system mount invocation for goos.
func MountCommand(goos string, port int, mountpoint string, writable bool) (*exec.Cmd, error) {
	var opts string
	switch goos {
	case "darwin":
		opts = fmt.Sprintf("port=%d,mountport=%d,vers=3,tcp,locallocks,noresvport", port, port)
		if !writable {
			opts += ",rdonly"
		}
	case "linux":
		opts = fmt.Sprintf("port=%d,mountport=%d,vers=3,tcp,local_lock=all,nolock", port, port)
		if !writable {
			opts += ",ro"
		}
	default:
		return nil, fmt.Errorf("unsupported OS: %s", goos)
	}
	return exec.Command("sudo", "mount", "-t", "nfs", "-o", opts, "localhost:/", mountpoint), nil
}

// Mount calls the system mount command to mount the NFS server at
// mountpoint. Requires sudo.
func Mount(port int, mountpoint string, writable bool) error {
	cmd, err := MountCommand(runtime.GOOS, port, mountpoint, writable)
	if err != nil {
		return err
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("mount failed: %w\n%s", err, string(output))
	}
	return nil
}

// Unmount calls the system unmount command on the mountpoint.
func Unmount(mountpoint string) error {
	if runtime.GOOS == "darwin" {
		// diskutil needs no sudo for user NFS mounts
		if err := exec.Command("diskutil", "unmount", mountpoint).Run(); err == nil {
			return nil
		}
	}
	output, err := exec.Command("sudo", "umount", mountpoint).CombinedOutput()
	if err != nil {
		return fmt.Errorf("unmount failed: %w\n%s", err, string(output))
	}
	return nil
}
