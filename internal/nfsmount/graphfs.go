// Package nfsmount serves a projection as an NFS filesystem. Every tree
// node is a directory named by its hardware column; endpoint directories
// hold one file per comment column and module directories a
// module_comment file. It adapts the projection to billy.Filesystem for
// use with willscott/go-nfs.
package nfsmount

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"

	"github.com/agentic-research/iotree/internal/graph"
	"github.com/agentic-research/iotree/internal/projection"
)

var errReadOnly = fmt.Errorf("read-only filesystem")

const treeFile = "_tree.json"

// Files exposed inside node directories, and the column each one shows.
var (
	endpointFiles = []nodeFile{
		{"hardware_comment", graph.ColHardwareComment},
		{"parameter", graph.ColParameter},
		{"parameter_comment", graph.ColParameterComment},
	}
	moduleFiles = []nodeFile{
		{"module_comment", graph.ColHardwareComment},
	}
)

type nodeFile struct {
	name string
	col  int
}

func filesFor(n *graph.Node) []nodeFile {
	switch n.Kind {
	case graph.KindEndpoint:
		return endpointFiles
	case graph.KindModule:
		return moduleFiles
	}
	return nil
}

// GraphFS adapts a projection.Model to billy.Filesystem.
type GraphFS struct {
	ctx       context.Context
	model     *projection.Model
	mountTime time.Time
	writable  bool
	pending   truncations
}

// NewGraphFS creates a read-only billy.Filesystem backed by model. ctx
// carries the logger used for edits.
func NewGraphFS(ctx context.Context, model *projection.Model) *GraphFS {
	return &GraphFS{
		ctx:       ctx,
		model:     model,
		mountTime: time.Now(),
	}
}

// SetWritable enables edits through the comment files. A write is applied
// when the file is closed and the document is then saved.
func (fs *GraphFS) SetWritable() {
	fs.writable = true
}

// entry is a resolved path: a node directory, or one of its files.
type entry struct {
	node *graph.Node
	file *nodeFile
}

func (fs *GraphFS) resolve(path string) (entry, error) {
	rel := strings.TrimPrefix(path, "/")
	if node, err := fs.model.Lookup(rel); err == nil {
		return entry{node: node}, nil
	}

	dir, base := filepath.Split(rel)
	node, err := fs.model.Lookup(strings.TrimSuffix(dir, "/"))
	if err != nil {
		return entry{}, err
	}
	for _, f := range filesFor(node) {
		if f.name == base {
			return entry{node: node, file: &f}, nil
		}
	}
	return entry{}, graph.ErrNotFound
}

func (fs *GraphFS) editable(e entry) bool {
	return fs.writable && e.file != nil && fs.model.Editable(e.file.col) && e.node.Kind == graph.KindEndpoint
}

func (fs *GraphFS) content(e entry) []byte {
	return []byte(fs.model.Data(e.node, e.file.col) + "\n")
}

func (fs *GraphFS) treeJSON() []byte {
	b, _ := json.MarshalIndent(fs.model.View(), "", "  ")
	return append(b, '\n')
}

// --- billy.Basic ---

// Create signals success for existing writable files (NFS CREATE on existing file).
// go-nfs closes this file immediately; the actual writes come via separate
// OpenFile calls from WRITE RPCs.
func (fs *GraphFS) Create(filename string) (billy.File, error) {
	if !fs.writable {
		return nil, errReadOnly
	}
	filename = cleanPath(filename)

	e, err := fs.resolve(filename)
	if err != nil {
		return nil, &os.PathError{Op: "create", Path: filename, Err: os.ErrNotExist}
	}
	if !fs.editable(e) {
		return nil, &os.PathError{Op: "create", Path: filename, Err: errReadOnly}
	}
	return newSnapshot(filename, nil), nil
}

func (fs *GraphFS) Open(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

func (fs *GraphFS) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	filename = cleanPath(filename)

	writing := flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC) != 0
	if writing {
		if !fs.writable {
			return nil, errReadOnly
		}
		return fs.openWritable(filename, flag)
	}

	if filename == "/"+treeFile {
		return newSnapshot(treeFile, fs.treeJSON()), nil
	}

	e, err := fs.resolve(filename)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
	}
	if e.file == nil {
		return nil, &os.PathError{Op: "open", Path: filename, Err: fmt.Errorf("is a directory")}
	}
	return newSnapshot(filename, fs.content(e)), nil
}

func (fs *GraphFS) openWritable(filename string, flag int) (billy.File, error) {
	if filename == "/"+treeFile {
		return nil, &os.PathError{Op: "open", Path: filename, Err: fmt.Errorf("read-only virtual file")}
	}

	e, err := fs.resolve(filename)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
	}
	if e.file == nil {
		return nil, &os.PathError{Op: "open", Path: filename, Err: fmt.Errorf("is a directory")}
	}
	if !fs.editable(e) {
		return nil, &os.PathError{Op: "open", Path: filename, Err: errReadOnly}
	}

	// Writes without O_TRUNC patch the current text, minus any cut left
	// by an earlier truncate-only open.
	cell := column{node: e.node, col: e.file.col}
	text := fs.content(e)
	if size, ok := fs.pending.take(cell); ok && size < len(text) {
		text = text[:size]
	}
	if flag&os.O_TRUNC != 0 {
		text = nil
	}
	return &commentFile{fs: fs, name: filename, cell: cell, text: text}, nil
}

// commit applies an edit written through a file and saves the document.
func (fs *GraphFS) commit(cell column, text string) error {
	if err := fs.model.SetData(fs.ctx, cell.node, cell.col, text); err != nil {
		return err
	}
	if fs.model.Dirty() {
		return fs.model.Save(fs.ctx, "")
	}
	return nil
}

func (fs *GraphFS) Stat(filename string) (os.FileInfo, error) {
	return fs.Lstat(filename)
}

func (fs *GraphFS) Rename(oldpath, newpath string) error {
	return errReadOnly
}

func (fs *GraphFS) Remove(filename string) error {
	return errReadOnly
}

func (fs *GraphFS) Join(elem ...string) string {
	return filepath.Join(elem...)
}

// --- billy.TempFile ---

func (fs *GraphFS) TempFile(dir, prefix string) (billy.File, error) {
	return nil, billy.ErrNotSupported
}

// --- billy.Dir ---

func (fs *GraphFS) ReadDir(path string) ([]os.FileInfo, error) {
	path = cleanPath(path)

	e, err := fs.resolve(path)
	if err != nil {
		return nil, &os.PathError{Op: "readdir", Path: path, Err: os.ErrNotExist}
	}
	if e.file != nil {
		return nil, &os.PathError{Op: "readdir", Path: path, Err: fmt.Errorf("not a directory")}
	}

	files := filesFor(e.node)
	infos := make([]os.FileInfo, 0, e.node.Len()+len(files)+1)

	// Virtual files at root
	if path == "/" {
		infos = append(infos, &staticFileInfo{
			name:    treeFile,
			size:    int64(len(fs.treeJSON())),
			mode:    0o444,
			modTime: fs.mountTime,
		})
	}
	for i := range files {
		infos = append(infos, fs.fileInfo(entry{node: e.node, file: &files[i]}))
	}
	for i := 0; i < fs.model.RowCount(e.node); i++ {
		infos = append(infos, fs.fileInfo(entry{node: fs.model.Child(e.node, i)}))
	}
	return infos, nil
}

func (fs *GraphFS) MkdirAll(filename string, perm os.FileMode) error {
	return errReadOnly
}

// --- billy.Symlink ---

func (fs *GraphFS) Lstat(filename string) (os.FileInfo, error) {
	filename = cleanPath(filename)

	if filename == "/" {
		return &staticFileInfo{
			name:    "/",
			mode:    os.ModeDir | 0o555,
			modTime: fs.mountTime,
		}, nil
	}
	if filename == "/"+treeFile {
		return &staticFileInfo{
			name:    treeFile,
			size:    int64(len(fs.treeJSON())),
			mode:    0o444,
			modTime: fs.mountTime,
		}, nil
	}

	e, err := fs.resolve(filename)
	if err != nil {
		return nil, &os.PathError{Op: "lstat", Path: filename, Err: os.ErrNotExist}
	}
	return fs.fileInfo(e), nil
}

func (fs *GraphFS) Symlink(target, link string) error {
	return billy.ErrNotSupported
}

func (fs *GraphFS) Readlink(link string) (string, error) {
	return "", billy.ErrNotSupported
}

// --- billy.Chroot ---

func (fs *GraphFS) Chroot(path string) (billy.Filesystem, error) {
	return chroot.New(fs, path), nil
}

func (fs *GraphFS) Root() string {
	return "/"
}

// --- billy.Capable ---

func (fs *GraphFS) Capabilities() billy.Capability {
	caps := billy.ReadCapability | billy.SeekCapability
	if fs.writable {
		caps |= billy.WriteCapability
	}
	return caps
}

// --- internals ---

// cleanPath normalizes a billy path to a clean absolute path.
func cleanPath(path string) string {
	path = filepath.Clean("/" + path)
	if path == "." {
		return "/"
	}
	return path
}

func (fs *GraphFS) fileInfo(e entry) os.FileInfo {
	if e.file == nil {
		return &staticFileInfo{
			name:    e.node.Key(),
			mode:    os.ModeDir | 0o555,
			modTime: fs.mountTime,
		}
	}
	mode := os.FileMode(0o444)
	if fs.editable(e) {
		mode = 0o644
	}
	return &staticFileInfo{
		name:    e.file.name,
		size:    int64(len(fs.content(e))),
		mode:    mode,
		modTime: fs.mountTime,
	}
}

// staticFileInfo implements os.FileInfo with static values.
type staticFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (fi *staticFileInfo) Name() string       { return fi.name }
func (fi *staticFileInfo) Size() int64        { return fi.size }
func (fi *staticFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *staticFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *staticFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *staticFileInfo) Sys() interface{}   { return nil }

// Compile-time interface checks.
var (
	_ billy.Filesystem = (*GraphFS)(nil)
	_ billy.Capable    = (*GraphFS)(nil)
)
