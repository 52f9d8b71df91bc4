package nfsmount

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	billy "github.com/go-git/go-billy/v5"

	"github.com/agentic-research/iotree/internal/graph"
)

// snapshot is a read-only file whose content is rendered when it is opened.
type snapshot struct {
	*bytes.Reader
	name string
}

func newSnapshot(name string, data []byte) *snapshot {
	return &snapshot{Reader: bytes.NewReader(data), name: name}
}

func (s *snapshot) Name() string              { return s.name }
func (s *snapshot) Write([]byte) (int, error) { return 0, errReadOnly }
func (s *snapshot) Truncate(int64) error      { return errReadOnly }
func (s *snapshot) Lock() error               { return nil }
func (s *snapshot) Unlock() error             { return nil }
func (s *snapshot) Close() error              { return nil }

// column identifies one editable cell.
type column struct {
	node *graph.Node
	col  int
}

// truncations remembers cells whose file was cut by a truncate-only open.
// go-nfs turns SETATTR(size) into its own open/Truncate/Close and sends the
// data in later WRITE calls that open without O_TRUNC, so the cut has to
// outlive the file that made it.
type truncations struct {
	mu   sync.Mutex
	size map[column]int
}

func (t *truncations) set(c column, size int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.size == nil {
		t.size = make(map[column]int)
	}
	t.size[c] = size
}

// take returns and forgets the pending size for c.
func (t *truncations) take(c column) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	size, ok := t.size[c]
	delete(t.size, c)
	return size, ok
}

// commentFile collects the new text of one comment cell. The cell is
// edited on the Close that follows at least one Write; a file that was
// only truncated leaves the comment alone and records the cut for the
// next open instead.
type commentFile struct {
	fs   *GraphFS
	name string
	cell column

	text    []byte
	pos     int64
	wrote   bool
	trimmed bool
}

func (f *commentFile) Name() string { return f.name }

func (f *commentFile) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, f.pos)
	f.pos += int64(n)
	return n, err
}

func (f *commentFile) ReadAt(p []byte, off int64) (int, error) {
	return bytes.NewReader(f.text).ReadAt(p, off)
}

func (f *commentFile) Write(p []byte) (int, error) {
	if end := f.pos + int64(len(p)); end > int64(len(f.text)) {
		f.resize(end)
	}
	n := copy(f.text[f.pos:], p)
	f.pos += int64(n)
	f.wrote = true
	return n, nil
}

func (f *commentFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekCurrent:
		offset += f.pos
	case io.SeekEnd:
		offset += int64(len(f.text))
	}
	if offset < 0 {
		return f.pos, fmt.Errorf("seek %s: negative offset", f.name)
	}
	f.pos = offset
	return f.pos, nil
}

func (f *commentFile) Truncate(size int64) error {
	if size < 0 {
		return fmt.Errorf("truncate %s: negative size", f.name)
	}
	f.resize(size)
	f.trimmed = true
	return nil
}

func (f *commentFile) resize(size int64) {
	if size <= int64(len(f.text)) {
		f.text = f.text[:size]
		return
	}
	grown := make([]byte, size)
	copy(grown, f.text)
	f.text = grown
}

func (f *commentFile) Close() error {
	switch {
	case f.wrote:
		if err := f.fs.commit(f.cell, commentText(f.text)); err != nil {
			return fmt.Errorf("edit %s: %w", f.name, err)
		}
	case f.trimmed:
		f.fs.pending.set(f.cell, len(f.text))
	}
	return nil
}

func (f *commentFile) Lock() error   { return nil }
func (f *commentFile) Unlock() error { return nil }

// commentText drops the line terminator editors and shells append.
func commentText(b []byte) string {
	s := strings.TrimSuffix(string(b), "\n")
	return strings.TrimSuffix(s, "\r")
}

var (
	_ billy.File = (*snapshot)(nil)
	_ billy.File = (*commentFile)(nil)
)
