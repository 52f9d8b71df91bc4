package document

import (
	"fmt"
	"io"
	"path/filepath"

	billy "github.com/go-git/go-billy/v5"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Load reads and parses the document at path.
func Load(fsys billy.Filesystem, path string) (*Document, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return doc, nil
}

// Save writes the document to path as UTF-8 with a byte order mark and CRLF
// line endings. The plain UTF-8 form is staged in a temp file first, then
// re-encoded into a second temp file that is renamed over path.
func (d *Document) Save(fsys billy.Filesystem, path string) error {
	dir := filepath.Dir(path)

	plain, err := fsys.TempFile(dir, ".iotree-plain-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	plainName := plain.Name()
	defer func() { _ = fsys.Remove(plainName) }() // best-effort cleanup

	if _, err := plain.Write(d.raw); err != nil {
		_ = plain.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := plain.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}

	src, err := fsys.Open(plainName)
	if err != nil {
		return fmt.Errorf("reopen temp: %w", err)
	}
	defer func() { _ = src.Close() }()

	framed, err := fsys.TempFile(dir, ".iotree-save-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	framedName := framed.Name()

	if _, err := io.Copy(framed, transform.NewReader(src, framing())); err != nil {
		_ = framed.Close()
		_ = fsys.Remove(framedName)
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := framed.Close(); err != nil {
		_ = fsys.Remove(framedName)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := fsys.Rename(framedName, path); err != nil {
		_ = fsys.Remove(framedName)
		return fmt.Errorf("rename temp to %s: %w", path, err)
	}
	return nil
}

// Frame applies the on-disk framing (CRLF line endings, leading BOM) to b.
func Frame(b []byte) ([]byte, error) {
	out, _, err := transform.Bytes(framing(), b)
	return out, err
}

func framing() transform.Transformer {
	return transform.Chain(&crlf{}, unicode.UTF8BOM.NewEncoder())
}

// crlf rewrites every line terminator ("\r\n", "\r" or "\n") as "\r\n".
type crlf struct{ transform.NopResetter }

func (crlf) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		c := src[nSrc]
		switch c {
		case '\r':
			// Need the next byte to tell "\r\n" from a lone "\r".
			if nSrc+1 == len(src) && !atEOF {
				return nDst, nSrc, transform.ErrShortSrc
			}
			if nDst+2 > len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst], dst[nDst+1] = '\r', '\n'
			nDst += 2
			nSrc++
			if nSrc < len(src) && src[nSrc] == '\n' {
				nSrc++
			}
		case '\n':
			if nDst+2 > len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst], dst[nDst+1] = '\r', '\n'
			nDst += 2
			nSrc++
		default:
			if nDst >= len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst] = c
			nDst++
			nSrc++
		}
	}
	return nDst, nSrc, nil
}
