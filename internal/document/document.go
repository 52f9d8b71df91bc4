// Package document holds the authoritative configuration document: a
// byte-preserving XML element tree. Every element remembers where it sits in
// the source buffer so that text edits are spliced into the original bytes
// and an unedited document serializes back exactly as it was read.
package document

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/RoaringBitmap/roaring"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrParse is wrapped by every load failure caused by malformed markup.
var ErrParse = errors.New("document parse error")

// attrCacheSize bounds the FindFirstByAttr memo.
const attrCacheSize = 1024

// Origin tracks the byte layout of an element in the document buffer.
//
//	<Tag a="1">content</Tag>
//	^Start     ^ContentStart
//	                  ^ContentEnd
//	                        ^End
//
// For self-closing elements ContentStart, ContentEnd and End all sit just
// past the "/>".
type Origin struct {
	Start        int
	ContentStart int
	ContentEnd   int
	End          int
	SelfClosing  bool
}

// Element is one node of the document tree.
type Element struct {
	Name     string
	Attrs    []xml.Attr
	Parent   *Element
	Children []*Element
	Origin   Origin

	qname   string // tag name as written in the source, prefix included
	text    string
	ordinal uint32
}

// Attr returns the value of the named attribute, or "" when absent.
func (e *Element) Attr(name string) string {
	v, _ := e.LookupAttr(name)
	return v
}

// LookupAttr returns the value of the named attribute and whether it exists.
func (e *Element) LookupAttr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// Text returns the decoded character data that precedes the element's first
// child element. CDATA sections are unwrapped and entities resolved.
func (e *Element) Text() string {
	return e.text
}

// FirstChild returns the first child element, or nil.
func (e *Element) FirstChild() *Element {
	if len(e.Children) == 0 {
		return nil
	}
	return e.Children[0]
}

// Child returns the first direct child with the given name, or nil.
func (e *Element) Child(name string) *Element {
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Descendants returns every element below e with the given name, in
// document order. e itself is not included.
func (e *Element) Descendants(name string) []*Element {
	var out []*Element
	var walk func(*Element)
	walk = func(n *Element) {
		for _, c := range n.Children {
			if c.Name == name {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(e)
	return out
}

type attrKey struct {
	tag, attr, value string
}

// Document is a parsed configuration document. It exclusively owns its
// elements; callers that need to reach an element again later must look it
// up rather than hold on to it across edits of other parts of the tree.
type Document struct {
	raw      []byte
	root     *Element
	elements []*Element // document (pre-)order; index == ordinal

	// Tag index: element name -> bitmap of element ordinals.
	byTag     map[string]*roaring.Bitmap
	attrCache *lru.Cache[attrKey, *Element]
}

// Parse builds a Document from raw bytes. A leading byte order mark is
// removed; everything else is kept verbatim.
func Parse(data []byte) (*Document, error) {
	raw, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrParse, err)
	}

	cache, err := lru.New[attrKey, *Element](attrCacheSize)
	if err != nil {
		return nil, err
	}
	doc := &Document{raw: raw, attrCache: cache}

	dec := xml.NewDecoder(bytes.NewReader(raw))
	var stack []*Element
	for {
		start := int(dec.InputOffset())
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParse, err)
		}
		end := int(dec.InputOffset())

		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 && doc.root != nil {
				return nil, fmt.Errorf("%w: extra element <%s> after the root element", ErrParse, t.Name.Local)
			}
			t = t.Copy()
			e := &Element{
				Name:  t.Name.Local,
				Attrs: t.Attr,
				qname: rawName(raw[start:end]),
				Origin: Origin{
					Start:        start,
					ContentStart: end,
					SelfClosing:  end-start >= 2 && raw[end-2] == '/' && raw[end-1] == '>',
				},
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				e.Parent = parent
				parent.Children = append(parent.Children, e)
			} else {
				doc.root = e
			}
			doc.elements = append(doc.elements, e)
			stack = append(stack, e)

		case xml.EndElement:
			e := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if e.Origin.SelfClosing {
				e.Origin.ContentEnd = e.Origin.ContentStart
				e.Origin.End = e.Origin.ContentStart
			} else {
				e.Origin.ContentEnd = start
				e.Origin.End = end
			}

		case xml.CharData:
			if len(stack) == 0 {
				if len(bytes.Trim(t, " \t\r\n")) != 0 {
					return nil, fmt.Errorf("%w: text outside the root element", ErrParse)
				}
				continue
			}
			if top := stack[len(stack)-1]; len(top.Children) == 0 {
				top.text += string(t)
			}
		}
	}

	if doc.root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrParse)
	}
	doc.reindex()
	return doc, nil
}

// rawName extracts the qualified tag name from a start tag's bytes.
func rawName(tag []byte) string {
	i := 1
	for i < len(tag) {
		switch tag[i] {
		case ' ', '\t', '\r', '\n', '/', '>':
			return string(tag[1:i])
		}
		i++
	}
	return string(tag[1:])
}

// reindex reassigns ordinals in document order and rebuilds the tag index.
// Called after parsing and after every structural change.
func (d *Document) reindex() {
	d.byTag = make(map[string]*roaring.Bitmap)
	for i, e := range d.elements {
		e.ordinal = uint32(i)
		bm, ok := d.byTag[e.Name]
		if !ok {
			bm = roaring.New()
			d.byTag[e.Name] = bm
		}
		bm.Add(e.ordinal)
	}
	d.attrCache.Purge()
}

// Root returns the document element.
func (d *Document) Root() *Element {
	return d.root
}

// Len returns the number of elements in the document.
func (d *Document) Len() int {
	return len(d.elements)
}

// FindAllByTag returns every element with the given name in document order.
func (d *Document) FindAllByTag(name string) []*Element {
	bm, ok := d.byTag[name]
	if !ok {
		return nil
	}
	out := make([]*Element, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, d.elements[it.Next()])
	}
	return out
}

// FindFirstByAttr returns the first element (document order) named tag whose
// attribute attr equals value, or nil.
func (d *Document) FindFirstByAttr(tag, attr, value string) *Element {
	key := attrKey{tag: tag, attr: attr, value: value}
	if e, ok := d.attrCache.Get(key); ok {
		return e
	}
	for _, e := range d.FindAllByTag(tag) {
		if v, ok := e.LookupAttr(attr); ok && v == value {
			d.attrCache.Add(key, e)
			return e
		}
	}
	return nil
}

// Bytes returns a copy of the document's current serialized form, without
// any output framing.
func (d *Document) Bytes() []byte {
	out := make([]byte, len(d.raw))
	copy(out, d.raw)
	return out
}

// Source returns the raw bytes spanned by e, start tag through end tag.
func (d *Document) Source(e *Element) []byte {
	return d.raw[e.Origin.Start:e.Origin.End]
}
