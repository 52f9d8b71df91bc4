package document

import (
	"bytes"
	"fmt"
	"strings"
)

// SetText replaces the character data that precedes e's first child element
// with text, written as literal CDATA. A self-closing element is expanded to
// an open/close pair. Offsets of every element after the edit are shifted.
func (d *Document) SetText(e *Element, text string) error {
	if !d.owns(e) {
		return fmt.Errorf("set text on <%s>: element does not belong to this document", e.Name)
	}
	data := CDATA(text)

	if e.Origin.SelfClosing {
		d.expand(e, data)
		e.text = text
		return nil
	}

	start := e.Origin.ContentStart
	end := e.Origin.ContentEnd
	if first := e.FirstChild(); first != nil {
		end = first.Origin.Start
	}
	d.splice(start, end, data)
	e.Origin.ContentStart = start
	e.text = text
	return nil
}

// InsertFirstChild creates <name>text</name> as the first child element of
// parent and returns it. Any character data parent already has stays in
// front of the new element.
func (d *Document) InsertFirstChild(parent *Element, name, text string) (*Element, error) {
	if !d.owns(parent) {
		return nil, fmt.Errorf("insert into <%s>: element does not belong to this document", parent.Name)
	}
	body := CDATA(text)
	open := "<" + name + ">"
	elem := make([]byte, 0, len(open)+len(body)+len(name)+3)
	elem = append(elem, open...)
	elem = append(elem, body...)
	elem = append(elem, "</"+name+">"...)

	var pos int
	if parent.Origin.SelfClosing {
		d.expand(parent, elem)
		pos = parent.Origin.ContentStart
	} else {
		pos = parent.Origin.ContentEnd
		if first := parent.FirstChild(); first != nil {
			pos = first.Origin.Start
		}
		contentStart := parent.Origin.ContentStart
		d.splice(pos, pos, elem)
		parent.Origin.ContentStart = contentStart
	}

	child := &Element{
		Name:   name,
		Parent: parent,
		qname:  name,
		text:   text,
		Origin: Origin{
			Start:        pos,
			ContentStart: pos + len(open),
			ContentEnd:   pos + len(open) + len(body),
			End:          pos + len(elem),
		},
	}
	parent.Children = append([]*Element{child}, parent.Children...)

	// Pre-order: the new first child directly follows its parent.
	at := int(parent.ordinal) + 1
	d.elements = append(d.elements, nil)
	copy(d.elements[at+1:], d.elements[at:])
	d.elements[at] = child
	d.reindex()
	return child, nil
}

// expand rewrites a self-closing element as <qname ...>content</qname>.
func (d *Document) expand(e *Element, content []byte) {
	closeTag := "</" + e.qname + ">"
	repl := make([]byte, 0, 1+len(content)+len(closeTag))
	repl = append(repl, '>')
	repl = append(repl, content...)
	repl = append(repl, closeTag...)

	at := e.Origin.End - 2 // the "/>"
	d.splice(at, e.Origin.End, repl)

	e.Origin.SelfClosing = false
	e.Origin.ContentStart = at + 1
	e.Origin.ContentEnd = e.Origin.ContentStart + len(content)
	e.Origin.End = e.Origin.ContentEnd + len(closeTag)
}

// splice replaces raw[start:end] with repl and shifts every offset at or
// after end by the change in length. Callers fix up offsets that sit exactly
// at start when start == end.
func (d *Document) splice(start, end int, repl []byte) {
	result := make([]byte, 0, len(d.raw)-(end-start)+len(repl))
	result = append(result, d.raw[:start]...)
	result = append(result, repl...)
	result = append(result, d.raw[end:]...)
	d.raw = result

	delta := len(repl) - (end - start)
	if delta == 0 {
		return
	}
	for _, e := range d.elements {
		o := &e.Origin
		if o.Start >= end {
			o.Start += delta
		}
		if o.ContentStart >= end {
			o.ContentStart += delta
		}
		if o.ContentEnd >= end {
			o.ContentEnd += delta
		}
		if o.End >= end {
			o.End += delta
		}
	}
}

func (d *Document) owns(e *Element) bool {
	return e != nil && int(e.ordinal) < len(d.elements) && d.elements[e.ordinal] == e
}

// CDATA encodes text as one or more CDATA sections. Occurrences of "]]>"
// are split across sections so the text survives unchanged.
func CDATA(text string) []byte {
	var b bytes.Buffer
	for {
		i := strings.Index(text, "]]>")
		if i < 0 {
			break
		}
		b.WriteString("<![CDATA[")
		b.WriteString(text[:i+2])
		b.WriteString("]]>")
		text = text[i+2:]
	}
	b.WriteString("<![CDATA[")
	b.WriteString(text)
	b.WriteString("]]>")
	return b.Bytes()
}
