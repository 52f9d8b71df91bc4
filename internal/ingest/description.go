package ingest

import (
	"strings"

	"github.com/agentic-research/iotree/internal/document"
)

// SplitTagReference splits `\Program.Tag` into its program and tag names.
// ok is false when the reference has no "." separator.
func SplitTagReference(ref string) (program, tag string, ok bool) {
	parts := strings.Split(ref, ".")
	if len(parts) < 2 {
		return "", "", false
	}
	return strings.TrimPrefix(parts[0], `\`), parts[1], true
}

// FindTag returns the first Tag named tag inside the first Program named
// program, or nil.
func FindTag(doc *document.Document, program, tag string) *document.Element {
	p := doc.FindFirstByAttr("Program", "Name", program)
	if p == nil {
		return nil
	}
	for _, t := range p.Descendants("Tag") {
		if t.Attr("Name") == tag {
			return t
		}
	}
	return nil
}

// DescriptionResolver maps tag references to their description text. It
// only reads; a missing Description element yields "".
type DescriptionResolver struct {
	Doc *document.Document
}

// Resolve returns the description of the tag that ref points to, or "".
func (r *DescriptionResolver) Resolve(ref string) string {
	program, tag, ok := SplitTagReference(ref)
	if !ok {
		return ""
	}
	t := FindTag(r.Doc, program, tag)
	if t == nil {
		return ""
	}
	if d := t.Child("Description"); d != nil {
		return d.Text()
	}
	return ""
}
