package writeback

import (
	"fmt"
	"unicode/utf8"
)

// ValidationError locates a character that cannot appear in an XML 1.0
// document.
type ValidationError struct {
	Line    int // 0-indexed
	Column  int // 0-indexed, in runes
	Rune    rune
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line+1, e.Column+1, e.Message)
}

// Validate returns a *ValidationError for the first character of text that
// is not valid UTF-8 or not an XML 1.0 Char.
func Validate(text string) error {
	if errs := Problems(text, 1); len(errs) > 0 {
		return &errs[0]
	}
	return nil
}

// Problems returns up to limit invalid characters in text (all of them
// when limit <= 0).
func Problems(text string, limit int) []ValidationError {
	var errs []ValidationError
	line, col := 0, 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			errs = append(errs, ValidationError{Line: line, Column: col, Rune: r,
				Message: fmt.Sprintf("invalid UTF-8 byte 0x%02x", text[i])})
		case !isXMLChar(r):
			errs = append(errs, ValidationError{Line: line, Column: col, Rune: r,
				Message: fmt.Sprintf("character %U is not allowed in XML", r)})
		}
		if limit > 0 && len(errs) >= limit {
			return errs
		}
		if r == '\n' {
			line++
			col = 0
		} else {
			col++
		}
		i += size
	}
	return errs
}

// isXMLChar implements the Char production of XML 1.0.
func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}
