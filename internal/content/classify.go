// Package content inspects tool-response payloads, classifies their parts,
// and swaps oversized parts for content references so they never reach the
// conversation window inline.
package content

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Kind is the declared shape of a content item.
type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindResource Kind = "resource"
	KindBinary   Kind = "binary"
)

// Media types assigned by structural sniffing of text payloads.
const (
	MediaStructured = "application/json"
	MediaMarkup     = "text/html"
	MediaMarkdown   = "text/markdown"
	MediaPlain      = "text/plain"
	MediaBinary     = "application/octet-stream"
)

// Classification is the result of inspecting one content item.
type Classification struct {
	Kind      Kind
	MediaType string
	SizeBytes int
}

// headingPattern matches a markdown ATX heading at a line start.
var headingPattern = regexp.MustCompile(`(?m)^#{1,6}\s`)

// htmlRootPattern matches an HTML document root at the start of the payload.
var htmlRootPattern = regexp.MustCompile(`(?i)^\s*(<!doctype\s+html|<html[\s>])`)

// ClassifyText sniffs a text payload. Order matters: valid JSON wins over
// markup, markup over markdown, markdown over plain. Size is the UTF-8 byte
// length, not the rune count.
func ClassifyText(text string) Classification {
	c := Classification{Kind: KindText, SizeBytes: len(text)}
	trimmed := strings.TrimSpace(text)
	switch {
	case looksStructured(trimmed):
		c.MediaType = MediaStructured
	case htmlRootPattern.MatchString(trimmed):
		c.MediaType = MediaMarkup
	case headingPattern.MatchString(text):
		c.MediaType = MediaMarkdown
	default:
		c.MediaType = MediaPlain
	}
	return c
}

// ClassifyBinary classifies an image or other binary payload by its declared
// media type when present.
func ClassifyBinary(declaredType string, size int) Classification {
	c := Classification{Kind: KindBinary, MediaType: declaredType, SizeBytes: size}
	if declaredType == "" {
		c.MediaType = MediaBinary
		return c
	}
	if strings.HasPrefix(declaredType, "image/") {
		c.Kind = KindImage
	}
	return c
}

// looksStructured reports whether the payload parses as a JSON object or
// array. Bare scalars are valid JSON but not "structured data" for display
// purposes.
func looksStructured(trimmed string) bool {
	if len(trimmed) == 0 {
		return false
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return false
	}
	return gjson.Valid(trimmed)
}
