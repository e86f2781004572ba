// Package contentstore externalizes oversized tool output into a
// content-addressed SQLite store. Conversations keep only a small reference
// (id, preview, metadata); the store is the sole owner of the bytes and of
// their retention.
package contentstore

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultThresholdBytes is the externalization cutoff. Content at or above
// this size is moved out of the conversation; smaller content stays inline.
const DefaultThresholdBytes = 1024

// DefaultPreviewChars bounds the human-readable preview on a reference.
const DefaultPreviewChars = 120

// Reference stands in for externalized bytes inside a conversation.
type Reference struct {
	ID        string
	Preview   string
	SizeBytes int
	Kind      string
	MediaType string
	FileName  string
	Source    string
	CreatedAt time.Time
}

// Metadata describes content being stored.
type Metadata struct {
	Kind              string
	MediaType         string
	Source            string
	ToolQualifiedName string
	FileName          string
	Tags              []string
}

// Truncate shortens s to at most max characters, reserving 3 for the
// ellipsis marker. Cuts on a rune boundary so previews stay valid UTF-8.
func Truncate(s string, max int) string {
	if max <= 3 {
		max = 4
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-3]) + "..."
}

// makePreview builds the human preview for stored content. Text payloads
// show their (flattened) head; binary payloads show kind and size.
func makePreview(data []byte, meta Metadata, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultPreviewChars
	}
	if meta.Kind == "image" || meta.Kind == "binary" || !utf8.Valid(data) {
		label := meta.MediaType
		if label == "" {
			label = meta.Kind
		}
		return fmt.Sprintf("[%s, %s]", label, FormatSize(len(data)))
	}
	flat := strings.Join(strings.Fields(string(data)), " ")
	return Truncate(flat, maxChars)
}

// FormatSize renders a byte count for humans.
func FormatSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}
