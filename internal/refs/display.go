package refs

import (
	"context"
	"fmt"
	"strings"

	"github.com/basket/recall/internal/contentstore"
)

// Format selects how a reference renders for the user.
type Format string

const (
	FormatInline  Format = "inline"  // one line: size, type, truncated preview
	FormatCompact Format = "compact" // name and size only
	FormatCard    Format = "card"    // multi-line with metadata and a hint
)

// DisplayOptions controls rendering.
type DisplayOptions struct {
	Format          Format
	MaxPreviewChars int // default 80
}

// DisplayResult is what the conversation driver shows the user.
type DisplayResult struct {
	DisplayText       string
	HasValidReference bool
	ContextID         string
	SuggestedActions  []string
}

// Display checks a reference's liveness and, when live, registers it and
// renders it in the requested format. A dead reference yields a non-valid
// result with remediation text, evicts any stale tracked entry, and does
// not register a new context.
func (t *Tracker) Display(ctx context.Context, ref contentstore.Reference, opts DisplayOptions) DisplayResult {
	if !t.store.IsLive(ctx, ref.ID) {
		delete(t.contexts, ref.ID)
		return DisplayResult{
			DisplayText: fmt.Sprintf("The referenced content (%s) has expired and is no longer available.", shortID(ref.ID)),
			SuggestedActions: []string{
				"Re-run the tool that produced this content",
				"Ask for a summary of what the content contained",
			},
		}
	}

	contextID := t.AddReference(ref)
	return DisplayResult{
		DisplayText:       render(ref, opts),
		HasValidReference: true,
		ContextID:         contextID,
	}
}

func render(ref contentstore.Reference, opts DisplayOptions) string {
	maxPreview := opts.MaxPreviewChars
	if maxPreview <= 0 {
		maxPreview = 80
	}
	switch opts.Format {
	case FormatCompact:
		return fmt.Sprintf("%s (%s)", displayName(ref), contentstore.FormatSize(ref.SizeBytes))

	case FormatCard:
		var sb strings.Builder
		sb.WriteString("Content reference " + shortID(ref.ID) + "\n")
		sb.WriteString("  Type:    " + typeLabel(ref) + "\n")
		sb.WriteString("  Size:    " + contentstore.FormatSize(ref.SizeBytes) + "\n")
		if ref.FileName != "" {
			sb.WriteString("  File:    " + ref.FileName + "\n")
		}
		if ref.Source != "" {
			sb.WriteString("  Source:  " + ref.Source + "\n")
		}
		sb.WriteString("  Preview: " + contentstore.Truncate(ref.Preview, maxPreview) + "\n")
		sb.WriteString("Say \"use that\" to bring this content into the conversation.")
		return sb.String()

	default: // FormatInline
		return fmt.Sprintf("[%s, %s] %s",
			typeLabel(ref), contentstore.FormatSize(ref.SizeBytes), contentstore.Truncate(ref.Preview, maxPreview))
	}
}

func displayName(ref contentstore.Reference) string {
	if ref.FileName != "" {
		return ref.FileName
	}
	return shortID(ref.ID)
}

func typeLabel(ref contentstore.Reference) string {
	if ref.MediaType != "" {
		return ref.MediaType
	}
	return ref.Kind
}
