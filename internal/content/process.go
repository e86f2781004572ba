package content

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/basket/recall/internal/contentstore"
)

// Externalizer is the slice of the content store the processor needs. The
// store is injected at construction; nothing here reaches for a global.
type Externalizer interface {
	ShouldExternalize(sizeBytes int) bool
	Put(ctx context.Context, data []byte, meta contentstore.Metadata) (*contentstore.Reference, error)
}

// Item is one recognized content entry inside a tool response.
type Item struct {
	Classification
	// Path locates the entry in the response tree: empty for the root,
	// one int element for an array entry.
	Path     []int
	FileName string
	payload  []byte
}

// Analysis is the result of walking a tool response.
type Analysis struct {
	ShouldProcess   bool
	Items           []Item
	TotalSize       int
	LargestItemSize int
}

// Result is the outcome of processing a tool response.
type Result struct {
	Content          any
	WasProcessed     bool
	ReferenceCreated bool
	OriginalSize     int
	References       []contentstore.Reference
	Errors           []string
}

// Processor replaces oversized content in tool responses with references.
type Processor struct {
	store  Externalizer
	logger *slog.Logger
}

// NewProcessor creates a processor over the given store.
func NewProcessor(store Externalizer, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{store: store, logger: logger}
}

// Analyze walks a decoded tool response and flattens it to content items.
// Handles a bare string, a single content-shaped object, and an array of
// content-shaped objects. Unrecognized shapes yield zero items; nil yields
// the empty non-processing result. Calling Analyze twice on the same value
// yields identical items.
func (p *Processor) Analyze(response any) Analysis {
	var a Analysis
	switch Inspect(response) {
	case NodeNull:
		return a

	case NodeScalar:
		text, ok := response.(string)
		if !ok {
			return a
		}
		c := ClassifyText(text)
		// A bare string only counts as an item once it is big enough to
		// externalize; short strings are not content items at all.
		if p.store.ShouldExternalize(c.SizeBytes) {
			a.Items = append(a.Items, Item{Classification: c, payload: []byte(text)})
		}

	case NodeContent:
		obj := response.(map[string]any)
		if data, c, name, ok := extract(obj); ok {
			a.Items = append(a.Items, Item{Classification: c, FileName: name, payload: data})
		}

	case NodeArray:
		for i, entry := range response.([]any) {
			obj, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			if data, c, name, ok := extract(obj); ok {
				a.Items = append(a.Items, Item{Classification: c, Path: []int{i}, FileName: name, payload: data})
			}
		}

	case NodeObject:
		// Generic objects are left alone: the conversation driver decides
		// what they mean, not this pipeline.
	}

	for _, item := range a.Items {
		a.TotalSize += item.SizeBytes
		if item.SizeBytes > a.LargestItemSize {
			a.LargestItemSize = item.SizeBytes
		}
		if p.store.ShouldExternalize(item.SizeBytes) {
			a.ShouldProcess = true
		}
	}
	return a
}

// Process externalizes every qualifying item in response, substituting a
// content_reference node in a deep copy. Store failures are per-item: the
// item stays inline and the cause lands in Errors. Structural failures fall
// back to the unmodified original with WasProcessed=false. No failure here
// is fatal to the caller.
func (p *Processor) Process(ctx context.Context, response any, sourceName, toolName string) (result Result) {
	result = Result{Content: response}
	defer func() {
		if r := recover(); r != nil {
			result = Result{
				Content: response,
				Errors:  []string{fmt.Sprintf("response processing failed: %v", r)},
			}
		}
	}()

	analysis := p.Analyze(response)
	result.OriginalSize = analysis.TotalSize
	if !analysis.ShouldProcess {
		return result
	}

	clone := DeepClone(response)
	result.WasProcessed = true

	for _, item := range analysis.Items {
		if !p.store.ShouldExternalize(item.SizeBytes) {
			continue
		}
		ref, err := p.externalize(ctx, item, sourceName, toolName)
		if err != nil {
			result.Errors = append(result.Errors, "Failed to create reference: "+err.Error())
			continue
		}
		clone = substitute(clone, item.Path, referenceNode(ref))
		result.ReferenceCreated = true
		result.References = append(result.References, *ref)
	}

	result.Content = clone
	return result
}

// ProcessJSON runs the same pipeline over a raw JSON tool response,
// substituting reference nodes with sjson so untouched bytes keep their
// original formatting. Invalid JSON falls back to the original payload.
func (p *Processor) ProcessJSON(ctx context.Context, raw []byte, sourceName, toolName string) ([]byte, Result) {
	result := Result{}
	if len(raw) == 0 {
		return raw, result
	}
	if !gjson.ValidBytes(raw) {
		result.Errors = append(result.Errors, "response is not valid JSON")
		return raw, result
	}

	decoded := gjson.ParseBytes(raw).Value()
	analysis := p.Analyze(decoded)
	result.OriginalSize = analysis.TotalSize
	if !analysis.ShouldProcess {
		return raw, result
	}

	out := raw
	result.WasProcessed = true
	for _, item := range analysis.Items {
		if !p.store.ShouldExternalize(item.SizeBytes) {
			continue
		}
		ref, err := p.externalize(ctx, item, sourceName, toolName)
		if err != nil {
			result.Errors = append(result.Errors, "Failed to create reference: "+err.Error())
			continue
		}
		node := referenceNode(ref)
		if len(item.Path) == 0 {
			// Root-level content: the whole payload becomes the reference node.
			encoded, merr := json.Marshal(node)
			if merr != nil {
				result.Errors = append(result.Errors, "Failed to create reference: "+merr.Error())
				continue
			}
			out = encoded
		} else {
			updated, serr := sjson.SetBytes(out, jsonPath(item.Path), node)
			if serr != nil {
				result.Errors = append(result.Errors, "Failed to create reference: "+serr.Error())
				continue
			}
			out = updated
		}
		result.ReferenceCreated = true
		result.References = append(result.References, *ref)
	}
	return out, result
}

func (p *Processor) externalize(ctx context.Context, item Item, sourceName, toolName string) (*contentstore.Reference, error) {
	qualified := sourceName + "::" + toolName
	ref, err := p.store.Put(ctx, item.payload, contentstore.Metadata{
		Kind:              string(item.Kind),
		MediaType:         item.MediaType,
		Source:            "tool",
		ToolQualifiedName: qualified,
		FileName:          item.FileName,
		Tags:              []string{"tool-output"},
	})
	if err != nil {
		p.logger.Warn("externalization declined, leaving content inline",
			"tool", qualified, "size_bytes", item.SizeBytes, "error", err)
		return nil, err
	}
	if ref == nil {
		return nil, fmt.Errorf("store declined content")
	}
	p.logger.Debug("content replaced with reference",
		"tool", qualified, "id", ref.ID, "size_bytes", ref.SizeBytes)
	return ref, nil
}

// referenceNode builds the substitution node for an externalized item.
func referenceNode(ref *contentstore.Reference) map[string]any {
	return map[string]any{
		"type":        "content_reference",
		"referenceId": ref.ID,
		"preview":     ref.Preview,
	}
}

// substitute replaces the node at path inside a cloned tree. An empty path
// replaces the root. Sibling fields are untouched.
func substitute(clone any, path []int, node map[string]any) any {
	if len(path) == 0 {
		return node
	}
	arr, ok := clone.([]any)
	if !ok || path[0] >= len(arr) {
		panic(fmt.Sprintf("substitution path %v does not match response shape", path))
	}
	arr[path[0]] = node
	return clone
}

func jsonPath(path []int) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ".")
}
