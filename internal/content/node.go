package content

import (
	"encoding/base64"
	"time"
)

// NodeKind tags the shape of an untyped tool-response value. Every field
// access in this package goes through an explicit classification first;
// nothing probes maps speculatively.
type NodeKind int

const (
	NodeNull NodeKind = iota
	NodeScalar
	NodeContent // a recognized content-shaped object (text/image/resource)
	NodeArray
	NodeObject // generic object, not content-shaped
)

// Inspect classifies a decoded JSON-like value.
func Inspect(v any) NodeKind {
	switch t := v.(type) {
	case nil:
		return NodeNull
	case map[string]any:
		if _, ok := contentType(t); ok {
			return NodeContent
		}
		return NodeObject
	case []any:
		return NodeArray
	default:
		return NodeScalar
	}
}

// contentType returns the declared type of a content-shaped object.
func contentType(obj map[string]any) (string, bool) {
	raw, ok := obj["type"]
	if !ok {
		return "", false
	}
	typ, ok := raw.(string)
	if !ok {
		return "", false
	}
	switch typ {
	case "text", "image", "resource":
		return typ, true
	}
	return "", false
}

// DeepClone copies a decoded JSON-like tree so substitution never aliases
// the caller's original. Timestamps are copied as values, not walked as
// structs; scalars are immutable and returned as-is.
func DeepClone(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = DeepClone(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = DeepClone(child)
		}
		return out
	case time.Time:
		return t
	default:
		return t
	}
}

// extract pulls the canonical payload bytes out of a content-shaped object.
// Base64 payloads are decoded so sizes reflect the real bytes, not the
// transfer encoding. Returns false for malformed nodes.
func extract(obj map[string]any) (data []byte, c Classification, fileName string, ok bool) {
	typ, isContent := contentType(obj)
	if !isContent {
		return nil, Classification{}, "", false
	}

	switch typ {
	case "text":
		text, found := obj["text"].(string)
		if !found {
			return nil, Classification{}, "", false
		}
		return []byte(text), ClassifyText(text), "", true

	case "image":
		encoded, found := obj["data"].(string)
		if !found {
			return nil, Classification{}, "", false
		}
		mime, _ := obj["mimeType"].(string)
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			// Not valid base64: treat the string itself as the payload.
			raw = []byte(encoded)
		}
		return raw, ClassifyBinary(mime, len(raw)), "", true

	case "resource":
		res, found := obj["resource"].(map[string]any)
		if !found {
			return nil, Classification{}, "", false
		}
		uri, _ := res["uri"].(string)
		mime, _ := res["mimeType"].(string)
		if text, hasText := res["text"].(string); hasText {
			c := ClassifyText(text)
			c.Kind = KindResource
			if mime != "" {
				c.MediaType = mime
			}
			return []byte(text), c, uri, true
		}
		if blob, hasBlob := res["blob"].(string); hasBlob {
			raw, err := base64.StdEncoding.DecodeString(blob)
			if err != nil {
				raw = []byte(blob)
			}
			c := ClassifyBinary(mime, len(raw))
			c.Kind = KindResource
			return raw, c, uri, true
		}
		return nil, Classification{}, "", false
	}
	return nil, Classification{}, "", false
}
