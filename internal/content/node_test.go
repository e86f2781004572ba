package content

import (
	"encoding/base64"
	"testing"
	"time"
)

func TestInspect(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want NodeKind
	}{
		{"nil", nil, NodeNull},
		{"string", "hello", NodeScalar},
		{"number", 3.14, NodeScalar},
		{"bool", true, NodeScalar},
		{"text content", map[string]any{"type": "text", "text": "hi"}, NodeContent},
		{"image content", map[string]any{"type": "image", "data": "aGk="}, NodeContent},
		{"resource content", map[string]any{"type": "resource", "resource": map[string]any{}}, NodeContent},
		{"generic object", map[string]any{"status": "ok"}, NodeObject},
		{"object with unknown type", map[string]any{"type": "widget"}, NodeObject},
		{"object with non-string type", map[string]any{"type": 7}, NodeObject},
		{"array", []any{1, 2}, NodeArray},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Inspect(tt.v); got != tt.want {
				t.Errorf("Inspect(%v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestDeepCloneIndependence(t *testing.T) {
	when := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	original := map[string]any{
		"outer": map[string]any{"inner": []any{"a", "b"}},
		"list":  []any{map[string]any{"k": "v"}},
		"when":  when,
		"n":     42.0,
	}

	clone := DeepClone(original).(map[string]any)
	clone["outer"].(map[string]any)["inner"].([]any)[0] = "mutated"
	clone["list"].([]any)[0].(map[string]any)["k"] = "mutated"

	if original["outer"].(map[string]any)["inner"].([]any)[0] != "a" {
		t.Error("mutating nested array in clone affected original")
	}
	if original["list"].([]any)[0].(map[string]any)["k"] != "v" {
		t.Error("mutating nested object in clone affected original")
	}
	if !clone["when"].(time.Time).Equal(when) {
		t.Error("timestamp leaf not preserved")
	}
}

func TestExtract(t *testing.T) {
	imgBytes := []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a}
	encoded := base64.StdEncoding.EncodeToString(imgBytes)

	t.Run("text node", func(t *testing.T) {
		data, c, _, ok := extract(map[string]any{"type": "text", "text": "# Title\nbody"})
		if !ok {
			t.Fatal("extract failed")
		}
		if string(data) != "# Title\nbody" {
			t.Errorf("payload = %q", data)
		}
		if c.Kind != KindText || c.MediaType != MediaMarkdown {
			t.Errorf("classification = %+v", c)
		}
	})

	t.Run("image node decodes base64", func(t *testing.T) {
		data, c, _, ok := extract(map[string]any{"type": "image", "data": encoded, "mimeType": "image/png"})
		if !ok {
			t.Fatal("extract failed")
		}
		if len(data) != len(imgBytes) {
			t.Errorf("payload length = %d, want decoded %d", len(data), len(imgBytes))
		}
		if c.Kind != KindImage {
			t.Errorf("Kind = %q, want image", c.Kind)
		}
	})

	t.Run("resource with text", func(t *testing.T) {
		data, c, name, ok := extract(map[string]any{
			"type": "resource",
			"resource": map[string]any{
				"uri":      "file:///tmp/out.log",
				"mimeType": "text/plain",
				"text":     "log line one",
			},
		})
		if !ok {
			t.Fatal("extract failed")
		}
		if string(data) != "log line one" {
			t.Errorf("payload = %q", data)
		}
		if c.Kind != KindResource {
			t.Errorf("Kind = %q, want resource", c.Kind)
		}
		if name != "file:///tmp/out.log" {
			t.Errorf("file name = %q", name)
		}
	})

	t.Run("malformed nodes", func(t *testing.T) {
		bad := []map[string]any{
			{"type": "text"},
			{"type": "text", "text": 7},
			{"type": "image"},
			{"type": "resource"},
			{"type": "resource", "resource": map[string]any{"uri": "x"}},
		}
		for _, obj := range bad {
			if _, _, _, ok := extract(obj); ok {
				t.Errorf("extract(%v) should fail", obj)
			}
		}
	})
}
