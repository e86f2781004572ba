package content

import "testing"

func TestClassifyText(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantMedia string
	}{
		{"json object", `{"a": 1, "b": [2, 3]}`, MediaStructured},
		{"json array", `[{"x": true}]`, MediaStructured},
		{"invalid json braces", `{not json at all`, MediaPlain},
		{"html doctype", "<!DOCTYPE html><html><body>hi</body></html>", MediaMarkup},
		{"html root tag", "<html>\n<head></head>\n</html>", MediaMarkup},
		{"markdown heading", "# Title\n\nSome body text.", MediaMarkdown},
		{"markdown deep heading", "intro\n\n### Section\ntext", MediaMarkdown},
		{"plain text", "just a normal sentence with no structure", MediaPlain},
		{"hash not a heading", "the #1 result was fine", MediaPlain},
		{"empty", "", MediaPlain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyText(tt.text)
			if got.Kind != KindText {
				t.Errorf("Kind = %q, want %q", got.Kind, KindText)
			}
			if got.MediaType != tt.wantMedia {
				t.Errorf("MediaType = %q, want %q", got.MediaType, tt.wantMedia)
			}
			if got.SizeBytes != len(tt.text) {
				t.Errorf("SizeBytes = %d, want %d", got.SizeBytes, len(tt.text))
			}
		})
	}
}

func TestClassifyTextSizeIsBytes(t *testing.T) {
	// Multibyte runes: size must be the UTF-8 byte length, not rune count.
	text := "héllo wörld"
	got := ClassifyText(text)
	if got.SizeBytes != len(text) {
		t.Errorf("SizeBytes = %d, want byte length %d", got.SizeBytes, len(text))
	}
	if got.SizeBytes == len([]rune(text)) {
		t.Error("SizeBytes counted runes, not bytes")
	}
}

func TestClassifyBinary(t *testing.T) {
	tests := []struct {
		name      string
		declared  string
		wantKind  Kind
		wantMedia string
	}{
		{"png image", "image/png", KindImage, "image/png"},
		{"jpeg image", "image/jpeg", KindImage, "image/jpeg"},
		{"pdf", "application/pdf", KindBinary, "application/pdf"},
		{"no declared type", "", KindBinary, MediaBinary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyBinary(tt.declared, 100)
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", got.Kind, tt.wantKind)
			}
			if got.MediaType != tt.wantMedia {
				t.Errorf("MediaType = %q, want %q", got.MediaType, tt.wantMedia)
			}
		})
	}
}
