package tokens

import (
	"strings"
	"testing"
)

func TestEstimate(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		model string
		want  int
	}{
		{"empty string", "", "gpt-4o", 0},
		{"short word", "hi", "gpt-4o", 1},
		{"exact four chars", "abcd", "gpt-4o", 1},
		{"eight chars one word", "abcdefgh", "gpt-4o", 2},
		{"word-heavy text", "a b c d e f g h i j", "gpt-4o", 13},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Estimate(tt.text, tt.model)
			if got != tt.want {
				t.Errorf("Estimate(%q, %q) = %d, want %d", tt.text, tt.model, got, tt.want)
			}
		})
	}
}

func TestEstimateStable(t *testing.T) {
	text := strings.Repeat("the quick brown fox ", 50)
	first := Estimate(text, "claude-3-5-sonnet-20241022")
	for i := 0; i < 10; i++ {
		if got := Estimate(text, "claude-3-5-sonnet-20241022"); got != first {
			t.Fatalf("Estimate unstable: got %d, want %d", got, first)
		}
	}
}

func TestEstimateMonotonic(t *testing.T) {
	prev := 0
	for n := 1; n <= 200; n++ {
		got := Estimate(strings.Repeat("x", n*4), "unknown-model")
		if got < prev {
			t.Fatalf("Estimate not monotonic at len %d: %d < %d", n*4, got, prev)
		}
		prev = got
	}
}

func TestEstimateUnknownModelFallsBack(t *testing.T) {
	text := "some reasonably sized piece of text for counting"
	if got := Estimate(text, "llama-9-experimental"); got <= 0 {
		t.Errorf("unknown model should use default estimator, got %d", got)
	}
}

func TestContextLimit(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"claude-3-5-sonnet-20241022", 200_000},
		{"claude-4-future", 200_000},
		{"gemini-2.5-pro", 1_048_576},
		{"gpt-4o", 128_000},
		{"totally-unknown", 128_000},
	}
	for _, tt := range tests {
		if got := ContextLimit(tt.model); got != tt.want {
			t.Errorf("ContextLimit(%q) = %d, want %d", tt.model, got, tt.want)
		}
	}
}
