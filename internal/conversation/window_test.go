package conversation

import (
	"errors"
	"strings"
	"testing"
)

const testModel = "gpt-4o"

// msgOfTokens builds a single-word message whose estimated cost is exactly
// n tokens (content chars = (n - messageOverhead) * 4).
func msgOfTokens(role string, n int) Message {
	if n <= messageOverhead {
		panic("msgOfTokens: n too small")
	}
	return NewMessage(role, strings.Repeat("x", (n-messageOverhead)*4))
}

func mustWindow(t *testing.T, max, reserve int) *Window {
	t.Helper()
	w, err := NewWindow(testModel, max, reserve)
	if err != nil {
		t.Fatalf("NewWindow(%d, %d): %v", max, reserve, err)
	}
	return w
}

func TestNewWindowValidation(t *testing.T) {
	tests := []struct {
		name    string
		max     int
		reserve int
		wantErr bool
	}{
		{"valid", 1000, 100, false},
		{"zero reserve", 1000, 0, false},
		{"reserve equals max", 1000, 1000, true},
		{"reserve above max", 1000, 2000, true},
		{"negative reserve", 1000, -1, true},
		{"zero max", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWindow(testModel, tt.max, tt.reserve)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewWindow(%d, %d) err = %v, wantErr %v", tt.max, tt.reserve, err, tt.wantErr)
			}
			if tt.wantErr {
				var cfgErr *ConfigError
				if !errors.As(err, &cfgErr) {
					t.Errorf("error should be *ConfigError, got %T", err)
				}
			}
		})
	}
}

func TestBudgetInvariantHeldAfterEveryAdd(t *testing.T) {
	w := mustWindow(t, 200, 50)
	for i := 0; i < 50; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		w.Add(msgOfTokens(role, 30))
		if w.TokenCount() > 200 {
			t.Fatalf("after add %d: token count %d exceeds max 200", i, w.TokenCount())
		}
	}
	if w.TokenCount() > 200 {
		t.Fatalf("final token count %d exceeds max", w.TokenCount())
	}
	msgs := w.Messages()
	if len(msgs) == 0 {
		t.Fatal("window empty after 50 adds")
	}
	// The most recent message must survive pruning.
	last := msgs[len(msgs)-1]
	if last.Role != RoleAssistant {
		t.Errorf("newest message role = %q, want %q", last.Role, RoleAssistant)
	}
}

func TestPruneToFitIdempotent(t *testing.T) {
	w := mustWindow(t, 100, 20)
	for i := 0; i < 10; i++ {
		w.Add(msgOfTokens(RoleUser, 25))
	}
	if pruned := w.PruneToFit(); len(pruned) != 0 {
		t.Errorf("second prune evicted %d messages, want 0", len(pruned))
	}
}

func TestCanAddImpliesAdd(t *testing.T) {
	w := mustWindow(t, 300, 50)
	w.Add(msgOfTokens(RoleUser, 100))
	msg := msgOfTokens(RoleAssistant, 100)
	if !w.CanAdd(msg) {
		t.Fatal("CanAdd = false, expected room for 100 tokens")
	}
	added, pruned := w.Add(msg)
	if !added {
		t.Error("Add reported added=false after CanAdd=true")
	}
	if len(pruned) != 0 {
		t.Errorf("Add pruned %d messages after CanAdd=true, want 0", len(pruned))
	}
}

func TestCanAddRejectsOversize(t *testing.T) {
	w := mustWindow(t, 100, 10)
	if w.CanAdd(msgOfTokens(RoleUser, 150)) {
		t.Error("CanAdd = true for message larger than maxTokens")
	}
}

func TestOversizeSingletonEvictsEverything(t *testing.T) {
	w := mustWindow(t, 100, 10)
	w.Add(msgOfTokens(RoleUser, 30))
	w.Add(msgOfTokens(RoleAssistant, 30))

	big := msgOfTokens(RoleUser, 500)
	added, pruned := w.Add(big)
	if !added {
		t.Fatal("oversize message should still be admitted")
	}
	if len(pruned) != 2 {
		t.Errorf("pruned %d messages, want 2", len(pruned))
	}
	if w.Len() != 1 {
		t.Fatalf("window holds %d messages, want 1", w.Len())
	}
	if got := w.Messages()[0].Content; got != big.Content {
		t.Error("surviving message is not the oversize one")
	}
}

func TestPruningRemovesCompleteTurns(t *testing.T) {
	w := mustWindow(t, 200, 0)
	w.Add(msgOfTokens(RoleUser, 60))
	w.Add(msgOfTokens(RoleAssistant, 60))
	w.Add(msgOfTokens(RoleUser, 60))

	// Adding a fourth 60-token message forces eviction; the user/assistant
	// pair at the head must go together, not just the user half.
	_, pruned := w.Add(msgOfTokens(RoleAssistant, 60))
	if len(pruned) != 2 {
		t.Fatalf("pruned %d messages, want complete turn of 2", len(pruned))
	}
	if pruned[0].Role != RoleUser || pruned[1].Role != RoleAssistant {
		t.Errorf("pruned roles = %q, %q; want user, assistant", pruned[0].Role, pruned[1].Role)
	}
	if w.Len() != 2 {
		t.Errorf("window holds %d messages, want 2", w.Len())
	}
}

func TestSystemPromptTokenRoundTrip(t *testing.T) {
	w := mustWindow(t, 500, 50)
	w.Add(msgOfTokens(RoleUser, 40))
	before := w.TokenCount()

	w.SetSystemPrompt("Be helpful.")
	if w.TokenCount() <= before {
		t.Error("setting a system prompt should raise the token count")
	}
	w.SetSystemPrompt("")
	if got := w.TokenCount(); got != before {
		t.Errorf("token count after clearing preamble = %d, want %d", got, before)
	}
}

func TestSystemPromptTriggersPruning(t *testing.T) {
	w := mustWindow(t, 100, 20)
	w.Add(msgOfTokens(RoleUser, 38))
	w.Add(msgOfTokens(RoleAssistant, 38))

	pruned := w.SetSystemPrompt(strings.Repeat("rule ", 40))
	if len(pruned) == 0 {
		t.Fatal("large preamble should evict messages")
	}
	if w.TokenCount() > 100 {
		t.Errorf("token count %d exceeds max after preamble", w.TokenCount())
	}
	if w.SystemPrompt() == "" {
		t.Error("preamble itself must never be pruned")
	}
}

func TestUpdateLimits(t *testing.T) {
	w := mustWindow(t, 500, 50)
	for i := 0; i < 8; i++ {
		w.Add(msgOfTokens(RoleUser, 50))
	}
	if err := w.UpdateLimits(100, 200); err == nil {
		t.Error("UpdateLimits should reject reserve >= max")
	}
	if err := w.UpdateLimits(150, 30); err != nil {
		t.Fatalf("UpdateLimits: %v", err)
	}
	if w.TokenCount() > 150-30 {
		t.Errorf("token count %d exceeds new target %d after re-prune", w.TokenCount(), 150-30)
	}
}

func TestMessagesDefensiveCopy(t *testing.T) {
	w := mustWindow(t, 500, 50)
	msg := NewMessage(RoleUser, "hello there")
	msg.Meta = map[string]string{"ref": "abc"}
	w.Add(msg)

	got := w.Messages()
	got[0].Content = "mutated"
	got[0].Meta["ref"] = "mutated"

	again := w.Messages()
	if again[0].Content != "hello there" {
		t.Error("mutating returned slice affected internal content")
	}
	if again[0].Meta["ref"] != "abc" {
		t.Error("mutating returned metadata affected internal state")
	}
}

func TestClearKeepsPreamble(t *testing.T) {
	w := mustWindow(t, 500, 50)
	w.SetSystemPrompt("Be helpful.")
	w.Add(msgOfTokens(RoleUser, 40))
	w.Clear()
	if w.Len() != 0 {
		t.Errorf("Len = %d after Clear, want 0", w.Len())
	}
	if w.SystemPrompt() != "Be helpful." {
		t.Error("Clear must not touch the preamble")
	}
	if w.TokenCount() == 0 {
		t.Error("preamble tokens should still count after Clear")
	}
}
