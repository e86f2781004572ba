package conversation

import (
	"fmt"

	"github.com/basket/recall/internal/tokens"
)

// ConfigError reports invalid window limits. It is the only error kind this
// package surfaces; everything else degrades into return values.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "window config: " + e.Reason
}

// Window is a token-budgeted sliding window over conversation messages plus
// an optional system preamble. Oldest messages are pruned first; the
// preamble is never pruned. Not safe for concurrent use: one session owns
// one window and processes turns sequentially.
type Window struct {
	model         string
	maxTokens     int
	reserveTokens int

	systemPrompt string
	systemTokens int

	messages  []Message
	msgTokens []int
	used      int
}

// NewWindow creates a window for the given model with a hard token capacity
// and a reserved margin. Returns a ConfigError when reserveTokens >= maxTokens.
func NewWindow(model string, maxTokens, reserveTokens int) (*Window, error) {
	if maxTokens <= 0 {
		return nil, &ConfigError{Reason: fmt.Sprintf("maxTokens must be positive, got %d", maxTokens)}
	}
	if reserveTokens < 0 || reserveTokens >= maxTokens {
		return nil, &ConfigError{Reason: fmt.Sprintf("reserveTokens %d must be in [0, maxTokens %d)", reserveTokens, maxTokens)}
	}
	return &Window{model: model, maxTokens: maxTokens, reserveTokens: reserveTokens}, nil
}

// SetSystemPrompt replaces the preamble and re-prunes if the new total
// exceeds the budget. An empty string drops the preamble's token
// contribution to zero. Returns any messages evicted to make room.
func (w *Window) SetSystemPrompt(text string) []Message {
	w.systemPrompt = text
	if text == "" {
		w.systemTokens = 0
	} else {
		w.systemTokens = tokens.Estimate(text, w.model)
	}
	return w.PruneToFit()
}

// SystemPrompt returns the current preamble.
func (w *Window) SystemPrompt() string {
	return w.systemPrompt
}

// CanAdd reports whether msg fits in the remaining capacity without pruning,
// keeping the reserved margin intact. A message whose own cost exceeds
// maxTokens can never fit.
func (w *Window) CanAdd(msg Message) bool {
	cost := EstimateMessage(msg, w.model)
	if cost > w.maxTokens {
		return false
	}
	return cost <= w.RemainingCapacity()-w.reserveTokens
}

// Add appends msg and prunes oldest-first until the budget invariant holds.
// The message is always admitted; a message larger than the whole budget
// evicts everything else and stays as the sole occupant. Returns the evicted
// messages.
func (w *Window) Add(msg Message) (bool, []Message) {
	w.messages = append(w.messages, msg.clone())
	cost := EstimateMessage(msg, w.model)
	w.msgTokens = append(w.msgTokens, cost)
	w.used += cost
	return true, w.PruneToFit()
}

// PruneToFit removes the oldest messages until token usage drops to
// maxTokens - reserveTokens. When the two oldest messages form a
// user/assistant turn the pair is evicted as a unit, so pruning never
// strands an orphaned half-turn at the head — unless only that half-turn
// and the newest message remain. The newest message is never evicted, even
// when it alone exceeds the budget. Idempotent.
func (w *Window) PruneToFit() []Message {
	var pruned []Message
	target := w.maxTokens - w.reserveTokens
	for len(w.messages) > 1 && w.used+w.systemTokens > target {
		n := 1
		if len(w.messages) > 2 && w.messages[0].Role == RoleUser && w.messages[1].Role == RoleAssistant {
			n = 2
		}
		for i := 0; i < n; i++ {
			pruned = append(pruned, w.messages[0])
			w.used -= w.msgTokens[0]
			w.messages = w.messages[1:]
			w.msgTokens = w.msgTokens[1:]
		}
	}
	return pruned
}

// UpdateLimits applies new capacity parameters and immediately re-prunes.
// Returns a ConfigError when reserveTokens >= maxTokens, leaving the window
// unchanged.
func (w *Window) UpdateLimits(maxTokens, reserveTokens int) error {
	if maxTokens <= 0 {
		return &ConfigError{Reason: fmt.Sprintf("maxTokens must be positive, got %d", maxTokens)}
	}
	if reserveTokens < 0 || reserveTokens >= maxTokens {
		return &ConfigError{Reason: fmt.Sprintf("reserveTokens %d must be in [0, maxTokens %d)", reserveTokens, maxTokens)}
	}
	w.maxTokens = maxTokens
	w.reserveTokens = reserveTokens
	w.PruneToFit()
	return nil
}

// Messages returns a defensive copy of the current sequence, oldest first.
func (w *Window) Messages() []Message {
	out := make([]Message, len(w.messages))
	for i, m := range w.messages {
		out[i] = m.clone()
	}
	return out
}

// Len returns the number of messages currently held.
func (w *Window) Len() int {
	return len(w.messages)
}

// TokenCount returns current usage: messages plus preamble.
func (w *Window) TokenCount() int {
	return w.used + w.systemTokens
}

// RemainingCapacity returns maxTokens minus current usage.
func (w *Window) RemainingCapacity() int {
	return w.maxTokens - w.TokenCount()
}

// Clear empties the message sequence. The preamble is untouched.
func (w *Window) Clear() {
	w.messages = nil
	w.msgTokens = nil
	w.used = 0
}
