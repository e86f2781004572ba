// Package conversation maintains the token-budgeted sliding window over a
// single session's dialogue. The window owns its messages: callers append
// completed turns and read back defensive copies when building the next
// model prompt.
package conversation

import (
	"maps"
	"time"

	"github.com/basket/recall/internal/tokens"
)

// Message roles. The window only pairs user/assistant turns during pruning;
// system messages inside the sequence are pruned like any other.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single conversation turn half. Immutable once appended to a
// Window; replacing one means removing and re-adding.
type Message struct {
	Role      string
	Content   string
	CreatedAt time.Time
	Meta      map[string]string
}

// NewMessage creates a message stamped with the current time.
func NewMessage(role, content string) Message {
	return Message{Role: role, Content: content, CreatedAt: time.Now()}
}

// clone returns a copy whose Meta map is independent of the original.
func (m Message) clone() Message {
	out := m
	if m.Meta != nil {
		out.Meta = maps.Clone(m.Meta)
	}
	return out
}

// Fixed per-message overhead covering role and framing tokens.
const messageOverhead = 4

// EstimateMessage returns the token cost of a message under the given model.
// Deterministic and monotonic in content length.
func EstimateMessage(m Message, model string) int {
	return tokens.Estimate(m.Content, model) + messageOverhead
}
