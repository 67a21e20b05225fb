package conversation

import (
	"github.com/chatrdv/platform/internal/ai"
)

// charsPerToken is a fixed heuristic in place of a real tokenizer.
const charsPerToken = 4

// minContextMessages is the floor for token-driven trimming.
const minContextMessages = 2

// ContextBuilder produces a bounded context window for an AI call.
//
// Short sessions pass through verbatim. Longer ones keep the opening
// exchanges and the most recent turns, then shed the oldest non-system
// messages until the estimated token cost fits the cap. The system turn
// always occupies position 0.
type ContextBuilder struct {
	messageThreshold int
	keepOpening      int
	keepRecent       int
	tokenCap         int
}

// NewContextBuilder creates a builder with the given compression policy.
func NewContextBuilder(messageThreshold, keepOpening, keepRecent, tokenCap int) *ContextBuilder {
	if messageThreshold <= 0 {
		messageThreshold = 20
	}
	if keepOpening <= 0 {
		keepOpening = 6
	}
	if keepRecent <= 0 {
		keepRecent = 10
	}
	if tokenCap <= 0 {
		tokenCap = 3000
	}
	return &ContextBuilder{
		messageThreshold: messageThreshold,
		keepOpening:      keepOpening,
		keepRecent:       keepRecent,
		tokenCap:         tokenCap,
	}
}

// Prepare converts a session history into provider messages, applying the
// compression policy. systemPrompt takes precedence over any stored system
// turn and is always at position 0.
func (b *ContextBuilder) Prepare(systemPrompt string, turns []Turn) []ai.Message {
	system := systemPrompt
	var history []ai.Message
	for _, t := range turns {
		if t.Role == ai.RoleSystem {
			if system == "" {
				system = t.Content
			}
			continue
		}
		history = append(history, ai.Message{Role: t.Role, Content: t.Content})
	}

	if len(history) > b.messageThreshold {
		history = b.compress(history)
	}
	out := make([]ai.Message, 0, len(history)+1)
	out = append(out, ai.Message{Role: ai.RoleSystem, Content: system})
	out = append(out, history...)

	return b.trimToTokenCap(out)
}

// compress keeps the conversation opening and the most recent turns. When
// the two windows would overlap the history is returned unmodified: the
// simple case wins over a spliced one.
func (b *ContextBuilder) compress(history []ai.Message) []ai.Message {
	if len(history) <= b.keepOpening+b.keepRecent {
		return history
	}
	out := make([]ai.Message, 0, b.keepOpening+b.keepRecent)
	out = append(out, history[:b.keepOpening]...)
	out = append(out, history[len(history)-b.keepRecent:]...)
	return out
}

// trimToTokenCap drops the oldest non-system message while the estimate
// exceeds the cap, stopping once at most minContextMessages remain.
func (b *ContextBuilder) trimToTokenCap(messages []ai.Message) []ai.Message {
	for estimateTokens(messages) > b.tokenCap && len(messages) > minContextMessages {
		// Position 0 is the system turn; position 1 is the oldest droppable.
		messages = append(messages[:1], messages[2:]...)
	}
	return messages
}

// estimateTokens applies the chars-per-token heuristic, rounding up.
func estimateTokens(messages []ai.Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content)
	}
	return (total + charsPerToken - 1) / charsPerToken
}
