// Package storage keeps in-process conversation state.
//
// Information Hiding:
// - History stores resolved exchanges only; tool traffic never enters
// - Windowing policy (newest pairs win) lives here, not in the orchestrator
// - Views are copies; callers cannot mutate stored state

package storage

import "github.com/cellbyte/datalyst/llm"

// exchange is one resolved user/assistant pair. Intermediate tool calls and
// tool results are deliberately absent; only the final answer is kept.
type exchange struct {
	user      llm.ChatMessage
	assistant llm.ChatMessage
}

// History is the session conversation memory. It lives for the process only;
// nothing is persisted.
type History struct {
	exchanges []exchange
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Append records one resolved exchange.
func (h *History) Append(user, assistant llm.ChatMessage) {
	h.exchanges = append(h.exchanges, exchange{user: user, assistant: assistant})
}

// View returns the newest maxPairs exchanges flattened into chronological
// messages. maxPairs <= 0 means no cap. The returned slice is a copy.
func (h *History) View(maxPairs int) []llm.ChatMessage {
	start := 0
	if maxPairs > 0 && len(h.exchanges) > maxPairs {
		start = len(h.exchanges) - maxPairs
	}

	window := h.exchanges[start:]
	out := make([]llm.ChatMessage, 0, 2*len(window))
	for _, ex := range window {
		out = append(out, ex.user, ex.assistant)
	}
	return out
}

// Clear drops all stored exchanges.
func (h *History) Clear() {
	h.exchanges = nil
}

// Len returns the number of stored exchanges.
func (h *History) Len() int {
	return len(h.exchanges)
}
