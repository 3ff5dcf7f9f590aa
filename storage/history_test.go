package storage

import (
	"fmt"
	"testing"

	"github.com/cellbyte/datalyst/llm"
)

func TestHistoryAppendAndView(t *testing.T) {
	h := NewHistory()
	if h.Len() != 0 {
		t.Fatalf("new history should be empty, got %d", h.Len())
	}

	h.Append(llm.UserMessage("q1"), llm.AssistantMessage("a1"))
	h.Append(llm.UserMessage("q2"), llm.AssistantMessage("a2"))

	msgs := h.View(50)
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "q1" || msgs[1].Content != "a1" {
		t.Errorf("exchanges out of order: %v", msgs)
	}
	if msgs[0].Role != llm.RoleUser || msgs[1].Role != llm.RoleAssistant {
		t.Errorf("unexpected roles: %q, %q", msgs[0].Role, msgs[1].Role)
	}
}

func TestHistoryWindowKeepsNewest(t *testing.T) {
	h := NewHistory()
	for i := 0; i < 10; i++ {
		h.Append(llm.UserMessage(fmt.Sprintf("q%d", i)), llm.AssistantMessage(fmt.Sprintf("a%d", i)))
	}

	msgs := h.View(3)
	if len(msgs) != 6 {
		t.Fatalf("expected 6 messages for 3 pairs, got %d", len(msgs))
	}
	if msgs[0].Content != "q7" {
		t.Errorf("expected window to start at q7, got %q", msgs[0].Content)
	}
	if msgs[5].Content != "a9" {
		t.Errorf("expected window to end at a9, got %q", msgs[5].Content)
	}

	// The cap is a view concern; storage keeps everything.
	if h.Len() != 10 {
		t.Errorf("expected all 10 exchanges retained, got %d", h.Len())
	}
}

func TestHistoryViewNoCap(t *testing.T) {
	h := NewHistory()
	h.Append(llm.UserMessage("q"), llm.AssistantMessage("a"))
	if got := len(h.View(0)); got != 2 {
		t.Errorf("maxPairs 0 should return everything, got %d messages", got)
	}
	if got := len(h.View(-1)); got != 2 {
		t.Errorf("negative maxPairs should return everything, got %d messages", got)
	}
}

func TestHistoryViewIsACopy(t *testing.T) {
	h := NewHistory()
	h.Append(llm.UserMessage("q"), llm.AssistantMessage("a"))

	view := h.View(10)
	view[0].Content = "mutated"

	if h.View(10)[0].Content != "q" {
		t.Error("mutating a view changed stored history")
	}
}

func TestHistoryClear(t *testing.T) {
	h := NewHistory()
	h.Append(llm.UserMessage("q"), llm.AssistantMessage("a"))
	h.Clear()
	if h.Len() != 0 {
		t.Errorf("expected empty history after Clear, got %d", h.Len())
	}
	if len(h.View(10)) != 0 {
		t.Error("expected empty view after Clear")
	}
}
