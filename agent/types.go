// Types for orchestration steps and responses.

package agent

import "github.com/cellbyte/datalyst/llm"

// StepKind classifies one entry in an execution trace.
type StepKind string

const (
	// StepThinking is assistant text accompanying a tool request.
	StepThinking StepKind = "thinking"
	// StepToolCall is one requested tool invocation.
	StepToolCall StepKind = "tool_call"
	// StepToolResult is the outcome fed back for a tool invocation.
	StepToolResult StepKind = "tool_result"
	// StepResponse is the final plain-text answer.
	StepResponse StepKind = "response"
)

// Step is one trace entry. Tool call and tool result steps carry the tool
// name and the correlation ID linking them.
type Step struct {
	Kind     StepKind
	Content  string
	ToolName string
	CallID   string
}

// Metadata describes how an answer was produced.
type Metadata struct {
	ElapsedMs  int64
	RoundTrips int // model invocations
	Usage      llm.TokenUsage
}

// Response is the outcome of one Process call. Answer is always set; when the
// iteration ceiling was hit it explains that analysis was cut short.
type Response struct {
	Answer   string
	Steps    []Step
	Files    []string // artifacts produced during this exchange
	Metadata Metadata
}
