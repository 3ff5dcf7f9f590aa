package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cellbyte/datalyst/dataset"
	"github.com/cellbyte/datalyst/llm"
	"github.com/cellbyte/datalyst/report"
	"github.com/cellbyte/datalyst/sandbox"
	"github.com/cellbyte/datalyst/tools"
)

// scriptedProvider replays canned responses and records every request.
type scriptedProvider struct {
	responses []llm.LLMResponse
	err       error
	requests  [][]llm.ChatMessage
	calls     int
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "scripted-1" }

func (p *scriptedProvider) Chat(ctx context.Context, messages []llm.ChatMessage) (llm.LLMResponse, error) {
	return p.ChatWithTools(ctx, messages, nil)
}

func (p *scriptedProvider) ChatWithTools(_ context.Context, messages []llm.ChatMessage, _ []llm.ToolDefinition) (llm.LLMResponse, error) {
	snapshot := make([]llm.ChatMessage, len(messages))
	copy(snapshot, messages)
	p.requests = append(p.requests, snapshot)

	if p.err != nil {
		return llm.LLMResponse{}, p.err
	}
	if p.calls >= len(p.responses) {
		return llm.LLMResponse{}, fmt.Errorf("no scripted response for call %d", p.calls)
	}
	resp := p.responses[p.calls]
	p.calls++
	return resp, nil
}

var _ llm.Provider = (*scriptedProvider)(nil)

func toolCallResponse(id, name, arguments string) llm.LLMResponse {
	return llm.LLMResponse{
		ToolCalls: []llm.ToolCall{{ID: id, Name: name, Arguments: json.RawMessage(arguments)}},
	}
}

func finalResponse(answer string) llm.LLMResponse {
	return llm.LLMResponse{Content: answer}
}

func newTestOrchestrator(t *testing.T, provider llm.Provider) (*Orchestrator, string) {
	t.Helper()
	dir := t.TempDir()
	csv := "brand,price,region\nAlpha,10.5,DE\nBeta,7.25,FR\nAlpha,11.0,DE\n"
	if err := os.WriteFile(filepath.Join(dir, "sales.csv"), []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	registry := dataset.NewRegistry()
	if _, err := registry.Load(filepath.Join(dir, "sales.csv")); err != nil {
		t.Fatalf("loading fixture: %v", err)
	}

	outDir := filepath.Join(dir, "out")
	sb := sandbox.New(registry, outDir, 100)
	reports := report.NewRenderer(outDir)
	client := llm.NewClient(provider)

	return New(client, registry, sb, reports, Config{MaxIterations: 5, HistoryPairs: 50}), outDir
}

func TestNewDefaultsZeroConfig(t *testing.T) {
	o := New(nil, nil, nil, nil, Config{})
	if o.config.MaxIterations != 10 {
		t.Errorf("expected default MaxIterations 10, got %d", o.config.MaxIterations)
	}
	if o.config.HistoryPairs != 50 {
		t.Errorf("expected default HistoryPairs 50, got %d", o.config.HistoryPairs)
	}
}

func TestProcessToolCallThenAnswer(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.LLMResponse{
		toolCallResponse("call_1", tools.ToolAnalyzeData,
			`{"code": "result = sales.nrow()", "explanation": "Count the rows."}`),
		finalResponse("There are 3 rows."),
	}}
	o, _ := newTestOrchestrator(t, provider)

	resp, err := o.Process(context.Background(), "How many rows are there?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Answer != "There are 3 rows." {
		t.Errorf("unexpected answer: %q", resp.Answer)
	}
	if resp.Metadata.RoundTrips != 2 {
		t.Errorf("expected 2 round trips, got %d", resp.Metadata.RoundTrips)
	}

	// Trace: thinking, tool_call, tool_result with matching IDs, response.
	var kinds []StepKind
	for _, s := range resp.Steps {
		kinds = append(kinds, s.Kind)
	}
	want := []StepKind{StepThinking, StepToolCall, StepToolResult, StepResponse}
	if len(kinds) != len(want) {
		t.Fatalf("expected steps %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("expected steps %v, got %v", want, kinds)
		}
	}
	if resp.Steps[0].Content == "" {
		t.Error("thinking step must carry a placeholder when the model sent no text")
	}
	if resp.Steps[1].CallID != "call_1" || resp.Steps[2].CallID != "call_1" {
		t.Error("tool call and result must share a correlation ID")
	}
	if !strings.Contains(resp.Steps[2].Content, "3") {
		t.Errorf("tool result should carry the computed value, got %q", resp.Steps[2].Content)
	}
	if !strings.Contains(resp.Steps[2].Content, "Count the rows.") {
		t.Errorf("tool result should lead with the explanation, got %q", resp.Steps[2].Content)
	}

	// Second request must contain the assistant tool-call turn and a tool
	// message correlated to it.
	second := provider.requests[1]
	last := second[len(second)-1]
	if last.Role != llm.RoleTool || last.ToolCallID != "call_1" {
		t.Errorf("expected trailing tool message for call_1, got role=%q id=%q", last.Role, last.ToolCallID)
	}
	assistant := second[len(second)-2]
	if assistant.Role != llm.RoleAssistant || len(assistant.ToolCalls) != 1 {
		t.Error("assistant tool-call turn not echoed back to the model")
	}

	if o.History().Len() != 1 {
		t.Errorf("resolved exchange should be recorded, history len = %d", o.History().Len())
	}
}

func TestProcessIterationCeiling(t *testing.T) {
	responses := make([]llm.LLMResponse, 5)
	for i := range responses {
		responses[i] = toolCallResponse(fmt.Sprintf("call_%d", i), tools.ToolAnalyzeData, `{"code": "result = 1"}`)
	}
	provider := &scriptedProvider{responses: responses}
	o, _ := newTestOrchestrator(t, provider)

	resp, err := o.Process(context.Background(), "loop forever")
	if err != nil {
		t.Fatalf("ceiling must not be an error: %v", err)
	}
	if resp.Answer == "" || !strings.Contains(resp.Answer, "could not finish") {
		t.Errorf("expected ceiling explanation, got %q", resp.Answer)
	}
	if resp.Metadata.RoundTrips != 5 {
		t.Errorf("expected 5 round trips, got %d", resp.Metadata.RoundTrips)
	}
	if o.History().Len() != 0 {
		t.Error("unresolved exchange must not enter history")
	}
}

func TestProcessModelErrorLeavesHistoryUntouched(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("connection refused")}
	o, _ := newTestOrchestrator(t, provider)

	_, err := o.Process(context.Background(), "anything")
	if err == nil {
		t.Fatal("expected transport error to propagate")
	}
	if o.History().Len() != 0 {
		t.Error("failed exchange must not enter history")
	}
}

func TestProcessUnknownToolContinuesLoop(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.LLMResponse{
		toolCallResponse("call_1", "drop_tables", `{}`),
		finalResponse("I used the wrong tool; nothing was computed."),
	}}
	o, _ := newTestOrchestrator(t, provider)

	resp, err := o.Process(context.Background(), "do something odd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(resp.Steps[2].Content, "unknown tool") {
		t.Errorf("expected unknown-tool diagnostic in result step, got %q", resp.Steps[2].Content)
	}
	if resp.Metadata.RoundTrips != 2 {
		t.Errorf("loop should continue after an unknown tool, got %d round trips", resp.Metadata.RoundTrips)
	}
}

func TestProcessScriptFailureFedBack(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.LLMResponse{
		toolCallResponse("call_1", tools.ToolAnalyzeData, `{"code": "result = nope.nrow()"}`),
		finalResponse("That column does not exist."),
	}}
	o, _ := newTestOrchestrator(t, provider)

	resp, err := o.Process(context.Background(), "bad script")
	if err != nil {
		t.Fatalf("script failure must stay in-band: %v", err)
	}
	if !strings.Contains(resp.Steps[2].Content, "Script failed") {
		t.Errorf("expected script diagnostic, got %q", resp.Steps[2].Content)
	}
}

func TestProcessReportGeneration(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.LLMResponse{
		toolCallResponse("call_1", tools.ToolGenerateReport,
			`{"title": "Sales Summary", "content": "# Overview\n\nAll fine.", "format": "pdf"}`),
		finalResponse("Report saved."),
	}}
	o, outDir := newTestOrchestrator(t, provider)

	resp, err := o.Process(context.Background(), "write a report")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Files) != 1 {
		t.Fatalf("expected 1 produced file, got %d", len(resp.Files))
	}
	if !strings.HasPrefix(resp.Files[0], outDir) {
		t.Errorf("report escaped the output directory: %q", resp.Files[0])
	}
	if _, statErr := os.Stat(resp.Files[0]); statErr != nil {
		t.Errorf("report file missing: %v", statErr)
	}
}

func TestProcessUnsupportedReportFormat(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.LLMResponse{
		toolCallResponse("call_1", tools.ToolGenerateReport,
			`{"title": "X", "content": "y", "format": "word"}`),
		finalResponse("Only pdf and docx are supported."),
	}}
	o, _ := newTestOrchestrator(t, provider)

	resp, err := o.Process(context.Background(), "report as word")
	if err != nil {
		t.Fatalf("format error must stay in-band: %v", err)
	}
	if !strings.Contains(resp.Steps[2].Content, "unsupported report format") {
		t.Errorf("expected format diagnostic, got %q", resp.Steps[2].Content)
	}
	if len(resp.Files) != 0 {
		t.Errorf("no files expected, got %v", resp.Files)
	}
}

func TestProcessHistoryWindowInRequests(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.LLMResponse{
		finalResponse("First answer."),
		finalResponse("Second answer."),
	}}
	o, _ := newTestOrchestrator(t, provider)

	if _, err := o.Process(context.Background(), "first question"); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Process(context.Background(), "second question"); err != nil {
		t.Fatal(err)
	}

	second := provider.requests[1]
	// system, prior user, prior assistant, new user
	if len(second) != 4 {
		t.Fatalf("expected 4 messages in second request, got %d", len(second))
	}
	if second[0].Role != llm.RoleSystem {
		t.Errorf("first message must be the system instruction, got %q", second[0].Role)
	}
	if second[1].Content != "first question" || second[2].Content != "First answer." {
		t.Error("prior exchange missing from conversation window")
	}
}

func TestProcessCancelledContext(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.LLMResponse{finalResponse("never reached")}}
	o, _ := newTestOrchestrator(t, provider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Process(ctx, "anything")
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}
