// Package agent drives the tool-calling conversation loop.
//
// All question answering goes through Orchestrator.Process: build the model
// conversation from the system instruction, the history window, and the new
// question; let the model request tools; execute them strictly in the order
// requested; feed results back; stop at a plain-text answer or the iteration
// ceiling.
//
// Information Hiding:
// - Conversation assembly and the feedback protocol are internal
// - Tool dispatch is closed: only cataloged names execute
// - History admission policy (resolved exchanges only) enforced here

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cellbyte/datalyst/dataset"
	"github.com/cellbyte/datalyst/llm"
	"github.com/cellbyte/datalyst/report"
	"github.com/cellbyte/datalyst/sandbox"
	"github.com/cellbyte/datalyst/storage"
	"github.com/cellbyte/datalyst/tools"
)

// ceilingAnswer is returned when the model never produced a final answer
// within the iteration budget.
const ceilingAnswer = "I could not finish the analysis within the allowed number of steps. " +
	"The partial trace above shows what was computed; try a narrower question."

// Config bounds one orchestrator.
type Config struct {
	// MaxIterations caps model round trips per question.
	MaxIterations int
	// HistoryPairs caps how many past exchanges enter the conversation.
	HistoryPairs int
}

// Orchestrator answers questions about loaded datasets.
type Orchestrator struct {
	client   *llm.Client
	registry *dataset.Registry
	sandbox  *sandbox.Sandbox
	reports  *report.Renderer
	history  *storage.History
	config   Config
}

// New creates an orchestrator. The sandbox and renderer must share the
// registry and output directory the caller configured.
func New(client *llm.Client, registry *dataset.Registry, sb *sandbox.Sandbox, reports *report.Renderer, config Config) *Orchestrator {
	if config.MaxIterations <= 0 {
		config.MaxIterations = 10
	}
	if config.HistoryPairs <= 0 {
		config.HistoryPairs = 50
	}
	return &Orchestrator{
		client:   client,
		registry: registry,
		sandbox:  sb,
		reports:  reports,
		history:  storage.NewHistory(),
		config:   config,
	}
}

// History exposes the session memory for CLI commands (clear, inspect).
func (o *Orchestrator) History() *storage.History {
	return o.history
}

// Process answers one question. On a model transport error the error is
// returned and the session history is left untouched; the caller may retry
// the same question. The ceiling produces a normal Response, not an error,
// but is likewise not recorded in history.
func (o *Orchestrator) Process(ctx context.Context, input string) (Response, error) {
	start := time.Now()
	catalog := tools.Catalog()

	userMsg := llm.UserMessage(input)
	messages := make([]llm.ChatMessage, 0, 2+2*o.config.HistoryPairs)
	messages = append(messages, llm.SystemMessage(tools.SystemPrompt(o.registry.SchemaSummary(), o.registry.Names())))
	messages = append(messages, o.history.View(o.config.HistoryPairs)...)
	messages = append(messages, userMsg)

	var steps []Step
	var files []string
	var usage llm.TokenUsage
	roundTrips := 0

	for iteration := 0; iteration < o.config.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return Response{}, fmt.Errorf("processing cancelled: %w", err)
		}

		resp, err := o.client.ChatWithTools(ctx, messages, catalog)
		if err != nil {
			return Response{}, fmt.Errorf("model request failed: %w", err)
		}
		roundTrips++
		usage.Add(resp.Usage)

		if len(resp.ToolCalls) == 0 {
			steps = append(steps, Step{Kind: StepResponse, Content: resp.Content})
			o.history.Append(userMsg, llm.AssistantMessage(resp.Content))
			return Response{
				Answer: resp.Content,
				Steps:  steps,
				Files:  files,
				Metadata: Metadata{
					ElapsedMs:  time.Since(start).Milliseconds(),
					RoundTrips: roundTrips,
					Usage:      usage,
				},
			}, nil
		}

		thought := resp.Content
		if thought == "" {
			thought = "(choosing a tool)"
		}
		steps = append(steps, Step{Kind: StepThinking, Content: thought})

		// The assistant turn goes back verbatim, tool calls included, so
		// every provider can correlate the results that follow.
		messages = append(messages, llm.ChatMessage{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			steps = append(steps, Step{
				Kind:     StepToolCall,
				Content:  string(call.Arguments),
				ToolName: call.Name,
				CallID:   call.ID,
			})

			output, produced := o.executeTool(call)
			files = append(files, produced...)

			steps = append(steps, Step{
				Kind:     StepToolResult,
				Content:  output,
				ToolName: call.Name,
				CallID:   call.ID,
			})
			messages = append(messages, llm.ToolMessage(call.ID, output))
		}
	}

	// Ceiling: report what happened without recording the exchange, so a
	// rephrased question starts from the same history.
	return Response{
		Answer: ceilingAnswer,
		Steps:  steps,
		Files:  files,
		Metadata: Metadata{
			ElapsedMs:  time.Since(start).Milliseconds(),
			RoundTrips: roundTrips,
			Usage:      usage,
		},
	}, nil
}

// executeTool dispatches one call and renders its outcome as the text fed
// back to the model. Failures are reported in-band; they never abort the
// conversation.
func (o *Orchestrator) executeTool(call llm.ToolCall) (string, []string) {
	switch {
	case tools.IsScriptTool(call.Name):
		return o.runScript(call)
	case call.Name == tools.ToolGenerateReport:
		return o.runReport(call)
	default:
		return fmt.Sprintf("Error: unknown tool %q. Use one of the provided tools.", call.Name), nil
	}
}

func (o *Orchestrator) runScript(call llm.ToolCall) (string, []string) {
	var args struct {
		Code        string `json:"code"`
		Explanation string `json:"explanation"`
	}
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		return fmt.Sprintf("Error: invalid arguments for %s: %v", call.Name, err), nil
	}
	if args.Code == "" {
		return fmt.Sprintf("Error: %s requires a non-empty code argument.", call.Name), nil
	}

	res := o.sandbox.Execute(args.Code)
	if !res.Success {
		return fmt.Sprintf("Script failed:\n%s", res.Error), res.Artifacts
	}

	output := res.Output
	if output == "" {
		output = "(script produced no output; bind a value to `result` or print something)"
	}
	if args.Explanation != "" {
		output = args.Explanation + "\n" + output
	}
	if len(res.Artifacts) > 0 {
		output += fmt.Sprintf("\nSaved files: %v", res.Artifacts)
	}
	return output, res.Artifacts
}

func (o *Orchestrator) runReport(call llm.ToolCall) (string, []string) {
	var args struct {
		Title    string `json:"title"`
		Content  string `json:"content"`
		Format   string `json:"format"`
		Filename string `json:"filename"`
	}
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		return fmt.Sprintf("Error: invalid arguments for %s: %v", call.Name, err), nil
	}

	format, err := report.ParseFormat(args.Format)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}

	path, err := o.reports.Render(args.Title, args.Content, format, args.Filename)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	return fmt.Sprintf("Report written to %s", path), []string{path}
}
