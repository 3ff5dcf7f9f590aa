// Interactive session wiring and output rendering.
//
// Information Hiding:
// - Provider construction and component wiring hidden
// - Command dispatch (exit, clear, schema) internal to the loop
// - Trace rendering details hidden from the orchestrator

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cellbyte/datalyst/agent"
	"github.com/cellbyte/datalyst/config"
	"github.com/cellbyte/datalyst/dataset"
	"github.com/cellbyte/datalyst/llm"
	"github.com/cellbyte/datalyst/report"
	"github.com/cellbyte/datalyst/sandbox"
)

// Session holds one wired analysis session.
type Session struct {
	settings     config.Settings
	registry     *dataset.Registry
	orchestrator *agent.Orchestrator
	// Quiet suppresses the tool trace; by default every answer renders
	// its full trace followed by the answer.
	Quiet bool
}

// NewSession builds the provider and wires registry, sandbox, renderer, and
// orchestrator from settings. The API key must already be validated.
func NewSession(settings config.Settings) (*Session, error) {
	providerType, err := llm.ParseProviderType(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}

	provider, err := providerType.
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature)).
		FromEnv()
	if err != nil {
		return nil, fmt.Errorf("creating %s provider: %w", settings.LLM.Provider, err)
	}

	registry := dataset.NewRegistry()
	sb := sandbox.New(registry, settings.Paths.OutputDir, settings.Sandbox.MaxOutputRows)
	reports := report.NewRenderer(settings.Paths.OutputDir)

	orchestrator := agent.New(llm.NewClient(provider), registry, sb, reports, agent.Config{
		MaxIterations: settings.Agent.MaxIterations,
		HistoryPairs:  settings.Agent.HistoryPairs,
	})

	return &Session{
		settings:     settings,
		registry:     registry,
		orchestrator: orchestrator,
	}, nil
}

// Registry exposes the dataset registry for schema inspection.
func (s *Session) Registry() *dataset.Registry {
	return s.registry
}

// LoadPaths loads datasets from the given files and directories. Directories
// are scanned non-recursively; individual file failures print a warning and
// loading continues. Returns an error only when nothing could be loaded.
func (s *Session) LoadPaths(paths []string) error {
	if len(paths) == 0 {
		paths = []string{s.settings.Paths.DataDir}
	}

	for _, path := range paths {
		stat, err := os.Stat(path)
		if err != nil {
			fmt.Println(styles.Warning.Render(fmt.Sprintf("warning: %v", err)))
			continue
		}

		if stat.IsDir() {
			loaded, failures := s.registry.LoadDirectory(path)
			for _, fail := range failures {
				fmt.Println(styles.Warning.Render(fmt.Sprintf("warning: %v", fail)))
			}
			for _, info := range loaded {
				fmt.Println(styles.Muted.Render(fmt.Sprintf("loaded %s (%d rows, %d columns)",
					info.Name, info.RowCount, len(info.Columns))))
			}
			continue
		}

		// A file named directly must load; unlike a scan, the user asked
		// for exactly this one.
		info, err := s.registry.Load(path)
		if err != nil {
			return err
		}
		fmt.Println(styles.Muted.Render(fmt.Sprintf("loaded %s (%d rows, %d columns)",
			info.Name, info.RowCount, len(info.Columns))))
	}

	if s.registry.Len() == 0 {
		return errors.New("no datasets loaded; pass .csv or .tsv files or a directory containing them")
	}
	return nil
}

// Ask answers one question and prints the response.
func (s *Session) Ask(ctx context.Context, question string) error {
	resp, err := s.orchestrator.Process(ctx, question)
	if err != nil {
		return err
	}
	s.printResponse(resp)
	return nil
}

// RunInteractive runs the read-eval-print loop until EOF or an exit command.
func (s *Session) RunInteractive(ctx context.Context) error {
	s.printWelcome()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(styles.Prompt.Render("you> ") + " ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(input) {
		case "":
			continue
		case "exit", "quit", "q":
			fmt.Println(styles.Muted.Render("bye"))
			return nil
		case "clear":
			s.orchestrator.History().Clear()
			fmt.Println(styles.Muted.Render("conversation history cleared"))
			continue
		case "schema":
			fmt.Println(s.registry.SchemaSummary())
			continue
		case "help":
			s.printHelp()
			continue
		}

		if err := s.Ask(ctx, input); err != nil {
			if ctx.Err() != nil {
				return err
			}
			// A failed exchange is recoverable; the session goes on.
			fmt.Println(styles.Error.Render(fmt.Sprintf("error: %v", err)))
		}
	}
}

func (s *Session) printWelcome() {
	header := styles.Title.Render("datalyst") + styles.Muted.Render(
		fmt.Sprintf("  %s / %s", s.settings.LLM.Provider, s.settings.LLM.Model))
	fmt.Println(styles.Box.Render(header))

	for _, name := range s.registry.Names() {
		if info, ok := s.registry.Info(name); ok {
			fmt.Printf("  %s  %s\n",
				styles.Success.Render(name),
				styles.Muted.Render(fmt.Sprintf("%d rows, %d columns", info.RowCount, len(info.Columns))))
		}
	}
	fmt.Println(styles.Muted.Render("ask a question, or type help"))
}

func (s *Session) printHelp() {
	fmt.Println(styles.Muted.Render(strings.Join([]string{
		"schema      show loaded dataset schemas",
		"clear       forget the conversation so far",
		"exit        leave (also: quit, q)",
	}, "\n")))
}

func (s *Session) printResponse(resp agent.Response) {
	if !s.Quiet {
		for _, line := range traceLines(resp.Steps) {
			fmt.Println(line)
		}
	}

	fmt.Println()
	fmt.Println(styles.Answer.Render(resp.Answer))

	for _, file := range resp.Files {
		fmt.Println(styles.Success.Render("saved: " + filepath.Clean(file)))
	}

	fmt.Println(styles.Muted.Render(fmt.Sprintf("(%d model calls, %d tokens, %dms)",
		resp.Metadata.RoundTrips, resp.Metadata.Usage.TotalTokens, resp.Metadata.ElapsedMs)))
	fmt.Println()
}

// traceLines renders the tool interaction steps that led to an answer, one
// display line per step. The final response step is omitted; the answer is
// printed separately.
func traceLines(steps []agent.Step) []string {
	var lines []string
	for _, step := range steps {
		switch step.Kind {
		case agent.StepThinking:
			lines = append(lines, styles.Muted.Render("… "+step.Content))
		case agent.StepToolCall:
			lines = append(lines, styles.Warning.Render(fmt.Sprintf("→ %s %s", step.ToolName, compact(step.Content, 120))))
		case agent.StepToolResult:
			lines = append(lines, styles.Muted.Render("← "+compact(step.Content, 200)))
		}
	}
	return lines
}

// compact flattens and truncates a string for single-line trace display.
func compact(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > max {
		return s[:max] + "…"
	}
	return s
}
