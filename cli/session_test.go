package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cellbyte/datalyst/agent"
	"github.com/cellbyte/datalyst/config"
	"github.com/cellbyte/datalyst/dataset"
)

func TestTraceLines(t *testing.T) {
	steps := []agent.Step{
		{Kind: agent.StepThinking, Content: "inspecting the sales table"},
		{Kind: agent.StepToolCall, ToolName: "run_script", Content: `{"code":"tab.get('sales')"}`},
		{Kind: agent.StepToolResult, ToolName: "run_script", Content: "3 rows"},
		{Kind: agent.StepResponse, Content: "done"},
	}

	lines := traceLines(steps)
	if len(lines) != 3 {
		t.Fatalf("expected 3 trace lines (response step omitted), got %d: %q", len(lines), lines)
	}
	if !strings.Contains(lines[0], "inspecting the sales table") {
		t.Errorf("thinking step missing from trace: %q", lines[0])
	}
	if !strings.Contains(lines[1], "run_script") {
		t.Errorf("tool call line should name the tool: %q", lines[1])
	}
	if !strings.Contains(lines[2], "3 rows") {
		t.Errorf("tool result missing from trace: %q", lines[2])
	}
	for _, line := range lines {
		if strings.Contains(line, "done") {
			t.Errorf("final answer must not appear in the trace: %q", line)
		}
	}
}

func TestCompact(t *testing.T) {
	got := compact("a  b\n\tc", 100)
	if got != "a b c" {
		t.Errorf("expected flattened string, got %q", got)
	}

	long := compact("aaaa bbbb cccc", 9)
	if len([]rune(long)) != 10 || long[:9] != "aaaa bbbb" {
		t.Errorf("expected truncation with ellipsis, got %q", long)
	}
}

func TestLoadPathsDirectoryAndFile(t *testing.T) {
	dir := t.TempDir()
	csv := "a,b\n1,2\n"
	if err := os.WriteFile(filepath.Join(dir, "one.csv"), []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "skipped.txt"), []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := &Session{registry: dataset.NewRegistry()}
	if err := s.LoadPaths([]string{dir}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.registry.Len() != 1 {
		t.Errorf("expected 1 loaded table, got %d", s.registry.Len())
	}
}

func TestLoadPathsDirectFileFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.csv")
	if err := os.WriteFile(bad, []byte("one single column\nno delimiter\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := &Session{registry: dataset.NewRegistry()}
	if err := s.LoadPaths([]string{bad}); err == nil {
		t.Fatal("expected error for unparseable file named directly")
	}
}

func TestLoadPathsNothingLoaded(t *testing.T) {
	s := &Session{
		settings: config.Settings{Paths: config.PathConfig{DataDir: t.TempDir()}},
		registry: dataset.NewRegistry(),
	}
	if err := s.LoadPaths(nil); err == nil {
		t.Fatal("expected error when no datasets could be loaded")
	}
}
