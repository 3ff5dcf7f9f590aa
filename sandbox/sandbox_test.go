package sandbox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.starlark.net/starlark"

	"github.com/cellbyte/datalyst/dataset"
)

const salesCSV = "brand,price,region\nAlpha,10.5,DE\nBeta,7.25,FR\nAlpha,11.0,DE\n"

func newTestSandbox(t *testing.T, maxRows int) (*Sandbox, string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "sales.csv"), []byte(salesCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	r := dataset.NewRegistry()
	if _, err := r.Load(filepath.Join(dir, "sales.csv")); err != nil {
		t.Fatalf("loading fixture: %v", err)
	}

	outDir := filepath.Join(dir, "out")
	return New(r, outDir, maxRows), outDir
}

func TestExecuteSimpleExpression(t *testing.T) {
	s, _ := newTestSandbox(t, 100)

	res := s.Execute("result = 2 + 2")
	if !res.Success {
		t.Fatalf("expected success, got error: %s", res.Error)
	}
	n, ok := res.Value.(starlark.Int)
	if !ok {
		t.Fatalf("expected int result, got %T", res.Value)
	}
	if v, _ := n.Int64(); v != 4 {
		t.Errorf("expected 4, got %d", v)
	}
	if !strings.Contains(res.Output, "4") {
		t.Errorf("expected output to contain the result, got %q", res.Output)
	}
}

func TestExecuteCapturesPrint(t *testing.T) {
	s, _ := newTestSandbox(t, 100)

	res := s.Execute(`print("checking rows")` + "\nresult = sales.nrow()")
	if !res.Success {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if !strings.Contains(res.Output, "checking rows") {
		t.Errorf("print output not captured: %q", res.Output)
	}
}

func TestExecuteTableOperations(t *testing.T) {
	s, _ := newTestSandbox(t, 100)

	res := s.Execute(`result = sales.filter("brand", "==", "Alpha").nrow()`)
	if !res.Success {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	n := res.Value.(starlark.Int)
	if v, _ := n.Int64(); v != 2 {
		t.Errorf("expected 2 Alpha rows, got %d", v)
	}

	res = s.Execute(`result = sales.sort("price", desc=True).head(1).column("brand")`)
	if !res.Success {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	list := res.Value.(*starlark.List)
	if got, _ := starlark.AsString(list.Index(0)); got != "Alpha" {
		t.Errorf("expected most expensive brand Alpha, got %q", got)
	}
}

func TestExecuteGroupBy(t *testing.T) {
	s, _ := newTestSandbox(t, 100)

	res := s.Execute(`result = sales.group_by("brand", "price", agg="mean").nrow()`)
	if !res.Success {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	n := res.Value.(starlark.Int)
	if v, _ := n.Int64(); v != 2 {
		t.Errorf("expected 2 groups, got %d", v)
	}
}

func TestExecuteErrorReportsBacktrace(t *testing.T) {
	s, _ := newTestSandbox(t, 100)

	res := s.Execute("result = no_such_table.nrow()")
	if res.Success {
		t.Fatal("expected failure for undefined name")
	}
	if res.Error == "" {
		t.Error("expected non-empty error detail")
	}
	if strings.Contains(res.Error, "panic") {
		t.Errorf("error should be a script diagnostic, got %q", res.Error)
	}
}

func TestFigureStateResetAfterFailure(t *testing.T) {
	s, outDir := newTestSandbox(t, 100)

	res := s.Execute(`plt.title("doomed")` + "\nboom()")
	if res.Success {
		t.Fatal("expected failure")
	}
	if s.fig != nil {
		t.Fatal("figure state leaked past a failed execution")
	}

	res = s.Execute(`plt.line([1, 2, 3], [2, 4, 6], title="recovery")` + "\n" +
		`result = save_figure("chart.png")`)
	if !res.Success {
		t.Fatalf("plotting after failure: %s", res.Error)
	}
	if len(res.Artifacts) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(res.Artifacts))
	}
	if _, err := os.Stat(filepath.Join(outDir, "chart.png")); err != nil {
		t.Errorf("expected chart file on disk: %v", err)
	}
}

func TestSaveFigureWithoutPlotFails(t *testing.T) {
	s, _ := newTestSandbox(t, 100)

	res := s.Execute(`save_figure("empty.png")`)
	if res.Success {
		t.Fatal("expected failure when no figure exists")
	}
	if !strings.Contains(res.Error, "no figure") {
		t.Errorf("expected 'no figure' diagnostic, got %q", res.Error)
	}
}

func TestResultTableTruncation(t *testing.T) {
	s, _ := newTestSandbox(t, 2)

	res := s.Execute("result = sales")
	if !res.Success {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if !strings.Contains(res.Output, "[Showing first 2 of 3 rows]") {
		t.Errorf("expected truncation marker in output, got %q", res.Output)
	}
}

func TestSaveTableRoundTrip(t *testing.T) {
	s, outDir := newTestSandbox(t, 100)

	res := s.Execute(`filtered = sales.filter("region", "==", "DE")` + "\n" +
		`result = save_table(filtered, "germany.csv")`)
	if !res.Success {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if len(res.Artifacts) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(res.Artifacts))
	}

	r := dataset.NewRegistry()
	info, err := r.Load(filepath.Join(outDir, "germany.csv"))
	if err != nil {
		t.Fatalf("reloading exported table: %v", err)
	}
	if info.RowCount != 2 {
		t.Errorf("expected 2 exported rows, got %d", info.RowCount)
	}
	if len(info.Columns) != 3 {
		t.Errorf("expected 3 exported columns, got %d", len(info.Columns))
	}
}

func TestArtifactsSurviveLaterFailure(t *testing.T) {
	s, _ := newTestSandbox(t, 100)

	res := s.Execute(`save_table(sales, "all.csv")` + "\nexplode()")
	if res.Success {
		t.Fatal("expected failure")
	}
	if len(res.Artifacts) != 1 {
		t.Errorf("expected artifact written before the failure to be reported, got %d", len(res.Artifacts))
	}
}

func TestTabModuleHelpers(t *testing.T) {
	s, _ := newTestSandbox(t, 100)

	res := s.Execute(`result = tab.mean(sales.column("price"))`)
	if !res.Success {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	f := res.Value.(starlark.Float)
	want := (10.5 + 7.25 + 11.0) / 3
	if got := float64(f); got < want-0.001 || got > want+0.001 {
		t.Errorf("expected mean %.4f, got %.4f", want, got)
	}

	res = s.Execute(`result = len(tab.unique(sales.column("brand")))`)
	if !res.Success {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	n := res.Value.(starlark.Int)
	if v, _ := n.Int64(); v != 2 {
		t.Errorf("expected 2 unique brands, got %d", v)
	}
}

func TestTabConcat(t *testing.T) {
	s, _ := newTestSandbox(t, 100)

	res := s.Execute(`result = tab.concat(sales, sales).nrow()`)
	if !res.Success {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	n := res.Value.(starlark.Int)
	if v, _ := n.Int64(); v != 6 {
		t.Errorf("expected 6 rows after concat, got %d", v)
	}
}

func TestHeadTailRejectNegativeCount(t *testing.T) {
	s, _ := newTestSandbox(t, 100)

	res := s.Execute("result = sales.head(-1)")
	if res.Success {
		t.Fatal("expected failure for head(-1)")
	}
	if !strings.Contains(res.Error, "non-negative") {
		t.Errorf("expected count diagnostic, got %q", res.Error)
	}

	res = s.Execute("result = sales.tail(-1)")
	if res.Success {
		t.Fatal("expected failure for tail(-1)")
	}
	if !strings.Contains(res.Error, "non-negative") {
		t.Errorf("expected count diagnostic, got %q", res.Error)
	}

	// The sandbox stays usable after the rejected calls.
	res = s.Execute("result = sales.head(2).nrow()")
	if !res.Success {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	n := res.Value.(starlark.Int)
	if v, _ := n.Int64(); v != 2 {
		t.Errorf("expected 2 rows, got %d", v)
	}
}

func TestTailBeyondRowCountReturnsAll(t *testing.T) {
	s, _ := newTestSandbox(t, 100)

	res := s.Execute("result = sales.tail(99).nrow()")
	if !res.Success {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	n := res.Value.(starlark.Int)
	if v, _ := n.Int64(); v != 3 {
		t.Errorf("expected all 3 rows, got %d", v)
	}
}

func TestWhileLoopAllowed(t *testing.T) {
	s, _ := newTestSandbox(t, 100)

	res := s.Execute("total = 0\ni = 1\nwhile i <= 4:\n    total += i\n    i += 1\nresult = total")
	if !res.Success {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	n := res.Value.(starlark.Int)
	if v, _ := n.Int64(); v != 10 {
		t.Errorf("expected 10, got %d", v)
	}
}
