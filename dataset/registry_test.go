package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

const commaCSV = "brand,price,region\nAlpha,10.5,DE\nBeta,7.25,FR\nAlpha,11.0,DE\n"

func TestLoadCommaDelimited(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "sales.csv", commaCSV)

	r := NewRegistry()
	info, err := r.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if info.Name != "sales" {
		t.Errorf("expected table name 'sales', got %q", info.Name)
	}
	if info.RowCount != 3 {
		t.Errorf("expected 3 rows, got %d", info.RowCount)
	}
	if len(info.Columns) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(info.Columns))
	}
	if info.Columns[0].Name != "brand" {
		t.Errorf("expected first column 'brand', got %q", info.Columns[0].Name)
	}
	if info.Columns[0].DistinctCount != 2 {
		t.Errorf("expected 2 distinct brands, got %d", info.Columns[0].DistinctCount)
	}
}

func TestLoadSemicolonDelimited(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "costs.csv", "drug;cost\nA;1.5\nB;2.5\n")

	r := NewRegistry()
	info, err := r.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(info.Columns) != 2 {
		t.Errorf("expected 2 columns, got %d", len(info.Columns))
	}
}

func TestLoadTabDelimited(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "events.tsv", "id\twhen\n1\t2024-01-01\n")

	r := NewRegistry()
	info, err := r.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(info.Columns) != 2 {
		t.Errorf("expected 2 columns, got %d", len(info.Columns))
	}
}

func TestLoadNoUsableDelimiter(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.csv", "just a single column of text\nwith no delimiters at all\n")

	r := NewRegistry()
	_, err := r.Load(path)
	if err == nil {
		t.Fatal("expected error for file with no usable delimiter")
	}
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Errorf("expected *LoadError, got %T", err)
	}
	if r.Len() != 0 {
		t.Errorf("expected no tables registered, got %d", r.Len())
	}
}

func TestLoadMissingFile(t *testing.T) {
	r := NewRegistry()
	_, err := r.Load(filepath.Join(t.TempDir(), "absent.csv"))
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected *LoadError, got %v", err)
	}
}

func TestLoadDirectoryBestEffort(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.csv", commaCSV)
	writeFile(t, dir, "bad.csv", "one lonely column\nno delimiter here\n")
	writeFile(t, dir, "ignored.txt", "not a table")

	r := NewRegistry()
	loaded, failures := r.LoadDirectory(dir)

	if len(loaded) != 1 {
		t.Fatalf("expected exactly 1 loaded table, got %d", len(loaded))
	}
	if loaded[0].Name != "good" {
		t.Errorf("expected table 'good', got %q", loaded[0].Name)
	}
	if len(failures) != 1 {
		t.Fatalf("expected exactly 1 recorded failure, got %d", len(failures))
	}
	var loadErr *LoadError
	if !errors.As(failures[0], &loadErr) {
		t.Errorf("expected *LoadError in failures, got %T", failures[0])
	}
}

func TestLoadDirectoryNonRecursive(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, sub, "nested.csv", commaCSV)
	writeFile(t, dir, "top.csv", commaCSV)

	r := NewRegistry()
	loaded, failures := r.LoadDirectory(dir)
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if len(loaded) != 1 || loaded[0].Name != "top" {
		t.Errorf("expected only top-level file to load, got %v", loaded)
	}
}

func TestSchemaSummary(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()
	if r.SchemaSummary() != "No datasets loaded." {
		t.Errorf("unexpected empty summary: %q", r.SchemaSummary())
	}

	writeFile(t, dir, "sales.csv", commaCSV)
	if _, err := r.Load(filepath.Join(dir, "sales.csv")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	summary := r.SchemaSummary()
	if !strings.Contains(summary, "Dataset: sales") {
		t.Errorf("summary missing dataset name: %q", summary)
	}
	if !strings.Contains(summary, "Rows: 3") {
		t.Errorf("summary missing row count: %q", summary)
	}
	if !strings.Contains(summary, "brand") {
		t.Errorf("summary missing column name: %q", summary)
	}
	// At most 3 example values per column
	for _, line := range strings.Split(summary, "\n") {
		if idx := strings.Index(line, "Examples: "); idx >= 0 {
			examples := strings.Split(line[idx+len("Examples: "):], ", ")
			if len(examples) > 3 {
				t.Errorf("expected at most 3 examples, got %d in %q", len(examples), line)
			}
		}
	}
}

func TestReloadReplacesTable(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "sales.csv", commaCSV)

	r := NewRegistry()
	if _, err := r.Load(path); err != nil {
		t.Fatal(err)
	}

	writeFile(t, dir, "sales.csv", "brand,price\nGamma,1.0\n")
	info, err := r.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.RowCount != 1 {
		t.Errorf("expected reloaded row count 1, got %d", info.RowCount)
	}
	if r.Len() != 1 {
		t.Errorf("expected a single registered table after reload, got %d", r.Len())
	}
	if len(r.Names()) != 1 {
		t.Errorf("expected stable name list after reload, got %v", r.Names())
	}
}
