// Package dataset loads delimited files into named in-memory tables.
//
// Information Hiding:
// - Delimiter detection order and parsing internals hidden
// - Column profiling (types, distinct counts, samples) computed once at load
// - Consumers see immutable TableInfo snapshots and read-only dataframes

package dataset

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// delimiterPreference is the fixed order in which field delimiters are tried.
// The first parse yielding more than one column wins.
var delimiterPreference = []rune{',', ';', '\t'}

// Extensions recognized when scanning a directory.
var tableExtensions = map[string]bool{
	".csv": true,
	".tsv": true,
}

// maxSampleValues is how many distinct example values are kept per column.
const maxSampleValues = 5

// LoadError reports a dataset source that could not be parsed or read.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ColumnProfile holds per-column metadata derived once at load time.
type ColumnProfile struct {
	Name          string
	Type          string
	NonNullCount  int
	SampleValues  []string // up to maxSampleValues distinct non-null values
	DistinctCount int
}

// TableInfo describes a loaded table.
type TableInfo struct {
	Name     string
	Path     string
	RowCount int
	Columns  []ColumnProfile
}

// SchemaString renders a human-readable schema description. The format is
// injected verbatim into the model-facing system instruction, so it must stay
// stable and compact.
func (i *TableInfo) SchemaString() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dataset: %s\n", i.Name)
	fmt.Fprintf(&b, "Rows: %d\n", i.RowCount)
	b.WriteString("Columns:")
	for _, col := range i.Columns {
		samples := col.SampleValues
		if len(samples) > 3 {
			samples = samples[:3]
		}
		fmt.Fprintf(&b, "\n  - %s (%s): %d unique values. Examples: %s",
			col.Name, col.Type, col.DistinctCount, strings.Join(samples, ", "))
	}
	return b.String()
}

// Registry holds named in-memory tables. Tables are immutable once loaded;
// reloading a name replaces the table and its profiles wholesale.
type Registry struct {
	tables map[string]dataframe.DataFrame
	info   map[string]*TableInfo
	order  []string // load order, for stable schema summaries
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tables: make(map[string]dataframe.DataFrame),
		info:   make(map[string]*TableInfo),
	}
}

// Load parses one delimited file and registers it under the file's stem name.
// Delimiters are tried in preference order (comma, semicolon, tab); the first
// parse yielding more than one column is kept. Returns a *LoadError if the
// file cannot be read or no delimiter yields a usable table.
func (r *Registry) Load(path string) (*TableInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	df, err := parseDelimited(data)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	name := tableName(path)
	info := profile(name, path, df)

	if _, exists := r.tables[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tables[name] = df
	r.info[name] = info
	return info, nil
}

// LoadDirectory loads every recognized delimited file in dir, non-recursively.
// Batch semantics are best-effort: a failure on one file never aborts the
// others. Successes and per-file failures are both returned; the caller
// decides whether partial success is acceptable.
func (r *Registry) LoadDirectory(dir string) ([]*TableInfo, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{&LoadError{Path: dir, Err: err}}
	}

	var loaded []*TableInfo
	var failures []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !tableExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		info, err := r.Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			failures = append(failures, err)
			continue
		}
		loaded = append(loaded, info)
	}
	return loaded, failures
}

// Get returns a loaded table by name.
func (r *Registry) Get(name string) (dataframe.DataFrame, bool) {
	df, ok := r.tables[name]
	return df, ok
}

// Info returns the profile of a loaded table by name.
func (r *Registry) Info(name string) (*TableInfo, bool) {
	info, ok := r.info[name]
	return info, ok
}

// Names returns all loaded table names in load order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of loaded tables.
func (r *Registry) Len() int {
	return len(r.tables)
}

// SchemaSummary renders the schema of every loaded table, in load order.
func (r *Registry) SchemaSummary() string {
	if len(r.order) == 0 {
		return "No datasets loaded."
	}
	parts := make([]string, 0, len(r.order))
	for _, name := range r.order {
		parts = append(parts, r.info[name].SchemaString())
	}
	return strings.Join(parts, "\n\n")
}

// parseDelimited tries each delimiter in preference order and returns the
// first parse with more than one column.
func parseDelimited(data []byte) (dataframe.DataFrame, error) {
	for _, delim := range delimiterPreference {
		df := dataframe.ReadCSV(bytes.NewReader(data),
			dataframe.WithDelimiter(delim),
			dataframe.HasHeader(true),
		)
		if df.Err == nil && df.Ncol() > 1 {
			return df, nil
		}
	}
	return dataframe.DataFrame{}, fmt.Errorf("no delimiter in %q yields more than one column", string(delimiterPreference))
}

// tableName derives the registry name from a file path: the base name without
// its extension.
func tableName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// profile computes per-column metadata for a freshly parsed dataframe.
func profile(name, path string, df dataframe.DataFrame) *TableInfo {
	info := &TableInfo{
		Name:     name,
		Path:     path,
		RowCount: df.Nrow(),
		Columns:  make([]ColumnProfile, 0, df.Ncol()),
	}

	for _, colName := range df.Names() {
		col := df.Col(colName)
		info.Columns = append(info.Columns, profileColumn(colName, col))
	}
	return info
}

func profileColumn(name string, col series.Series) ColumnProfile {
	records := col.Records()
	missing := col.IsNaN()

	seen := make(map[string]bool)
	var samples []string
	nonNull := 0
	for i, rec := range records {
		if missing[i] {
			continue
		}
		nonNull++
		if !seen[rec] {
			seen[rec] = true
			if len(samples) < maxSampleValues {
				samples = append(samples, rec)
			}
		}
	}

	return ColumnProfile{
		Name:          name,
		Type:          string(col.Type()),
		NonNullCount:  nonNull,
		SampleValues:  samples,
		DistinctCount: len(seen),
	}
}

// SortedNames returns loaded table names in lexical order. The schema summary
// uses load order; this is for display surfaces that want determinism
// independent of load sequence.
func (r *Registry) SortedNames() []string {
	names := r.Names()
	sort.Strings(names)
	return names
}
