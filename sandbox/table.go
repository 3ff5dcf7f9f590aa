// Starlark table value wrapping a gota dataframe.
//
// Tables expose the analysis surface scripts use: filter, select, head, tail,
// sort, group_by, column, nrow, ncol, names. Every operation returns a new
// table; loaded tables are never mutated.

package sandbox

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"go.starlark.net/starlark"
)

// Table is an immutable columnar dataset exposed to scripts.
type Table struct {
	df dataframe.DataFrame
}

// NewTable wraps a dataframe for script access.
func NewTable(df dataframe.DataFrame) *Table {
	return &Table{df: df}
}

// DataFrame returns the underlying dataframe.
func (t *Table) DataFrame() dataframe.DataFrame {
	return t.df
}

// starlark.Value implementation

func (t *Table) String() string {
	return fmt.Sprintf("<table %dx%d>", t.df.Nrow(), t.df.Ncol())
}

func (t *Table) Type() string { return "table" }

func (t *Table) Freeze() {}

func (t *Table) Truth() starlark.Bool { return t.df.Nrow() > 0 }

func (t *Table) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: table")
}

// tableMethods maps method names to implementations; bound lazily in Attr.
var tableMethods = map[string]func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error){
	"filter":   tableFilter,
	"select":   tableSelect,
	"head":     tableHead,
	"tail":     tableTail,
	"sort":     tableSort,
	"group_by": tableGroupBy,
	"column":   tableColumn,
	"names":    tableNames,
	"nrow":     tableNrow,
	"ncol":     tableNcol,
}

// Attr implements starlark.HasAttrs.
func (t *Table) Attr(name string) (starlark.Value, error) {
	impl, ok := tableMethods[name]
	if !ok {
		return nil, nil // no such attribute
	}
	return starlark.NewBuiltin(name, impl).BindReceiver(t), nil
}

// AttrNames implements starlark.HasAttrs.
func (t *Table) AttrNames() []string {
	names := make([]string, 0, len(tableMethods))
	for name := range tableMethods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var _ starlark.HasAttrs = (*Table)(nil)

// comparators maps script operator strings to gota comparators.
var comparators = map[string]series.Comparator{
	"==": series.Eq,
	"!=": series.Neq,
	">":  series.Greater,
	">=": series.GreaterEq,
	"<":  series.Less,
	"<=": series.LessEq,
	"in": series.In,
}

// aggregations maps script aggregation names to gota aggregation types.
var aggregations = map[string]dataframe.AggregationType{
	"mean":   dataframe.Aggregation_MEAN,
	"sum":    dataframe.Aggregation_SUM,
	"min":    dataframe.Aggregation_MIN,
	"max":    dataframe.Aggregation_MAX,
	"count":  dataframe.Aggregation_COUNT,
	"median": dataframe.Aggregation_MEDIAN,
	"std":    dataframe.Aggregation_STD,
}

// tableFilter implements t.filter(column, op, value).
func tableFilter(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	t := b.Receiver().(*Table)
	var column, op string
	var value starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "column", &column, "op", &op, "value", &value); err != nil {
		return nil, err
	}

	comp, ok := comparators[op]
	if !ok {
		return nil, fmt.Errorf("filter: unknown operator %q (use ==, !=, >, >=, <, <=, in)", op)
	}

	comparando, err := toComparando(value, op == "in")
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}

	filtered := t.df.Filter(dataframe.F{Colname: column, Comparator: comp, Comparando: comparando})
	if filtered.Err != nil {
		return nil, fmt.Errorf("filter: %w", filtered.Err)
	}
	return &Table{df: filtered}, nil
}

// tableSelect implements t.select(columns).
func tableSelect(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	t := b.Receiver().(*Table)
	var columns *starlark.List
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "columns", &columns); err != nil {
		return nil, err
	}

	names, err := stringSlice(columns)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}

	selected := t.df.Select(names)
	if selected.Err != nil {
		return nil, fmt.Errorf("select: %w", selected.Err)
	}
	return &Table{df: selected}, nil
}

// tableHead implements t.head(n=10).
func tableHead(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	t := b.Receiver().(*Table)
	n := 10
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n?", &n); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("head: n must be non-negative, got %d", n)
	}
	out := headRows(t.df, n)
	if out.Err != nil {
		return nil, fmt.Errorf("head: %w", out.Err)
	}
	return &Table{df: out}, nil
}

// tableTail implements t.tail(n=10).
func tableTail(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	t := b.Receiver().(*Table)
	n := 10
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n?", &n); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("tail: n must be non-negative, got %d", n)
	}
	total := t.df.Nrow()
	if n >= total {
		return &Table{df: t.df}, nil
	}
	idx := make([]int, 0, n)
	for i := total - n; i < total; i++ {
		idx = append(idx, i)
	}
	sub := t.df.Subset(idx)
	if sub.Err != nil {
		return nil, fmt.Errorf("tail: %w", sub.Err)
	}
	return &Table{df: sub}, nil
}

// tableSort implements t.sort(column, desc=False).
func tableSort(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	t := b.Receiver().(*Table)
	var column string
	desc := false
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "column", &column, "desc?", &desc); err != nil {
		return nil, err
	}

	order := dataframe.Sort(column)
	if desc {
		order = dataframe.RevSort(column)
	}
	sorted := t.df.Arrange(order)
	if sorted.Err != nil {
		return nil, fmt.Errorf("sort: %w", sorted.Err)
	}
	return &Table{df: sorted}, nil
}

// tableGroupBy implements t.group_by(by, column, agg="mean"). `by` is a
// column name or a list of column names.
func tableGroupBy(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	t := b.Receiver().(*Table)
	var by starlark.Value
	var column string
	agg := "mean"
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "by", &by, "column", &column, "agg?", &agg); err != nil {
		return nil, err
	}

	keys, err := stringOrSlice(by)
	if err != nil {
		return nil, fmt.Errorf("group_by: %w", err)
	}

	aggType, ok := aggregations[strings.ToLower(agg)]
	if !ok {
		return nil, fmt.Errorf("group_by: unknown aggregation %q (use mean, sum, min, max, count, median, std)", agg)
	}

	groups := t.df.GroupBy(keys...)
	if groups.Err != nil {
		return nil, fmt.Errorf("group_by: %w", groups.Err)
	}
	result := groups.Aggregation([]dataframe.AggregationType{aggType}, []string{column})
	if result.Err != nil {
		return nil, fmt.Errorf("group_by: %w", result.Err)
	}
	return &Table{df: result}, nil
}

// tableColumn implements t.column(name) -> list of values.
func tableColumn(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	t := b.Receiver().(*Table)
	var name string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name); err != nil {
		return nil, err
	}

	col := t.df.Col(name)
	if col.Err != nil {
		return nil, fmt.Errorf("column: %w", col.Err)
	}

	values := make([]starlark.Value, col.Len())
	for i := 0; i < col.Len(); i++ {
		values[i] = goToStarlark(col.Val(i))
	}
	return starlark.NewList(values), nil
}

// tableNames implements t.names() -> list of column names.
func tableNames(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	t := b.Receiver().(*Table)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	names := t.df.Names()
	values := make([]starlark.Value, len(names))
	for i, n := range names {
		values[i] = starlark.String(n)
	}
	return starlark.NewList(values), nil
}

// tableNrow implements t.nrow().
func tableNrow(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	t := b.Receiver().(*Table)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return starlark.MakeInt(t.df.Nrow()), nil
}

// tableNcol implements t.ncol().
func tableNcol(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	t := b.Receiver().(*Table)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return starlark.MakeInt(t.df.Ncol()), nil
}

// Conversion helpers

// goToStarlark converts a gota cell value to a Starlark value.
func goToStarlark(v interface{}) starlark.Value {
	switch val := v.(type) {
	case nil:
		return starlark.None
	case int:
		return starlark.MakeInt(val)
	case int64:
		return starlark.MakeInt64(val)
	case float64:
		return starlark.Float(val)
	case string:
		return starlark.String(val)
	case bool:
		return starlark.Bool(val)
	default:
		return starlark.String(fmt.Sprint(val))
	}
}

// toComparando converts a Starlark value into a gota filter comparando. For
// the "in" operator a list is expected and converted element-wise.
func toComparando(v starlark.Value, isIn bool) (interface{}, error) {
	if isIn {
		list, ok := v.(*starlark.List)
		if !ok {
			return nil, fmt.Errorf("'in' operator expects a list, got %s", v.Type())
		}
		out := make([]string, list.Len())
		for i := 0; i < list.Len(); i++ {
			elem, err := scalarToGo(list.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = fmt.Sprint(elem)
		}
		return out, nil
	}
	return scalarToGo(v)
}

// scalarToGo converts a scalar Starlark value to its Go equivalent.
func scalarToGo(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large: %s", val.String())
		}
		return int(i), nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case starlark.Bool:
		return bool(val), nil
	default:
		return nil, fmt.Errorf("unsupported value type %s", v.Type())
	}
}

// stringSlice converts a Starlark list of strings to a Go slice.
func stringSlice(list *starlark.List) ([]string, error) {
	out := make([]string, list.Len())
	for i := 0; i < list.Len(); i++ {
		s, ok := starlark.AsString(list.Index(i))
		if !ok {
			return nil, fmt.Errorf("expected string, got %s", list.Index(i).Type())
		}
		out[i] = s
	}
	return out, nil
}

// stringOrSlice accepts a string or a list of strings.
func stringOrSlice(v starlark.Value) ([]string, error) {
	if s, ok := starlark.AsString(v); ok {
		return []string{s}, nil
	}
	if list, ok := v.(*starlark.List); ok {
		return stringSlice(list)
	}
	return nil, fmt.Errorf("expected string or list of strings, got %s", v.Type())
}

// headRows returns the first n rows of a dataframe. Negative n is treated
// as zero; callers validate script-supplied counts before reaching here.
func headRows(df dataframe.DataFrame, n int) dataframe.DataFrame {
	if n < 0 {
		n = 0
	}
	if n >= df.Nrow() {
		return df
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return df.Subset(idx)
}

// renderTable renders a result table for the captured output, truncating
// with an explicit marker past the configured row ceiling.
func renderTable(t *Table, maxRows int) string {
	nrow := t.df.Nrow()
	if nrow > maxRows {
		return fmt.Sprintf("[Showing first %d of %d rows]\n%s", maxRows, nrow, headRows(t.df, maxRows).String())
	}
	return t.df.String()
}
