// The `tab` analysis module and `plt` plotting module.
//
// tab holds table-level helpers that don't belong to a single table (joins,
// concatenation) plus numeric reductions over value lists. plt accumulates
// series into the sandbox's ambient figure; save_figure serializes and
// discards it.

package sandbox

import (
	"fmt"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"go.starlark.net/starlark"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// tab module

// joinKinds maps `how` arguments to join operations.
var joinKinds = map[string]func(a, b dataframe.DataFrame, keys ...string) dataframe.DataFrame{
	"inner": func(a, b dataframe.DataFrame, keys ...string) dataframe.DataFrame { return a.InnerJoin(b, keys...) },
	"left":  func(a, b dataframe.DataFrame, keys ...string) dataframe.DataFrame { return a.LeftJoin(b, keys...) },
	"right": func(a, b dataframe.DataFrame, keys ...string) dataframe.DataFrame { return a.RightJoin(b, keys...) },
	"outer": func(a, b dataframe.DataFrame, keys ...string) dataframe.DataFrame { return a.OuterJoin(b, keys...) },
}

// tabMerge implements tab.merge(left, right, on, how="inner"). `on` is a
// column name or list of column names present in both tables.
func tabMerge(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var left, right *Table
	var on starlark.Value
	how := "inner"
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"left", &left, "right", &right, "on", &on, "how?", &how); err != nil {
		return nil, err
	}

	keys, err := stringOrSlice(on)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	join, ok := joinKinds[strings.ToLower(how)]
	if !ok {
		return nil, fmt.Errorf("merge: unknown join %q (use inner, left, right, outer)", how)
	}

	merged := join(left.df, right.df, keys...)
	if merged.Err != nil {
		return nil, fmt.Errorf("merge: %w", merged.Err)
	}
	return &Table{df: merged}, nil
}

// tabConcat implements tab.concat(top, bottom): row-wise concatenation of
// tables with identical column sets.
func tabConcat(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var top, bottom *Table
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "top", &top, "bottom", &bottom); err != nil {
		return nil, err
	}
	combined := top.df.RBind(bottom.df)
	if combined.Err != nil {
		return nil, fmt.Errorf("concat: %w", combined.Err)
	}
	return &Table{df: combined}, nil
}

// Numeric reductions over iterables of numbers.

func tabSum(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	nums, err := unpackNumbers(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return starlark.Float(total), nil
}

func tabMean(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	nums, err := unpackNumbers(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return nil, fmt.Errorf("%s: empty sequence", b.Name())
	}
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return starlark.Float(total / float64(len(nums))), nil
}

func tabMin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	nums, err := unpackNumbers(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return nil, fmt.Errorf("%s: empty sequence", b.Name())
	}
	m := nums[0]
	for _, n := range nums[1:] {
		if n < m {
			m = n
		}
	}
	return starlark.Float(m), nil
}

func tabMax(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	nums, err := unpackNumbers(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return nil, fmt.Errorf("%s: empty sequence", b.Name())
	}
	m := nums[0]
	for _, n := range nums[1:] {
		if n > m {
			m = n
		}
	}
	return starlark.Float(m), nil
}

// tabUnique implements tab.unique(values): distinct values in first-seen order.
func tabUnique(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var seq starlark.Iterable
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "values", &seq); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []starlark.Value
	iter := seq.Iterate()
	defer iter.Done()
	var v starlark.Value
	for iter.Next(&v) {
		key := v.String()
		if !seen[key] {
			seen[key] = true
			out = append(out, v)
		}
	}
	return starlark.NewList(out), nil
}

// tabCount implements tab.count(values).
func tabCount(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var seq starlark.Iterable
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "values", &seq); err != nil {
		return nil, err
	}
	n := 0
	iter := seq.Iterate()
	defer iter.Done()
	var v starlark.Value
	for iter.Next(&v) {
		n++
	}
	return starlark.MakeInt(n), nil
}

// unpackNumbers extracts a []float64 from a single iterable argument.
func unpackNumbers(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) ([]float64, error) {
	var seq starlark.Iterable
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "values", &seq); err != nil {
		return nil, err
	}
	return numberSlice(b.Name(), seq)
}

// numberSlice converts an iterable of ints/floats to []float64.
func numberSlice(name string, seq starlark.Iterable) ([]float64, error) {
	var out []float64
	iter := seq.Iterate()
	defer iter.Done()
	var v starlark.Value
	for iter.Next(&v) {
		switch n := v.(type) {
		case starlark.Int:
			i, _ := n.Int64()
			out = append(out, float64(i))
		case starlark.Float:
			out = append(out, float64(n))
		default:
			return nil, fmt.Errorf("%s: expected number, got %s", name, v.Type())
		}
	}
	return out, nil
}

// plt module

// figure is the ambient plot under construction within one execution.
type figure struct {
	plot *plot.Plot
	// nominalLabels holds bar-chart category labels applied at save time.
	nominalLabels []string
}

// currentFigure returns the ambient figure, creating it on first use.
func (s *Sandbox) currentFigure() *figure {
	if s.fig == nil {
		s.fig = &figure{plot: plot.New()}
	}
	return s.fig
}

// pltBar implements plt.bar(labels, values, title="", ylabel="").
func (s *Sandbox) pltBar(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var labels *starlark.List
	var values starlark.Iterable
	var title, ylabel string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"labels", &labels, "values", &values, "title?", &title, "ylabel?", &ylabel); err != nil {
		return nil, err
	}

	names, err := stringifySlice(labels)
	if err != nil {
		return nil, fmt.Errorf("bar: %w", err)
	}
	nums, err := numberSlice(b.Name(), values)
	if err != nil {
		return nil, err
	}
	if len(names) != len(nums) {
		return nil, fmt.Errorf("bar: %d labels for %d values", len(names), len(nums))
	}

	bars, err := plotter.NewBarChart(plotter.Values(nums), vg.Points(20))
	if err != nil {
		return nil, fmt.Errorf("bar: %w", err)
	}

	fig := s.currentFigure()
	fig.plot.Add(bars)
	fig.nominalLabels = names
	applyLabels(fig.plot, title, "", ylabel)
	return starlark.None, nil
}

// pltLine implements plt.line(x, y, title="", xlabel="", ylabel="").
func (s *Sandbox) pltLine(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	xys, title, xlabel, ylabel, err := unpackXY(b, args, kwargs)
	if err != nil {
		return nil, err
	}

	line, err := plotter.NewLine(xys)
	if err != nil {
		return nil, fmt.Errorf("line: %w", err)
	}

	fig := s.currentFigure()
	fig.plot.Add(line)
	applyLabels(fig.plot, title, xlabel, ylabel)
	return starlark.None, nil
}

// pltScatter implements plt.scatter(x, y, title="", xlabel="", ylabel="").
func (s *Sandbox) pltScatter(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	xys, title, xlabel, ylabel, err := unpackXY(b, args, kwargs)
	if err != nil {
		return nil, err
	}

	points, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, fmt.Errorf("scatter: %w", err)
	}

	fig := s.currentFigure()
	fig.plot.Add(points)
	applyLabels(fig.plot, title, xlabel, ylabel)
	return starlark.None, nil
}

// pltHist implements plt.hist(values, bins=10, title="", xlabel="").
func (s *Sandbox) pltHist(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var values starlark.Iterable
	bins := 10
	var title, xlabel string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"values", &values, "bins?", &bins, "title?", &title, "xlabel?", &xlabel); err != nil {
		return nil, err
	}

	nums, err := numberSlice(b.Name(), values)
	if err != nil {
		return nil, err
	}

	hist, err := plotter.NewHist(plotter.Values(nums), bins)
	if err != nil {
		return nil, fmt.Errorf("hist: %w", err)
	}

	fig := s.currentFigure()
	fig.plot.Add(hist)
	applyLabels(fig.plot, title, xlabel, "")
	return starlark.None, nil
}

// pltTitle implements plt.title(text).
func (s *Sandbox) pltTitle(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var text string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "text", &text); err != nil {
		return nil, err
	}
	s.currentFigure().plot.Title.Text = text
	return starlark.None, nil
}

// pltXLabel implements plt.xlabel(text).
func (s *Sandbox) pltXLabel(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var text string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "text", &text); err != nil {
		return nil, err
	}
	s.currentFigure().plot.X.Label.Text = text
	return starlark.None, nil
}

// pltYLabel implements plt.ylabel(text).
func (s *Sandbox) pltYLabel(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var text string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "text", &text); err != nil {
		return nil, err
	}
	s.currentFigure().plot.Y.Label.Text = text
	return starlark.None, nil
}

// unpackXY extracts paired x/y number sequences plus optional labels.
func unpackXY(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (plotter.XYs, string, string, string, error) {
	var x, y starlark.Iterable
	var title, xlabel, ylabel string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"x", &x, "y", &y, "title?", &title, "xlabel?", &xlabel, "ylabel?", &ylabel); err != nil {
		return nil, "", "", "", err
	}

	xs, err := numberSlice(b.Name(), x)
	if err != nil {
		return nil, "", "", "", err
	}
	ys, err := numberSlice(b.Name(), y)
	if err != nil {
		return nil, "", "", "", err
	}
	if len(xs) != len(ys) {
		return nil, "", "", "", fmt.Errorf("%s: x has %d points, y has %d", b.Name(), len(xs), len(ys))
	}

	xys := make(plotter.XYs, len(xs))
	for i := range xs {
		xys[i].X = xs[i]
		xys[i].Y = ys[i]
	}
	return xys, title, xlabel, ylabel, nil
}

// applyLabels sets non-empty labels on a plot.
func applyLabels(p *plot.Plot, title, xlabel, ylabel string) {
	if title != "" {
		p.Title.Text = title
	}
	if xlabel != "" {
		p.X.Label.Text = xlabel
	}
	if ylabel != "" {
		p.Y.Label.Text = ylabel
	}
}

// stringifySlice renders every list element as a string (labels may be
// numbers or strings).
func stringifySlice(list *starlark.List) ([]string, error) {
	out := make([]string, list.Len())
	for i := 0; i < list.Len(); i++ {
		if s, ok := starlark.AsString(list.Index(i)); ok {
			out[i] = s
			continue
		}
		out[i] = list.Index(i).String()
	}
	return out, nil
}
