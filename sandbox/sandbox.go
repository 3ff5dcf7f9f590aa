// Package sandbox executes model-authored Starlark analysis scripts against
// the loaded tables.
//
// Each Execute call builds a fresh, disposable evaluation context: every
// loaded table by name, the `tab` analysis module, the `plt` plotting module,
// and the save_figure/save_table recorders. Nothing leaks between calls; the
// ambient figure state is discarded unconditionally after every execution.
//
// NOTE: this is NOT a security boundary. Scripts cannot import Go packages or
// touch the filesystem directly, but the save helpers write with full process
// privilege. Anyone exposing this to untrusted input must wrap the process in
// OS-level isolation (subprocess, container) as an external concern.

package sandbox

import (
	"errors"
	"fmt"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"

	"github.com/cellbyte/datalyst/dataset"
)

// resultVariable is the designated global a script binds to surface a value.
const resultVariable = "result"

// Result is the outcome of one sandboxed run. Produced fresh per execution;
// never mutated after return.
type Result struct {
	Success bool
	// Output is all captured print output, plus the rendering of the
	// result value when one was bound.
	Output string
	// Error carries the full Starlark backtrace when Success is false.
	Error string
	// Value is the script's `result` binding, if any.
	Value starlark.Value
	// Artifacts lists files produced during the run, including those
	// written before a later failure.
	Artifacts []string
}

// Sandbox runs scripts against a registry of loaded tables.
type Sandbox struct {
	registry      *dataset.Registry
	outputDir     string
	maxOutputRows int

	// fig is the ambient figure under construction. It is reset
	// unconditionally at the end of every Execute call.
	fig *figure
}

// New creates a sandbox writing artifacts under outputDir. maxOutputRows caps
// how many rows of a result table are rendered into the captured output.
func New(registry *dataset.Registry, outputDir string, maxOutputRows int) *Sandbox {
	if maxOutputRows <= 0 {
		maxOutputRows = 100
	}
	return &Sandbox{
		registry:      registry,
		outputDir:     outputDir,
		maxOutputRows: maxOutputRows,
	}
}

// fileOptions enables the non-pure-Starlark conveniences analysis scripts
// want: while loops, top-level control flow, global reassignment, recursion.
var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// Execute runs one script. All print output is captured; a raised error is
// caught and reported in the Result, never propagated. Artifacts produced
// before a failure are still reported.
func (s *Sandbox) Execute(code string) (res Result) {
	run := &runState{outputDir: s.outputDir}

	// Figure state must not survive the call, success or failure.
	defer func() { s.fig = nil }()

	// A panic inside a builtin or a library call must surface as a failed
	// result; scripts are model-authored and must never kill the process.
	defer func() {
		if r := recover(); r != nil {
			res = Result{
				Success:   false,
				Output:    strings.TrimSpace(run.out.String()),
				Error:     fmt.Sprintf("internal error: %v", r),
				Artifacts: run.artifacts,
			}
		}
	}()

	thread := &starlark.Thread{
		Name: "analysis",
		Print: func(_ *starlark.Thread, msg string) {
			run.out.WriteString(msg)
			run.out.WriteByte('\n')
		},
	}

	globals, err := starlark.ExecFileOptions(fileOptions, thread, "analysis.star", code, s.predeclared(run))
	if err != nil {
		detail := err.Error()
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			detail = evalErr.Backtrace()
		}
		return Result{
			Success:   false,
			Output:    strings.TrimSpace(run.out.String()),
			Error:     detail,
			Artifacts: run.artifacts,
		}
	}

	result := Result{Success: true, Artifacts: run.artifacts}
	output := run.out.String()

	if v, ok := globals[resultVariable]; ok && v != starlark.None {
		result.Value = v
		if tbl, ok := v.(*Table); ok {
			output += "\n" + renderTable(tbl, s.maxOutputRows)
		} else {
			output += fmt.Sprintf("\nResult: %s", displayValue(v))
		}
	}

	result.Output = strings.TrimSpace(output)
	return result
}

// predeclared assembles the ambient bindings for one run: tables by name,
// the analysis and plotting modules, and the artifact recorders.
func (s *Sandbox) predeclared(run *runState) starlark.StringDict {
	dict := starlark.StringDict{}

	for _, name := range s.registry.Names() {
		df, ok := s.registry.Get(name)
		if !ok {
			continue
		}
		dict[name] = &Table{df: df}
	}

	dict["tab"] = &starlarkstruct.Module{
		Name: "tab",
		Members: starlark.StringDict{
			"merge":  starlark.NewBuiltin("tab.merge", tabMerge),
			"concat": starlark.NewBuiltin("tab.concat", tabConcat),
			"sum":    starlark.NewBuiltin("tab.sum", tabSum),
			"mean":   starlark.NewBuiltin("tab.mean", tabMean),
			"min":    starlark.NewBuiltin("tab.min", tabMin),
			"max":    starlark.NewBuiltin("tab.max", tabMax),
			"unique": starlark.NewBuiltin("tab.unique", tabUnique),
			"count":  starlark.NewBuiltin("tab.count", tabCount),
		},
	}

	dict["plt"] = &starlarkstruct.Module{
		Name: "plt",
		Members: starlark.StringDict{
			"bar":     starlark.NewBuiltin("plt.bar", s.pltBar),
			"line":    starlark.NewBuiltin("plt.line", s.pltLine),
			"scatter": starlark.NewBuiltin("plt.scatter", s.pltScatter),
			"hist":    starlark.NewBuiltin("plt.hist", s.pltHist),
			"title":   starlark.NewBuiltin("plt.title", s.pltTitle),
			"xlabel":  starlark.NewBuiltin("plt.xlabel", s.pltXLabel),
			"ylabel":  starlark.NewBuiltin("plt.ylabel", s.pltYLabel),
		},
	}

	dict["save_figure"] = starlark.NewBuiltin("save_figure", s.saveFigureBuiltin(run))
	dict["save_table"] = starlark.NewBuiltin("save_table", saveTableBuiltin(run))

	return dict
}

// runState carries per-execution side effects: captured output and recorded
// artifact paths.
type runState struct {
	out       strings.Builder
	outputDir string
	artifacts []string
}

// displayValue renders a non-table result value for the captured output.
// Strings render without quotes; everything else uses Starlark syntax.
func displayValue(v starlark.Value) string {
	if s, ok := starlark.AsString(v); ok {
		return s
	}
	return v.String()
}
