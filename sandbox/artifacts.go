// Artifact persistence: save_figure and save_table builtins.

package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.starlark.net/starlark"
	"gonum.org/v1/plot/vg"
)

// saveFigureBuiltin serializes the ambient figure to a PNG under the output
// directory and discards it, so a script can build several charts in sequence.
func (s *Sandbox) saveFigureBuiltin(run *runState) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var filename string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "filename", &filename); err != nil {
			return nil, err
		}
		if s.fig == nil {
			return nil, fmt.Errorf("save_figure: no figure to save; plot something first")
		}

		path, err := artifactPath(run.outputDir, filename, ".png", map[string]bool{".png": true})
		if err != nil {
			return nil, fmt.Errorf("save_figure: %w", err)
		}

		if len(s.fig.nominalLabels) > 0 {
			s.fig.plot.NominalX(s.fig.nominalLabels...)
		}
		if err := s.fig.plot.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
			return nil, fmt.Errorf("save_figure: %w", err)
		}

		s.fig = nil
		run.artifacts = append(run.artifacts, path)
		return starlark.String(path), nil
	}
}

// tableExportExtensions are the formats save_table understands.
var tableExportExtensions = map[string]bool{
	".csv":  true,
	".xlsx": true,
}

// saveTableBuiltin writes a table to CSV or XLSX under the output directory,
// chosen by the filename extension.
func saveTableBuiltin(run *runState) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var tbl *Table
		var filename string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "table", &tbl, "filename", &filename); err != nil {
			return nil, err
		}

		path, err := artifactPath(run.outputDir, filename, ".csv", tableExportExtensions)
		if err != nil {
			return nil, fmt.Errorf("save_table: %w", err)
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".xlsx":
			err = writeXLSX(tbl, path)
		default:
			err = writeCSV(tbl, path)
		}
		if err != nil {
			return nil, fmt.Errorf("save_table: %w", err)
		}

		run.artifacts = append(run.artifacts, path)
		return starlark.String(path), nil
	}
}

// artifactPath resolves a script-supplied filename under the output directory.
// Filenames are flattened to their base name so scripts cannot write outside
// the output directory; a missing or unrecognized extension gets defaultExt.
func artifactPath(outputDir, filename, defaultExt string, allowed map[string]bool) (string, error) {
	base := filepath.Base(filename)
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	if !allowed[strings.ToLower(filepath.Ext(base))] {
		base += defaultExt
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(outputDir, base), nil
}

func writeCSV(tbl *Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := tbl.df.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeXLSX(tbl *Table, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	for rowIdx, record := range tbl.df.Records() {
		for colIdx, value := range record {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue("Sheet1", cell, value); err != nil {
				return err
			}
		}
	}
	return f.SaveAs(path)
}
