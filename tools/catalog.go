// Package tools defines the tool surface offered to the model.
//
// Information Hiding:
// - Tool schemas are assembled here, in one place
// - Consumers receive ready llm.ToolDefinition values
// - The system instruction template is internal; callers pass only the
//   schema summary and table names

package tools

import "github.com/cellbyte/datalyst/llm"

// Canonical tool names. The orchestrator dispatches on these; anything else
// coming back from a model is rejected as unknown.
const (
	ToolAnalyzeData    = "analyze_data"
	ToolCreateChart    = "create_chart"
	ToolExportData     = "export_data"
	ToolGenerateReport = "generate_report"
)

// codeParameter is the shared schema for the script-executing tools. The
// explanation travels through traces and tool results so a reader can follow
// what each script was for.
var codeParameter = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"code": map[string]interface{}{
			"type":        "string",
			"description": "Starlark script to execute. Bind the value to surface to the variable `result`.",
		},
		"explanation": map[string]interface{}{
			"type":        "string",
			"description": "One sentence saying what this script computes and why.",
		},
	},
	"required": []string{"code", "explanation"},
}

// Catalog returns the fixed tool set advertised on every model round trip.
// The three script tools share an execution path; the split exists so the
// model states its intent, which shows up in traces and step types.
func Catalog() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name: ToolAnalyzeData,
			Description: "Run a Starlark script against the loaded datasets to compute statistics, " +
				"filter rows, aggregate groups, or inspect values. Bind the answer to `result`. " +
				"Use print() for intermediate values you want to see.",
			Parameters: codeParameter,
		},
		{
			Name: ToolCreateChart,
			Description: "Run a Starlark script that builds a chart with the plt module " +
				"(plt.bar, plt.line, plt.scatter, plt.hist) and persists it with save_figure(filename). " +
				"The figure is discarded unless saved.",
			Parameters: codeParameter,
		},
		{
			Name: ToolExportData,
			Description: "Run a Starlark script that writes a table to disk with " +
				"save_table(table, filename). The extension picks the format: .csv or .xlsx.",
			Parameters: codeParameter,
		},
		{
			Name: ToolGenerateReport,
			Description: "Render a written report document. Content uses a small markdown subset: " +
				"'#' and '##' headings, '-' bullets, blank lines between paragraphs.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"title": map[string]interface{}{
						"type":        "string",
						"description": "Document title shown at the top of the report.",
					},
					"content": map[string]interface{}{
						"type":        "string",
						"description": "Report body in the markdown subset.",
					},
					"format": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"pdf", "docx"},
						"description": "Output document format.",
					},
					"filename": map[string]interface{}{
						"type":        "string",
						"description": "Optional filename stem; derived from the title when omitted.",
					},
				},
				"required": []string{"title", "content", "format"},
			},
		},
	}
}

// IsScriptTool reports whether a tool name routes to the sandbox.
func IsScriptTool(name string) bool {
	switch name {
	case ToolAnalyzeData, ToolCreateChart, ToolExportData:
		return true
	}
	return false
}
