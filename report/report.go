// Package report renders analysis narratives into document files.
//
// Information Hiding:
// - Markup parsing and per-format rendering are internal
// - Callers pick a Format and receive the written file path
// - Filenames are timestamped so repeated reports never overwrite

package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Format identifies a supported document format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// UnsupportedFormatError reports a format the renderer cannot produce. The
// orchestrator feeds its message back to the model, so it names the
// alternatives explicitly.
type UnsupportedFormatError struct {
	Requested string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported report format %q: supported formats are pdf and docx", e.Requested)
}

// ParseFormat normalizes a format string. A leading dot and mixed case are
// tolerated so "PDF" and ".docx" both resolve.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "pdf":
		return FormatPDF, nil
	case "docx":
		return FormatDOCX, nil
	default:
		return "", &UnsupportedFormatError{Requested: s}
	}
}

// Renderer writes report documents under a fixed output directory.
type Renderer struct {
	outputDir string
}

// NewRenderer creates a renderer writing into outputDir.
func NewRenderer(outputDir string) *Renderer {
	return &Renderer{outputDir: outputDir}
}

// Render parses the content markup and writes one document. filename is
// optional; when empty the title is slugified. The stored name always carries
// a timestamp, so the same report rendered twice yields two files.
func (r *Renderer) Render(title, content string, format Format, filename string) (string, error) {
	blocks := parseMarkup(content)

	base := slugify(filename)
	if base == "" {
		base = slugify(title)
	}
	if base == "" {
		base = "report"
	}

	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("preparing output directory: %w", err)
	}

	// Timestamp for humans, uuid fragment for uniqueness within a second.
	now := time.Now()
	stamp := now.Format("20060102_150405")
	path := filepath.Join(r.outputDir, fmt.Sprintf("%s_%s_%s.%s", base, stamp, uuid.NewString()[:8], format))

	var err error
	generated := generatedLine(now)
	switch format {
	case FormatPDF:
		err = renderPDF(title, generated, blocks, path)
	case FormatDOCX:
		err = renderDOCX(title, generated, blocks, path)
	default:
		return "", &UnsupportedFormatError{Requested: string(format)}
	}
	if err != nil {
		return "", fmt.Errorf("rendering %s report: %w", format, err)
	}
	return path, nil
}

// generatedLine renders the generation timestamp embedded under the title of
// every document. Apart from this line, identical inputs render identical
// structural content.
func generatedLine(t time.Time) string {
	return "Generated: " + t.Format("2006-01-02 15:04:05")
}

// slugify reduces a name to a safe filename stem: lowercase alphanumerics and
// underscores, any extension stripped.
func slugify(s string) string {
	s = strings.TrimSuffix(s, filepath.Ext(s))
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}
