// Line-oriented markup parser for report content.
//
// The model writes a small markdown subset: "#" and "##" headings, "-" or "*"
// bullets, blank-line paragraph breaks. Anything else is body text.
// Consecutive body lines merge into one paragraph.

package report

import "strings"

type blockKind int

const (
	blockHeading1 blockKind = iota
	blockHeading2
	blockBullet
	blockParagraph
)

type block struct {
	kind blockKind
	text string
}

// parseMarkup splits content into render blocks.
func parseMarkup(content string) []block {
	var blocks []block
	var paragraph []string

	flush := func() {
		if len(paragraph) > 0 {
			blocks = append(blocks, block{kind: blockParagraph, text: strings.Join(paragraph, " ")})
			paragraph = nil
		}
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			flush()
		case strings.HasPrefix(trimmed, "## "):
			flush()
			blocks = append(blocks, block{kind: blockHeading2, text: strings.TrimSpace(trimmed[3:])})
		case strings.HasPrefix(trimmed, "# "):
			flush()
			blocks = append(blocks, block{kind: blockHeading1, text: strings.TrimSpace(trimmed[2:])})
		case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "):
			flush()
			blocks = append(blocks, block{kind: blockBullet, text: strings.TrimSpace(trimmed[2:])})
		default:
			paragraph = append(paragraph, trimmed)
		}
	}
	flush()
	return blocks
}
