// DOCX rendering backend.

package report

import (
	"os"

	"github.com/fumiama/go-docx"
)

func renderDOCX(title, generated string, blocks []block, path string) error {
	doc := docx.New().WithDefaultTheme()

	heading := doc.AddParagraph()
	heading.AddText(title).Size("36").Bold()
	heading.Justification("center")

	stamp := doc.AddParagraph()
	stamp.AddText(generated).Size("18").Color("808080")
	stamp.Justification("center")
	doc.AddParagraph() // spacer

	for _, b := range blocks {
		p := doc.AddParagraph()
		switch b.kind {
		case blockHeading1:
			p.AddText(b.text).Size("28").Bold()
		case blockHeading2:
			p.AddText(b.text).Size("24").Bold()
		case blockBullet:
			p.AddText("• " + b.text)
		case blockParagraph:
			p.AddText(b.text)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := doc.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
