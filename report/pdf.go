// PDF rendering backend.

package report

import "github.com/go-pdf/fpdf"

// renderPDF writes a titled A4 document. Core fonts only cover cp1252, so
// text goes through the unicode translator before writing.
func renderPDF(title, generated string, blocks []block, path string) error {
	doc := fpdf.New("P", "mm", "A4", "")
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 18)
	doc.MultiCell(0, 10, tr(title), "", "C", false)

	doc.SetFont("Helvetica", "I", 9)
	doc.SetTextColor(128, 128, 128)
	doc.MultiCell(0, 5, tr(generated), "", "C", false)
	doc.SetTextColor(0, 0, 0)
	doc.Ln(6)

	for _, b := range blocks {
		switch b.kind {
		case blockHeading1:
			doc.SetFont("Helvetica", "B", 14)
			doc.Ln(3)
			doc.MultiCell(0, 8, tr(b.text), "", "L", false)
		case blockHeading2:
			doc.SetFont("Helvetica", "B", 12)
			doc.Ln(2)
			doc.MultiCell(0, 7, tr(b.text), "", "L", false)
		case blockBullet:
			doc.SetFont("Helvetica", "", 11)
			doc.SetX(doc.GetX() + 5)
			doc.MultiCell(0, 6, tr("- "+b.text), "", "L", false)
		case blockParagraph:
			doc.SetFont("Helvetica", "", 11)
			doc.MultiCell(0, 6, tr(b.text), "", "L", false)
			doc.Ln(2)
		}
	}

	return doc.OutputFileAndClose(path)
}
