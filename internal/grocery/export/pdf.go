package export

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"smartplates/internal/core"
)

const (
	pdfLineHeight = 7.0
	pdfBoxSize    = 4.0
)

// WritePDF writes an A4 checklist with a tick box per item. Purchased items
// get a ticked box and a struck-through name.
func WritePDF(w io.Writer, list core.GroceryList) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(list.Name, true)
	pdf.SetCreator("SmartPlates", true)
	if !list.GeneratedAt.IsZero() {
		pdf.SetCreationDate(list.GeneratedAt)
		pdf.SetModificationDate(list.GeneratedAt)
	}
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(list.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 5, tr(summary(list)), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)

	for _, sec := range Sections(list) {
		pdf.Ln(3)
		if sec.Heading != "" {
			pdf.SetFont("Helvetica", "B", 12)
			pdf.CellFormat(0, 8, tr(sec.Heading), "B", 1, "L", false, 0, "")
		}
		pdf.SetFont("Helvetica", "", 11)
		for _, r := range sec.Rows {
			writePDFRow(pdf, tr, r)
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf export: %w", err)
	}
	return nil
}

func writePDFRow(pdf *fpdf.Fpdf, tr func(string) string, r Row) {
	x, y := pdf.GetX(), pdf.GetY()
	boxY := y + (pdfLineHeight-pdfBoxSize)/2
	pdf.Rect(x, boxY, pdfBoxSize, pdfBoxSize, "D")
	if r.Purchased {
		pdf.Line(x+0.8, boxY+2, x+1.8, boxY+3.2)
		pdf.Line(x+1.8, boxY+3.2, x+3.4, boxY+0.8)
	}
	pdf.SetX(x + pdfBoxSize + 3)

	name := tr(r.Name)
	nameWidth := pdf.GetStringWidth(name)
	pdf.CellFormat(nameWidth+2, pdfLineHeight, name, "", 0, "L", false, 0, "")
	if r.Purchased {
		mid := y + pdfLineHeight/2
		pdf.Line(x+pdfBoxSize+3, mid, x+pdfBoxSize+3+nameWidth+1, mid)
	}

	detail := r.Amount
	if r.Cost != "" {
		if detail != "" {
			detail += "  "
		}
		detail += "~" + r.Cost
	}
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(0, pdfLineHeight, tr(detail), "", 1, "R", false, 0, "")
	if r.Recipes != "" {
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetX(x + pdfBoxSize + 3)
		pdf.CellFormat(0, 4, tr(r.Recipes), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
	}
	pdf.SetTextColor(0, 0, 0)
}
