package export

import (
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

const (
	pdfFontSize  = 8
	pdfRowHeight = 6
)

// WritePDF lays out a titled report with the generation date, the active
// filters and the table. Cells that do not fit are cut with an ellipsis.
func WritePDF(w io.Writer, t Table, now time.Time) error {
	if err := t.validate(); err != nil {
		return err
	}
	orientation := "P"
	if t.Landscape {
		orientation = "L"
	}
	pdf := fpdf.New(orientation, "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(true, 14)
	pdf.AddPage()

	title := t.Title
	if title == "" {
		title = t.Name
	}
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 8, tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr("Generado: "+now.Format("02/01/2006 15:04")), "", 1, "L", false, 0, "")
	if len(t.Filters) > 0 {
		pdf.MultiCell(0, 5, tr("Filtros: "+strings.Join(t.Filters, " | ")), "", "L", false)
	}
	pdf.Ln(3)

	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	colWidth := (pageWidth - left - right) / float64(len(t.Columns))

	fit := func(text string) string {
		text = tr(text)
		if pdf.GetStringWidth(text) <= colWidth-2 {
			return text
		}
		for len(text) > 0 && pdf.GetStringWidth(text+"...") > colWidth-2 {
			text = text[:len(text)-1]
		}
		return text + "..."
	}

	header := func() {
		pdf.SetFont("Helvetica", "B", pdfFontSize)
		pdf.SetFillColor(67, 97, 238)
		pdf.SetTextColor(255, 255, 255)
		for _, c := range t.Columns {
			pdf.CellFormat(colWidth, pdfRowHeight+1, fit(c), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", pdfFontSize)
		pdf.SetTextColor(0, 0, 0)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for i, row := range t.Rows {
		if pdf.GetY()+pdfRowHeight > pageHeight-bottom {
			pdf.AddPage()
			header()
		}
		fill := i%2 == 1
		pdf.SetFillColor(245, 246, 250)
		for c := range t.Columns {
			pdf.CellFormat(colWidth, pdfRowHeight, fit(t.cell(row, c)), "1", 0, "L", fill, 0, "")
		}
		pdf.Ln(-1)
	}
	return pdf.Output(w)
}
