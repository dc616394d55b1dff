package billing

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/jung-kurt/gofpdf"
)

// RenderPDF renders an invoice as a single-page PDF. Document metadata dates
// are pinned to the invoice's generation time so rendering the same invoice
// twice yields byte-identical output.
//
// The whole document uses a single font face. gofpdf emits font objects in
// map iteration order, so a second face (e.g. a bold variant) would make the
// object order, and therefore the bytes, unstable across renders.
func RenderPDF(inv *Invoice) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(inv.GeneratedAt)
	pdf.SetModificationDate(inv.GeneratedAt)
	pdf.SetTitle("Invoice "+inv.Number, false)
	pdf.SetAuthor("CuraMed Billing", false)
	pdf.AddPage()

	// Letterhead.
	pdf.SetFont("Helvetica", "", 18)
	pdf.Cell(120, 10, "CuraMed")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 10, "INVOICE", "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, inv.Number, "", 1, "R", false, 0, "")
	pdf.CellFormat(0, 5, "Generated "+inv.GeneratedAt.Format("2006-01-02"), "", 1, "R", false, 0, "")
	pdf.Ln(6)

	// Bill-to block.
	bt := inv.Details.BillTo
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 5, "Bill To", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, fmt.Sprintf("%s (%s)", bt.HospitalName, bt.HospitalCode), "", 1, "L", false, 0, "")
	if bt.Address != "" {
		pdf.CellFormat(0, 5, bt.Address, "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 5, fmt.Sprintf("Billing period: %s to %s",
		inv.PeriodStart.Format("2006-01-02"), inv.PeriodEnd.Format("2006-01-02")), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	// Line items grouped by category, sorted for stable output.
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(60, 7, "Category", "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 7, "Count", "1", 0, "R", true, 0, "")
	pdf.CellFormat(45, 7, "Unit Price", "1", 0, "R", true, 0, "")
	pdf.CellFormat(45, 7, "Amount", "1", 1, "R", true, 0, "")

	categories := make([]string, 0, len(inv.Details.DiagnosisCounts))
	for c := range inv.Details.DiagnosisCounts {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	for _, c := range categories {
		count := inv.Details.DiagnosisCounts[c]
		amount := inv.Details.DiagnosisCosts[c]
		unit := 0.0
		if count > 0 {
			unit = amount / float64(count)
		}
		pdf.CellFormat(60, 7, c, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%d", count), "1", 0, "R", false, 0, "")
		pdf.CellFormat(45, 7, fmt.Sprintf("%.2f", unit), "1", 0, "R", false, 0, "")
		pdf.CellFormat(45, 7, fmt.Sprintf("%.2f", amount), "1", 1, "R", false, 0, "")
	}

	pdf.CellFormat(135, 8, "Total", "1", 0, "R", true, 0, "")
	pdf.CellFormat(45, 8, fmt.Sprintf("%.2f", inv.TotalAmount), "1", 1, "R", true, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("Status: %s", inv.Status), "", 1, "L", false, 0, "")
	if inv.Details.Notes != "" {
		pdf.MultiCell(0, 5, "Notes: "+inv.Details.Notes, "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}
