// Package invoice renders the downloadable invoice of a registration.
package invoice

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/AurelionFutureForge/registration-gateway/internal/model"
	"github.com/AurelionFutureForge/registration-gateway/internal/pricing"
)

// Invoice is everything printed on one invoice.
type Invoice struct {
	EventName     string
	CompanyName   string
	BilledTo      string
	Contact       string
	Registrant    model.Answers
	Role          string
	TransactionID string
	PaymentStatus string
	Pricing       pricing.Breakdown
	IssuedAt      time.Time
}

// Render writes inv as a single-page A4 PDF.
func Render(w io.Writer, inv Invoice) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice - "+inv.EventName, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr("Invoice"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, tr(inv.EventName), "", 1, "L", false, 0, "")
	if inv.CompanyName != "" {
		pdf.CellFormat(0, 6, tr("Hosted by "+inv.CompanyName), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 6, "Issued "+inv.IssuedAt.Format("02 Jan 2006"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	section(pdf, "Registrant")
	row(pdf, "Billed To", tr(orNA(inv.BilledTo)))
	row(pdf, "Contact", tr(orNA(inv.Contact)))
	for _, k := range inv.Registrant.SortedKeys() {
		if k == model.RoleFieldName {
			continue
		}
		row(pdf, tr(k), tr(inv.Registrant[k].String()))
	}
	row(pdf, "Role", tr(orNA(inv.Role)))
	row(pdf, "Transaction ID", tr(orNA(inv.TransactionID)))
	row(pdf, "Payment Status", tr(orNA(inv.PaymentStatus)))
	pdf.Ln(4)

	section(pdf, "Payment")
	if inv.Pricing.IsFree() {
		row(pdf, "Amount", "Free")
	} else {
		row(pdf, "Amount", amount(inv.Pricing.BaseAmount))
		row(pdf, "Platform Fee ("+inv.Pricing.FeePercent()+")", amount(inv.Pricing.PlatformFee))
		pdf.SetFont("Helvetica", "B", 11)
		row(pdf, "Total Amount", amount(inv.Pricing.Total))
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render invoice: %w", err)
	}
	return nil
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, title, "B", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
}

func row(pdf *gofpdf.Fpdf, label, value string) {
	pdf.CellFormat(60, 7, label, "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 7, value, "", 1, "R", false, 0, "")
}

// amount prints in the PDF core fonts, which have no rupee glyph.
func amount(v float64) string {
	return "INR " + strconv.FormatFloat(v, 'f', 2, 64)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
