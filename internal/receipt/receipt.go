// Package receipt turns a committed order into a downloadable document.
package receipt

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type Receipt struct {
	Order          *domain.Order
	PurchaserName  string
	PurchaserEmail string
}

type Renderer interface {
	Render(w io.Writer, r Receipt) error
	ContentType() string
}

// PDFRenderer lays a receipt out on a single A4 page.
type PDFRenderer struct {
	StoreName string
}

func (PDFRenderer) ContentType() string {
	return "application/pdf"
}

func (p PDFRenderer) Render(w io.Writer, r Receipt) error {
	if r.Order == nil {
		return fmt.Errorf("render receipt: nil order")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Receipt "+r.Order.ID, true)
	pdf.AddPage()

	title := "Purchase receipt"
	if p.StoreName != "" {
		title = p.StoreName + " - " + title
	}
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, tr(title), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	name := r.PurchaserName
	if name == "" {
		name = "Guest"
	}
	pdf.CellFormat(0, 7, tr("Order: "+r.Order.ID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, tr("Customer: "+name), "", 1, "L", false, 0, "")
	if r.PurchaserEmail != "" {
		pdf.CellFormat(0, 7, tr("Email: "+r.PurchaserEmail), "", 1, "L", false, 0, "")
	}
	if c := r.Order.Customer; c != nil && c.Address != "" {
		pdf.CellFormat(0, 7, tr("Ship to: "+shippingLine(c)), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 7, "Date: "+r.Order.CreatedAt.UTC().Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	widths := []float64{90, 25, 35, 40}
	pdf.SetFont("Helvetica", "B", 11)
	for i, h := range []string{"Product", "Qty", "Unit price", "Subtotal"} {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 8, h, "B", 0, align, false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 11)
	for _, l := range r.Order.Lines {
		name := l.ProductName
		if name == "" {
			name = "Product #" + strconv.FormatInt(l.ProductID, 10)
		}
		pdf.CellFormat(widths[0], 7, tr(name), "", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, strconv.Itoa(l.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 7, l.UnitPrice.StringFixed(2), "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, l.Subtotal().StringFixed(2), "", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(widths[0]+widths[1]+widths[2], 9, "Total", "T", 0, "R", false, 0, "")
	pdf.CellFormat(widths[3], 9, r.Order.Total.StringFixed(2), "T", 1, "R", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render receipt: %w", err)
	}
	return nil
}

func shippingLine(c *domain.Customer) string {
	parts := []string{c.Address}
	if place := strings.TrimSpace(c.PostalCode + " " + c.City); place != "" {
		parts = append(parts, place)
	}
	return strings.Join(parts, ", ")
}
