package infra

// pdf.go renders the customer receipt for a paid order with go-pdf/fpdf:
// restaurant header, order number and time, one row per live line, the
// discount / service charge / tax breakdown, the total and the payments.
// The file is written to storagePath/receipt_{order_number}_{receipt_id}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"

	"restopos/internal/model"
	"restopos/internal/money"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReceiptHeader carries the branding printed at the top of every receipt.
type ReceiptHeader struct {
	RestaurantName string
	CurrencyCode   string
}

// GenerateReceiptPDF writes the receipt for o and returns the file path.
func GenerateReceiptPDF(o *model.Order, receiptID uuid.UUID, h ReceiptHeader, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0o755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}
	filePath := filepath.Join(storagePath, fmt.Sprintf("receipt_%d_%s.pdf", o.OrderNumber, receiptID))

	lines := o.ActiveLines()
	// 80mm thermal roll; height grows with the line count
	height := 90 + float64(len(lines)+len(o.Payments))*5
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 80, Ht: height},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.SetAutoPageBreak(false, 4)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8
	amount := func(d decimal.Decimal) string {
		return h.CurrencyCode + " " + money.Round(d).StringFixed(money.Precision)
	}

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(contentW, 7, h.RestaurantName, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	kind := "Takeaway"
	if o.OrderType == model.OrderDineIn {
		kind = "Dine-in"
	}
	pdf.CellFormat(contentW, 5, kind, "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(contentW, 5, fmt.Sprintf("Order #%d", o.OrderNumber), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	at := o.CreatedAt
	if o.PaidAt != nil {
		at = *o.PaidAt
	}
	pdf.CellFormat(contentW, 4, at.Format("02/01/2006  15:04"), "", 1, "L", false, 0, "")
	pdf.Ln(2)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	// ── Lines ────────────────────────────────────────────────────────────────
	col1 := contentW * 0.52
	col2 := contentW * 0.14
	col3 := contentW * 0.34

	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(col1, 5, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 5, "Qty", "B", 0, "C", false, 0, "")
	pdf.CellFormat(col3, 5, "Amount", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	for _, l := range lines {
		name := l.Name
		if len(name) > 26 {
			name = name[:25] + "."
		}
		pdf.CellFormat(col1, 5, name, "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 5, fmt.Sprintf("x%d", l.Quantity), "", 0, "C", false, 0, "")
		pdf.CellFormat(col3, 5, amount(l.Amount()), "", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	// ── Totals ───────────────────────────────────────────────────────────────
	row := func(label string, v decimal.Decimal) {
		pdf.CellFormat(col1+col2, 5, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(col3, 5, amount(v), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "", 7)
	row("Subtotal", o.Subtotal)
	if !o.DiscountAmount.IsZero() {
		row("Discount", o.DiscountAmount.Neg())
	}
	row("Service charge", o.ServiceCharge)
	row("Tax", o.TaxAmount)

	pdf.SetFont("Helvetica", "B", 9)
	row("TOTAL", o.Total)

	// ── Payments ─────────────────────────────────────────────────────────────
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "", 7)
	change := decimal.Zero
	for _, p := range o.Payments {
		if p.Reversed {
			continue
		}
		row("Paid ("+string(p.Method)+")", p.Tendered)
		change = change.Add(p.Tendered.Sub(p.Amount))
	}
	if change.IsPositive() {
		row("Change", change)
	}

	pdf.Ln(3)
	pdf.SetFont("Helvetica", "I", 7)
	pdf.CellFormat(contentW, 4, "Thank you for dining with us", "", 1, "C", false, 0, "")

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}
