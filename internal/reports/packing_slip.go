package reports

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
)

const (
	slipMargin = 7.0
	qtyWidth   = 12.0
)

// writePackingSlip renders one A6 page per order. An empty day still yields a
// single blank page so the attachment is a valid document.
func writePackingSlip(brand string, orders []models.Order, zones map[string]string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A6", "")
	pdf.SetMargins(slipMargin, slipMargin, slipMargin)
	pdf.SetAutoPageBreak(true, slipMargin)
	pdf.SetTitle("Packing Slip", false)
	pdf.SetAuthor(brand, false)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	var current *models.Order
	pdf.SetHeaderFunc(func() {
		if current == nil {
			return
		}
		slipHeader(pdf, tr, brand, current, zones)
	})

	if len(orders) == 0 {
		pdf.AddPage()
	}
	for i := range orders {
		current = &orders[i]
		pdf.AddPage()
		slipLines(pdf, tr, current)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render packing slip: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("encode packing slip: %w", err)
	}
	return buf.Bytes(), nil
}

func slipHeader(pdf *fpdf.Fpdf, tr func(string) string, brand string, o *models.Order, zones map[string]string) {
	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 2*slipMargin

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(contentW, 4, tr(brand), "", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(contentW, 7, "Order no   #"+o.OrderNumber, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	recipient := fullName(o.Recipient)
	if o.Recipient.Phone != "" {
		recipient += " / " + o.Recipient.Phone
	}
	pdf.MultiCell(contentW, 5, tr(recipient), "", "L", false)
	pdf.MultiCell(contentW, 5, tr(deliveryLabel(o)), "", "L", false)
	if zone := zoneName(o, zones); zone != "" {
		pdf.MultiCell(contentW, 5, tr(zone), "", "L", false)
	}
	pdf.Ln(1)
	pdf.CellFormat(contentW, 5, "Delivery date   "+o.DeliveryDate.In(time.UTC).Format("02/01/2006"), "", 1, "L", false, 0, "")
	pdf.Ln(1)
	y := pdf.GetY()
	pdf.Line(slipMargin, y, pageW-slipMargin, y)
	pdf.Ln(2)
}

func slipLines(pdf *fpdf.Fpdf, tr func(string) string, o *models.Order) {
	pageW, _ := pdf.GetPageSize()
	itemW := pageW - 2*slipMargin - qtyWidth

	pdf.SetFont("Helvetica", "", 9)
	for i := range o.Lines {
		l := &o.Lines[i]
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(qtyWidth, 4.5, fmt.Sprintf("%d x", l.Quantity), "", 0, "L", false, 0, "")
		pdf.MultiCell(itemW, 4.5, tr(itemName(l)), "", "L", false)

		pdf.SetFont("Helvetica", "", 8)
		for _, extra := range lineExtras(l) {
			pdf.SetX(slipMargin + qtyWidth)
			pdf.MultiCell(itemW, 4, tr(extra), "", "L", false)
		}
		pdf.Ln(1)
	}

	if msg := strings.TrimSpace(o.GiftMessage); msg != "" {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.MultiCell(pageW-2*slipMargin, 4.5, tr("Gift message: "+msg), "", "L", false)
	}
}

func lineExtras(l *models.OrderLine) []string {
	var extras []string
	if l.Message != "" {
		extras = append(extras, "Message: "+l.Message)
	}
	if l.Candles > 0 {
		extras = append(extras, fmt.Sprintf("Candles: %d", l.Candles))
	}
	if l.Knives > 0 {
		extras = append(extras, fmt.Sprintf("Cake knife: %d", l.Knives))
	}
	return extras
}
