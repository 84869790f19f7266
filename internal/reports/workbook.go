package reports

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
)

const sheetName = "Orders"

func writeWorkbook(sheet string, columns []column, rows []row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c.header
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheet, name, name, c.width); err != nil {
			return nil, fmt.Errorf("column width: %w", err)
		}
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return nil, err
	}
	wrap, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}})
	if err != nil {
		return nil, err
	}

	for i, r := range rows {
		values := make([]any, len(columns))
		for j, c := range columns {
			values[j] = c.value(r)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if len(rows) > 0 {
		if err := f.SetRowStyle(sheet, 2, len(rows)+1, wrap); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// lineRows flattens orders into one row per line, keeping lines accepted by keep.
func lineRows(orders []models.Order, zones map[string]string, keep func(l *models.OrderLine) bool) []row {
	var rows []row
	for i := range orders {
		o := &orders[i]
		zone := zoneName(o, zones)
		for j := range o.Lines {
			l := &o.Lines[j]
			if keep != nil && !keep(l) {
				continue
			}
			rows = append(rows, row{order: o, line: l, zone: zone})
		}
	}
	return rows
}

func orderRows(orders []models.Order, zones map[string]string) []row {
	rows := make([]row, 0, len(orders))
	for i := range orders {
		rows = append(rows, row{order: &orders[i], zone: zoneName(&orders[i], zones)})
	}
	return rows
}

func zoneName(o *models.Order, zones map[string]string) string {
	if o.DeliveryZoneID == nil {
		return ""
	}
	return zones[o.DeliveryZoneID.String()]
}

func isWholeCake(l *models.OrderLine) bool {
	return l.Kind == enums.OrderLineProduct && l.Category == WholeCakeCategory
}

// productSold is one row of the Product Solds sheet.
type productSold struct {
	Name        string
	VariantName string
	Qty         int
}

// productSolds counts every product unit going out, expanding bundle and
// slice-box components.
func productSolds(orders []models.Order) []productSold {
	type key struct{ name, variant string }
	counts := map[key]int{}
	add := func(name, variant string, qty int) {
		counts[key{name, variant}] += qty
	}
	for _, o := range orders {
		for _, l := range o.Lines {
			switch l.Kind {
			case enums.OrderLineBundle, enums.OrderLineSliceBox:
				for _, c := range l.Components {
					add(c.Name, c.VariantName, c.Qty*l.Quantity)
				}
			default:
				add(l.Name, l.VariantName, l.Quantity)
			}
		}
	}
	out := make([]productSold, 0, len(counts))
	for k, qty := range counts {
		out = append(out, productSold{Name: k.name, VariantName: k.variant, Qty: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].VariantName < out[j].VariantName
	})
	return out
}

func writeProductSolds(sold []productSold) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Products"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	header := []any{"Product", "Variant", "Quantity"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	_ = f.SetColWidth(sheet, "A", "B", 30)
	_ = f.SetColWidth(sheet, "C", "C", 10)

	total := 0
	for i, p := range sold {
		values := []any{p.Name, p.VariantName, p.Qty}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &values); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
		total += p.Qty
	}
	footer := []any{"Total", "", total}
	if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", len(sold)+2), &footer); err != nil {
		return nil, fmt.Errorf("write total: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}
