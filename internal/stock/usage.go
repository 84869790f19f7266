package stock

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

// Usage is the quantity of one product line an order consumes.
type Usage struct {
	ProductID uuid.UUID  `json:"productId"`
	VariantID *uuid.UUID `json:"variantId,omitempty"`
	Qty       int        `json:"qty"`
}

// VariantKey is the ledger column for the usage (uuid.Nil for product level).
func (u Usage) VariantKey() uuid.UUID {
	if u.VariantID == nil {
		return uuid.Nil
	}
	return *u.VariantID
}

type lineKey struct {
	product uuid.UUID
	variant uuid.UUID
}

// MergeUsages sums quantities per (product, variant), keeping first-seen order
// and dropping lines that net to zero.
func MergeUsages(usages []Usage) []Usage {
	index := make(map[lineKey]int, len(usages))
	out := make([]Usage, 0, len(usages))
	for _, u := range usages {
		key := lineKey{product: u.ProductID, variant: u.VariantKey()}
		if i, ok := index[key]; ok {
			out[i].Qty += u.Qty
			continue
		}
		index[key] = len(out)
		out = append(out, u)
	}
	merged := out[:0]
	for _, u := range out {
		if u.Qty != 0 {
			merged = append(merged, u)
		}
	}
	return merged
}

// Diff returns the usages to reserve and to release when an order moves from
// (fromDate, from) to (toDate, to). When the date changes every old line is
// released and every new line reserved.
func Diff(fromDate types.Date, from []Usage, toDate types.Date, to []Usage) (reserve, release []Usage) {
	if !fromDate.Equal(toDate) {
		return MergeUsages(to), MergeUsages(from)
	}
	delta := make([]Usage, 0, len(from)+len(to))
	delta = append(delta, to...)
	for _, u := range from {
		u.Qty = -u.Qty
		delta = append(delta, u)
	}
	for _, u := range MergeUsages(delta) {
		if u.Qty > 0 {
			reserve = append(reserve, u)
			continue
		}
		u.Qty = -u.Qty
		release = append(release, u)
	}
	return reserve, release
}

// Availability is the sellable quantity of a line on a date.
type Availability struct {
	Date types.Date `json:"date"`
	Qty  int        `json:"qty"`
}

// UsagesOf derives the stock an order's line snapshots consume. Custom lines
// consume nothing; bundle and slice-box components scale with the line quantity.
func UsagesOf(lines []models.OrderLine) []Usage {
	var usages []Usage
	for _, line := range lines {
		switch line.Kind {
		case enums.OrderLineProduct:
			if line.ProductID != nil {
				usages = append(usages, Usage{ProductID: *line.ProductID, VariantID: line.VariantID, Qty: line.Quantity})
			}
		case enums.OrderLineBundle, enums.OrderLineSliceBox:
			for _, c := range line.Components {
				usages = append(usages, Usage{ProductID: c.ProductID, VariantID: c.VariantID, Qty: c.Qty * line.Quantity})
			}
		}
	}
	return MergeUsages(usages)
}
