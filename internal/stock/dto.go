package stock

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

// SetLedgerQtyInput overwrites one ledger row.
type SetLedgerQtyInput struct {
	ProductID uuid.UUID  `json:"productId" validate:"required"`
	VariantID *uuid.UUID `json:"variantId,omitempty"`
	Date      types.Date `json:"date" validate:"required"`
	Qty       int        `json:"qty" validate:"gte=0"`
}

// SetFixedStockInput overwrites a fixed counter and its optional start date.
type SetFixedStockInput struct {
	ProductID uuid.UUID   `json:"-"`
	VariantID *uuid.UUID  `json:"variantId,omitempty"`
	Qty       int         `json:"qty" validate:"gte=0"`
	StartDate *types.Date `json:"startDate,omitempty"`
}
