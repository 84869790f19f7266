package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
)

// SliceSelection is one flavour picked into a slice box.
type SliceSelection struct {
	ProductID uuid.UUID  `json:"productId" validate:"required"`
	VariantID *uuid.UUID `json:"variantId,omitempty"`
	Qty       int        `json:"qty" validate:"gt=0"`
}

// CartLine is a line as submitted by the storefront or the back office.
type CartLine struct {
	Kind       enums.OrderLineKind `json:"kind" validate:"required,oneof=product custom bundle slice_box"`
	ProductID  *uuid.UUID          `json:"productId,omitempty"`
	VariantID  *uuid.UUID          `json:"variantId,omitempty"`
	BundleID   *uuid.UUID          `json:"bundleId,omitempty"`
	SliceBoxID *uuid.UUID          `json:"sliceBoxId,omitempty"`
	Name       string              `json:"name,omitempty"`
	Price      *decimal.Decimal    `json:"price,omitempty"`
	Quantity   int                 `json:"quantity" validate:"gt=0"`
	Candles    int                 `json:"candles,omitempty" validate:"gte=0"`
	Knives     int                 `json:"knives,omitempty" validate:"gte=0"`
	Message    string              `json:"message,omitempty" validate:"max=200"`
	Slices     []SliceSelection    `json:"slices,omitempty" validate:"dive"`
}

// ResolveOptions tunes which lines a caller may submit.
type ResolveOptions struct {
	AllowCustom bool
}
