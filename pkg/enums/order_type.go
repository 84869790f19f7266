package enums

import "fmt"

// OrderType separates storefront checkouts from orders keyed in by staff.
type OrderType string

const (
	OrderTypeNormal OrderType = "NORMAL"
	OrderTypeAdhoc  OrderType = "ADHOC"
)

// IsValid reports whether the value is a known OrderType.
func (t OrderType) IsValid() bool {
	return t == OrderTypeNormal || t == OrderTypeAdhoc
}

// ParseOrderType converts raw input into an OrderType.
func ParseOrderType(value string) (OrderType, error) {
	t := OrderType(value)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid order type %q", value)
	}
	return t, nil
}

// OrderLineKind identifies what an order line snapshots.
type OrderLineKind string

const (
	OrderLineProduct  OrderLineKind = "product"
	OrderLineCustom   OrderLineKind = "custom"
	OrderLineBundle   OrderLineKind = "bundle"
	OrderLineSliceBox OrderLineKind = "slice_box"
)
