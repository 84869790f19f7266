package enums

import "fmt"

// DeliveryMethodType distinguishes courier delivery from self collection.
type DeliveryMethodType string

const (
	DeliveryMethodNormal     DeliveryMethodType = "NORMAL"
	DeliveryMethodCollection DeliveryMethodType = "SELF_COLLECTION"
)

// IsValid reports whether the value is a known DeliveryMethodType.
func (d DeliveryMethodType) IsValid() bool {
	return d == DeliveryMethodNormal || d == DeliveryMethodCollection
}

// ParseDeliveryMethodType converts raw input into a DeliveryMethodType.
func ParseDeliveryMethodType(value string) (DeliveryMethodType, error) {
	d := DeliveryMethodType(value)
	if !d.IsValid() {
		return "", fmt.Errorf("invalid delivery method type %q", value)
	}
	return d, nil
}
