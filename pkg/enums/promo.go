package enums

import (
	"fmt"
	"strings"
)

// PromoCodeType selects how a promo discount is computed.
type PromoCodeType string

const (
	PromoCodePercentage PromoCodeType = "PERCENTAGE"
	PromoCodeAbsolute   PromoCodeType = "ABSOLUTE"
)

// IsValid reports whether the value is a known PromoCodeType.
func (p PromoCodeType) IsValid() bool {
	return p == PromoCodePercentage || p == PromoCodeAbsolute
}

// ParsePromoCodeType converts raw input into a PromoCodeType.
func ParsePromoCodeType(value string) (PromoCodeType, error) {
	p := PromoCodeType(strings.ToUpper(strings.TrimSpace(value)))
	if !p.IsValid() {
		return "", fmt.Errorf("invalid promo code type %q", value)
	}
	return p, nil
}
