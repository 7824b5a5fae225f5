package enums

import "fmt"

// PixelEventType classifies events reported by the first-party tracking pixel.
type PixelEventType string

const (
	PixelEventTypePageView      PixelEventType = "page_view"
	PixelEventTypeAddToCart     PixelEventType = "add_to_cart"
	PixelEventTypeBeginCheckout PixelEventType = "begin_checkout"
	PixelEventTypePurchase      PixelEventType = "purchase"
)

var validPixelEventTypes = []PixelEventType{
	PixelEventTypePageView,
	PixelEventTypeAddToCart,
	PixelEventTypeBeginCheckout,
	PixelEventTypePurchase,
}

// String implements fmt.Stringer.
func (t PixelEventType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known PixelEventType.
func (t PixelEventType) IsValid() bool {
	for _, candidate := range validPixelEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParsePixelEventType converts raw input into a PixelEventType.
func ParsePixelEventType(value string) (PixelEventType, error) {
	for _, candidate := range validPixelEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pixel event type %q", value)
}
