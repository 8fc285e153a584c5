package enums

import "fmt"

// CartStatus tracks where an abandoned cart snapshot sits in its lifecycle.
type CartStatus string

const (
	CartStatusAbandoned CartStatus = "abandoned"
	CartStatusCheckout  CartStatus = "checkout"
	CartStatusRecovered CartStatus = "recovered"
	CartStatusCompleted CartStatus = "completed"
)

var validCartStatuses = []CartStatus{
	CartStatusAbandoned,
	CartStatusCheckout,
	CartStatusRecovered,
	CartStatusCompleted,
}

// String implements fmt.Stringer.
func (c CartStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CartStatus.
func (c CartStatus) IsValid() bool {
	for _, candidate := range validCartStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsTerminal reports whether reminders must stop for the cart.
func (c CartStatus) IsTerminal() bool {
	return c == CartStatusRecovered || c == CartStatusCompleted
}

// ParseCartStatus converts raw input into a CartStatus.
func ParseCartStatus(value string) (CartStatus, error) {
	for _, candidate := range validCartStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart status %q", value)
}
