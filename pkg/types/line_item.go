package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// LineItem is one product row of a cart snapshot. It is persisted inside the
// cart_data jsonb column and must round-trip unchanged.
type LineItem struct {
	ProductID   int64           `json:"product_id" validate:"required,gt=0"`
	VariationID int64           `json:"variation_id,omitempty" validate:"gte=0"`
	Name        string          `json:"name,omitempty"`
	Quantity    int             `json:"quantity" validate:"required,gte=1"`
	Price       decimal.Decimal `json:"price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Total       decimal.Decimal `json:"total"`
	Image       string          `json:"image,omitempty"`
	Category    string          `json:"category,omitempty"`
}

// LineTotal returns the stored total, or price × quantity when the snapshot
// did not carry one.
func (l LineItem) LineTotal() decimal.Decimal {
	if !l.Total.IsZero() {
		return l.Total
	}
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Validate enforces quantity ≥ 1 and a non-negative price.
func (l LineItem) Validate() error {
	if l.ProductID <= 0 {
		return fmt.Errorf("product_id must be positive")
	}
	if l.Quantity < 1 {
		return fmt.Errorf("quantity must be at least 1")
	}
	if l.Price.IsNegative() {
		return fmt.Errorf("price must not be negative")
	}
	return nil
}

// LineItems is an ordered cart content snapshot.
type LineItems []LineItem

// Total sums every line.
func (items LineItems) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// Count returns the total number of units across lines.
func (items LineItems) Count() int {
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return count
}
