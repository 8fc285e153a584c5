package carts

import (
	"time"

	"github.com/angelmondragon/recovero-backend/pkg/types"
)

// Contact carries the shopper details a storefront may know at any point.
// Empty fields never overwrite known values.
type Contact struct {
	UserID          *int64 `json:"user_id,omitempty" validate:"omitempty,gt=0"`
	Email           string `json:"email,omitempty" validate:"omitempty,email"`
	Phone           string `json:"phone,omitempty" validate:"omitempty,max=32"`
	CustomerName    string `json:"customer_name,omitempty" validate:"omitempty,max=200"`
	BillingAddress  string `json:"billing_address,omitempty"`
	BillingCity     string `json:"billing_city,omitempty"`
	BillingCountry  string `json:"billing_country,omitempty"`
	BillingPostcode string `json:"billing_postcode,omitempty"`
}

// CartChangedEvent is emitted whenever the live cart of a session mutates.
type CartChangedEvent struct {
	SessionID string          `json:"session_id" validate:"required,max=128"`
	Items     types.LineItems `json:"items" validate:"dive"`
	Currency  string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	Contact

	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
	Location  string `json:"-"`
}

type CheckoutEvent struct {
	SessionID string `json:"session_id" validate:"required,max=128"`
	Contact
}

type OrderCompletedEvent struct {
	SessionID   string    `json:"session_id" validate:"omitempty,max=128"`
	OrderRef    string    `json:"order_ref" validate:"required,max=128"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
	Contact
}
