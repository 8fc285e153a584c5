package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/recovero-backend/pkg/enums"
	"github.com/angelmondragon/recovero-backend/pkg/types"
)

// AbandonedCart is the latest cart snapshot for a shopper session.
type AbandonedCart struct {
	ID              int64            `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID       *string          `gorm:"column:session_id"`
	UserID          *int64           `gorm:"column:user_id"`
	Email           string           `gorm:"column:email;not null;default:''"`
	Phone           string           `gorm:"column:phone;not null;default:''"`
	CustomerName    string           `gorm:"column:customer_name;not null;default:''"`
	CartData        types.LineItems  `gorm:"column:cart_data;type:jsonb;serializer:json;not null"`
	CartTotal       decimal.Decimal  `gorm:"column:cart_total;type:numeric(12,2);not null;default:0"`
	Currency        string           `gorm:"column:currency;not null;default:'USD'"`
	IPAddress       string           `gorm:"column:ip_address;not null;default:''"`
	Location        string           `gorm:"column:location;not null;default:''"`
	UserAgent       string           `gorm:"column:user_agent;not null;default:''"`
	BillingAddress  string           `gorm:"column:billing_address;not null;default:''"`
	BillingCity     string           `gorm:"column:billing_city;not null;default:''"`
	BillingCountry  string           `gorm:"column:billing_country;not null;default:''"`
	BillingPostcode string           `gorm:"column:billing_postcode;not null;default:''"`
	Status          enums.CartStatus `gorm:"column:status;type:text;not null;default:'abandoned'"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (AbandonedCart) TableName() string { return "abandoned_carts" }

// Session returns the session id or an empty string.
func (c AbandonedCart) Session() string {
	if c.SessionID == nil {
		return ""
	}
	return *c.SessionID
}
