package models

import "time"

// CustomerOrder records a completed order reported by the storefront.
type CustomerOrder struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	OrderRef    string    `gorm:"column:order_ref;not null;uniqueIndex"`
	CartID      *int64    `gorm:"column:cart_id"`
	SessionID   string    `gorm:"column:session_id;not null;default:''"`
	UserID      *int64    `gorm:"column:user_id"`
	Email       string    `gorm:"column:email;not null;default:''"`
	Phone       string    `gorm:"column:phone;not null;default:''"`
	CompletedAt time.Time `gorm:"column:completed_at;not null"`
}

func (CustomerOrder) TableName() string { return "customer_orders" }
