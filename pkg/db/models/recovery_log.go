package models

import (
	"time"

	"github.com/angelmondragon/recovero-backend/pkg/enums"
)

// RecoveryLog is an append-only record of one recovery attempt or event.
type RecoveryLog struct {
	ID      int64                 `gorm:"column:id;primaryKey;autoIncrement"`
	CartID  int64                 `gorm:"column:cart_id;not null;index"`
	Channel enums.RecoveryChannel `gorm:"column:channel;type:text;not null"`
	Outcome enums.RecoveryOutcome `gorm:"column:outcome;type:text;not null"`
	// Token is empty for entries that carry no recovery link.
	Token  string    `gorm:"column:token;not null;default:''"`
	SentAt time.Time `gorm:"column:sent_at;not null"`
}

func (RecoveryLog) TableName() string { return "recovery_logs" }
