package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// CommissionOverride is a time-bounded rate that beats the defaults.
// Exactly one of ItemID or Category is set for item/category scopes;
// a practitioner-wide override sets neither. The effective window is
// half-open: [EffectiveFrom, EffectiveUntil), nil until meaning still
// active.
type CommissionOverride struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	PractitionerID *snowflake.ID `gorm:"index" json:"practitioner_id,omitempty"`
	ItemID         *snowflake.ID `gorm:"index" json:"item_id,omitempty"`
	Category       *string       `json:"category,omitempty"`
	RateBps        int64         `gorm:"not null" json:"rate_bps"`
	EffectiveFrom  time.Time     `gorm:"not null" json:"effective_from"`
	EffectiveUntil *time.Time    `json:"effective_until,omitempty"`
	CreatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (CommissionOverride) TableName() string { return "commission_overrides" }

// ActiveAt reports whether the override's window contains ts.
func (o CommissionOverride) ActiveAt(ts time.Time) bool {
	if ts.Before(o.EffectiveFrom) {
		return false
	}
	if o.EffectiveUntil != nil && !ts.Before(*o.EffectiveUntil) {
		return false
	}
	return true
}

type CommissionStatus string

const (
	CommissionStatusPending CommissionStatus = "pending"
	CommissionStatusPaid    CommissionStatus = "paid"
)

// CommissionRecord freezes the resolved rate and amount for one order.
// It is never recomputed after creation, even if override configuration
// changes later.
type CommissionRecord struct {
	ID             snowflake.ID     `gorm:"primaryKey" json:"id"`
	OrderID        snowflake.ID     `gorm:"not null;uniqueIndex" json:"order_id"`
	PractitionerID snowflake.ID     `gorm:"not null;index" json:"practitioner_id"`
	RateBps        int64            `gorm:"not null" json:"rate_bps"`
	Amount         int64            `gorm:"not null" json:"amount"`
	Currency       string           `gorm:"not null" json:"currency"`
	Status         CommissionStatus `gorm:"not null;default:'pending'" json:"status"`
	PayoutID       *snowflake.ID    `json:"payout_id,omitempty"`
	CreatedAt      time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (CommissionRecord) TableName() string { return "commission_records" }
