package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Practitioner is the prescribing account. Only the fields the
// fulfillment core reads live here; profile editing happens elsewhere.
type Practitioner struct {
	ID                       snowflake.ID `gorm:"primaryKey" json:"id"`
	Name                     string       `gorm:"not null" json:"name"`
	Email                    string       `gorm:"not null;uniqueIndex" json:"email"`
	DefaultCommissionRateBps int64        `gorm:"not null;default:0" json:"default_commission_rate_bps"`
	CreatedAt                time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt                time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Practitioner) TableName() string { return "practitioners" }

// Patient is the recipient of recommendations. EmailConsent and
// LineUserID gate which notification channels are available.
type Patient struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	PractitionerID snowflake.ID `gorm:"not null;index" json:"practitioner_id"`
	Name           string       `gorm:"not null" json:"name"`
	Email          string       `json:"email,omitempty"`
	EmailConsent   bool         `gorm:"not null;default:false" json:"email_consent"`
	LineUserID     string       `gorm:"column:line_user_id" json:"line_user_id,omitempty"`
	Phone          string       `json:"phone,omitempty"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Patient) TableName() string { return "patients" }
