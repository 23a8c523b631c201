package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/bwmarrin/snowflake"
)

// CheckoutToken bridges an authenticated send to an anonymous patient
// checkout. Only the sha256 of the raw token is stored; the raw value
// exists solely inside the link handed to the patient. Each token is
// single-use, and several live tokens may reference the same
// recommendation at once.
type CheckoutToken struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	RecommendationID snowflake.ID `gorm:"not null;index" json:"recommendation_id"`
	TokenHash        string       `gorm:"not null;uniqueIndex" json:"-"`
	ExpiresAt        time.Time    `gorm:"not null" json:"expires_at"`
	UsedAt           *time.Time   `json:"used_at,omitempty"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (CheckoutToken) TableName() string { return "checkout_tokens" }

func (t CheckoutToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t CheckoutToken) Used() bool {
	return t.UsedAt != nil
}

func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
