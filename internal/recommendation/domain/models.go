package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status is the recommendation lifecycle state. Transitions are
// monotonic non-decreasing by rank; draft is never re-entered.
type Status string

const (
	StatusDraft          Status = "draft"
	StatusSent           Status = "sent"
	StatusPaymentPending Status = "payment_pending"
	StatusPaid           Status = "paid"
	StatusShipped        Status = "shipped"
	StatusDelivered      Status = "delivered"
)

var statusRank = map[Status]int{
	StatusDraft:          0,
	StatusSent:           1,
	StatusPaymentPending: 2,
	StatusPaid:           3,
	StatusShipped:        4,
	StatusDelivered:      5,
}

func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransitionTo allows any strictly forward move. Webhook-driven
// transitions may skip intermediate states, so adjacency is not
// required, only monotonic order.
func (s Status) CanTransitionTo(next Status) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to > from
}

type Recommendation struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	PractitionerID snowflake.ID `gorm:"not null;index" json:"practitioner_id"`
	PatientID      snowflake.ID `gorm:"not null;index" json:"patient_id"`
	Title          string       `json:"title"`
	Diagnosis      string       `json:"diagnosis"`
	Status         Status       `gorm:"not null;default:'draft'" json:"status"`
	TotalCost      int64        `gorm:"not null;default:0" json:"total_cost"`
	Currency       string       `gorm:"not null;default:'THB'" json:"currency"`
	SentAt         *time.Time   `json:"sent_at,omitempty"`

	// NotificationChannels records how the recommendation was last
	// sent, comma separated. Overwritten on every send and resend.
	NotificationChannels string `gorm:"not null;default:''" json:"-"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Items []RecommendationItem `gorm:"-" json:"items,omitempty"`
}

func (Recommendation) TableName() string { return "recommendations" }

func (r Recommendation) Channels() []string {
	if r.NotificationChannels == "" {
		return nil
	}
	return strings.Split(r.NotificationChannels, ",")
}

func JoinChannels(channels []string) string {
	return strings.Join(channels, ",")
}

// RecommendationItem snapshots the catalog price at add time. Rows are
// replaced as a whole batch on every edit, never mutated in place.
type RecommendationItem struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	RecommendationID snowflake.ID `gorm:"not null;index" json:"recommendation_id"`
	ItemID           snowflake.ID `gorm:"not null" json:"item_id"`
	Quantity         int64        `gorm:"not null" json:"quantity"`
	UnitPrice        int64        `gorm:"not null" json:"unit_price"`
	Dosage           string       `gorm:"not null;default:''" json:"dosage,omitempty"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (RecommendationItem) TableName() string { return "recommendation_items" }

// TotalCost is the derived recommendation total. Pure; called from
// every path that changes the item set.
func TotalCost(items []RecommendationItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Quantity * item.UnitPrice
	}
	return total
}
