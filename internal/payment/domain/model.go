package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:text;not null;uniqueIndex:uniq_payment_events_provider_event"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null;uniqueIndex:uniq_payment_events_provider_event"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	Payload         datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

const (
	EventTypePaymentSucceeded = "payment_succeeded"
	EventTypePaymentFailed    = "payment_failed"
)

// ShippingDetails rides through the processor's session metadata so
// the webhook can create the order the patient described at checkout.
type ShippingDetails struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
}

// PaymentEvent is the canonical event parsed out of a provider
// webhook.
type PaymentEvent struct {
	Provider        string
	ProviderEventID string
	Type            string
	Amount          int64
	Currency        string
	OccurredAt      time.Time

	// CheckoutToken and Shipping are recovered from the session
	// metadata stamped at session-creation time.
	CheckoutToken string
	PaymentMethod string
	Shipping      ShippingDetails

	RawPayload []byte
}

type CreateSessionRequest struct {
	CheckoutToken string
	Amount        int64
	Currency      string
	PaymentMethod string
	Shipping      ShippingDetails
	SuccessURL    string
	CancelURL     string
}

// CheckoutSession is the redirect handed back to the patient instead
// of an order.
type CheckoutSession struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}
