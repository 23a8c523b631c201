package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type AdapterConfig struct {
	SecretKey     string
	WebhookSecret string
	SessionURL    string
}

// PaymentAdapter is one processor integration: outbound session
// creation and inbound webhook verification and parsing.
type PaymentAdapter interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*PaymentEvent, error)
	CreateSession(ctx context.Context, req CreateSessionRequest) (CheckoutSession, error)
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (PaymentAdapter, error)
}

type Repository interface {
	// InsertEvent claims the (provider, provider_event_id) slot.
	// false without error means another delivery got there first.
	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*EventRecord, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
}

type Service interface {
	// CreateCheckoutSession asks the configured processor for a
	// redirect URL. No order exists until the webhook confirms
	// payment.
	CreateCheckoutSession(ctx context.Context, req CreateSessionRequest) (CheckoutSession, error)

	// HandleWebhook verifies, parses and processes one provider
	// delivery. Redeliveries of a processed event return
	// ErrEventAlreadyProcessed.
	HandleWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error
}

var (
	ErrInvalidSignature      = errors.New("invalid_signature")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrInvalidEvent          = errors.New("invalid_event")
	ErrEventIgnored          = errors.New("event_ignored")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
	ErrProviderNotFound      = errors.New("provider_not_found")
	ErrInvalidConfig         = errors.New("invalid_provider_config")
)

// PaymentError wraps a processor-side failure. It is surfaced to the
// caller as a gateway error, never converted into an order.
type PaymentError struct {
	Provider string
	Err      error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment provider %s: %v", e.Provider, e.Err)
}

func (e *PaymentError) Unwrap() error { return e.Err }
