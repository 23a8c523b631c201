package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type ShippingInfo struct {
	Address    string `json:"shipping_address"`
	City       string `json:"shipping_city"`
	PostalCode string `json:"shipping_postal_code"`
	Phone      string `json:"shipping_phone"`
}

type CreateFromTokenRequest struct {
	Token         string
	Shipping      ShippingInfo
	PaymentMethod string

	// Paid marks the order as already settled, used when the order is
	// created from a successful payment webhook.
	Paid bool
}

type UpdateStatusRequest struct {
	ID                    snowflake.ID
	Status                *Status
	CourierName           *string
	TrackingNumber        *string
	ShippedAt             *time.Time
	EstimatedDeliveryDate *time.Time
	ActualDeliveryDate    *time.Time
	ShipmentWeightGrams   *int64
	Notes                 *string
	NotifyPatient         bool
}

type ListRequest struct {
	PractitionerID snowflake.ID
	Status         Status
}

type Service interface {
	// CreateFromToken consumes the checkout token and creates the
	// order in a single transaction. Any failure after the consume,
	// stock included, rolls the whole thing back and leaves the token
	// live.
	CreateFromToken(ctx context.Context, req CreateFromTokenRequest) (Order, error)

	GetByID(ctx context.Context, id snowflake.ID) (Order, error)
	List(ctx context.Context, req ListRequest) ([]Order, error)
	UpdateStatus(ctx context.Context, req UpdateStatusRequest) (Order, error)
	MarkPaid(ctx context.Context, id snowflake.ID) error
	Timeline(ctx context.Context, id snowflake.ID) ([]TimelineStep, error)
}

var (
	ErrNotFound            = errors.New("order_not_found")
	ErrInvalidTransition   = errors.New("invalid_order_transition")
	ErrCourierRequired     = errors.New("courier_and_tracking_required")
	ErrMissingShippingInfo = errors.New("missing_shipping_info")
	ErrInvalidPayment      = errors.New("invalid_payment_method")
)
