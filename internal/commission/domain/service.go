package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// RateInput describes the order lines the resolver may scope a rate to.
type RateInput struct {
	PractitionerID snowflake.ID
	ItemIDs        []snowflake.ID
	Categories     []string

	// PractitionerDefaultBps and CatalogDefaultBps are the fallbacks
	// when no override applies, in precedence order.
	PractitionerDefaultBps int64
	CatalogDefaultBps      int64
}

// Resolver resolves the applicable commission rate at a point in time.
// Precedence: item-scoped override, category-scoped override,
// practitioner default, catalog default.
type Resolver interface {
	ResolveRate(ctx context.Context, input RateInput, at time.Time) (int64, error)
}

type CreateOverrideRequest struct {
	PractitionerID *snowflake.ID
	ItemID         *snowflake.ID
	Category       *string
	RateBps        int64
	EffectiveFrom  time.Time
	EffectiveUntil *time.Time
}

type ListRecordsRequest struct {
	PractitionerID snowflake.ID
	Status         CommissionStatus
}

// Ledger records earned commissions against orders.
type Ledger interface {
	// RecordForOrder resolves the rate, computes the amount from the
	// order total and persists the record inside tx. The stored rate
	// and amount are frozen from that moment on.
	RecordForOrder(ctx context.Context, tx *gorm.DB, orderID snowflake.ID, orderTotal int64, currency string, input RateInput, at time.Time) (CommissionRecord, error)

	CreateOverride(ctx context.Context, req CreateOverrideRequest) (CommissionOverride, error)
	GetRecordByOrderID(ctx context.Context, orderID snowflake.ID) (CommissionRecord, error)
	ListRecords(ctx context.Context, req ListRecordsRequest) ([]CommissionRecord, error)
}

var (
	ErrInvalidRate         = errors.New("invalid_rate")
	ErrInvalidScope        = errors.New("invalid_scope")
	ErrInvalidWindow       = errors.New("invalid_window")
	ErrRecordNotFound      = errors.New("commission_record_not_found")
	ErrRecordAlreadyExists = errors.New("commission_record_exists")
)
