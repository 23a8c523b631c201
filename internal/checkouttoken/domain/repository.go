package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, token *CheckoutToken) error
	FindByHash(ctx context.Context, db *gorm.DB, tokenHash string) (*CheckoutToken, error)

	// Consume stamps used_at with a single conditional update
	// (used_at IS NULL AND expires_at > now). Zero rows affected
	// means the race was lost or the token expired; the caller
	// re-reads to tell which.
	Consume(ctx context.Context, db *gorm.DB, tokenHash string, now time.Time) (bool, error)
}
