package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// IssuedToken carries the raw token alongside the stored row. The raw
// value is returned exactly once, at issue time.
type IssuedToken struct {
	Raw   string
	Token CheckoutToken
}

type Service interface {
	Issue(ctx context.Context, recommendationID snowflake.ID) (IssuedToken, error)

	// Validate reads without consuming. Reasons are checked in order:
	// unknown token, then expiry, then prior use, so an expired and
	// used token reports expired.
	Validate(ctx context.Context, raw string) (CheckoutToken, error)

	// Consume burns the token inside tx. At most one caller ever
	// succeeds per token.
	Consume(ctx context.Context, tx *gorm.DB, raw string) (CheckoutToken, error)
}

var (
	ErrTokenNotFound    = errors.New("token_not_found")
	ErrTokenExpired     = errors.New("token_expired")
	ErrTokenAlreadyUsed = errors.New("token_already_used")
)
