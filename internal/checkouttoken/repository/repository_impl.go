package repository

import (
	"context"
	"time"

	"github.com/praxialabs/praxia/internal/checkouttoken/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, token *domain.CheckoutToken) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO checkout_tokens (
			id, recommendation_id, token_hash, expires_at, used_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?)`,
		token.ID,
		token.RecommendationID,
		token.TokenHash,
		token.ExpiresAt,
		token.UsedAt,
		token.CreatedAt,
	).Error
}

func (r *repo) FindByHash(ctx context.Context, db *gorm.DB, tokenHash string) (*domain.CheckoutToken, error) {
	var token domain.CheckoutToken
	err := db.WithContext(ctx).Raw(
		`SELECT id, recommendation_id, token_hash, expires_at, used_at, created_at
		 FROM checkout_tokens WHERE token_hash = ?`,
		tokenHash,
	).Scan(&token).Error
	if err != nil {
		return nil, err
	}
	if token.ID == 0 {
		return nil, nil
	}
	return &token, nil
}

func (r *repo) Consume(ctx context.Context, db *gorm.DB, tokenHash string, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE checkout_tokens
		 SET used_at = ?
		 WHERE token_hash = ? AND used_at IS NULL AND expires_at > ?`,
		now, tokenHash, now,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
