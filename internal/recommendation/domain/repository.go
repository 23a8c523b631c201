package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, rec *Recommendation) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Recommendation, error)
	List(ctx context.Context, db *gorm.DB, practitionerID snowflake.ID, status Status) ([]*Recommendation, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	// UpdateMeta rewrites title, diagnosis, total and updated_at.
	UpdateMeta(ctx context.Context, db *gorm.DB, rec *Recommendation) error

	// ReplaceItems deletes the recommendation's items and reinserts
	// the given batch. Caller supplies the transaction.
	ReplaceItems(ctx context.Context, tx *gorm.DB, recommendationID snowflake.ID, items []RecommendationItem) error
	FindItems(ctx context.Context, db *gorm.DB, recommendationID snowflake.ID) ([]RecommendationItem, error)

	// AdvanceStatus is a CAS on the previous status. Zero rows means
	// a concurrent writer moved the recommendation first.
	AdvanceStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status, ts time.Time) (bool, error)

	// MarkSent stamps sent_at when unset and overwrites the channel
	// record with this send's channels.
	MarkSent(ctx context.Context, db *gorm.DB, id snowflake.ID, channels string, ts time.Time) error
}
