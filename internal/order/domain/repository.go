package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	FindByRecommendationID(ctx context.Context, db *gorm.DB, recommendationID snowflake.ID) (*Order, error)
	List(ctx context.Context, db *gorm.DB, practitionerID snowflake.ID, status Status) ([]*Order, error)
	Update(ctx context.Context, db *gorm.DB, order *Order) error
	UpdatePaymentStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status PaymentStatus) error
}
