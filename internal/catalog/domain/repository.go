package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/praxialabs/praxia/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListItemFilter struct {
	Category string
	Active   *bool
}

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Item, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*Item, error)
	List(ctx context.Context, db *gorm.DB, filter ListItemFilter, page pagination.Pagination) ([]*Item, error)

	// DecrementStock subtracts qty in a single conditional update and
	// reports whether the row had enough stock. A false return means
	// the caller lost the race or the item is short; nothing changed.
	DecrementStock(ctx context.Context, db *gorm.DB, id snowflake.ID, qty int64) (bool, error)

	// RestoreStock adds qty back, compensating a partially applied
	// multi-item decrement.
	RestoreStock(ctx context.Context, db *gorm.DB, id snowflake.ID, qty int64) error
}
