package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/praxialabs/praxia/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListItemRequest struct {
	PageToken string
	PageSize  int32
	Category  string
	Active    *bool
}

type ListItemResponse struct {
	pagination.PageInfo
	Items []Item `json:"items"`
}

// StockRequest is one line of a reservation: how many units of an item
// an order or recommendation needs.
type StockRequest struct {
	ItemID   snowflake.ID
	Quantity int64
}

type Service interface {
	GetByID(ctx context.Context, id snowflake.ID) (Item, error)
	GetByIDs(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]Item, error)
	List(ctx context.Context, req ListItemRequest) (ListItemResponse, error)

	// CheckAvailability verifies every requested quantity against
	// current stock without mutating anything.
	CheckAvailability(ctx context.Context, requests []StockRequest) error

	// ReserveStock decrements stock for every request inside the given
	// transaction. Each decrement is a conditional update; the first
	// shortage aborts with ErrInsufficientStock and the transaction is
	// expected to roll back.
	ReserveStock(ctx context.Context, tx *gorm.DB, requests []StockRequest) error
}

var (
	ErrNotFound          = errors.New("item_not_found")
	ErrInvalidQuantity   = errors.New("invalid_quantity")
	ErrInsufficientStock = errors.New("insufficient_stock")
	ErrInactiveItem      = errors.New("inactive_item")
)
