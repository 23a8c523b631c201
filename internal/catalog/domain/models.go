package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Item is a sellable catalog product. Prices are minor currency units;
// commission rates are basis points.
type Item struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	SKU               string       `gorm:"not null;uniqueIndex" json:"sku"`
	Name              string       `gorm:"not null" json:"name"`
	Category          string       `gorm:"not null;default:''" json:"category"`
	UnitPrice         int64        `gorm:"not null" json:"unit_price"`
	Currency          string       `gorm:"not null;default:'THB'" json:"currency"`
	CommissionRateBps int64        `gorm:"not null;default:0" json:"commission_rate_bps"`
	StockQuantity     int64        `gorm:"not null;default:0" json:"stock_quantity"`
	Active            bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Item) TableName() string { return "items" }
