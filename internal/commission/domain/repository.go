package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// FindActiveOverrides returns every override active at ts whose
	// scope could apply to the given practitioner, items or categories.
	FindActiveOverrides(ctx context.Context, db *gorm.DB, practitionerID snowflake.ID, itemIDs []snowflake.ID, categories []string, ts time.Time) ([]*CommissionOverride, error)

	InsertOverride(ctx context.Context, db *gorm.DB, override *CommissionOverride) error
	InsertRecord(ctx context.Context, db *gorm.DB, record *CommissionRecord) error
	FindRecordByOrderID(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*CommissionRecord, error)
	ListRecords(ctx context.Context, db *gorm.DB, practitionerID snowflake.ID, status CommissionStatus) ([]*CommissionRecord, error)
}
