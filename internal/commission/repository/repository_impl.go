package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/praxialabs/praxia/internal/commission/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindActiveOverrides(ctx context.Context, db *gorm.DB, practitionerID snowflake.ID, itemIDs []snowflake.ID, categories []string, ts time.Time) ([]*domain.CommissionOverride, error) {
	var overrides []*domain.CommissionOverride
	stmt := db.WithContext(ctx).
		Model(&domain.CommissionOverride{}).
		Where("effective_from <= ?", ts).
		Where("effective_until IS NULL OR effective_until > ?", ts).
		Where("practitioner_id IS NULL OR practitioner_id = ?", practitionerID)

	scope := db.Where("item_id IS NULL AND category IS NULL")
	if len(itemIDs) > 0 {
		scope = scope.Or("item_id IN ?", itemIDs)
	}
	if len(categories) > 0 {
		scope = scope.Or("category IN ?", categories)
	}
	stmt = stmt.Where(scope)

	err := stmt.
		Order("effective_from desc, id desc").
		Find(&overrides).Error
	if err != nil {
		return nil, err
	}
	return overrides, nil
}

func (r *repo) InsertOverride(ctx context.Context, db *gorm.DB, override *domain.CommissionOverride) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO commission_overrides (
			id, practitioner_id, item_id, category, rate_bps,
			effective_from, effective_until, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		override.ID,
		override.PractitionerID,
		override.ItemID,
		override.Category,
		override.RateBps,
		override.EffectiveFrom,
		override.EffectiveUntil,
		override.CreatedAt,
	).Error
}

func (r *repo) InsertRecord(ctx context.Context, db *gorm.DB, record *domain.CommissionRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO commission_records (
			id, order_id, practitioner_id, rate_bps, amount, currency,
			status, payout_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.OrderID,
		record.PractitionerID,
		record.RateBps,
		record.Amount,
		record.Currency,
		record.Status,
		record.PayoutID,
		record.CreatedAt,
		record.UpdatedAt,
	).Error
}

func (r *repo) FindRecordByOrderID(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*domain.CommissionRecord, error) {
	var record domain.CommissionRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, practitioner_id, rate_bps, amount, currency,
		        status, payout_id, created_at, updated_at
		 FROM commission_records WHERE order_id = ?`,
		orderID,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) ListRecords(ctx context.Context, db *gorm.DB, practitionerID snowflake.ID, status domain.CommissionStatus) ([]*domain.CommissionRecord, error) {
	var records []*domain.CommissionRecord
	stmt := db.WithContext(ctx).
		Model(&domain.CommissionRecord{}).
		Where("practitioner_id = ?", practitionerID)
	if status != "" {
		stmt = stmt.Where("status = ?", status)
	}
	err := stmt.
		Order("created_at desc, id desc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
