package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/praxialabs/praxia/internal/catalog/domain"
	"github.com/praxialabs/praxia/pkg/db/option"
	"github.com/praxialabs/praxia/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Item, error) {
	var item domain.Item
	err := db.WithContext(ctx).Raw(
		`SELECT id, sku, name, category, unit_price, currency, commission_rate_bps,
		        stock_quantity, active, created_at, updated_at
		 FROM items WHERE id = ?`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*domain.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []*domain.Item
	err := db.WithContext(ctx).
		Model(&domain.Item{}).
		Where("id IN ?", ids).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListItemFilter, page pagination.Pagination) ([]*domain.Item, error) {
	var items []*domain.Item
	stmt := db.WithContext(ctx).Model(&domain.Item{})
	if filter.Category != "" {
		stmt = stmt.Where("category = ?", filter.Category)
	}
	if filter.Active != nil {
		stmt = stmt.Where("active = ?", *filter.Active)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) DecrementStock(ctx context.Context, db *gorm.DB, id snowflake.ID, qty int64) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE items
		 SET stock_quantity = stock_quantity - ?, updated_at = ?
		 WHERE id = ? AND stock_quantity >= ?`,
		qty,
		time.Now().UTC(),
		id,
		qty,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) RestoreStock(ctx context.Context, db *gorm.DB, id snowflake.ID, qty int64) error {
	return db.WithContext(ctx).Exec(
		`UPDATE items
		 SET stock_quantity = stock_quantity + ?, updated_at = ?
		 WHERE id = ?`,
		qty,
		time.Now().UTC(),
		id,
	).Error
}
