package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/praxialabs/praxia/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Create(order).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Take(&order).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repo) FindByRecommendationID(ctx context.Context, db *gorm.DB, recommendationID snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).
		Where("recommendation_id = ?", recommendationID).
		Order("created_at desc").
		Take(&order).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, practitionerID snowflake.ID, status domain.Status) ([]*domain.Order, error) {
	var orders []*domain.Order
	stmt := db.WithContext(ctx).Model(&domain.Order{})
	if practitionerID != 0 {
		stmt = stmt.Where("practitioner_id = ?", practitionerID)
	}
	if status != "" {
		stmt = stmt.Where("status = ?", status)
	}
	err := stmt.
		Order("created_at desc, id desc").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"status":                  order.Status,
			"courier_name":            order.CourierName,
			"tracking_number":         order.TrackingNumber,
			"courier_tracking_url":    order.CourierTrackingURL,
			"shipped_at":              order.ShippedAt,
			"estimated_delivery_date": order.EstimatedDeliveryDate,
			"actual_delivery_date":    order.ActualDeliveryDate,
			"shipment_weight_grams":   order.ShipmentWeightGrams,
			"notes":                   order.Notes,
			"updated_at":              order.UpdatedAt,
		}).Error
}

func (r *repo) UpdatePaymentStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.PaymentStatus) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders SET payment_status = ? WHERE id = ?`,
		status, id,
	).Error
}
