package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/praxialabs/praxia/internal/recommendation/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rec *domain.Recommendation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO recommendations (
			id, practitioner_id, patient_id, title, diagnosis, status,
			total_cost, currency, sent_at, notification_channels,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.PractitionerID,
		rec.PatientID,
		rec.Title,
		rec.Diagnosis,
		rec.Status,
		rec.TotalCost,
		rec.Currency,
		rec.SentAt,
		rec.NotificationChannels,
		rec.CreatedAt,
		rec.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Recommendation, error) {
	var rec domain.Recommendation
	err := db.WithContext(ctx).Raw(
		`SELECT id, practitioner_id, patient_id, title, diagnosis, status,
		        total_cost, currency, sent_at, notification_channels,
		        created_at, updated_at
		 FROM recommendations WHERE id = ?`,
		id,
	).Scan(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.ID == 0 {
		return nil, nil
	}
	return &rec, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, practitionerID snowflake.ID, status domain.Status) ([]*domain.Recommendation, error) {
	var recs []*domain.Recommendation
	stmt := db.WithContext(ctx).Model(&domain.Recommendation{})
	if practitionerID != 0 {
		stmt = stmt.Where("practitioner_id = ?", practitionerID)
	}
	if status != "" {
		stmt = stmt.Where("status = ?", status)
	}
	err := stmt.
		Order("created_at desc, id desc").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	if err := db.WithContext(ctx).Exec(
		`DELETE FROM recommendation_items WHERE recommendation_id = ?`, id,
	).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(
		`DELETE FROM recommendations WHERE id = ?`, id,
	).Error
}

func (r *repo) UpdateMeta(ctx context.Context, db *gorm.DB, rec *domain.Recommendation) error {
	return db.WithContext(ctx).Exec(
		`UPDATE recommendations
		 SET title = ?, diagnosis = ?, total_cost = ?, updated_at = ?
		 WHERE id = ?`,
		rec.Title,
		rec.Diagnosis,
		rec.TotalCost,
		rec.UpdatedAt,
		rec.ID,
	).Error
}

func (r *repo) ReplaceItems(ctx context.Context, tx *gorm.DB, recommendationID snowflake.ID, items []domain.RecommendationItem) error {
	if err := tx.WithContext(ctx).Exec(
		`DELETE FROM recommendation_items WHERE recommendation_id = ?`,
		recommendationID,
	).Error; err != nil {
		return err
	}
	for _, item := range items {
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO recommendation_items (
				id, recommendation_id, item_id, quantity, unit_price,
				dosage, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.ID,
			item.RecommendationID,
			item.ItemID,
			item.Quantity,
			item.UnitPrice,
			item.Dosage,
			item.CreatedAt,
		).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) FindItems(ctx context.Context, db *gorm.DB, recommendationID snowflake.ID) ([]domain.RecommendationItem, error) {
	var items []domain.RecommendationItem
	err := db.WithContext(ctx).Raw(
		`SELECT id, recommendation_id, item_id, quantity, unit_price,
		        dosage, created_at
		 FROM recommendation_items
		 WHERE recommendation_id = ?
		 ORDER BY id`,
		recommendationID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) AdvanceStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.Status, ts time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE recommendations
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		to, ts, id, from,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) MarkSent(ctx context.Context, db *gorm.DB, id snowflake.ID, channels string, ts time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE recommendations
		 SET sent_at = COALESCE(sent_at, ?),
		     notification_channels = ?,
		     updated_at = ?
		 WHERE id = ?`,
		ts, channels, ts, id,
	).Error
}
