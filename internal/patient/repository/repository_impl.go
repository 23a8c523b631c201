package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/praxialabs/praxia/internal/patient/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindPatientByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Patient, error) {
	var patient domain.Patient
	err := db.WithContext(ctx).Raw(
		`SELECT id, practitioner_id, name, email, email_consent, line_user_id, phone,
		        created_at, updated_at
		 FROM patients WHERE id = ?`,
		id,
	).Scan(&patient).Error
	if err != nil {
		return nil, err
	}
	if patient.ID == 0 {
		return nil, nil
	}
	return &patient, nil
}

func (r *repo) FindPractitionerByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Practitioner, error) {
	var practitioner domain.Practitioner
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, email, default_commission_rate_bps, created_at, updated_at
		 FROM practitioners WHERE id = ?`,
		id,
	).Scan(&practitioner).Error
	if err != nil {
		return nil, err
	}
	if practitioner.ID == 0 {
		return nil, nil
	}
	return &practitioner, nil
}
