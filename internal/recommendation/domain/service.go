package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ItemInput struct {
	ItemID   snowflake.ID `json:"item_id"`
	Quantity int64        `json:"quantity"`
	Dosage   string       `json:"dosage,omitempty"`
}

type CreateRequest struct {
	PractitionerID snowflake.ID `json:"practitioner_id"`
	PatientID      snowflake.ID `json:"patient_id"`
	Title          string       `json:"title"`
	Diagnosis      string       `json:"diagnosis"`
	Items          []ItemInput  `json:"items"`
}

type UpdateRequest struct {
	ID        snowflake.ID `json:"-"`
	Title     string       `json:"title"`
	Diagnosis string       `json:"diagnosis"`
	Items     []ItemInput  `json:"items"`
}

type ListRequest struct {
	PractitionerID snowflake.ID
	Status         Status
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Recommendation, error)
	Update(ctx context.Context, req UpdateRequest) (Recommendation, error)
	GetByID(ctx context.Context, id snowflake.ID) (Recommendation, error)
	List(ctx context.Context, req ListRequest) ([]Recommendation, error)
	Delete(ctx context.Context, id snowflake.ID) error

	// MarkSent stamps sent_at (first send only) and overwrites the
	// notification channel record. Status is untouched apart from the
	// initial draft -> sent move.
	MarkSent(ctx context.Context, id snowflake.ID, channels []string) error

	// AdvanceStatus moves the recommendation forward inside tx.
	// Backward or same-rank moves fail with ErrInvalidTransition.
	AdvanceStatus(ctx context.Context, tx *gorm.DB, id snowflake.ID, to Status) error
}

var (
	ErrNotFound          = errors.New("recommendation_not_found")
	ErrInvalidTransition = errors.New("invalid_status_transition")
	ErrNotEditable       = errors.New("recommendation_not_editable")
	ErrNotDeletable      = errors.New("recommendation_not_deletable")
	ErrEmptyItems        = errors.New("empty_items")
)
