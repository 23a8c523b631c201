package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindPatientByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Patient, error)
	FindPractitionerByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Practitioner, error)
}
