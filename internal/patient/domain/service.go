package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	GetPatient(ctx context.Context, id snowflake.ID) (Patient, error)
	GetPractitioner(ctx context.Context, id snowflake.ID) (Practitioner, error)
}

var (
	ErrPatientNotFound      = errors.New("patient_not_found")
	ErrPractitionerNotFound = errors.New("practitioner_not_found")
)
