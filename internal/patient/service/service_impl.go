package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/praxialabs/praxia/internal/patient/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		repo: p.Repo,
	}
}

func (s *Service) GetPatient(ctx context.Context, id snowflake.ID) (domain.Patient, error) {
	patient, err := s.repo.FindPatientByID(ctx, s.db, id)
	if err != nil {
		return domain.Patient{}, err
	}
	if patient == nil {
		return domain.Patient{}, domain.ErrPatientNotFound
	}
	return *patient, nil
}

func (s *Service) GetPractitioner(ctx context.Context, id snowflake.ID) (domain.Practitioner, error) {
	practitioner, err := s.repo.FindPractitionerByID(ctx, s.db, id)
	if err != nil {
		return domain.Practitioner{}, err
	}
	if practitioner == nil {
		return domain.Practitioner{}, domain.ErrPractitionerNotFound
	}
	return *practitioner, nil
}
