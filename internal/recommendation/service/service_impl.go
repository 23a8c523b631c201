package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/praxialabs/praxia/internal/catalog/domain"
	"github.com/praxialabs/praxia/internal/clock"
	"github.com/praxialabs/praxia/internal/recommendation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Catalog catalogdomain.Service
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	catalog catalogdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("recommendation.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		catalog: p.Catalog,
	}
}

// buildItems validates the inputs against the catalog and snapshots
// the current unit price on each line.
func (s *Service) buildItems(ctx context.Context, recommendationID snowflake.ID, inputs []domain.ItemInput) ([]domain.RecommendationItem, error) {
	if len(inputs) == 0 {
		return nil, domain.ErrEmptyItems
	}

	ids := make([]snowflake.ID, 0, len(inputs))
	requests := make([]catalogdomain.StockRequest, 0, len(inputs))
	for _, input := range inputs {
		if input.Quantity <= 0 {
			return nil, catalogdomain.ErrInvalidQuantity
		}
		ids = append(ids, input.ItemID)
		requests = append(requests, catalogdomain.StockRequest{
			ItemID:   input.ItemID,
			Quantity: input.Quantity,
		})
	}

	catalogItems, err := s.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.CheckAvailability(ctx, requests); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	items := make([]domain.RecommendationItem, 0, len(inputs))
	for _, input := range inputs {
		catalogItem := catalogItems[input.ItemID]
		if !catalogItem.Active {
			return nil, catalogdomain.ErrInactiveItem
		}
		items = append(items, domain.RecommendationItem{
			ID:               s.genID.Generate(),
			RecommendationID: recommendationID,
			ItemID:           input.ItemID,
			Quantity:         input.Quantity,
			UnitPrice:        catalogItem.UnitPrice,
			Dosage:           input.Dosage,
			CreatedAt:        now,
		})
	}
	return items, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.Recommendation, error) {
	if req.PractitionerID == 0 {
		return domain.Recommendation{}, domain.ErrNotFound
	}

	id := s.genID.Generate()
	items, err := s.buildItems(ctx, id, req.Items)
	if err != nil {
		return domain.Recommendation{}, err
	}

	now := s.clock.Now()
	rec := domain.Recommendation{
		ID:             id,
		PractitionerID: req.PractitionerID,
		PatientID:      req.PatientID,
		Title:          req.Title,
		Diagnosis:      req.Diagnosis,
		Status:         domain.StatusDraft,
		TotalCost:      domain.TotalCost(items),
		Currency:       "THB",
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &rec); err != nil {
			return err
		}
		return s.repo.ReplaceItems(ctx, tx, rec.ID, items)
	})
	if err != nil {
		return domain.Recommendation{}, err
	}

	rec.Items = items
	s.log.Info("recommendation created",
		zap.Int64("recommendation_id", int64(rec.ID)),
		zap.Int64("total_cost", rec.TotalCost),
	)
	return rec, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (domain.Recommendation, error) {
	rec, err := s.repo.FindByID(ctx, s.db, req.ID)
	if err != nil {
		return domain.Recommendation{}, err
	}
	if rec == nil {
		return domain.Recommendation{}, domain.ErrNotFound
	}
	if rec.Status != domain.StatusDraft {
		return domain.Recommendation{}, domain.ErrNotEditable
	}

	items, err := s.buildItems(ctx, rec.ID, req.Items)
	if err != nil {
		return domain.Recommendation{}, err
	}

	rec.Title = req.Title
	rec.Diagnosis = req.Diagnosis
	rec.TotalCost = domain.TotalCost(items)
	rec.UpdatedAt = s.clock.Now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.ReplaceItems(ctx, tx, rec.ID, items); err != nil {
			return err
		}
		return s.repo.UpdateMeta(ctx, tx, rec)
	})
	if err != nil {
		return domain.Recommendation{}, err
	}

	rec.Items = items
	return *rec, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Recommendation, error) {
	rec, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Recommendation{}, err
	}
	if rec == nil {
		return domain.Recommendation{}, domain.ErrNotFound
	}
	items, err := s.repo.FindItems(ctx, s.db, id)
	if err != nil {
		return domain.Recommendation{}, err
	}
	rec.Items = items
	return *rec, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Recommendation, error) {
	rows, err := s.repo.List(ctx, s.db, req.PractitionerID, req.Status)
	if err != nil {
		return nil, err
	}
	recs := make([]domain.Recommendation, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		recs = append(recs, *row)
	}
	return recs, nil
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	rec, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return domain.ErrNotFound
	}
	if rec.Status != domain.StatusDraft {
		return domain.ErrNotDeletable
	}
	return s.repo.Delete(ctx, s.db, id)
}

func (s *Service) MarkSent(ctx context.Context, id snowflake.ID, channels []string) error {
	rec, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return domain.ErrNotFound
	}

	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if rec.Status == domain.StatusDraft {
			ok, err := s.repo.AdvanceStatus(ctx, tx, id, domain.StatusDraft, domain.StatusSent, now)
			if err != nil {
				return err
			}
			if !ok {
				// Already moved past draft by a concurrent send.
				s.log.Debug("draft already advanced", zap.Int64("recommendation_id", int64(id)))
			}
		}
		return s.repo.MarkSent(ctx, tx, id, domain.JoinChannels(channels), now)
	})
}

func (s *Service) AdvanceStatus(ctx context.Context, tx *gorm.DB, id snowflake.ID, to domain.Status) error {
	rec, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return domain.ErrNotFound
	}
	if !rec.Status.CanTransitionTo(to) {
		return domain.ErrInvalidTransition
	}

	ok, err := s.repo.AdvanceStatus(ctx, tx, id, rec.Status, to, s.clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidTransition
	}
	return nil
}
