package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/praxialabs/praxia/internal/catalog/domain"
	"github.com/praxialabs/praxia/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("catalog.service"),
		repo: p.Repo,
	}
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Item, error) {
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Item{}, err
	}
	if item == nil {
		return domain.Item{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) GetByIDs(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]domain.Item, error) {
	rows, err := s.repo.FindByIDs(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}

	items := make(map[snowflake.ID]domain.Item, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		items[row.ID] = *row
	}
	for _, id := range ids {
		if _, ok := items[id]; !ok {
			return nil, domain.ErrNotFound
		}
	}
	return items, nil
}

func (s *Service) List(ctx context.Context, req domain.ListItemRequest) (domain.ListItemResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	rows, err := s.repo.List(ctx, s.db, domain.ListItemFilter{
		Category: strings.TrimSpace(req.Category),
		Active:   req.Active,
	}, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListItemResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(rows, pageSize, func(item *domain.Item) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(rows) > int(pageSize) {
		rows = rows[:pageSize]
	}

	items := make([]domain.Item, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		items = append(items, *row)
	}

	resp := domain.ListItemResponse{Items: items}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) CheckAvailability(ctx context.Context, requests []domain.StockRequest) error {
	ids := make([]snowflake.ID, 0, len(requests))
	for _, req := range requests {
		if req.Quantity <= 0 {
			return domain.ErrInvalidQuantity
		}
		ids = append(ids, req.ItemID)
	}

	items, err := s.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}

	for _, req := range requests {
		item := items[req.ItemID]
		if !item.Active {
			return domain.ErrInactiveItem
		}
		if item.StockQuantity < req.Quantity {
			return domain.ErrInsufficientStock
		}
	}
	return nil
}

func (s *Service) ReserveStock(ctx context.Context, tx *gorm.DB, requests []domain.StockRequest) error {
	for _, req := range requests {
		if req.Quantity <= 0 {
			return domain.ErrInvalidQuantity
		}
		ok, err := s.repo.DecrementStock(ctx, tx, req.ItemID, req.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			s.log.Warn("stock reservation lost",
				zap.String("item_id", req.ItemID.String()),
				zap.Int64("quantity", req.Quantity),
			)
			return domain.ErrInsufficientStock
		}
	}
	return nil
}
