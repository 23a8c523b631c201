package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/praxialabs/praxia/internal/clock"
	"github.com/praxialabs/praxia/internal/commission/domain"
	"github.com/praxialabs/praxia/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type LedgerParams struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type ledger struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewLedger(p LedgerParams) domain.Ledger {
	return &ledger{
		db:    p.DB,
		log:   p.Log.Named("commission.ledger"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// commissionAmount rounds half up on the basis-point product.
func commissionAmount(orderTotal, rateBps int64) int64 {
	return (orderTotal*rateBps + 5000) / 10000
}

// RecordForOrder resolves the rate through tx so the whole order
// creation stays one transaction.
func (l *ledger) RecordForOrder(ctx context.Context, tx *gorm.DB, orderID snowflake.ID, orderTotal int64, currency string, input domain.RateInput, at time.Time) (domain.CommissionRecord, error) {
	overrides, err := l.repo.FindActiveOverrides(ctx, tx, input.PractitionerID, input.ItemIDs, input.Categories, at)
	if err != nil {
		return domain.CommissionRecord{}, err
	}
	rate := resolveRate(overrides, input, at)

	record := domain.CommissionRecord{
		ID:             l.genID.Generate(),
		OrderID:        orderID,
		PractitionerID: input.PractitionerID,
		RateBps:        rate,
		Amount:         commissionAmount(orderTotal, rate),
		Currency:       currency,
		Status:         domain.CommissionStatusPending,
		CreatedAt:      at,
		UpdatedAt:      at,
	}

	if err := l.repo.InsertRecord(ctx, tx, &record); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.CommissionRecord{}, domain.ErrRecordAlreadyExists
		}
		return domain.CommissionRecord{}, err
	}

	l.log.Info("commission recorded",
		zap.Int64("order_id", int64(orderID)),
		zap.Int64("rate_bps", rate),
		zap.Int64("amount", record.Amount),
	)
	return record, nil
}

func (l *ledger) CreateOverride(ctx context.Context, req domain.CreateOverrideRequest) (domain.CommissionOverride, error) {
	if req.RateBps < 0 || req.RateBps > 10000 {
		return domain.CommissionOverride{}, domain.ErrInvalidRate
	}
	if req.ItemID != nil && req.Category != nil {
		return domain.CommissionOverride{}, domain.ErrInvalidScope
	}
	if req.PractitionerID == nil && req.ItemID == nil && req.Category == nil {
		return domain.CommissionOverride{}, domain.ErrInvalidScope
	}
	if req.EffectiveUntil != nil && !req.EffectiveFrom.Before(*req.EffectiveUntil) {
		return domain.CommissionOverride{}, domain.ErrInvalidWindow
	}

	override := domain.CommissionOverride{
		ID:             l.genID.Generate(),
		PractitionerID: req.PractitionerID,
		ItemID:         req.ItemID,
		Category:       req.Category,
		RateBps:        req.RateBps,
		EffectiveFrom:  req.EffectiveFrom,
		EffectiveUntil: req.EffectiveUntil,
		CreatedAt:      l.clock.Now(),
	}
	if err := l.repo.InsertOverride(ctx, l.db, &override); err != nil {
		return domain.CommissionOverride{}, err
	}
	return override, nil
}

func (l *ledger) GetRecordByOrderID(ctx context.Context, orderID snowflake.ID) (domain.CommissionRecord, error) {
	record, err := l.repo.FindRecordByOrderID(ctx, l.db, orderID)
	if err != nil {
		return domain.CommissionRecord{}, err
	}
	if record == nil {
		return domain.CommissionRecord{}, domain.ErrRecordNotFound
	}
	return *record, nil
}

func (l *ledger) ListRecords(ctx context.Context, req domain.ListRecordsRequest) ([]domain.CommissionRecord, error) {
	rows, err := l.repo.ListRecords(ctx, l.db, req.PractitionerID, req.Status)
	if err != nil {
		return nil, err
	}
	records := make([]domain.CommissionRecord, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		records = append(records, *row)
	}
	return records, nil
}
