package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/praxialabs/praxia/internal/commission/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ResolverParams struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type resolver struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func NewResolver(p ResolverParams) domain.Resolver {
	return &resolver{
		db:   p.DB,
		log:  p.Log.Named("commission.resolver"),
		repo: p.Repo,
	}
}

// ResolveRate applies the most specific override active at the given
// time. Item-scoped overrides beat category-scoped ones, which beat
// practitioner-wide ones; within a tier the most recently effective
// override wins. With no override the practitioner default applies,
// then the catalog default.
func (r *resolver) ResolveRate(ctx context.Context, input domain.RateInput, at time.Time) (int64, error) {
	overrides, err := r.repo.FindActiveOverrides(ctx, r.db, input.PractitionerID, input.ItemIDs, input.Categories, at)
	if err != nil {
		return 0, err
	}

	return resolveRate(overrides, input, at), nil
}

// resolveRate applies overrides by tier and falls through to the
// defaults. Pure.
func resolveRate(overrides []*domain.CommissionOverride, input domain.RateInput, at time.Time) int64 {
	if rate, ok := pickOverride(overrides, input, at); ok {
		return rate
	}
	if input.PractitionerDefaultBps > 0 {
		return input.PractitionerDefaultBps
	}
	return input.CatalogDefaultBps
}

func pickOverride(overrides []*domain.CommissionOverride, input domain.RateInput, at time.Time) (int64, bool) {
	itemSet := make(map[snowflake.ID]struct{}, len(input.ItemIDs))
	for _, id := range input.ItemIDs {
		itemSet[id] = struct{}{}
	}
	categorySet := make(map[string]struct{}, len(input.Categories))
	for _, c := range input.Categories {
		categorySet[c] = struct{}{}
	}

	var itemHit, categoryHit, practitionerHit *domain.CommissionOverride
	for _, o := range overrides {
		if o == nil || !o.ActiveAt(at) {
			continue
		}
		switch {
		case o.ItemID != nil:
			if _, ok := itemSet[*o.ItemID]; ok && itemHit == nil {
				itemHit = o
			}
		case o.Category != nil:
			if _, ok := categorySet[*o.Category]; ok && categoryHit == nil {
				categoryHit = o
			}
		default:
			if practitionerHit == nil {
				practitionerHit = o
			}
		}
	}

	switch {
	case itemHit != nil:
		return itemHit.RateBps, true
	case categoryHit != nil:
		return categoryHit.RateBps, true
	case practitionerHit != nil:
		return practitionerHit.RateBps, true
	}
	return 0, false
}
