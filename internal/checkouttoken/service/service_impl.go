package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"

	"github.com/bwmarrin/snowflake"
	"github.com/praxialabs/praxia/internal/checkouttoken/domain"
	"github.com/praxialabs/praxia/internal/clock"
	"github.com/praxialabs/praxia/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Cfg   config.Config
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	cfg   config.Config
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("checkouttoken.service"),
		cfg:   p.Cfg,
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (s *Service) Issue(ctx context.Context, recommendationID snowflake.ID) (domain.IssuedToken, error) {
	raw, err := generateToken()
	if err != nil {
		return domain.IssuedToken{}, err
	}

	now := s.clock.Now()
	token := domain.CheckoutToken{
		ID:               s.genID.Generate(),
		RecommendationID: recommendationID,
		TokenHash:        domain.HashToken(raw),
		ExpiresAt:        now.Add(s.cfg.CheckoutTokenTTL),
		CreatedAt:        now,
	}
	if err := s.repo.Insert(ctx, s.db, &token); err != nil {
		return domain.IssuedToken{}, err
	}

	s.log.Info("checkout token issued",
		zap.Int64("recommendation_id", int64(recommendationID)),
		zap.Time("expires_at", token.ExpiresAt),
	)
	return domain.IssuedToken{Raw: raw, Token: token}, nil
}

func (s *Service) Validate(ctx context.Context, raw string) (domain.CheckoutToken, error) {
	token, err := s.repo.FindByHash(ctx, s.db, domain.HashToken(raw))
	if err != nil {
		return domain.CheckoutToken{}, err
	}
	if token == nil {
		return domain.CheckoutToken{}, domain.ErrTokenNotFound
	}
	if token.Expired(s.clock.Now()) {
		return domain.CheckoutToken{}, domain.ErrTokenExpired
	}
	if token.Used() {
		return domain.CheckoutToken{}, domain.ErrTokenAlreadyUsed
	}
	return *token, nil
}

func (s *Service) Consume(ctx context.Context, tx *gorm.DB, raw string) (domain.CheckoutToken, error) {
	hash := domain.HashToken(raw)
	now := s.clock.Now()

	ok, err := s.repo.Consume(ctx, tx, hash, now)
	if err != nil {
		return domain.CheckoutToken{}, err
	}
	if !ok {
		// Lost the race or never eligible; re-read to report why.
		token, err := s.repo.FindByHash(ctx, tx, hash)
		if err != nil {
			return domain.CheckoutToken{}, err
		}
		switch {
		case token == nil:
			return domain.CheckoutToken{}, domain.ErrTokenNotFound
		case token.Expired(now):
			return domain.CheckoutToken{}, domain.ErrTokenExpired
		default:
			return domain.CheckoutToken{}, domain.ErrTokenAlreadyUsed
		}
	}

	token, err := s.repo.FindByHash(ctx, tx, hash)
	if err != nil {
		return domain.CheckoutToken{}, err
	}
	if token == nil {
		return domain.CheckoutToken{}, domain.ErrTokenNotFound
	}
	return *token, nil
}
