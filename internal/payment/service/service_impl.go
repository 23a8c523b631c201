package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	checkouttokendomain "github.com/praxialabs/praxia/internal/checkouttoken/domain"
	"github.com/praxialabs/praxia/internal/clock"
	"github.com/praxialabs/praxia/internal/config"
	"github.com/praxialabs/praxia/internal/observability/metrics"
	orderdomain "github.com/praxialabs/praxia/internal/order/domain"
	"github.com/praxialabs/praxia/internal/payment/adapters"
	paymentdomain "github.com/praxialabs/praxia/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Cfg      config.Config
	GenID    *snowflake.Node
	Clock    clock.Clock
	Metrics  *metrics.Metrics
	Repo     paymentdomain.Repository
	Registry *adapters.Registry
	Orders   orderdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	cfg      config.Config
	genID    *snowflake.Node
	clock    clock.Clock
	metrics  *metrics.Metrics
	repo     paymentdomain.Repository
	registry *adapters.Registry
	orders   orderdomain.Service
}

func New(p Params) paymentdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("payment.service"),
		cfg:      p.Cfg,
		genID:    p.GenID,
		clock:    p.Clock,
		metrics:  p.Metrics,
		repo:     p.Repo,
		registry: p.Registry,
		orders:   p.Orders,
	}
}

func (s *Service) adapterFor(provider string) (paymentdomain.PaymentAdapter, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider != s.cfg.Payment.Provider {
		return nil, paymentdomain.ErrProviderNotFound
	}
	return s.registry.NewAdapter(provider, paymentdomain.AdapterConfig{
		SecretKey:     s.cfg.Payment.SecretKey,
		WebhookSecret: s.cfg.Payment.WebhookSecret,
		SessionURL:    s.cfg.Payment.SessionURL,
	})
}

func (s *Service) CreateCheckoutSession(ctx context.Context, req paymentdomain.CreateSessionRequest) (paymentdomain.CheckoutSession, error) {
	adapter, err := s.adapterFor(s.cfg.Payment.Provider)
	if err != nil {
		return paymentdomain.CheckoutSession{}, err
	}

	if req.SuccessURL == "" {
		req.SuccessURL = s.cfg.PublicBaseURL + "/checkout/complete"
	}
	if req.CancelURL == "" {
		req.CancelURL = s.cfg.PublicBaseURL + "/checkout/" + req.CheckoutToken
	}

	session, err := adapter.CreateSession(ctx, req)
	if err != nil {
		return paymentdomain.CheckoutSession{}, &paymentdomain.PaymentError{
			Provider: s.cfg.Payment.Provider,
			Err:      err,
		}
	}

	s.log.Info("checkout session created",
		zap.String("provider", s.cfg.Payment.Provider),
		zap.String("session_id", session.SessionID),
	)
	return session, nil
}

func (s *Service) HandleWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	adapter, err := s.adapterFor(provider)
	if err != nil {
		return err
	}
	if err := adapter.Verify(ctx, payload, headers); err != nil {
		return err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		return err
	}
	return s.processEvent(ctx, event, payload)
}

func (s *Service) processEvent(ctx context.Context, event *paymentdomain.PaymentEvent, payload []byte) error {
	if event == nil || strings.TrimSpace(event.ProviderEventID) == "" {
		return paymentdomain.ErrInvalidEvent
	}
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}

	now := s.clock.Now()
	record := paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      now,
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, &record)
	if err != nil {
		return err
	}
	stored := &record
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, event.Provider, event.ProviderEventID)
		if err != nil {
			return err
		}
		if stored == nil {
			return paymentdomain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			return paymentdomain.ErrEventAlreadyProcessed
		}
	}

	s.metrics.RecordPaymentEvent(event.Provider, event.Type)

	switch event.Type {
	case paymentdomain.EventTypePaymentSucceeded:
		if err := s.settlePayment(ctx, event); err != nil {
			return err
		}
	case paymentdomain.EventTypePaymentFailed:
		s.log.Warn("payment failed",
			zap.String("provider", event.Provider),
			zap.String("provider_event_id", event.ProviderEventID),
		)
	default:
		return paymentdomain.ErrInvalidEvent
	}

	return s.repo.MarkProcessed(ctx, s.db, stored.ID, now)
}

// settlePayment creates the order the patient described at session
// creation. A token already consumed by an earlier delivery means the
// order exists; that redelivery is settled, not an error.
func (s *Service) settlePayment(ctx context.Context, event *paymentdomain.PaymentEvent) error {
	if strings.TrimSpace(event.CheckoutToken) == "" {
		return paymentdomain.ErrInvalidEvent
	}

	method := event.PaymentMethod
	if method == "" {
		method = orderdomain.PaymentMethodCard
	}

	order, err := s.orders.CreateFromToken(ctx, orderdomain.CreateFromTokenRequest{
		Token: event.CheckoutToken,
		Shipping: orderdomain.ShippingInfo{
			Address:    event.Shipping.Address,
			City:       event.Shipping.City,
			PostalCode: event.Shipping.PostalCode,
			Phone:      event.Shipping.Phone,
		},
		PaymentMethod: method,
		Paid:          true,
	})
	if err != nil {
		if errors.Is(err, checkouttokendomain.ErrTokenAlreadyUsed) {
			s.log.Warn("token already consumed, treating delivery as settled",
				zap.String("provider_event_id", event.ProviderEventID),
			)
			return nil
		}
		return err
	}

	s.log.Info("order created from payment webhook",
		zap.Int64("order_id", int64(order.ID)),
		zap.String("provider", event.Provider),
	)
	return nil
}
