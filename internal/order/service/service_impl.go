package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/praxialabs/praxia/internal/catalog/domain"
	checkouttokendomain "github.com/praxialabs/praxia/internal/checkouttoken/domain"
	"github.com/praxialabs/praxia/internal/clock"
	commissiondomain "github.com/praxialabs/praxia/internal/commission/domain"
	"github.com/praxialabs/praxia/internal/config"
	notificationdomain "github.com/praxialabs/praxia/internal/notification/domain"
	"github.com/praxialabs/praxia/internal/observability/metrics"
	"github.com/praxialabs/praxia/internal/order/domain"
	patientdomain "github.com/praxialabs/praxia/internal/patient/domain"
	recommendationdomain "github.com/praxialabs/praxia/internal/recommendation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Metrics     *metrics.Metrics
	Fulfillment *config.FulfillmentConfigHolder
	Repo        domain.Repository
	Tokens      checkouttokendomain.Service
	Recs        recommendationdomain.Service
	Patients    patientdomain.Service
	Catalog     catalogdomain.Service
	Commission  commissiondomain.Ledger
	Dispatcher  notificationdomain.Dispatcher
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	metrics     *metrics.Metrics
	fulfillment *config.FulfillmentConfigHolder
	repo        domain.Repository
	tokens      checkouttokendomain.Service
	recs        recommendationdomain.Service
	patients    patientdomain.Service
	catalog     catalogdomain.Service
	commission  commissiondomain.Ledger
	dispatcher  notificationdomain.Dispatcher
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("order.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		metrics:     p.Metrics,
		fulfillment: p.Fulfillment,
		repo:        p.Repo,
		tokens:      p.Tokens,
		recs:        p.Recs,
		patients:    p.Patients,
		catalog:     p.Catalog,
		commission:  p.Commission,
		dispatcher:  p.Dispatcher,
	}
}

func validatePaymentMethod(method string) error {
	switch method {
	case domain.PaymentMethodPayOnDelivery, domain.PaymentMethodCard, domain.PaymentMethodQR:
		return nil
	}
	return domain.ErrInvalidPayment
}

func validateShipping(s domain.ShippingInfo) error {
	if strings.TrimSpace(s.Address) == "" ||
		strings.TrimSpace(s.City) == "" ||
		strings.TrimSpace(s.PostalCode) == "" ||
		strings.TrimSpace(s.Phone) == "" {
		return domain.ErrMissingShippingInfo
	}
	return nil
}

// dominantItemRate picks the catalog-level fallback rate from the line
// with the largest subtotal; ties break on the lower item id.
func dominantItemRate(items []recommendationdomain.RecommendationItem, catalogItems map[snowflake.ID]catalogdomain.Item) int64 {
	var bestSubtotal int64 = -1
	var bestID snowflake.ID
	var rate int64
	for _, line := range items {
		subtotal := line.Quantity * line.UnitPrice
		if subtotal > bestSubtotal || (subtotal == bestSubtotal && line.ItemID < bestID) {
			bestSubtotal = subtotal
			bestID = line.ItemID
			rate = catalogItems[line.ItemID].CommissionRateBps
		}
	}
	return rate
}

func (s *Service) CreateFromToken(ctx context.Context, req domain.CreateFromTokenRequest) (domain.Order, error) {
	if err := validatePaymentMethod(req.PaymentMethod); err != nil {
		return domain.Order{}, err
	}
	if err := validateShipping(req.Shipping); err != nil {
		return domain.Order{}, err
	}

	// Non-consuming read first: typed token errors surface before the
	// transaction opens, and the recommendation's composition is
	// immutable once sent, so these loads are safe outside it.
	token, err := s.tokens.Validate(ctx, req.Token)
	if err != nil {
		s.metrics.RecordTokenConsume("rejected")
		return domain.Order{}, err
	}
	rec, err := s.recs.GetByID(ctx, token.RecommendationID)
	if err != nil {
		return domain.Order{}, err
	}
	patient, err := s.patients.GetPatient(ctx, rec.PatientID)
	if err != nil {
		return domain.Order{}, err
	}
	practitioner, err := s.patients.GetPractitioner(ctx, rec.PractitionerID)
	if err != nil {
		return domain.Order{}, err
	}

	itemIDs := make([]snowflake.ID, 0, len(rec.Items))
	stockRequests := make([]catalogdomain.StockRequest, 0, len(rec.Items))
	for _, line := range rec.Items {
		itemIDs = append(itemIDs, line.ItemID)
		stockRequests = append(stockRequests, catalogdomain.StockRequest{
			ItemID:   line.ItemID,
			Quantity: line.Quantity,
		})
	}
	catalogItems, err := s.catalog.GetByIDs(ctx, itemIDs)
	if err != nil {
		return domain.Order{}, err
	}
	categories := make([]string, 0, len(catalogItems))
	for _, item := range catalogItems {
		categories = append(categories, item.Category)
	}

	now := s.clock.Now()
	paymentStatus := domain.PaymentStatusUnpaid
	recTarget := recommendationdomain.StatusPaymentPending
	if req.Paid {
		paymentStatus = domain.PaymentStatusPaid
		recTarget = recommendationdomain.StatusPaid
	}

	order := domain.Order{
		ID:                 s.genID.Generate(),
		RecommendationID:   rec.ID,
		PatientID:          patient.ID,
		PractitionerID:     practitioner.ID,
		Status:             domain.StatusPending,
		PaymentStatus:      paymentStatus,
		PaymentMethod:      req.PaymentMethod,
		ShippingAddress:    req.Shipping.Address,
		ShippingCity:       req.Shipping.City,
		ShippingPostalCode: req.Shipping.PostalCode,
		ShippingPhone:      req.Shipping.Phone,
		TotalAmount:        rec.TotalCost,
		Currency:           rec.Currency,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The consume is the only hard concurrency gate: exactly one
		// caller wins the conditional update. Everything after rides
		// on the same transaction, so a stock shortage rolls back the
		// consume and leaves the token live.
		consumed, err := s.tokens.Consume(ctx, tx, req.Token)
		if err != nil {
			return err
		}
		order.CheckoutTokenID = consumed.ID

		if err := s.catalog.ReserveStock(ctx, tx, stockRequests); err != nil {
			return err
		}
		if err := s.repo.Insert(ctx, tx, &order); err != nil {
			return err
		}
		// A second live token can create another order after the
		// recommendation has already advanced; that is not an error.
		if err := s.recs.AdvanceStatus(ctx, tx, rec.ID, recTarget); err != nil &&
			err != recommendationdomain.ErrInvalidTransition {
			return err
		}

		_, err = s.commission.RecordForOrder(ctx, tx, order.ID, order.TotalAmount, order.Currency, commissiondomain.RateInput{
			PractitionerID:         practitioner.ID,
			ItemIDs:                itemIDs,
			Categories:             categories,
			PractitionerDefaultBps: practitioner.DefaultCommissionRateBps,
			CatalogDefaultBps:      dominantItemRate(rec.Items, catalogItems),
		}, now)
		return err
	})
	if err != nil {
		s.metrics.RecordTokenConsume("rolled_back")
		return domain.Order{}, err
	}

	s.metrics.RecordTokenConsume("ok")
	s.metrics.RecordOrderCreated(req.PaymentMethod)
	s.log.Info("order created",
		zap.Int64("order_id", int64(order.ID)),
		zap.Int64("recommendation_id", int64(rec.ID)),
		zap.String("payment_method", req.PaymentMethod),
		zap.Int64("total_amount", order.TotalAmount),
	)
	return order, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Order, error) {
	order, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Order{}, err
	}
	if order == nil {
		return domain.Order{}, domain.ErrNotFound
	}
	return *order, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Order, error) {
	rows, err := s.repo.List(ctx, s.db, req.PractitionerID, req.Status)
	if err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		orders = append(orders, *row)
	}
	return orders, nil
}

func (s *Service) UpdateStatus(ctx context.Context, req domain.UpdateStatusRequest) (domain.Order, error) {
	order, err := s.repo.FindByID(ctx, s.db, req.ID)
	if err != nil {
		return domain.Order{}, err
	}
	if order == nil {
		return domain.Order{}, domain.ErrNotFound
	}

	now := s.clock.Now()

	if req.CourierName != nil {
		order.CourierName = *req.CourierName
	}
	if req.TrackingNumber != nil {
		order.TrackingNumber = *req.TrackingNumber
	}
	if req.ShippedAt != nil {
		order.ShippedAt = req.ShippedAt
	}
	if req.EstimatedDeliveryDate != nil {
		order.EstimatedDeliveryDate = req.EstimatedDeliveryDate
	}
	if req.ActualDeliveryDate != nil {
		order.ActualDeliveryDate = req.ActualDeliveryDate
	}
	if req.ShipmentWeightGrams != nil {
		order.ShipmentWeightGrams = req.ShipmentWeightGrams
	}
	if req.Notes != nil {
		order.Notes = *req.Notes
	}

	if req.Status != nil {
		next := *req.Status
		if !next.Valid() || !order.Status.CanTransitionTo(next) {
			return domain.Order{}, domain.ErrInvalidTransition
		}
		switch next {
		case domain.StatusShipped:
			if order.CourierName == "" || order.TrackingNumber == "" {
				return domain.Order{}, domain.ErrCourierRequired
			}
			if order.ShippedAt == nil {
				order.ShippedAt = &now
			}
			s.applyCourierDefaults(order)
		case domain.StatusDelivered:
			if order.ActualDeliveryDate == nil {
				order.ActualDeliveryDate = &now
			}
		}
		order.Status = next
	}

	order.UpdatedAt = now
	if err := s.repo.Update(ctx, s.db, order); err != nil {
		return domain.Order{}, err
	}

	if req.Status != nil {
		s.syncRecommendation(ctx, order)
	}
	if req.NotifyPatient {
		s.notifyStatus(ctx, order)
	}
	return *order, nil
}

// applyCourierDefaults derives the ETA and tracking link from the
// hot-reloadable courier table.
func (s *Service) applyCourierDefaults(order *domain.Order) {
	cfg := s.fulfillment.Get()
	courier, ok := cfg.Courier(order.CourierName)

	if order.EstimatedDeliveryDate == nil && order.ShippedAt != nil {
		days := cfg.DefaultTransitDays
		if ok && courier.TransitDays > 0 {
			days = courier.TransitDays
		}
		eta := order.ShippedAt.AddDate(0, 0, days)
		order.EstimatedDeliveryDate = &eta
	}
	if order.CourierTrackingURL == "" && ok && courier.TrackingURL != "" {
		order.CourierTrackingURL = fmt.Sprintf(courier.TrackingURL, order.TrackingNumber)
	}
}

// syncRecommendation mirrors shipped and delivered onto the
// recommendation's own lifecycle. Best effort: a recommendation that
// is already further along is left alone.
func (s *Service) syncRecommendation(ctx context.Context, order *domain.Order) {
	var target recommendationdomain.Status
	switch order.Status {
	case domain.StatusShipped:
		target = recommendationdomain.StatusShipped
	case domain.StatusDelivered:
		target = recommendationdomain.StatusDelivered
	default:
		return
	}
	if err := s.recs.AdvanceStatus(ctx, s.db, order.RecommendationID, target); err != nil &&
		err != recommendationdomain.ErrInvalidTransition {
		s.log.Warn("recommendation status sync failed",
			zap.Int64("order_id", int64(order.ID)),
			zap.Error(err),
		)
	}
}

func (s *Service) notifyStatus(ctx context.Context, order *domain.Order) {
	rec, err := s.recs.GetByID(ctx, order.RecommendationID)
	if err != nil {
		s.log.Warn("load recommendation for notify failed", zap.Error(err))
		return
	}
	channels := rec.Channels()
	if len(channels) == 0 {
		return
	}

	message := statusMessage(*order)
	if _, err := s.dispatcher.NotifyPatient(ctx, order.PatientID, channels, message); err != nil {
		s.log.Warn("order status notification failed",
			zap.Int64("order_id", int64(order.ID)),
			zap.Error(err),
		)
	}
}

func statusMessage(order domain.Order) string {
	switch order.Status {
	case domain.StatusProcessing:
		return "Your order is being prepared."
	case domain.StatusShipped:
		msg := fmt.Sprintf("Your order has shipped with %s (tracking %s).", order.CourierName, order.TrackingNumber)
		if order.EstimatedDeliveryDate != nil {
			msg += fmt.Sprintf(" Estimated delivery: %s.", order.EstimatedDeliveryDate.Format("2 Jan 2006"))
		}
		if order.CourierTrackingURL != "" {
			msg += "\nTrack it here: " + order.CourierTrackingURL
		}
		return msg
	case domain.StatusDelivered:
		return "Your order has been delivered."
	case domain.StatusCancelled:
		return "Your order has been cancelled."
	}
	return fmt.Sprintf("Your order status is now %s.", order.Status)
}

func (s *Service) MarkPaid(ctx context.Context, id snowflake.ID) error {
	order, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if order == nil {
		return domain.ErrNotFound
	}
	if order.PaymentStatus == domain.PaymentStatusPaid {
		return nil
	}
	if err := s.repo.UpdatePaymentStatus(ctx, s.db, id, domain.PaymentStatusPaid); err != nil {
		return err
	}
	if err := s.recs.AdvanceStatus(ctx, s.db, order.RecommendationID, recommendationdomain.StatusPaid); err != nil &&
		err != recommendationdomain.ErrInvalidTransition {
		return err
	}
	return nil
}

func (s *Service) Timeline(ctx context.Context, id snowflake.ID) ([]domain.TimelineStep, error) {
	order, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return domain.Timeline(order), nil
}
