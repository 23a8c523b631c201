package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	catalogdomain "github.com/praxialabs/praxia/internal/catalog/domain"
	catalogrepository "github.com/praxialabs/praxia/internal/catalog/repository"
	catalogservice "github.com/praxialabs/praxia/internal/catalog/service"
	checkouttokendomain "github.com/praxialabs/praxia/internal/checkouttoken/domain"
	checkouttokenrepository "github.com/praxialabs/praxia/internal/checkouttoken/repository"
	checkouttokenservice "github.com/praxialabs/praxia/internal/checkouttoken/service"
	"github.com/praxialabs/praxia/internal/clock"
	commissiondomain "github.com/praxialabs/praxia/internal/commission/domain"
	commissionrepository "github.com/praxialabs/praxia/internal/commission/repository"
	commissionservice "github.com/praxialabs/praxia/internal/commission/service"
	"github.com/praxialabs/praxia/internal/config"
	notificationdomain "github.com/praxialabs/praxia/internal/notification/domain"
	"github.com/praxialabs/praxia/internal/observability/metrics"
	orderdomain "github.com/praxialabs/praxia/internal/order/domain"
	orderrepository "github.com/praxialabs/praxia/internal/order/repository"
	orderservice "github.com/praxialabs/praxia/internal/order/service"
	patientdomain "github.com/praxialabs/praxia/internal/patient/domain"
	patientrepository "github.com/praxialabs/praxia/internal/patient/repository"
	patientservice "github.com/praxialabs/praxia/internal/patient/service"
	"github.com/praxialabs/praxia/internal/payment/adapters"
	"github.com/praxialabs/praxia/internal/payment/adapters/opn"
	"github.com/praxialabs/praxia/internal/payment/adapters/stripe"
	"github.com/praxialabs/praxia/internal/payment/domain"
	"github.com/praxialabs/praxia/internal/payment/repository"
	recommendationdomain "github.com/praxialabs/praxia/internal/recommendation/domain"
	recommendationrepository "github.com/praxialabs/praxia/internal/recommendation/repository"
	recommendationservice "github.com/praxialabs/praxia/internal/recommendation/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const webhookSecret = "whsec_test"

type dispatcherStub struct{}

func (dispatcherStub) Dispatch(ctx context.Context, req notificationdomain.DispatchRequest) (notificationdomain.DispatchResult, error) {
	return notificationdomain.DispatchResult{Success: true}, nil
}

func (dispatcherStub) NotifyPatient(ctx context.Context, patientID snowflake.ID, channels []string, message string) (notificationdomain.DispatchResult, error) {
	return notificationdomain.DispatchResult{Success: true}, nil
}

type paymentFixture struct {
	payments domain.Service
	orders   orderdomain.Service
	recs     recommendationdomain.Service
	tokens   checkouttokendomain.Service
	db       *gorm.DB
	node     *snowflake.Node
	clk      *clock.FakeClock
}

func setupPaymentService(t *testing.T) *paymentFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error

	if err := db.AutoMigrate(
		&catalogdomain.Item{},
		&patientdomain.Practitioner{},
		&patientdomain.Patient{},
		&recommendationdomain.Recommendation{},
		&recommendationdomain.RecommendationItem{},
		&checkouttokendomain.CheckoutToken{},
		&commissiondomain.CommissionOverride{},
		&commissiondomain.CommissionRecord{},
		&orderdomain.Order{},
		&domain.EventRecord{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	cfg := config.Config{
		PublicBaseURL:    "https://shop.praxia.test",
		CheckoutTokenTTL: 24 * time.Hour,
		Payment: config.PaymentConfig{
			Provider:      "stripe",
			SecretKey:     "sk_test",
			WebhookSecret: webhookSecret,
		},
	}

	catalogSvc := catalogservice.New(catalogservice.Params{
		DB: db, Log: zap.NewNop(), Repo: catalogrepository.Provide(),
	})
	recSvc := recommendationservice.New(recommendationservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk,
		Repo: recommendationrepository.Provide(), Catalog: catalogSvc,
	})
	patientSvc := patientservice.New(patientservice.Params{
		DB: db, Repo: patientrepository.Provide(),
	})
	tokenSvc := checkouttokenservice.New(checkouttokenservice.Params{
		DB: db, Log: zap.NewNop(), Cfg: cfg, GenID: node, Clock: clk,
		Repo: checkouttokenrepository.Provide(),
	})
	ledger := commissionservice.NewLedger(commissionservice.LedgerParams{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk,
		Repo: commissionrepository.Provide(),
	})
	orderSvc := orderservice.New(orderservice.Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clk,
		Metrics:     metrics.NewNop(),
		Fulfillment: config.NewStaticFulfillmentConfigHolder(config.DefaultFulfillmentConfig()),
		Repo:        orderrepository.Provide(),
		Tokens:      tokenSvc,
		Recs:        recSvc,
		Patients:    patientSvc,
		Catalog:     catalogSvc,
		Commission:  ledger,
		Dispatcher:  dispatcherStub{},
	})

	payments := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Cfg:      cfg,
		GenID:    node,
		Clock:    clk,
		Metrics:  metrics.NewNop(),
		Repo:     repository.Provide(),
		Registry: adapters.NewRegistry(stripe.NewFactory(), opn.NewFactory()),
		Orders:   orderSvc,
	})

	return &paymentFixture{
		payments: payments,
		orders:   orderSvc,
		recs:     recSvc,
		tokens:   tokenSvc,
		db:       db,
		node:     node,
		clk:      clk,
	}
}

// seedFlow builds a sent recommendation with a live checkout token.
func (f *paymentFixture) seedFlow(t *testing.T) (recommendationdomain.Recommendation, string) {
	t.Helper()
	ctx := context.Background()

	practitioner := patientdomain.Practitioner{
		ID:                       f.node.Generate(),
		Name:                     "Dr. Ploy",
		DefaultCommissionRateBps: 500,
	}
	require.NoError(t, f.db.Create(&practitioner).Error)

	patient := patientdomain.Patient{
		ID:             f.node.Generate(),
		PractitionerID: practitioner.ID,
		Name:           "Somsak",
		Email:          "somsak@example.com",
		EmailConsent:   true,
	}
	require.NoError(t, f.db.Create(&patient).Error)

	item := catalogdomain.Item{
		ID:                f.node.Generate(),
		SKU:               fmt.Sprintf("SKU-%d", f.node.Generate()),
		Name:              "fish oil",
		Category:          "supplements",
		UnitPrice:         100,
		Currency:          "THB",
		CommissionRateBps: 300,
		StockQuantity:     10,
		Active:            true,
	}
	require.NoError(t, f.db.Create(&item).Error)

	rec, err := f.recs.Create(ctx, recommendationdomain.CreateRequest{
		PractitionerID: practitioner.ID,
		PatientID:      patient.ID,
		Title:          "post-consult plan",
		Items:          []recommendationdomain.ItemInput{{ItemID: item.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	require.NoError(t, f.recs.MarkSent(ctx, rec.ID, []string{"email"}))

	issued, err := f.tokens.Issue(ctx, rec.ID)
	require.NoError(t, err)
	return rec, issued.Raw
}

func stripePayload(eventID, eventType, token string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"type": %q,
		"created": 1770000000,
		"data": {"object": {
			"id": "cs_test_1",
			"amount_total": 200,
			"currency": "thb",
			"metadata": {
				"checkout_token": %q,
				"payment_method": "card",
				"shipping_address": "99/1 Sukhumvit 55",
				"shipping_city": "Bangkok",
				"shipping_postal_code": "10110",
				"shipping_phone": "+66812345678"
			}
		}}
	}`, eventID, eventType, token))
}

func stripeHeaders(payload []byte) http.Header {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte("1770000000." + string(payload)))
	h := http.Header{}
	h.Set("Stripe-Signature", fmt.Sprintf("t=1770000000,v1=%s", hex.EncodeToString(mac.Sum(nil))))
	return h
}

func TestHandleWebhookCreatesPaidOrder(t *testing.T) {
	f := setupPaymentService(t)
	ctx := context.Background()
	rec, token := f.seedFlow(t)

	payload := stripePayload("evt_1", "checkout.session.completed", token)
	require.NoError(t, f.payments.HandleWebhook(ctx, "stripe", payload, stripeHeaders(payload)))

	orders, err := f.orders.List(ctx, orderdomain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, rec.ID, orders[0].RecommendationID)
	assert.Equal(t, orderdomain.PaymentStatusPaid, orders[0].PaymentStatus)
	assert.Equal(t, orderdomain.PaymentMethodCard, orders[0].PaymentMethod)
	assert.Equal(t, "Bangkok", orders[0].ShippingCity)

	got, err := f.recs.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, recommendationdomain.StatusPaid, got.Status)

	var event domain.EventRecord
	require.NoError(t, f.db.Where("provider_event_id = ?", "evt_1").Take(&event).Error)
	assert.NotNil(t, event.ProcessedAt)
	assert.Equal(t, domain.EventTypePaymentSucceeded, event.EventType)
}

func TestHandleWebhookDuplicateEvent(t *testing.T) {
	f := setupPaymentService(t)
	ctx := context.Background()
	_, token := f.seedFlow(t)

	payload := stripePayload("evt_dup", "checkout.session.completed", token)
	require.NoError(t, f.payments.HandleWebhook(ctx, "stripe", payload, stripeHeaders(payload)))

	err := f.payments.HandleWebhook(ctx, "stripe", payload, stripeHeaders(payload))
	assert.ErrorIs(t, err, domain.ErrEventAlreadyProcessed)

	orders, err := f.orders.List(ctx, orderdomain.ListRequest{})
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestHandleWebhookRedeliveryAfterTokenConsumed(t *testing.T) {
	f := setupPaymentService(t)
	ctx := context.Background()
	_, token := f.seedFlow(t)

	first := stripePayload("evt_a", "checkout.session.completed", token)
	require.NoError(t, f.payments.HandleWebhook(ctx, "stripe", first, stripeHeaders(first)))

	// Same session redelivered under a fresh event id settles quietly.
	second := stripePayload("evt_b", "checkout.session.completed", token)
	require.NoError(t, f.payments.HandleWebhook(ctx, "stripe", second, stripeHeaders(second)))

	orders, err := f.orders.List(ctx, orderdomain.ListRequest{})
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	f := setupPaymentService(t)
	ctx := context.Background()
	_, token := f.seedFlow(t)

	payload := stripePayload("evt_bad", "checkout.session.completed", token)
	headers := http.Header{}
	headers.Set("Stripe-Signature", "t=1770000000,v1=deadbeef")

	err := f.payments.HandleWebhook(ctx, "stripe", payload, headers)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	var count int64
	require.NoError(t, f.db.Model(&domain.EventRecord{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestHandleWebhookIgnoresUnrelatedEvent(t *testing.T) {
	f := setupPaymentService(t)
	ctx := context.Background()

	payload := []byte(`{"id": "evt_other", "type": "customer.created"}`)
	err := f.payments.HandleWebhook(ctx, "stripe", payload, stripeHeaders(payload))
	assert.ErrorIs(t, err, domain.ErrEventIgnored)
}

func TestHandleWebhookUnknownProvider(t *testing.T) {
	f := setupPaymentService(t)

	err := f.payments.HandleWebhook(context.Background(), "paypal", []byte(`{}`), http.Header{})
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
}

func TestHandleWebhookFailedPaymentLeavesTokenLive(t *testing.T) {
	f := setupPaymentService(t)
	ctx := context.Background()
	_, token := f.seedFlow(t)

	payload := stripePayload("evt_fail", "checkout.session.async_payment_failed", token)
	require.NoError(t, f.payments.HandleWebhook(ctx, "stripe", payload, stripeHeaders(payload)))

	// A failed payment must not burn the token; the patient can retry.
	_, err := f.tokens.Validate(ctx, token)
	require.NoError(t, err)

	orders, err := f.orders.List(ctx, orderdomain.ListRequest{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}
