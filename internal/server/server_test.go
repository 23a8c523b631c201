package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
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
	paymentdomain "github.com/praxialabs/praxia/internal/payment/domain"
	paymentrepository "github.com/praxialabs/praxia/internal/payment/repository"
	paymentservice "github.com/praxialabs/praxia/internal/payment/service"
	recommendationdomain "github.com/praxialabs/praxia/internal/recommendation/domain"
	recommendationrepository "github.com/praxialabs/praxia/internal/recommendation/repository"
	recommendationservice "github.com/praxialabs/praxia/internal/recommendation/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeDispatcher struct {
	dispatched []notificationdomain.DispatchRequest
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, req notificationdomain.DispatchRequest) (notificationdomain.DispatchResult, error) {
	f.dispatched = append(f.dispatched, req)
	return notificationdomain.DispatchResult{Success: true}, nil
}

func (f *fakeDispatcher) NotifyPatient(ctx context.Context, patientID snowflake.ID, channels []string, message string) (notificationdomain.DispatchResult, error) {
	return notificationdomain.DispatchResult{Success: true}, nil
}

type serverFixture struct {
	server     *Server
	recs       recommendationdomain.Service
	tokens     checkouttokendomain.Service
	orders     orderdomain.Service
	dispatcher *fakeDispatcher
	db         *gorm.DB
	node       *snowflake.Node
	clk        *clock.FakeClock
}

func setupServer(t *testing.T) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

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
		&paymentdomain.EventRecord{},
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
			WebhookSecret: "whsec_test",
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
	dispatcher := &fakeDispatcher{}
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
		Dispatcher:  dispatcher,
	})
	paymentSvc := paymentservice.New(paymentservice.Params{
		DB: db, Log: zap.NewNop(), Cfg: cfg, GenID: node, Clock: clk,
		Metrics:  metrics.NewNop(),
		Repo:     paymentrepository.Provide(),
		Registry: adapters.NewRegistry(stripe.NewFactory(), opn.NewFactory()),
		Orders:   orderSvc,
	})

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	srv := NewServer(ServerParams{
		Gin:           engine,
		Cfg:           cfg,
		DB:            db,
		GenID:         node,
		CatalogSvc:    catalogSvc,
		PatientSvc:    patientSvc,
		RecSvc:        recSvc,
		TokenSvc:      tokenSvc,
		Dispatcher:    dispatcher,
		OrderSvc:      orderSvc,
		CommissionSvc: ledger,
		PaymentSvc:    paymentSvc,
	})

	return &serverFixture{
		server:     srv,
		recs:       recSvc,
		tokens:     tokenSvc,
		orders:     orderSvc,
		dispatcher: dispatcher,
		db:         db,
		node:       node,
		clk:        clk,
	}
}

func (f *serverFixture) seed(t *testing.T) (recommendationdomain.Recommendation, string) {
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

func (f *serverFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.server.Engine().ServeHTTP(w, req)
	return w
}

func TestGetCheckout(t *testing.T) {
	f := setupServer(t)
	_, token := f.seed(t)

	w := f.do(http.MethodGet, "/checkout/"+token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			PractitionerName string `json:"practitioner_name"`
			TotalCost        int64  `json:"total_cost"`
			Currency         string `json:"currency"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Dr. Ploy", resp.Data.PractitionerName)
	assert.Equal(t, int64(200), resp.Data.TotalCost)
	assert.Equal(t, "THB", resp.Data.Currency)
}

func TestGetCheckoutExpired(t *testing.T) {
	f := setupServer(t)
	_, token := f.seed(t)

	f.clk.Advance(25 * time.Hour)

	w := f.do(http.MethodGet, "/checkout/"+token, nil)
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestGetCheckoutUnknownToken(t *testing.T) {
	f := setupServer(t)

	w := f.do(http.MethodGet, "/checkout/bogus", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitCheckoutPayOnDelivery(t *testing.T) {
	f := setupServer(t)
	_, token := f.seed(t)

	w := f.do(http.MethodPost, "/checkout/"+token, gin.H{
		"payment_method": "pay_on_delivery",
		"shipping": gin.H{
			"address":     "99/1 Sukhumvit 55",
			"city":        "Bangkok",
			"postal_code": "10110",
			"phone":       "+66812345678",
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Token is burned; the second submit conflicts.
	w = f.do(http.MethodPost, "/checkout/"+token, gin.H{
		"payment_method": "pay_on_delivery",
		"shipping": gin.H{
			"address":     "99/1 Sukhumvit 55",
			"city":        "Bangkok",
			"postal_code": "10110",
			"phone":       "+66812345678",
		},
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSubmitCheckoutRejectsUnknownMethod(t *testing.T) {
	f := setupServer(t)
	_, token := f.seed(t)

	w := f.do(http.MethodPost, "/checkout/"+token, gin.H{
		"payment_method": "cheque",
		"shipping": gin.H{
			"address":     "99/1 Sukhumvit 55",
			"city":        "Bangkok",
			"postal_code": "10110",
			"phone":       "+66812345678",
		},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendRecommendationRoute(t *testing.T) {
	f := setupServer(t)
	rec, _ := f.seed(t)

	w := f.do(http.MethodPost, fmt.Sprintf("/api/recommendations/%s/send", rec.ID), gin.H{
		"channels": []string{"email"},
		"resend":   true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, f.dispatcher.dispatched, 1)
	assert.Equal(t, rec.ID, f.dispatcher.dispatched[0].RecommendationID)
	assert.True(t, f.dispatcher.dispatched[0].Resend)
}

func TestUpdateOrderStatusRoute(t *testing.T) {
	f := setupServer(t)
	_, token := f.seed(t)

	order, err := f.orders.CreateFromToken(context.Background(), orderdomain.CreateFromTokenRequest{
		Token: token,
		Shipping: orderdomain.ShippingInfo{
			Address:    "99/1 Sukhumvit 55",
			City:       "Bangkok",
			PostalCode: "10110",
			Phone:      "+66812345678",
		},
		PaymentMethod: orderdomain.PaymentMethodPayOnDelivery,
	})
	require.NoError(t, err)

	w := f.do(http.MethodPatch, fmt.Sprintf("/api/orders/%s/status", order.ID), gin.H{
		"status": "processing",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Backward move is rejected.
	w = f.do(http.MethodPatch, fmt.Sprintf("/api/orders/%s/status", order.ID), gin.H{
		"status": "pending",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(http.MethodPatch, fmt.Sprintf("/api/orders/%s/status", order.ID), gin.H{
		"status": "teleported",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetOrderNotFound(t *testing.T) {
	f := setupServer(t)

	w := f.do(http.MethodGet, fmt.Sprintf("/api/orders/%d", f.node.Generate()), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhookBadSignature(t *testing.T) {
	f := setupServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhooks/stripe", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Stripe-Signature", "t=1,v1=bad")
	w := httptest.NewRecorder()
	f.server.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
