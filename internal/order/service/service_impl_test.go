package service

import (
	"context"
	"fmt"
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
	"github.com/praxialabs/praxia/internal/order/domain"
	"github.com/praxialabs/praxia/internal/order/repository"
	patientdomain "github.com/praxialabs/praxia/internal/patient/domain"
	patientrepository "github.com/praxialabs/praxia/internal/patient/repository"
	patientservice "github.com/praxialabs/praxia/internal/patient/service"
	recommendationdomain "github.com/praxialabs/praxia/internal/recommendation/domain"
	recommendationrepository "github.com/praxialabs/praxia/internal/recommendation/repository"
	recommendationservice "github.com/praxialabs/praxia/internal/recommendation/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type dispatcherStub struct {
	notified []string
}

func (d *dispatcherStub) Dispatch(ctx context.Context, req notificationdomain.DispatchRequest) (notificationdomain.DispatchResult, error) {
	return notificationdomain.DispatchResult{Success: true}, nil
}

func (d *dispatcherStub) NotifyPatient(ctx context.Context, patientID snowflake.ID, channels []string, message string) (notificationdomain.DispatchResult, error) {
	d.notified = append(d.notified, message)
	return notificationdomain.DispatchResult{Success: true}, nil
}

type orderFixture struct {
	orders     domain.Service
	recs       recommendationdomain.Service
	tokens     checkouttokendomain.Service
	ledger     commissiondomain.Ledger
	dispatcher *dispatcherStub
	db         *gorm.DB
	node       *snowflake.Node
	clk        *clock.FakeClock
}

func setupOrderService(t *testing.T) *orderFixture {
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
		&domain.Order{},
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

	dispatcher := &dispatcherStub{}
	orderSvc := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clk,
		Metrics:     metrics.NewNop(),
		Fulfillment: config.NewStaticFulfillmentConfigHolder(config.DefaultFulfillmentConfig()),
		Repo:        repository.Provide(),
		Tokens:      tokenSvc,
		Recs:        recSvc,
		Patients:    patientSvc,
		Catalog:     catalogSvc,
		Commission:  ledger,
		Dispatcher:  dispatcher,
	})

	return &orderFixture{
		orders:     orderSvc,
		recs:       recSvc,
		tokens:     tokenSvc,
		ledger:     ledger,
		dispatcher: dispatcher,
		db:         db,
		node:       node,
		clk:        clk,
	}
}

type seeded struct {
	practitionerID snowflake.ID
	patientID      snowflake.ID
	itemID         snowflake.ID
	rec            recommendationdomain.Recommendation
	token          string
}

func (f *orderFixture) seedFlow(t *testing.T, stock, quantity int64) seeded {
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
		LineUserID:     "U1234",
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
		StockQuantity:     stock,
		Active:            true,
	}
	require.NoError(t, f.db.Create(&item).Error)

	rec, err := f.recs.Create(ctx, recommendationdomain.CreateRequest{
		PractitionerID: practitioner.ID,
		PatientID:      patient.ID,
		Title:          "post-consult plan",
		Items:          []recommendationdomain.ItemInput{{ItemID: item.ID, Quantity: quantity}},
	})
	require.NoError(t, err)
	require.NoError(t, f.recs.MarkSent(ctx, rec.ID, []string{"line"}))

	issued, err := f.tokens.Issue(ctx, rec.ID)
	require.NoError(t, err)

	return seeded{
		practitionerID: practitioner.ID,
		patientID:      patient.ID,
		itemID:         item.ID,
		rec:            rec,
		token:          issued.Raw,
	}
}

func shipping() domain.ShippingInfo {
	return domain.ShippingInfo{
		Address:    "99/1 Sukhumvit 55",
		City:       "Bangkok",
		PostalCode: "10110",
		Phone:      "+66812345678",
	}
}

func TestCreateFromTokenPayOnDelivery(t *testing.T) {
	f := setupOrderService(t)
	ctx := context.Background()
	s := f.seedFlow(t, 10, 2)

	order, err := f.orders.CreateFromToken(ctx, domain.CreateFromTokenRequest{
		Token:         s.token,
		Shipping:      shipping(),
		PaymentMethod: domain.PaymentMethodPayOnDelivery,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, order.Status)
	assert.Equal(t, domain.PaymentStatusUnpaid, order.PaymentStatus)
	assert.Equal(t, int64(200), order.TotalAmount)
	assert.Equal(t, "THB", order.Currency)

	// Token is burned.
	_, err = f.tokens.Validate(ctx, s.token)
	assert.ErrorIs(t, err, checkouttokendomain.ErrTokenAlreadyUsed)

	// Stock is decremented.
	var stock int64
	require.NoError(t, f.db.Raw(`SELECT stock_quantity FROM items WHERE id = ?`, s.itemID).Scan(&stock).Error)
	assert.Equal(t, int64(8), stock)

	// Recommendation advanced.
	rec, err := f.recs.GetByID(ctx, s.rec.ID)
	require.NoError(t, err)
	assert.Equal(t, recommendationdomain.StatusPaymentPending, rec.Status)

	// Commission frozen: practitioner default 500 bps on 200.
	record, err := f.ledger.GetRecordByOrderID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), record.RateBps)
	assert.Equal(t, int64(10), record.Amount)
	assert.Equal(t, commissiondomain.CommissionStatusPending, record.Status)
}

func TestCreateFromTokenPaidWebhookPath(t *testing.T) {
	f := setupOrderService(t)
	ctx := context.Background()
	s := f.seedFlow(t, 10, 1)

	order, err := f.orders.CreateFromToken(ctx, domain.CreateFromTokenRequest{
		Token:         s.token,
		Shipping:      shipping(),
		PaymentMethod: domain.PaymentMethodCard,
		Paid:          true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, order.PaymentStatus)

	rec, err := f.recs.GetByID(ctx, s.rec.ID)
	require.NoError(t, err)
	assert.Equal(t, recommendationdomain.StatusPaid, rec.Status)
}

func TestCreateFromTokenValidation(t *testing.T) {
	f := setupOrderService(t)
	ctx := context.Background()
	s := f.seedFlow(t, 10, 1)

	_, err := f.orders.CreateFromToken(ctx, domain.CreateFromTokenRequest{
		Token:         s.token,
		Shipping:      shipping(),
		PaymentMethod: "cheque",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPayment)

	bad := shipping()
	bad.PostalCode = " "
	_, err = f.orders.CreateFromToken(ctx, domain.CreateFromTokenRequest{
		Token:         s.token,
		Shipping:      bad,
		PaymentMethod: domain.PaymentMethodPayOnDelivery,
	})
	assert.ErrorIs(t, err, domain.ErrMissingShippingInfo)

	// Neither rejected attempt burned the token.
	_, err = f.tokens.Validate(ctx, s.token)
	assert.NoError(t, err)
}

func TestCreateFromTokenExactlyOnce(t *testing.T) {
	f := setupOrderService(t)
	ctx := context.Background()
	s := f.seedFlow(t, 10, 1)

	_, err := f.orders.CreateFromToken(ctx, domain.CreateFromTokenRequest{
		Token:         s.token,
		Shipping:      shipping(),
		PaymentMethod: domain.PaymentMethodPayOnDelivery,
	})
	require.NoError(t, err)

	_, err = f.orders.CreateFromToken(ctx, domain.CreateFromTokenRequest{
		Token:         s.token,
		Shipping:      shipping(),
		PaymentMethod: domain.PaymentMethodPayOnDelivery,
	})
	assert.ErrorIs(t, err, checkouttokendomain.ErrTokenAlreadyUsed)
}

func TestStockShortageLeavesTokenLive(t *testing.T) {
	f := setupOrderService(t)
	ctx := context.Background()

	// One unit in stock, two independent tokens for recommendations
	// wanting that unit.
	s := f.seedFlow(t, 1, 1)
	second, err := f.tokens.Issue(ctx, s.rec.ID)
	require.NoError(t, err)

	_, err = f.orders.CreateFromToken(ctx, domain.CreateFromTokenRequest{
		Token:         s.token,
		Shipping:      shipping(),
		PaymentMethod: domain.PaymentMethodPayOnDelivery,
	})
	require.NoError(t, err)

	_, err = f.orders.CreateFromToken(ctx, domain.CreateFromTokenRequest{
		Token:         second.Raw,
		Shipping:      shipping(),
		PaymentMethod: domain.PaymentMethodPayOnDelivery,
	})
	assert.ErrorIs(t, err, catalogdomain.ErrInsufficientStock)

	// The losing token was not burned: the rollback covers the
	// consume as well.
	_, err = f.tokens.Validate(ctx, second.Raw)
	assert.NoError(t, err)

	var count int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(1) FROM orders`).Scan(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpdateStatusShippedValidation(t *testing.T) {
	f := setupOrderService(t)
	ctx := context.Background()
	s := f.seedFlow(t, 10, 1)

	order, err := f.orders.CreateFromToken(ctx, domain.CreateFromTokenRequest{
		Token:         s.token,
		Shipping:      shipping(),
		PaymentMethod: domain.PaymentMethodPayOnDelivery,
	})
	require.NoError(t, err)

	status := domain.StatusShipped
	_, err = f.orders.UpdateStatus(ctx, domain.UpdateStatusRequest{
		ID:     order.ID,
		Status: &status,
	})
	assert.ErrorIs(t, err, domain.ErrCourierRequired)

	courier := "kerry"
	tracking := "KEX123456"
	updated, err := f.orders.UpdateStatus(ctx, domain.UpdateStatusRequest{
		ID:             order.ID,
		Status:         &status,
		CourierName:    &courier,
		TrackingNumber: &tracking,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusShipped, updated.Status)
	require.NotNil(t, updated.ShippedAt, "shipped_at defaults to now")
	require.NotNil(t, updated.EstimatedDeliveryDate)
	assert.Equal(t, updated.ShippedAt.AddDate(0, 0, 2), *updated.EstimatedDeliveryDate, "kerry ships in two days")
	assert.Contains(t, updated.CourierTrackingURL, "KEX123456")

	// Recommendation mirrors the shipment.
	rec, err := f.recs.GetByID(ctx, s.rec.ID)
	require.NoError(t, err)
	assert.Equal(t, recommendationdomain.StatusShipped, rec.Status)
}

func TestUpdateStatusUnknownCourierUsesDefaultTransit(t *testing.T) {
	f := setupOrderService(t)
	ctx := context.Background()
	s := f.seedFlow(t, 10, 1)

	order, err := f.orders.CreateFromToken(ctx, domain.CreateFromTokenRequest{
		Token:         s.token,
		Shipping:      shipping(),
		PaymentMethod: domain.PaymentMethodPayOnDelivery,
	})
	require.NoError(t, err)

	status := domain.StatusShipped
	courier := "somchai-logistics"
	tracking := "SL-1"
	updated, err := f.orders.UpdateStatus(ctx, domain.UpdateStatusRequest{
		ID:             order.ID,
		Status:         &status,
		CourierName:    &courier,
		TrackingNumber: &tracking,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.EstimatedDeliveryDate)
	assert.Equal(t, updated.ShippedAt.AddDate(0, 0, 5), *updated.EstimatedDeliveryDate)
	assert.Empty(t, updated.CourierTrackingURL)
}

func TestUpdateStatusTransitionTable(t *testing.T) {
	f := setupOrderService(t)
	ctx := context.Background()
	s := f.seedFlow(t, 10, 1)

	order, err := f.orders.CreateFromToken(ctx, domain.CreateFromTokenRequest{
		Token:         s.token,
		Shipping:      shipping(),
		PaymentMethod: domain.PaymentMethodPayOnDelivery,
	})
	require.NoError(t, err)

	// delivered straight from pending is not allowed.
	delivered := domain.StatusDelivered
	_, err = f.orders.UpdateStatus(ctx, domain.UpdateStatusRequest{ID: order.ID, Status: &delivered})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// cancel from pending, then nothing moves a cancelled order.
	cancelled := domain.StatusCancelled
	_, err = f.orders.UpdateStatus(ctx, domain.UpdateStatusRequest{ID: order.ID, Status: &cancelled})
	require.NoError(t, err)

	processing := domain.StatusProcessing
	_, err = f.orders.UpdateStatus(ctx, domain.UpdateStatusRequest{ID: order.ID, Status: &processing})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestUpdateStatusNotifiesPatient(t *testing.T) {
	f := setupOrderService(t)
	ctx := context.Background()
	s := f.seedFlow(t, 10, 1)

	order, err := f.orders.CreateFromToken(ctx, domain.CreateFromTokenRequest{
		Token:         s.token,
		Shipping:      shipping(),
		PaymentMethod: domain.PaymentMethodPayOnDelivery,
	})
	require.NoError(t, err)

	status := domain.StatusProcessing
	_, err = f.orders.UpdateStatus(ctx, domain.UpdateStatusRequest{
		ID:            order.ID,
		Status:        &status,
		NotifyPatient: true,
	})
	require.NoError(t, err)
	require.Len(t, f.dispatcher.notified, 1)
	assert.Contains(t, f.dispatcher.notified[0], "prepared")
}

func TestTimelineShape(t *testing.T) {
	f := setupOrderService(t)
	ctx := context.Background()
	s := f.seedFlow(t, 10, 1)

	order, err := f.orders.CreateFromToken(ctx, domain.CreateFromTokenRequest{
		Token:         s.token,
		Shipping:      shipping(),
		PaymentMethod: domain.PaymentMethodPayOnDelivery,
	})
	require.NoError(t, err)

	steps, err := f.orders.Timeline(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, steps, 4)
	assert.Equal(t, "order_placed", steps[0].Step)
	assert.True(t, steps[0].Completed)
	assert.False(t, steps[1].Completed)
	assert.False(t, steps[2].Completed)
	assert.False(t, steps[3].Completed)

	status := domain.StatusShipped
	courier := "kerry"
	tracking := "KEX1"
	_, err = f.orders.UpdateStatus(ctx, domain.UpdateStatusRequest{
		ID: order.ID, Status: &status, CourierName: &courier, TrackingNumber: &tracking,
	})
	require.NoError(t, err)

	steps, err = f.orders.Timeline(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, steps[1].Completed, "processing implied by shipped")
	assert.True(t, steps[2].Completed)
	require.NotNil(t, steps[2].Timestamp)
	assert.False(t, steps[3].Completed)
	assert.True(t, steps[3].Estimate)
	require.NotNil(t, steps[3].Timestamp)

	cancelledOrder := domain.Order{
		Status:    domain.StatusCancelled,
		CreatedAt: f.clk.Now(),
		UpdatedAt: f.clk.Now(),
	}
	cancelledSteps := domain.Timeline(cancelledOrder)
	require.Len(t, cancelledSteps, 2)
	assert.Equal(t, "cancelled", cancelledSteps[1].Step)
}

func TestMarkPaid(t *testing.T) {
	f := setupOrderService(t)
	ctx := context.Background()
	s := f.seedFlow(t, 10, 1)

	order, err := f.orders.CreateFromToken(ctx, domain.CreateFromTokenRequest{
		Token:         s.token,
		Shipping:      shipping(),
		PaymentMethod: domain.PaymentMethodQR,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusUnpaid, order.PaymentStatus)

	require.NoError(t, f.orders.MarkPaid(ctx, order.ID))
	require.NoError(t, f.orders.MarkPaid(ctx, order.ID), "idempotent")

	got, err := f.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, got.PaymentStatus)

	rec, err := f.recs.GetByID(ctx, s.rec.ID)
	require.NoError(t, err)
	assert.Equal(t, recommendationdomain.StatusPaid, rec.Status)
}
