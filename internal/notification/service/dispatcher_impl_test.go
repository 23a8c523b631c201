package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
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
	"github.com/praxialabs/praxia/internal/config"
	"github.com/praxialabs/praxia/internal/notification/channels"
	"github.com/praxialabs/praxia/internal/notification/domain"
	"github.com/praxialabs/praxia/internal/observability/metrics"
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

type emailStub struct {
	mu    sync.Mutex
	sent  []string
	fail  error
	calls int
}

func (s *emailStub) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail != nil {
		return s.fail
	}
	s.sent = append(s.sent, htmlBody)
	return nil
}

type lineStub struct {
	mu    sync.Mutex
	sent  []string
	fail  error
	calls int
}

func (s *lineStub) PushMessage(ctx context.Context, lineUserID string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail != nil {
		return s.fail
	}
	s.sent = append(s.sent, message)
	return nil
}

type dispatchFixture struct {
	dispatcher domain.Dispatcher
	recs       recommendationdomain.Service
	tokens     checkouttokendomain.Service
	db         *gorm.DB
	node       *snowflake.Node
	clk        *clock.FakeClock
	email      *emailStub
	line       *lineStub
}

func setupDispatcher(t *testing.T) *dispatchFixture {
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

	if err := db.AutoMigrate(
		&catalogdomain.Item{},
		&patientdomain.Practitioner{},
		&patientdomain.Patient{},
		&recommendationdomain.Recommendation{},
		&recommendationdomain.RecommendationItem{},
		&checkouttokendomain.CheckoutToken{},
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

	email := &emailStub{}
	line := &lineStub{}
	dispatcher := New(Params{
		Log:             zap.NewNop(),
		Cfg:             cfg,
		Metrics:         metrics.NewNop(),
		Recommendations: recSvc,
		Patients:        patientSvc,
		Tokens:          tokenSvc,
		Email:           channels.NewEmailSender(email),
		Line:            channels.NewLineSender(line),
	})

	return &dispatchFixture{
		dispatcher: dispatcher,
		recs:       recSvc,
		tokens:     tokenSvc,
		db:         db,
		node:       node,
		clk:        clk,
		email:      email,
		line:       line,
	}
}

func (f *dispatchFixture) seedPatient(t *testing.T, email string, consent bool, lineUserID string) snowflake.ID {
	t.Helper()
	patient := patientdomain.Patient{
		ID:             f.node.Generate(),
		PractitionerID: f.node.Generate(),
		Name:           "Somsak",
		Email:          email,
		EmailConsent:   consent,
		LineUserID:     lineUserID,
		CreatedAt:      f.clk.Now(),
		UpdatedAt:      f.clk.Now(),
	}
	if err := f.db.Create(&patient).Error; err != nil {
		t.Fatalf("seed patient: %v", err)
	}
	return patient.ID
}

func (f *dispatchFixture) seedRecommendation(t *testing.T, patientID snowflake.ID) recommendationdomain.Recommendation {
	t.Helper()
	item := catalogdomain.Item{
		ID:            f.node.Generate(),
		SKU:           fmt.Sprintf("SKU-%d", f.node.Generate()),
		Name:          "vitamin d3",
		Category:      "supplements",
		UnitPrice:     100,
		Currency:      "THB",
		StockQuantity: 10,
		Active:        true,
	}
	require.NoError(t, f.db.Create(&item).Error)

	rec, err := f.recs.Create(context.Background(), recommendationdomain.CreateRequest{
		PractitionerID: f.node.Generate(),
		PatientID:      patientID,
		Title:          "post-consult plan",
		Items:          []recommendationdomain.ItemInput{{ItemID: item.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	return rec
}

func TestDispatchBothChannelsSucceed(t *testing.T) {
	f := setupDispatcher(t)
	ctx := context.Background()

	patientID := f.seedPatient(t, "somsak@example.com", true, "U1234")
	rec := f.seedRecommendation(t, patientID)

	result, err := f.dispatcher.Dispatch(ctx, domain.DispatchRequest{
		RecommendationID: rec.ID,
		Channels:         []string{"email", "line"},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Results["email"].Success)
	assert.True(t, result.Results["line"].Success)

	got, err := f.recs.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, recommendationdomain.StatusSent, got.Status)
	require.NotNil(t, got.SentAt)
	assert.Equal(t, []string{"email", "line"}, got.Channels())

	// The link carries a live single-use token.
	require.Len(t, f.line.sent, 1)
	idx := strings.LastIndex(f.line.sent[0], "/checkout/")
	require.Greater(t, idx, 0)
	raw := f.line.sent[0][idx+len("/checkout/"):]
	_, err = f.tokens.Validate(ctx, raw)
	assert.NoError(t, err)
}

func TestDispatchResendOverwritesChannels(t *testing.T) {
	f := setupDispatcher(t)
	ctx := context.Background()

	patientID := f.seedPatient(t, "somsak@example.com", true, "U1234")
	rec := f.seedRecommendation(t, patientID)

	_, err := f.dispatcher.Dispatch(ctx, domain.DispatchRequest{
		RecommendationID: rec.ID,
		Channels:         []string{"email", "line"},
	})
	require.NoError(t, err)

	result, err := f.dispatcher.Dispatch(ctx, domain.DispatchRequest{
		RecommendationID: rec.ID,
		Channels:         []string{"line"},
		Resend:           true,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)

	got, err := f.recs.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"line"}, got.Channels(), "channel record overwritten, not unioned")
	assert.Equal(t, recommendationdomain.StatusSent, got.Status)
}

func TestDispatchEmailWithoutConsent(t *testing.T) {
	f := setupDispatcher(t)
	ctx := context.Background()

	patientID := f.seedPatient(t, "somsak@example.com", false, "U1234")
	rec := f.seedRecommendation(t, patientID)

	_, err := f.dispatcher.Dispatch(ctx, domain.DispatchRequest{
		RecommendationID: rec.ID,
		Channels:         []string{"email", "line"},
	})

	var channelErr *domain.ChannelError
	require.ErrorAs(t, err, &channelErr)
	assert.Equal(t, "email", channelErr.Channel)
	assert.Zero(t, f.line.calls, "precondition failure rejects before any attempt")

	got, getErr := f.recs.GetByID(ctx, rec.ID)
	require.NoError(t, getErr)
	assert.Equal(t, recommendationdomain.StatusDraft, got.Status)
	assert.Nil(t, got.SentAt)
}

func TestDispatchUnknownChannel(t *testing.T) {
	f := setupDispatcher(t)
	ctx := context.Background()

	patientID := f.seedPatient(t, "somsak@example.com", true, "U1234")
	rec := f.seedRecommendation(t, patientID)

	_, err := f.dispatcher.Dispatch(ctx, domain.DispatchRequest{
		RecommendationID: rec.ID,
		Channels:         []string{"sms"},
	})
	var channelErr *domain.ChannelError
	require.ErrorAs(t, err, &channelErr)
	assert.Equal(t, "sms", channelErr.Channel)
}

func TestDispatchPartialFailure(t *testing.T) {
	f := setupDispatcher(t)
	ctx := context.Background()

	patientID := f.seedPatient(t, "somsak@example.com", true, "U1234")
	rec := f.seedRecommendation(t, patientID)
	f.line.fail = errors.New("line api 500")

	result, err := f.dispatcher.Dispatch(ctx, domain.DispatchRequest{
		RecommendationID: rec.ID,
		Channels:         []string{"email", "line"},
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.True(t, result.Results["email"].Success)
	assert.False(t, result.Results["line"].Success)
	assert.Contains(t, result.Results["line"].Error, "line api 500")

	// Dispatch ran, so the send is still recorded.
	got, getErr := f.recs.GetByID(ctx, rec.ID)
	require.NoError(t, getErr)
	assert.Equal(t, recommendationdomain.StatusSent, got.Status)
	assert.Equal(t, []string{"email", "line"}, got.Channels())
}

func TestDispatchInitialSendRequiresDraft(t *testing.T) {
	f := setupDispatcher(t)
	ctx := context.Background()

	patientID := f.seedPatient(t, "somsak@example.com", true, "U1234")
	rec := f.seedRecommendation(t, patientID)

	_, err := f.dispatcher.Dispatch(ctx, domain.DispatchRequest{
		RecommendationID: rec.ID,
		Channels:         []string{"email"},
	})
	require.NoError(t, err)

	_, err = f.dispatcher.Dispatch(ctx, domain.DispatchRequest{
		RecommendationID: rec.ID,
		Channels:         []string{"email"},
	})
	assert.ErrorIs(t, err, domain.ErrAlreadySent)
}

func TestNotifyPatient(t *testing.T) {
	f := setupDispatcher(t)
	ctx := context.Background()

	patientID := f.seedPatient(t, "", false, "U1234")

	result, err := f.dispatcher.NotifyPatient(ctx, patientID, []string{"line"}, "Your order has shipped.")
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, f.line.sent, 1)
	assert.Equal(t, "Your order has shipped.", f.line.sent[0])
}
