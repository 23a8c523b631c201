package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/praxialabs/praxia/internal/catalog"
	catalogdomain "github.com/praxialabs/praxia/internal/catalog/domain"
	"github.com/praxialabs/praxia/internal/checkouttoken"
	checkouttokendomain "github.com/praxialabs/praxia/internal/checkouttoken/domain"
	"github.com/praxialabs/praxia/internal/commission"
	commissiondomain "github.com/praxialabs/praxia/internal/commission/domain"
	"github.com/praxialabs/praxia/internal/config"
	"github.com/praxialabs/praxia/internal/notification"
	notificationdomain "github.com/praxialabs/praxia/internal/notification/domain"
	"github.com/praxialabs/praxia/internal/observability"
	obsmiddleware "github.com/praxialabs/praxia/internal/observability/logger"
	obsmetrics "github.com/praxialabs/praxia/internal/observability/metrics"
	obstracing "github.com/praxialabs/praxia/internal/observability/tracing"
	"github.com/praxialabs/praxia/internal/order"
	orderdomain "github.com/praxialabs/praxia/internal/order/domain"
	"github.com/praxialabs/praxia/internal/patient"
	patientdomain "github.com/praxialabs/praxia/internal/patient/domain"
	"github.com/praxialabs/praxia/internal/payment"
	paymentdomain "github.com/praxialabs/praxia/internal/payment/domain"
	"github.com/praxialabs/praxia/internal/providers"
	"github.com/praxialabs/praxia/internal/ratelimit"
	"github.com/praxialabs/praxia/internal/recommendation"
	recommendationdomain "github.com/praxialabs/praxia/internal/recommendation/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	fx.Provide(registerGin),
	catalog.Module,
	patient.Module,
	recommendation.Module,
	checkouttoken.Module,
	providers.Module,
	notification.Module,
	commission.Module,
	order.Module,
	payment.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	genID         *snowflake.Node
	catalogSvc    catalogdomain.Service
	patientSvc    patientdomain.Service
	recSvc        recommendationdomain.Service
	tokenSvc      checkouttokendomain.Service
	dispatcher    notificationdomain.Dispatcher
	orderSvc      orderdomain.Service
	commissionSvc commissiondomain.Ledger
	paymentSvc    paymentdomain.Service
	limiter       *ratelimit.CheckoutLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	GenID         *snowflake.Node
	CatalogSvc    catalogdomain.Service
	PatientSvc    patientdomain.Service
	RecSvc        recommendationdomain.Service
	TokenSvc      checkouttokendomain.Service
	Dispatcher    notificationdomain.Dispatcher
	OrderSvc      orderdomain.Service
	CommissionSvc commissiondomain.Ledger
	PaymentSvc    paymentdomain.Service
	Limiter       *ratelimit.CheckoutLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		genID:         p.GenID,
		catalogSvc:    p.CatalogSvc,
		patientSvc:    p.PatientSvc,
		recSvc:        p.RecSvc,
		tokenSvc:      p.TokenSvc,
		dispatcher:    p.Dispatcher,
		orderSvc:      p.OrderSvc,
		commissionSvc: p.CommissionSvc,
		paymentSvc:    p.PaymentSvc,
		limiter:       p.Limiter,
	}

	svc.registerAPIRoutes()
	svc.registerPublicRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/items", s.ListItems)

	api.POST("/recommendations", s.CreateRecommendation)
	api.GET("/recommendations", s.ListRecommendations)
	api.GET("/recommendations/:id", s.GetRecommendation)
	api.PATCH("/recommendations/:id", s.UpdateRecommendation)
	api.DELETE("/recommendations/:id", s.DeleteRecommendation)
	api.POST("/recommendations/:id/send", s.SendRecommendation)

	api.GET("/orders", s.ListOrders)
	api.GET("/orders/:id", s.GetOrder)
	api.GET("/orders/:id/timeline", s.GetOrderTimeline)
	api.GET("/orders/:id/commission", s.GetOrderCommission)
	api.PATCH("/orders/:id/status", s.UpdateOrderStatus)

	api.POST("/commissions/overrides", s.CreateCommissionOverride)
	api.GET("/commissions/records", s.ListCommissionRecords)

	api.POST("/payments/webhooks/:provider", s.HandlePaymentWebhook)
}

// Public checkout surface. Reached from the link sent to the patient,
// no session required; the token is the credential.
func (s *Server) registerPublicRoutes() {
	public := s.engine.Group("/checkout", s.CheckoutRateLimit())
	public.GET("/:token", s.GetCheckout)
	public.POST("/:token", s.SubmitCheckout)
}
