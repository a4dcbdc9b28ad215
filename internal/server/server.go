package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/techwallet/internal/audit"
	auditdomain "github.com/smallbiznis/techwallet/internal/audit/domain"
	"github.com/smallbiznis/techwallet/internal/config"
	"github.com/smallbiznis/techwallet/internal/earning"
	earningdomain "github.com/smallbiznis/techwallet/internal/earning/domain"
	"github.com/smallbiznis/techwallet/internal/observability"
	obslogger "github.com/smallbiznis/techwallet/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/techwallet/internal/observability/metrics"
	obstracing "github.com/smallbiznis/techwallet/internal/observability/tracing"
	"github.com/smallbiznis/techwallet/internal/payout"
	payoutdomain "github.com/smallbiznis/techwallet/internal/payout/domain"
	"github.com/smallbiznis/techwallet/internal/ratedefaults"
	ratedefaultsdomain "github.com/smallbiznis/techwallet/internal/ratedefaults/domain"
	"github.com/smallbiznis/techwallet/internal/ratelimit"
	"github.com/smallbiznis/techwallet/internal/reconciliation"
	reconciliationdomain "github.com/smallbiznis/techwallet/internal/reconciliation/domain"
	"github.com/smallbiznis/techwallet/internal/technician"
	techniciandomain "github.com/smallbiznis/techwallet/internal/technician/domain"
	"github.com/smallbiznis/techwallet/internal/wallet"
	walletdomain "github.com/smallbiznis/techwallet/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	ratelimit.Module,
	wallet.Module,
	technician.Module,
	ratedefaults.Module,
	earning.Module,
	payout.Module,
	reconciliation.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ActorContext())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	engine            *gin.Engine
	auditSvc          auditdomain.Service
	walletSvc         walletdomain.Service
	technicianSvc     techniciandomain.Service
	rateDefaultsSvc   ratedefaultsdomain.Service
	earningSvc        earningdomain.Service
	payoutSvc         payoutdomain.Service
	reconciliationSvc reconciliationdomain.Service
	payoutLimiter     payoutLimiter
	obsMetrics        *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin               *gin.Engine
	AuditSvc          auditdomain.Service
	WalletSvc         walletdomain.Service
	TechnicianSvc     techniciandomain.Service
	RateDefaultsSvc   ratedefaultsdomain.Service
	EarningSvc        earningdomain.Service
	PayoutSvc         payoutdomain.Service
	ReconciliationSvc reconciliationdomain.Service
	PayoutLimiter     *ratelimit.PayoutRequestLimiter `optional:"true"`
	ObsMetrics        *obsmetrics.Metrics              `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:            p.Gin,
		auditSvc:          p.AuditSvc,
		walletSvc:         p.WalletSvc,
		technicianSvc:     p.TechnicianSvc,
		rateDefaultsSvc:   p.RateDefaultsSvc,
		earningSvc:        p.EarningSvc,
		payoutSvc:         p.PayoutSvc,
		reconciliationSvc: p.ReconciliationSvc,
		obsMetrics:        p.ObsMetrics,
	}
	if p.PayoutLimiter != nil {
		svc.payoutLimiter = p.PayoutLimiter
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/v1")

	api.POST("/events/payment-verified", s.PaymentVerified)

	technicians := api.Group("/technicians/:id")
	{
		technicians.PUT("", s.UpsertTechnician)
		technicians.GET("", s.GetTechnician)
		technicians.GET("/balance", s.GetBalance)
		technicians.GET("/earnings", s.ListEarnings)
		technicians.GET("/transactions", s.ListTransactions)
		technicians.GET("/payouts", s.ListPayouts)
		technicians.POST("/payouts", s.PayoutRequestRateLimit(), s.RequestPayout)
		technicians.GET("/reconciliation", s.Reconcile)
	}

	api.GET("/earnings/:id", s.GetEarning)

	api.GET("/payouts/:id", s.GetPayout)
	api.POST("/payouts/:id/approve", s.ApprovePayout)
	api.POST("/payouts/:id/reject", s.RejectPayout)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/v1/admin")

	admin.GET("/rate-defaults", s.GetRateDefaults)
	admin.PUT("/rate-defaults", s.SetRateDefaults)
	admin.GET("/rate-defaults/history", s.ListRateDefaultsHistory)
	admin.GET("/audit-logs", s.ListAuditLogs)
	admin.POST("/reconciliation/sweep", s.RunReconciliationSweep)
}
