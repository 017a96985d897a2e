package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/lumenwell/aimeter/internal/analytics"
	analyticsdomain "github.com/lumenwell/aimeter/internal/analytics/domain"
	"github.com/lumenwell/aimeter/internal/config"
	"github.com/lumenwell/aimeter/internal/dailylimit"
	dailylimitdomain "github.com/lumenwell/aimeter/internal/dailylimit/domain"
	"github.com/lumenwell/aimeter/internal/ledger"
	ledgerdomain "github.com/lumenwell/aimeter/internal/ledger/domain"
	"github.com/lumenwell/aimeter/internal/observability"
	obsmiddleware "github.com/lumenwell/aimeter/internal/observability/logger"
	obsmetrics "github.com/lumenwell/aimeter/internal/observability/metrics"
	obstracing "github.com/lumenwell/aimeter/internal/observability/tracing"
	"github.com/lumenwell/aimeter/internal/pricing"
	"github.com/lumenwell/aimeter/internal/quota"
	quotadomain "github.com/lumenwell/aimeter/internal/quota/domain"
	"github.com/lumenwell/aimeter/internal/ratelimit"
	"github.com/lumenwell/aimeter/internal/recorder"
	recorderdomain "github.com/lumenwell/aimeter/internal/recorder/domain"
	genericrepo "github.com/lumenwell/aimeter/pkg/repository"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	pricing.Module,
	ledger.Module,
	quota.Module,
	dailylimit.Module,
	recorder.Module,
	analytics.Module,
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

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
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
	recorderSvc   recorderdomain.Service
	dailyLimitSvc dailylimitdomain.Service
	quotaSvc      quotadomain.Service
	analyticsSvc  analyticsdomain.Service
	eventStore    genericrepo.Reader[ledgerdomain.UsageEvent]
	recordLimiter *ratelimit.Limiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	RecorderSvc   recorderdomain.Service
	DailyLimitSvc dailylimitdomain.Service
	QuotaSvc      quotadomain.Service
	AnalyticsSvc  analyticsdomain.Service
	EventStore    genericrepo.Reader[ledgerdomain.UsageEvent]
	RecordLimiter *ratelimit.Limiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		recorderSvc:   p.RecorderSvc,
		dailyLimitSvc: p.DailyLimitSvc,
		quotaSvc:      p.QuotaSvc,
		analyticsSvc:  p.AnalyticsSvc,
		eventStore:    p.EventStore,
		recordLimiter: p.RecordLimiter,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	v1.GET("/users/:user_id/daily-limit", s.CheckDailyLimit)
	v1.GET("/users/:user_id/quota", s.CheckQuota)
	v1.POST("/usage", s.RecordRateLimit(), s.RecordUsage)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	admin.GET("/usage/stats", s.GetUserTokenStats)
	admin.GET("/usage/series", s.GetTokenUsageByPeriod)
	admin.GET("/usage/summary", s.GetAggregatedTokenStats)
	admin.GET("/usage/events", s.ListUsageEvents)
	admin.PUT("/users/:user_id/quota", s.UpdateQuota)
}
