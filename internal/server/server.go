package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/chargeview/internal/billingapi/client"
	"github.com/smallbiznis/chargeview/internal/cache"
	"github.com/smallbiznis/chargeview/internal/config"
	"github.com/smallbiznis/chargeview/internal/customerview"
	customerviewdomain "github.com/smallbiznis/chargeview/internal/customerview/domain"
	"github.com/smallbiznis/chargeview/internal/metricspush"
	"github.com/smallbiznis/chargeview/internal/observability"
	obsmiddleware "github.com/smallbiznis/chargeview/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/chargeview/internal/observability/metrics"
	obstracing "github.com/smallbiznis/chargeview/internal/observability/tracing"
	"github.com/smallbiznis/chargeview/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	cache.Module,
	client.Module,
	customerview.Module,
	metricspush.Module,
	ratelimit.Module,
	fx.Provide(registerGin),
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

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	engine   *gin.Engine
	cfg      config.Config
	log      *zap.Logger
	usageSvc customerviewdomain.Service
	views    *config.ViewConfigHolder
	limiter  *ratelimit.ViewLimiter
}

type ServerParams struct {
	fx.In

	Gin      *gin.Engine
	Cfg      config.Config
	Log      *zap.Logger
	UsageSvc customerviewdomain.Service
	Views    *config.ViewConfigHolder
	Limiter  *ratelimit.ViewLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:   p.Gin,
		cfg:      p.Cfg,
		log:      p.Log.Named("http.server"),
		usageSvc: p.UsageSvc,
		views:    p.Views,
		limiter:  p.Limiter,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/v1")

	// -------- Customer usage --------
	customers := api.Group("/organizations/:org_id/customers/:customer_id", s.OrgRateLimit())
	customers.GET("/usage", s.GetCustomerUsage)
	customers.GET("/usage/stream", s.StreamCustomerUsage)

	// -------- Subscriptions --------
	api.GET("/subscriptions/:id/upcoming-charge", s.GetUpcomingCharge)
}
