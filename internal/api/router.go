package api

import (
	"github.com/ddramp/exchange/internal/api/handler"
	"github.com/ddramp/exchange/internal/api/middleware"
	"github.com/ddramp/exchange/internal/api/spec"
	"github.com/ddramp/exchange/internal/config"
	"github.com/ddramp/exchange/internal/idempotency"
	"github.com/ddramp/exchange/internal/repository"
	"github.com/ddramp/exchange/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// operatorRateLimitRPS bounds each operator's admin requests.
const operatorRateLimitRPS = 20

type Router struct {
	cfg        *config.Config
	logger     *zap.Logger
	repo       *repository.Repository
	idemStore  *idempotency.Store
	redis      redis.Cmdable
	offerSvc   *service.OfferService
	readoutSvc *service.ReadoutService
	auditSvc   *service.AuditService
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	repo *repository.Repository,
	idemStore *idempotency.Store,
	redisClient redis.Cmdable,
	offerSvc *service.OfferService,
	readoutSvc *service.ReadoutService,
	auditSvc *service.AuditService,
) *Router {
	if logger == nil {
		logger = zap.L()
	}
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)
	return &Router{
		cfg:        cfg,
		logger:     logger,
		repo:       repo,
		idemStore:  idemStore,
		redis:      redisClient,
		offerSvc:   offerSvc,
		readoutSvc: readoutSvc,
		auditSvc:   auditSvc,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	offerHandler := handler.NewOfferHandler(api.offerSvc, api.repo)
	readoutHandler := handler.NewReadoutHandler(api.readoutSvc)
	adminHandler := handler.NewAdminHandler(api.repo, api.auditSvc)
	healthHandler := handler.NewHealthHandler(api.repo, api.redis, api.cfg.MissingLedgerKeys())

	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	// Wallet routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.SubmissionRateLimiter(api.cfg.PublicRateLimitRPS))

		r.Get("/v1/offers", offerHandler.List)
		r.Get("/v1/offers/{id}", offerHandler.Get)
		r.Get("/v1/preoffers/{id}", offerHandler.GetPreoffer)

		r.With(middleware.IdempotencyMiddleware(api.idemStore, api.logger)).Post("/v1/offers/dd", offerHandler.SubmitDD)
		r.With(middleware.IdempotencyMiddleware(api.idemStore, api.logger)).Post("/v1/offers/fiat", offerHandler.SubmitFiat)
	})

	// Bank statement webhook, authenticated by HMAC
	r.Post("/v1/readout", readoutHandler.HandleReadout)

	// Operator routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.RequireRole(middleware.RoleAdmin))
		r.Use(middleware.OperatorRateLimiter(operatorRateLimitRPS))

		r.Get("/v1/admin/deals", adminHandler.ListDeals)
		r.Get("/v1/admin/deals/{id}/events", adminHandler.DealEvents)
	})

	return r
}
