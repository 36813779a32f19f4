package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Chrissou78/omniswap-sub002/internal/logger"
)

const requestTimeout = 30 * time.Second

// Handlers groups everything NewRouter mounts. Nil handlers leave their
// routes unregistered.
type Handlers struct {
	Health       *HealthHandler
	Registry     *RegistryHandler
	Price        *PriceHandler
	Quote        *QuoteHandler
	Stream       *StreamHandler
	CustomTokens *CustomTokenHandler
	Audit        *AuditHandler
	Transactions *TransactionHandler
}

// NewRouter builds the HTTP API. origins governs CORS headers; the stream
// handler enforces the same policy on upgrade.
func NewRouter(h Handlers, origins OriginPolicy, log *zap.Logger) http.Handler {
	log = logger.OrNop(log).Named("http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(origins))

	if h.Health != nil {
		r.Get("/health", h.Health.Health)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// long-lived; must not inherit the request timeout
		if h.Stream != nil {
			r.Get("/quote/stream", h.Stream.Stream)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			if h.Registry != nil {
				r.Get("/chains", h.Registry.ListChains)
				r.Get("/tokens", h.Registry.ListTokens)
			}
			if h.Price != nil {
				r.Get("/price/{chainId}/{tokenAddress}", h.Price.GetPrice)
				r.Post("/prices", h.Price.GetPrices)
			}
			if h.Quote != nil {
				r.Get("/quote", h.Quote.GetQuote)
			}
			if h.CustomTokens != nil {
				r.Get("/custom-tokens", h.CustomTokens.List)
				r.Post("/custom-tokens", h.CustomTokens.Import)
				r.Delete("/custom-tokens/{chainId}/{address}", h.CustomTokens.Delete)
				r.Post("/custom-tokens/{chainId}/{address}/refresh", h.CustomTokens.Refresh)
			}
			if h.Audit != nil {
				r.Get("/audit/{chainId}/{tokenAddress}", h.Audit.GetAudit)
			}
			if h.Transactions != nil {
				r.Post("/transactions", h.Transactions.Record)
			}
		})
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
