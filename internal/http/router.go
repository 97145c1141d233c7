// Package httpapi wires the HTTP transport (Gin) to the purchase services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, CORS,
// security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/uptech/buykit/internal/config"
	"github.com/uptech/buykit/internal/domain"
	"github.com/uptech/buykit/internal/http/handlers"
	"github.com/uptech/buykit/internal/http/middleware"
	"github.com/uptech/buykit/internal/platform"
	"github.com/uptech/buykit/internal/repo"
	"github.com/uptech/buykit/internal/services"
)

// receiptStoreShim adapts the repository free functions to the
// services.ReceiptStore interface expected by the LedgerService. This keeps
// services decoupled from the concrete repo package while reusing existing
// functions.
type receiptStoreShim struct{}

// GetStringList proxies repo.GetStringList.
func (receiptStoreShim) GetStringList(ctx context.Context, db *gorm.DB, key string) ([]string, error) {
	return repo.GetStringList(ctx, db, key)
}

// PutStringList proxies repo.PutStringList.
func (receiptStoreShim) PutStringList(ctx context.Context, db *gorm.DB, key string, values []string) error {
	return repo.PutStringList(ctx, db, key, values)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and wires the purchase services together: the ledger is loaded from
// the receipts store, the coordinator is registered as the payment queue's
// transaction handler, and an initial catalog lookup is issued when product
// ids are configured.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured request logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip response compression
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, queue *platform.MemoryQueue, client services.CatalogClient, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Response compression
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, productID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, productID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 9) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Swagger UI (opt-in)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/queue/catalog client
	ledger := services.NewLedgerService(db, receiptStoreShim{})
	catalog := services.NewCatalogService(client, cfg.PriceLocale)
	coord := services.NewPurchaseCoordinator(queue, ledger, platform.LogReporter{})
	coord.CancelledErrorCode = cfg.CancelledErrorCode
	coord.CapabilityRecheck = cfg.CapabilityRecheck
	if cfg.AutoUnlock {
		// The server is its own host application: grant the entitlement
		// directly once a transaction passes validation. Without a hook,
		// settled transactions would park forever.
		coord.SetUnlockHook(func(domain.Transaction) bool { return true })
	}
	queue.SetHandler(coord)
	if cfg.AutoUnlock {
		// Complete anything parked before the hook existed.
		queue.RedeliverPending(context.Background())
	}

	if err := ledger.Load(context.Background()); err != nil {
		// A failed load leaves an empty in-memory set; the service stays usable.
		log.Error().Err(err).Msg("ledger load failed at startup")
	}
	if len(cfg.ProductIDs) > 0 {
		catalog.Load(context.Background(), cfg.ProductIDs)
	}

	h := handlers.New(catalog, coord, ledger, queue, db, cfg.IdempotencyTTL)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Catalog
		api.GET("/products", h.ListProducts)
		api.GET("/products/:id", h.GetProduct)
		api.POST("/products/refresh", h.RefreshProducts)

		// Purchases
		api.POST("/products/:id/purchase", h.CreatePurchase)
		api.POST("/purchases/restore", h.RestorePurchases)
		api.GET("/payments/capability", h.GetPaymentCapability)

		// Entitlements
		api.GET("/entitlements", h.ListEntitlements)
		api.GET("/entitlements/:id", h.GetEntitlement)

		// Platform delivery
		api.POST("/platform/transactions", h.DeliverTransactions)
		api.POST("/platform/restore-completed", h.RestoreCompleted)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
