// Command buykit-server runs the purchase-tracking HTTP service.
//
// Startup order:
//  1. Load .env (best effort) and the environment configuration.
//  2. Configure global logging (level + optional pretty console output).
//  3. Open the SQLite receipts store and run migrations.
//  4. Set up OpenTelemetry tracing (when enabled).
//  5. Build the payment queue, the bundled catalog client, and the router.
//  6. Serve until SIGINT/SIGTERM, then drain with a bounded shutdown window.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/uptech/buykit/internal/config"
	"github.com/uptech/buykit/internal/domain"
	httpapi "github.com/uptech/buykit/internal/http"
	"github.com/uptech/buykit/internal/observability"
	"github.com/uptech/buykit/internal/platform"
	"github.com/uptech/buykit/internal/repo"
	"github.com/uptech/buykit/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is a dev convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("could not open receipts store")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("could not migrate receipts store")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("could not set up tracing")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	queue := platform.NewMemoryQueue(cfg.AllowPayments)
	client := platform.NewStaticCatalog(loadCatalogSeed(cfg.CatalogFile))

	r := gin.New()
	httpapi.RegisterRoutes(r, db, queue, client, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// loadCatalogSeed reads the optional catalog seed file (a JSON array of
// product descriptors). A missing or unreadable file yields an empty catalog;
// a populated catalog can still be requested later via /products/refresh.
func loadCatalogSeed(path string) []domain.Product {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("could not read catalog seed")
		return nil
	}
	var products []domain.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("invalid catalog seed")
		return nil
	}
	return products
}
