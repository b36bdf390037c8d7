package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/harborline/storefront/internal/application/cartops"
	apppricing "github.com/harborline/storefront/internal/application/pricing"
	"github.com/harborline/storefront/internal/application/rates"
	"github.com/harborline/storefront/internal/application/settlement"
	"github.com/harborline/storefront/internal/config"
	"github.com/harborline/storefront/internal/domain/currency"
	"github.com/harborline/storefront/internal/domain/product"
	"github.com/harborline/storefront/internal/domain/user"
	"github.com/harborline/storefront/internal/infrastructure/exchange"
	"github.com/harborline/storefront/internal/infrastructure/gateway"
	"github.com/harborline/storefront/internal/infrastructure/memory"
	httppresentation "github.com/harborline/storefront/internal/presentation/http"
	"github.com/harborline/storefront/internal/pkg/logging"
)

func main() {
	cfg := config.Load()

	logger := logging.MustNewLogger(cfg.ServiceName, cfg.Env)
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	rateSyncRuns := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_sync_runs_total",
			Help: "Rate synchronization runs by outcome.",
		},
		[]string{"outcome"},
	)
	paymentEvents := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_events_total",
			Help: "Processed payment webhook deliveries by outcome.",
		},
		[]string{"outcome"},
	)
	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)
	httpDurations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	prometheus.MustRegister(rateSyncRuns, paymentEvents, httpRequests, httpDurations)

	currencyStore := memory.NewCurrencyStore()
	userRepo := memory.NewUserRepository()
	productRepo := memory.NewProductRepository()
	orderRepo := memory.NewOrderRepository()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.ContextWithLogger(ctx, logger)

	if cfg.SeedDemoData {
		if err := seed(ctx, currencyStore, userRepo, productRepo); err != nil {
			logger.Fatal("seed_failed", zap.Error(err))
		}
	}

	provider := exchange.NewClient(cfg.RateProviderURL, cfg.RateProviderAPIKey, cfg.RateFetchTimeout)
	synchronizer := rates.NewSynchronizer(currencyStore, provider, cfg.RateSyncInterval, rateSyncRuns)
	if cfg.RateProviderURL != "" {
		go synchronizer.Run(ctx)
	} else {
		logger.Warn("rate_sync_disabled", zap.String("reason", "no provider url configured"))
	}

	pricingSvc := apppricing.NewService(productRepo, userRepo, currencyStore)
	cartSvc := cartops.NewService(userRepo, productRepo)
	processor := settlement.NewProcessor(
		gateway.NewHMACGateway(cfg.WebhookSecret),
		userRepo, productRepo, orderRepo, currencyStore,
		paymentEvents,
	)

	handler := httppresentation.NewHandler(
		pricingSvc, cartSvc, processor, currencyStore, orderRepo,
		&httppresentation.Metrics{Requests: httpRequests, Durations: httpDurations},
	)

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: handler.Router(),
		BaseContext: func(net.Listener) context.Context {
			return logging.ContextWithLogger(context.Background(), logger)
		},
	}

	go func() {
		logger.Info("http_server_start", zap.String("addr", server.Addr))
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error", zap.Error(err))
	} else {
		logger.Info("http_server_stopped")
	}
}

// seed loads a minimal data set for local runs: the base currency, a demo
// user and two products priced in base minor units.
func seed(ctx context.Context, currencies currency.Store, users *memory.UserRepository, products *memory.ProductRepository) error {
	now := time.Now().UTC()

	for _, c := range []currency.Currency{
		{Code: "USD", Symbol: "$", Rate: 100, UpdatedAt: now},
		{Code: "EUR", Symbol: "€", Rate: 92, UpdatedAt: now},
	} {
		if err := currencies.Upsert(ctx, c); err != nil {
			return err
		}
	}

	for _, p := range []product.Product{
		{ID: "prod-tee", Name: "Logo Tee", BasePrice: 1900, BaseFullPrice: 2500},
		{ID: "prod-mug", Name: "Stone Mug", BasePrice: 1200, BaseFullPrice: 1200},
	} {
		if err := products.Save(ctx, &p); err != nil {
			return err
		}
	}

	return users.Save(ctx, &user.User{ID: "user-demo", Email: "demo@example.com"})
}
