package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/openbasket/storefront-client/internal/cart"
	"github.com/openbasket/storefront-client/internal/catalog"
	"github.com/openbasket/storefront-client/internal/rest"
	"github.com/openbasket/storefront-client/internal/session"
	"github.com/openbasket/storefront-client/pkg/config"
	"github.com/openbasket/storefront-client/pkg/logger"
	"github.com/openbasket/storefront-client/pkg/metrics"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "storefront"})

	if err := godotenv.Load(); err != nil {
		logg.Debug(ctx, "no .env file found")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	sessionStore := session.NewStore()
	clientMetrics := metrics.NewClientMetrics(prometheus.DefaultRegisterer)

	apiClient, err := rest.NewClient(rest.Options{
		BaseURL:     cfg.API.BaseURL,
		UserAgent:   cfg.API.UserAgent,
		Platform:    cfg.API.Platform,
		Fingerprint: cfg.Identity.Fingerprint,
		HTTPClient:  &http.Client{Timeout: cfg.API.RequestTimeout},
		Session:     sessionStore,
		Logger:      logg,
		Metrics:     clientMetrics,
	})
	requireResource(ctx, logg, "api client", err)

	catalogService, err := catalog.NewService(apiClient)
	requireResource(ctx, logg, "catalog service", err)

	cartStore, err := cart.NewStore(apiClient, sessionStore, logg)
	requireResource(ctx, logg, "cart store", err)

	runCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"baseUrl":  cfg.API.BaseURL,
		"platform": cfg.API.Platform,
	})
	logg.Info(runCtx, "storefront client ready")

	tree, err := catalogService.CategoryTree(runCtx)
	requireResource(runCtx, logg, "category tree", err)
	logg.Info(runCtx, fmt.Sprintf("loaded %d top-level categories", len(tree)))

	if err := cartStore.Fetch(runCtx); err != nil {
		logg.Error(runCtx, "cart fetch failed", err)
		os.Exit(1)
	}
	logg.Info(runCtx, fmt.Sprintf("cart loaded with %d seller groups", len(cartStore.Groups())))
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
