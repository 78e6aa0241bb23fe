package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/codyseavey/tcg-wishlist/internal/api"
	"github.com/codyseavey/tcg-wishlist/internal/api/middleware"
	"github.com/codyseavey/tcg-wishlist/internal/cache"
	"github.com/codyseavey/tcg-wishlist/internal/config"
	"github.com/codyseavey/tcg-wishlist/internal/database"
	"github.com/codyseavey/tcg-wishlist/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Prices go out as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	if err := database.Initialize(cfg.Database.Path); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	kv, closeKV, err := cache.OpenBackend(cfg.Cache, database.GetDB())
	if err != nil {
		log.Fatalf("Failed to open cache backend: %v", err)
	}
	defer closeKV()

	// Card provider; without a key every upstream call fails and searches come back empty
	provider := services.NewPokemonTCGService(services.PokemonTCGOptions{
		APIKey:            cfg.RapidAPI.Key,
		Host:              cfg.RapidAPI.Host,
		BaseURL:           cfg.RapidAPI.BaseURL,
		RequestsPerSecond: cfg.RapidAPI.RequestsPerSecond,
		Burst:             cfg.RapidAPI.Burst,
		Timeout:           cfg.RapidAPI.Timeout,
	})
	if !provider.IsConfigured() {
		log.Println("WARNING: TCGWISH_RAPIDAPI_KEY is not set, card search will not return results")
	}

	currency := services.NewCurrencyConverter(services.NewExchangeRateAPI(cfg.ExchangeRate.BaseURL), kv).
		WithFallback(decimal.NewFromFloat(cfg.ExchangeRate.Fallback))

	aggregator := services.NewDedupAggregator(provider, currency).WithPageSize(cfg.Aggregation.PageSize)
	catalog := services.NewCatalogService(aggregator, provider, kv, services.CatalogLimits{
		SearchMaxPages:    cfg.Aggregation.SearchMaxPages,
		ExpansionMaxPages: cfg.Aggregation.ExpansionMaxPages,
		CatalogMaxPages:   cfg.Aggregation.CatalogMaxPages,
	})

	wishlist := services.NewWishlistService(database.GetDB())
	budget := services.NewBudgetService(database.GetDB())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var warmer *services.CatalogWarmer
	if cfg.Warmer.Enabled {
		warmer = services.NewCatalogWarmer(currency, catalog, cfg.Warmer.Interval).WithBatchSize(cfg.Warmer.BatchSize)
		if cfg.Warmer.Purge && cfg.Cache.Backend == config.BackendDatabase {
			warmer = warmer.WithPurger(database.NewKVStore(database.GetDB()))
		}

		// Start warmer in background with panic recovery
		go func() {
			for {
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in warmer: %v - restarting in 30 seconds", r)
						}
					}()
					warmer.Start(ctx)
				}()

				select {
				case <-ctx.Done():
					return
				case <-time.After(30 * time.Second):
					log.Println("Warmer restarting after panic recovery...")
				}
			}
		}()
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	go limiter.RunCleanup(ctx)

	router := api.SetupRouter(api.Dependencies{
		Catalog:            catalog,
		Currency:           currency,
		Wishlist:           wishlist,
		Budget:             budget,
		Warmer:             warmer,
		Limiter:            limiter,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		FrontendDistPath:   cfg.Server.FrontendDistPath,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s (cache backend: %s)", cfg.Server.Port, cfg.Cache.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Stops the warmer and limiter cleanup
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
