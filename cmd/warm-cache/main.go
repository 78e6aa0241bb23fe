// warm-cache fills the response cache ahead of traffic: it refreshes the
// exchange rate, loads the expansion catalog and aggregates the card lists of
// the given expansions.
//
// Usage: go run ./cmd/warm-cache [-all] [-timeout=10m] [expansion-id ...]
//
// Configuration is read the same way as the server (TCGWISH_* env vars or
// TCGWISH_CONFIG). With -all every expansion in the catalog is warmed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/codyseavey/tcg-wishlist/internal/cache"
	"github.com/codyseavey/tcg-wishlist/internal/config"
	"github.com/codyseavey/tcg-wishlist/internal/database"
	"github.com/codyseavey/tcg-wishlist/internal/services"
)

func main() {
	all := flag.Bool("all", false, "Warm every expansion in the catalog")
	timeout := flag.Duration("timeout", 10*time.Minute, "Give up after this long")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Cache.Backend == config.BackendMemory {
		log.Fatal("Cache backend is memory; warming it from a separate process has no effect")
	}

	if err := database.Initialize(cfg.Database.Path); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	kv, closeKV, err := cache.OpenBackend(cfg.Cache, database.GetDB())
	if err != nil {
		log.Fatalf("Failed to open cache backend: %v", err)
	}
	defer closeKV()

	provider := services.NewPokemonTCGService(services.PokemonTCGOptions{
		APIKey:            cfg.RapidAPI.Key,
		Host:              cfg.RapidAPI.Host,
		BaseURL:           cfg.RapidAPI.BaseURL,
		RequestsPerSecond: cfg.RapidAPI.RequestsPerSecond,
		Burst:             cfg.RapidAPI.Burst,
		Timeout:           cfg.RapidAPI.Timeout,
	})
	if !provider.IsConfigured() {
		log.Fatal("TCGWISH_RAPIDAPI_KEY is required")
	}

	currency := services.NewCurrencyConverter(services.NewExchangeRateAPI(cfg.ExchangeRate.BaseURL), kv).
		WithFallback(decimal.NewFromFloat(cfg.ExchangeRate.Fallback))
	aggregator := services.NewDedupAggregator(provider, currency).WithPageSize(cfg.Aggregation.PageSize)
	catalog := services.NewCatalogService(aggregator, provider, kv, services.CatalogLimits{
		SearchMaxPages:    cfg.Aggregation.SearchMaxPages,
		ExpansionMaxPages: cfg.Aggregation.ExpansionMaxPages,
		CatalogMaxPages:   cfg.Aggregation.CatalogMaxPages,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	ids := flag.Args()
	if *all {
		exps, _, err := catalog.Expansions(ctx)
		if err != nil {
			log.Fatalf("Failed to load expansion catalog: %v", err)
		}
		for _, exp := range exps {
			ids = append(ids, exp.ID)
		}
	}

	// One pass handles the whole list
	warmer := services.NewCatalogWarmer(currency, catalog, time.Hour).WithBatchSize(max(len(ids), 1))
	for _, id := range ids {
		warmer.QueueExpansion(id)
	}

	res, err := warmer.RunOnce(ctx)

	fmt.Println("=== Warm Summary ===")
	fmt.Printf("Exchange rate (EUR->USD): %s\n", res.Rate.StringFixed(4))
	fmt.Printf("Expansions in catalog:    %d (already cached: %v)\n", res.Expansions, res.CatalogCached)
	fmt.Printf("Expansions warmed:        %d of %d\n", len(res.ExpansionsWarmed), len(ids))
	if left := warmer.QueueSize(); left > 0 {
		fmt.Printf("Incomplete (retry later): %d\n", left)
	}

	if err != nil {
		log.Printf("Warm finished with errors: %v", err)
		cancel()
		closeKV()
		os.Exit(1)
	}
}
