// Package metrics provides Prometheus metrics for the TCG wishlist service.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcgwish_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tcgwish_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Card provider metrics
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcgwish_provider_requests_total",
			Help: "Total number of card provider API requests",
		},
		[]string{"endpoint", "result"}, // result: "success", "http_error", "network", "decode"
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tcgwish_provider_request_duration_seconds",
			Help:    "Card provider API latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"endpoint"},
	)

	// Aggregation metrics
	AggregationRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcgwish_aggregation_runs_total",
			Help: "Paged aggregation runs by outcome",
		},
		[]string{"kind", "outcome"}, // kind: "cards", "expansions"
	)

	AggregationPagesFetched = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tcgwish_aggregation_pages_fetched",
			Help:    "Upstream pages requested per aggregation run",
			Buckets: []float64{1, 2, 3, 5, 10, 20, 50},
		},
	)

	AggregationDuplicatesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tcgwish_aggregation_duplicates_dropped_total",
			Help: "Records dropped because their id was already seen in the run",
		},
	)

	AggregationLookaheadRecovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tcgwish_aggregation_lookahead_recovered_total",
			Help: "Records found on the page past the reported last page",
		},
	)

	// Cache metrics
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcgwish_cache_lookups_total",
			Help: "Cache lookups by namespace and result",
		},
		[]string{"namespace", "result"}, // "hit", "miss", "expired", "error"
	)

	CacheWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcgwish_cache_writes_total",
			Help: "Cache writes by namespace and result",
		},
		[]string{"namespace", "result"},
	)

	// Exchange rate metrics
	ExchangeRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tcgwish_exchange_rate_eur_usd",
			Help: "EUR to USD rate currently applied to card prices",
		},
	)

	ExchangeRateFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcgwish_exchange_rate_fetches_total",
			Help: "Exchange rate fetch attempts by result",
		},
		[]string{"result"}, // "success", "failed"
	)

	// Warmer metrics
	WarmerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcgwish_warmer_runs_total",
			Help: "Catalog warmer passes by result",
		},
		[]string{"result"},
	)

	// Wishlist and budget metrics
	WishlistItemsAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tcgwish_wishlist_items_added_total",
			Help: "Cards added or refreshed on wishlists",
		},
	)

	WishlistComparisonsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tcgwish_wishlist_comparisons_total",
			Help: "Wishlist comparisons performed",
		},
	)

	BudgetItemsImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tcgwish_budget_items_imported_total",
			Help: "Cards copied from a wishlist into a budget",
		},
	)
)
