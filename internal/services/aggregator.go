package services

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/codyseavey/tcg-wishlist/internal/metrics"
	"github.com/codyseavey/tcg-wishlist/internal/models"
)

// Outcome describes how an aggregation run ended
type Outcome string

const (
	// OutcomeComplete means the upstream signalled the end of the data
	OutcomeComplete Outcome = "complete"
	// OutcomeExhausted means the page ceiling was reached first
	OutcomeExhausted Outcome = "exhausted"
	// OutcomePartial means a page failed after some data was collected
	OutcomePartial Outcome = "partial"
	// OutcomeFailed means a page failed before any data was collected
	OutcomeFailed Outcome = "failed"
)

// Cacheable reports whether results with this outcome may be stored
func (o Outcome) Cacheable() bool {
	return o == OutcomeComplete || o == OutcomeExhausted
}

// CardSearchProvider is the paged card search upstream. Identical params must
// return identical pages.
type CardSearchProvider interface {
	SearchCards(ctx context.Context, params SearchParams) (*models.ProviderPage[models.ProviderCardRecord], error)
}

// RateSource supplies the exchange rate applied to provider prices
type RateSource interface {
	GetRate(ctx context.Context) decimal.Decimal
}

type SearchParams struct {
	Name        string
	ExpansionID string
	Page        int
	PageSize    int
	Sort        string
}

// AggregationResult is a finished run. Cards are deduplicated by id in first-seen
// order and are not sorted.
type AggregationResult struct {
	Cards             []models.Card
	PagesFetched      int
	DuplicatesDropped int
	Outcome           Outcome
	Err               error
}

// DedupAggregator walks the provider's pages for one query and merges them.
type DedupAggregator struct {
	provider CardSearchProvider
	rates    RateSource
	pageSize int
}

func NewDedupAggregator(provider CardSearchProvider, rates RateSource) *DedupAggregator {
	return &DedupAggregator{
		provider: provider,
		rates:    rates,
	}
}

// WithPageSize sets the page size requested upstream; zero leaves it to the provider.
func (a *DedupAggregator) WithPageSize(n int) *DedupAggregator {
	a.pageSize = n
	return a
}

// Aggregate returns the deduplicated cards for query, fetching at most maxPages
// pages plus one lookahead page. Page failures end the run early and return what was collected.
func (a *DedupAggregator) Aggregate(ctx context.Context, query models.SearchQuery, maxPages int) []models.Card {
	return a.Run(ctx, query, maxPages).Cards
}

// Run is Aggregate with run statistics and the outcome.
func (a *DedupAggregator) Run(ctx context.Context, query models.SearchQuery, maxPages int) AggregationResult {
	start := time.Now()

	// One rate for the whole run so every card is priced consistently
	rate := decimal.NewFromInt(1)
	if a.rates != nil {
		rate = a.rates.GetRate(ctx)
	}

	fetch := func(ctx context.Context, page int) (*models.ProviderPage[models.ProviderCardRecord], error) {
		return a.provider.SearchCards(ctx, SearchParams{
			Name:        strings.TrimSpace(query.Name),
			ExpansionID: query.ExpansionID,
			Page:        page,
			PageSize:    a.pageSize,
			Sort:        string(models.SortRelevance),
		})
	}
	collected := collectPages(ctx, maxPages, fetch, func(rec models.ProviderCardRecord) string {
		return rec.ID.String()
	})

	cards := make([]models.Card, 0, len(collected.items))
	for _, rec := range collected.items {
		cards = append(cards, ToCard(rec, rate))
	}

	metrics.AggregationRunsTotal.WithLabelValues("cards", string(collected.outcome)).Inc()
	metrics.AggregationPagesFetched.Observe(float64(collected.pagesFetched))
	metrics.AggregationDuplicatesDropped.Add(float64(collected.duplicates))

	log.Printf("Aggregator: query=%q expansion=%q outcome=%s cards=%d pages=%d duplicates=%d in %v",
		query.Name, query.ExpansionID, collected.outcome, len(cards), collected.pagesFetched,
		collected.duplicates, time.Since(start).Round(time.Millisecond))

	return AggregationResult{
		Cards:             cards,
		PagesFetched:      collected.pagesFetched,
		DuplicatesDropped: collected.duplicates,
		Outcome:           collected.outcome,
		Err:               collected.err,
	}
}

type pageFetcher[T any] func(ctx context.Context, page int) (*models.ProviderPage[T], error)

type pageCollection[T any] struct {
	items        []T
	pagesFetched int
	duplicates   int
	outcome      Outcome
	err          error
}

// collectPages requests pages 0, 1, ... strictly in order and keeps the first
// record seen for each key. It stops on an empty page, on a fetch error, or after
// maxPages requests. Once the upstream's reported last page is read, one more page
// is requested and the run ends, even if that page is past maxPages. Records with
// an empty key are dropped.
func collectPages[T any](ctx context.Context, maxPages int, fetch pageFetcher[T], key func(T) string) pageCollection[T] {
	if maxPages < 1 {
		maxPages = 1
	}

	res := pageCollection[T]{outcome: OutcomeExhausted}
	seen := make(map[string]struct{})
	accept := func(records []T) int {
		added := 0
		for _, rec := range records {
			k := key(rec)
			if k == "" {
				continue
			}
			if _, dup := seen[k]; dup {
				res.duplicates++
				continue
			}
			seen[k] = struct{}{}
			res.items = append(res.items, rec)
			added++
		}
		return added
	}
	fail := func(err error) {
		res.err = err
		if len(res.items) == 0 {
			res.outcome = OutcomeFailed
		} else {
			res.outcome = OutcomePartial
		}
	}

	for page := 0; page < maxPages; page++ {
		if err := ctx.Err(); err != nil {
			fail(err)
			return res
		}

		resp, err := fetch(ctx, page)
		res.pagesFetched++
		if err != nil {
			log.Printf("Aggregator: page %d failed, keeping %d records: %v", page, len(res.items), err)
			fail(err)
			return res
		}
		if resp == nil || len(resp.Data) == 0 {
			res.outcome = OutcomeComplete
			return res
		}
		accept(resp.Data)

		total, ok := resp.Paging.Pages()
		if !ok || page < total-1 {
			continue
		}

		// Upstream totals are sometimes off by one, so look one page further.
		// This single extra request may go past maxPages.
		next := page + 1
		extra, err := fetch(ctx, next)
		res.pagesFetched++
		if err != nil {
			log.Printf("Aggregator: lookahead page %d failed: %v", next, err)
		} else if extra != nil {
			if added := accept(extra.Data); added > 0 {
				log.Printf("Aggregator: lookahead page %d recovered %d records past reported total %d", next, added, total)
				metrics.AggregationLookaheadRecovered.Add(float64(added))
			}
		}
		res.outcome = OutcomeComplete
		return res
	}
	return res
}
