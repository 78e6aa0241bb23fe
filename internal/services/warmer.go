package services

import (
	"context"
	"errors"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/codyseavey/tcg-wishlist/internal/cache"
	"github.com/codyseavey/tcg-wishlist/internal/metrics"
	"github.com/codyseavey/tcg-wishlist/internal/models"
)

const (
	defaultWarmInterval = 6 * time.Hour
	// Expansions warmed per pass, so one pass never floods the upstream
	defaultWarmBatchSize = 5
)

// RateRefresher is the part of CurrencyConverter the warmer drives
type RateRefresher interface {
	GetRate(ctx context.Context) decimal.Decimal
}

// CatalogRefresher is the part of CatalogService the warmer drives
type CatalogRefresher interface {
	RefreshExpansions(ctx context.Context) (int, bool, error)
	ExpansionCards(ctx context.Context, expansionID string, sort models.SortMode) (CatalogResult, error)
}

// CachePurger deletes cache rows older than cutoff
type CachePurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type WarmerStatus struct {
	LastRunTime        time.Time `json:"last_run_time"`
	NextRunTime        time.Time `json:"next_run_time"`
	ExpansionsCached   int       `json:"expansions_cached"`
	ExpansionsWarmed   int       `json:"expansions_warmed"`
	QueueSize          int       `json:"queue_size"`
	Rate               string    `json:"rate"`
	LastError          string    `json:"last_error,omitempty"`
	PurgedCacheEntries int64     `json:"purged_cache_entries"`
}

// WarmResult summarizes one pass
type WarmResult struct {
	Rate             decimal.Decimal
	Expansions       int
	CatalogCached    bool
	ExpansionsWarmed []string
	Purged           int64
}

// CatalogWarmer keeps the exchange rate and expansion catalog fresh in the
// background and warms card lists users asked for.
type CatalogWarmer struct {
	rates    RateRefresher
	catalog  CatalogRefresher
	purger   CachePurger
	interval time.Duration
	batch    int

	queueMu sync.Mutex
	queue   []string

	mu     sync.RWMutex
	status WarmerStatus
}

func NewCatalogWarmer(rates RateRefresher, catalog CatalogRefresher, interval time.Duration) *CatalogWarmer {
	if interval <= 0 {
		interval = defaultWarmInterval
	}
	return &CatalogWarmer{
		rates:    rates,
		catalog:  catalog,
		interval: interval,
		batch:    defaultWarmBatchSize,
	}
}

// WithPurger enables removal of cache rows that outlived the card window.
func (w *CatalogWarmer) WithPurger(p CachePurger) *CatalogWarmer {
	w.purger = p
	return w
}

func (w *CatalogWarmer) WithBatchSize(n int) *CatalogWarmer {
	if n > 0 {
		w.batch = n
	}
	return w
}

// QueueExpansion asks the next pass to warm an expansion's card list. It returns
// the 1-based queue position.
func (w *CatalogWarmer) QueueExpansion(expansionID string) int {
	expansionID = strings.TrimSpace(expansionID)
	if expansionID == "" {
		return 0
	}

	w.queueMu.Lock()
	defer w.queueMu.Unlock()

	if i := slices.Index(w.queue, expansionID); i >= 0 {
		return i + 1
	}
	w.queue = append(w.queue, expansionID)
	log.Printf("Warmer: queued expansion %s (queue size: %d)", expansionID, len(w.queue))
	return len(w.queue)
}

func (w *CatalogWarmer) QueueSize() int {
	w.queueMu.Lock()
	defer w.queueMu.Unlock()
	return len(w.queue)
}

func (w *CatalogWarmer) Status() WarmerStatus {
	w.mu.RLock()
	status := w.status
	w.mu.RUnlock()
	status.QueueSize = w.QueueSize()
	return status
}

// Start runs a pass immediately and then every interval until ctx is done.
func (w *CatalogWarmer) Start(ctx context.Context) {
	log.Printf("Warmer started: refreshing every %v", w.interval)

	w.runLogged(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Warmer stopping...")
			return
		case <-ticker.C:
			w.runLogged(ctx)
		}
	}
}

func (w *CatalogWarmer) runLogged(ctx context.Context) {
	res, err := w.RunOnce(ctx)
	if err != nil {
		log.Printf("Warmer: pass failed: %v", err)
		return
	}
	log.Printf("Warmer: rate %s, %d expansions (cached: %v), warmed %d expansion card lists",
		res.Rate.StringFixed(4), res.Expansions, res.CatalogCached, len(res.ExpansionsWarmed))
}

// RunOnce performs a single pass. Errors from individual steps are joined; the
// remaining steps still run.
func (w *CatalogWarmer) RunOnce(ctx context.Context) (WarmResult, error) {
	var res WarmResult
	var errs []error

	res.Rate = w.rates.GetRate(ctx)

	n, cached, err := w.catalog.RefreshExpansions(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	res.Expansions = n
	res.CatalogCached = cached

	for _, id := range w.takeBatch() {
		out, err := w.catalog.ExpansionCards(ctx, id, models.SortRelevance)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if out.Degraded() {
			// Try again next pass
			w.QueueExpansion(id)
			continue
		}
		res.ExpansionsWarmed = append(res.ExpansionsWarmed, id)
	}

	if w.purger != nil {
		purged, err := w.purger.PurgeOlderThan(ctx, time.Now().Add(-cache.CardWindow))
		if err != nil {
			errs = append(errs, err)
		}
		res.Purged = purged
	}

	err = errors.Join(errs...)
	w.record(res, err)
	return res, err
}

func (w *CatalogWarmer) takeBatch() []string {
	w.queueMu.Lock()
	defer w.queueMu.Unlock()

	n := min(w.batch, len(w.queue))
	batch := slices.Clone(w.queue[:n])
	w.queue = w.queue[n:]
	return batch
}

func (w *CatalogWarmer) record(res WarmResult, err error) {
	result := "success"
	if err != nil {
		result = "failed"
	}
	metrics.WarmerRunsTotal.WithLabelValues(result).Inc()

	now := time.Now()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.LastRunTime = now
	w.status.NextRunTime = now.Add(w.interval)
	w.status.ExpansionsCached = res.Expansions
	w.status.ExpansionsWarmed += len(res.ExpansionsWarmed)
	w.status.Rate = res.Rate.StringFixed(4)
	w.status.PurgedCacheEntries += res.Purged
	w.status.LastError = ""
	if err != nil {
		w.status.LastError = err.Error()
	}
}
