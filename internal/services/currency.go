package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/shopspring/decimal"

	"github.com/codyseavey/tcg-wishlist/internal/cache"
	"github.com/codyseavey/tcg-wishlist/internal/metrics"
	"github.com/codyseavey/tcg-wishlist/internal/models"
)

const exchangeRateBaseURL = "https://api.exchangerate-api.com/v4"

// DefaultEURToUSD is used until a rate has been fetched successfully
var DefaultEURToUSD = decimal.RequireFromString("1.09")

// RateFetcher retrieves a live exchange rate
type RateFetcher interface {
	FetchRate(ctx context.Context, base, quote string) (decimal.Decimal, error)
}

// ExchangeRateAPI is a RateFetcher for exchangerate-api.com
type ExchangeRateAPI struct {
	client  *http.Client
	baseURL string
}

func NewExchangeRateAPI(baseURL string) *ExchangeRateAPI {
	if baseURL == "" {
		baseURL = exchangeRateBaseURL
	}
	client := cleanhttp.DefaultClient()
	client.Timeout = 10 * time.Second
	return &ExchangeRateAPI{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type exchangeRateResponse struct {
	Base  string                  `json:"base"`
	Rates map[string]models.Price `json:"rates"`
}

func (e *ExchangeRateAPI) FetchRate(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	reqURL := fmt.Sprintf("%s/latest/%s", e.baseURL, strings.ToUpper(base))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch exchange rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("exchange rate API returned status %d", resp.StatusCode)
	}

	var body exchangeRateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode exchange rate response: %w", err)
	}

	rate, ok := body.Rates[strings.ToUpper(quote)].Decimal()
	if !ok || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("exchange rate response has no usable %s rate", quote)
	}
	return rate, nil
}

// RateStatus describes the rate currently in use
type RateStatus struct {
	Base        string          `json:"base"`
	Quote       string          `json:"quote"`
	Rate        decimal.Decimal `json:"rate"`
	FetchedAt   *time.Time      `json:"fetched_at,omitempty"`
	Fallback    bool            `json:"fallback"`
	LastAttempt *time.Time      `json:"last_attempt,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
}

// CurrencyConverter holds the process-wide conversion rate for provider prices.
// The upstream source is asked at most once per rate window; a failed fetch
// keeps the previous rate, or the fallback when there never was one.
type CurrencyConverter struct {
	fetcher  RateFetcher
	store    *cache.Store[decimal.Decimal]
	base     string
	quote    string
	fallback decimal.Decimal
	window   time.Duration
	now      func() time.Time

	mu          sync.Mutex
	rate        decimal.Decimal
	fetchedAt   time.Time
	lastAttempt time.Time
	lastError   string
}

func NewCurrencyConverter(fetcher RateFetcher, kv cache.KVStore) *CurrencyConverter {
	c := &CurrencyConverter{
		fetcher:  fetcher,
		base:     "EUR",
		quote:    models.CurrencyUSD,
		fallback: DefaultEURToUSD,
		window:   cache.RateWindow,
		now:      time.Now,
	}
	if kv != nil {
		c.store = cache.NewStore[decimal.Decimal](kv, "rate", cache.RateWindow)
	}
	return c
}

// WithFallback overrides the rate used before any successful fetch
func (c *CurrencyConverter) WithFallback(rate decimal.Decimal) *CurrencyConverter {
	if rate.IsPositive() {
		c.fallback = rate
	}
	return c
}

// WithClock replaces the time source. Used by tests.
func (c *CurrencyConverter) WithClock(now func() time.Time) *CurrencyConverter {
	c.now = now
	if c.store != nil {
		c.store.WithClock(now)
	}
	return c
}

// GetRate returns the current rate. It never fails.
func (c *CurrencyConverter) GetRate(ctx context.Context) decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.lastAttempt.IsZero() && now.Sub(c.lastAttempt) < c.window {
		return c.current()
	}

	if c.store != nil {
		if entry, ok := c.store.Get(ctx, cache.ExchangeRateKey(c.base, c.quote)); ok && entry.Value.IsPositive() {
			c.rate = entry.Value
			c.fetchedAt = entry.StoredAt
			c.lastAttempt = entry.StoredAt
			c.lastError = ""
			metrics.ExchangeRate.Set(c.rate.InexactFloat64())
			return c.rate
		}
	}

	c.fetchLocked(ctx, now)
	return c.current()
}

// Refresh fetches a new rate regardless of the window.
func (c *CurrencyConverter) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchLocked(ctx, c.now())
}

func (c *CurrencyConverter) Status() RateStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := RateStatus{
		Base:      c.base,
		Quote:     c.quote,
		Rate:      c.current(),
		Fallback:  c.rate.IsZero(),
		LastError: c.lastError,
	}
	if !c.fetchedAt.IsZero() {
		t := c.fetchedAt
		status.FetchedAt = &t
	}
	if !c.lastAttempt.IsZero() {
		t := c.lastAttempt
		status.LastAttempt = &t
	}
	return status
}

func (c *CurrencyConverter) current() decimal.Decimal {
	if c.rate.IsZero() {
		return c.fallback
	}
	return c.rate
}

func (c *CurrencyConverter) fetchLocked(ctx context.Context, now time.Time) error {
	c.lastAttempt = now
	if c.fetcher == nil {
		c.lastError = "no rate source configured"
		return fmt.Errorf("no rate source configured")
	}

	rate, err := c.fetcher.FetchRate(ctx, c.base, c.quote)
	if err != nil {
		metrics.ExchangeRateFetchesTotal.WithLabelValues("failed").Inc()
		c.lastError = err.Error()
		log.Printf("Currency: rate fetch failed, keeping %s: %v", c.current(), err)
		return err
	}

	metrics.ExchangeRateFetchesTotal.WithLabelValues("success").Inc()
	metrics.ExchangeRate.Set(rate.InexactFloat64())
	c.rate = rate
	c.fetchedAt = now
	c.lastError = ""
	log.Printf("Currency: %s->%s rate is now %s", c.base, c.quote, rate)

	if c.store != nil {
		_ = c.store.Put(ctx, cache.ExchangeRateKey(c.base, c.quote), rate)
	}
	return nil
}
