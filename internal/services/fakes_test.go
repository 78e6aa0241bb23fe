package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/codyseavey/tcg-wishlist/internal/models"
)

var errUpstream = errors.New("upstream unavailable")

// fakeProvider serves canned pages keyed by page index. Pages beyond the table
// are empty unless repeat is set, in which case the last page is served again.
type fakeProvider struct {
	mu       sync.Mutex
	pages    map[int]*models.ProviderPage[models.ProviderCardRecord]
	errs     map[int]error
	repeat   *models.ProviderPage[models.ProviderCardRecord]
	requests []SearchParams
}

func (f *fakeProvider) SearchCards(_ context.Context, params SearchParams) (*models.ProviderPage[models.ProviderCardRecord], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, params)

	if err, ok := f.errs[params.Page]; ok {
		return nil, err
	}
	if p, ok := f.pages[params.Page]; ok {
		return p, nil
	}
	if f.repeat != nil {
		return f.repeat, nil
	}
	return &models.ProviderPage[models.ProviderCardRecord]{}, nil
}

func (f *fakeProvider) pagesRequested() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.requests))
	for i, r := range f.requests {
		out[i] = r.Page
	}
	return out
}

func records(ids ...string) []models.ProviderCardRecord {
	out := make([]models.ProviderCardRecord, len(ids))
	for i, id := range ids {
		out[i] = models.ProviderCardRecord{ID: models.FlexString(id), Name: "Card " + id}
	}
	return out
}

func page(total int, ids ...string) *models.ProviderPage[models.ProviderCardRecord] {
	p := &models.ProviderPage[models.ProviderCardRecord]{Data: records(ids...)}
	if total > 0 {
		p.Paging = &models.Paging{Total: total}
	}
	return p
}

type fixedRate struct {
	mu    sync.Mutex
	rate  decimal.Decimal
	calls int
}

func (r *fixedRate) GetRate(context.Context) decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.rate
}

type fakeExpansionProvider struct {
	pages       map[int]*models.ProviderPage[models.ProviderEpisode]
	errs        map[int]error
	search      []models.ProviderEpisode
	searchErr   error
	listCalls   int
	searchCalls int
}

func (f *fakeExpansionProvider) ListExpansions(_ context.Context, page int) (*models.ProviderPage[models.ProviderEpisode], error) {
	f.listCalls++
	if err, ok := f.errs[page]; ok {
		return nil, err
	}
	if p, ok := f.pages[page]; ok {
		return p, nil
	}
	return &models.ProviderPage[models.ProviderEpisode]{}, nil
}

func (f *fakeExpansionProvider) SearchExpansions(_ context.Context, name string) ([]models.ProviderEpisode, error) {
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.search, nil
}

type fakeRateFetcher struct {
	rates []decimal.Decimal
	errs  []error
	calls int
}

func (f *fakeRateFetcher) FetchRate(context.Context, string, string) (decimal.Decimal, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return decimal.Zero, f.errs[i]
	}
	if i < len(f.rates) {
		return f.rates[i], nil
	}
	return decimal.Zero, fmt.Errorf("no rate scripted for call %d", i)
}

func cardIDs(cards []models.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}
