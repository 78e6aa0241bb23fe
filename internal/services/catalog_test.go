package services

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/codyseavey/tcg-wishlist/internal/cache"
	"github.com/codyseavey/tcg-wishlist/internal/models"
)

func newTestCatalog(t *testing.T, cards *fakeProvider, exps *fakeExpansionProvider) (*CatalogService, *cache.MemoryKV) {
	t.Helper()
	kv := newTestKV(t)
	if exps == nil {
		exps = &fakeExpansionProvider{}
	}
	svc := NewCatalogService(NewDedupAggregator(cards, nil), exps, kv, CatalogLimits{})
	return svc, kv
}

func TestCatalogSearchRejectsEmptyQuery(t *testing.T) {
	provider := &fakeProvider{}
	svc, _ := newTestCatalog(t, provider, nil)

	for _, q := range []string{"", "   ", "\t"} {
		if _, err := svc.SearchCards(context.Background(), q, models.SortRelevance); !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("SearchCards(%q) error = %v, want ErrEmptyQuery", q, err)
		}
	}
	if len(provider.requests) != 0 {
		t.Errorf("provider called %d times for empty queries, want 0", len(provider.requests))
	}
}

func TestCatalogSearchUsesCache(t *testing.T) {
	provider := &fakeProvider{
		pages: map[int]*models.ProviderPage[models.ProviderCardRecord]{
			0: page(1, "A", "B"),
		},
	}
	svc, _ := newTestCatalog(t, provider, nil)
	ctx := context.Background()

	first, err := svc.SearchCards(ctx, "Pikachu", models.SortRelevance)
	if err != nil {
		t.Fatalf("SearchCards() error = %v", err)
	}
	if first.Cached {
		t.Error("first search should not be cached")
	}
	requests := len(provider.requests)

	second, err := svc.SearchCards(ctx, "  pikachu ", models.SortRelevance)
	if err != nil {
		t.Fatalf("SearchCards() error = %v", err)
	}
	if !second.Cached {
		t.Error("second search should come from the cache")
	}
	if len(provider.requests) != requests {
		t.Errorf("provider called again on a cache hit")
	}
	if got, want := cardIDs(second.Cards), []string{"A", "B"}; !slices.Equal(got, want) {
		t.Errorf("cards = %v, want %v", got, want)
	}
}

func TestCatalogPartialResultsAreNotCached(t *testing.T) {
	provider := &fakeProvider{
		pages: map[int]*models.ProviderPage[models.ProviderCardRecord]{
			0: page(3, "A"),
		},
		errs: map[int]error{1: errUpstream},
	}
	svc, _ := newTestCatalog(t, provider, nil)
	ctx := context.Background()

	res, err := svc.ExpansionCards(ctx, "sv1", models.SortRelevance)
	if err != nil {
		t.Fatalf("ExpansionCards() error = %v", err)
	}
	if !res.Degraded() || len(res.Cards) != 1 {
		t.Errorf("result = %+v, want one card and a degraded outcome", res)
	}

	again, _ := svc.ExpansionCards(ctx, "sv1", models.SortRelevance)
	if again.Cached {
		t.Error("partial results should not have been cached")
	}
}

func TestCatalogExpansionCardsSorted(t *testing.T) {
	provider := &fakeProvider{
		pages: map[int]*models.ProviderPage[models.ProviderCardRecord]{
			0: {Data: []models.ProviderCardRecord{
				{ID: "a", CardNumber: "3"},
				{ID: "b", CardNumber: "101"},
				{ID: "c", CardNumber: "TG1"},
			}},
		},
	}
	svc, _ := newTestCatalog(t, provider, nil)

	res, err := svc.ExpansionCards(context.Background(), "sv1", models.SortCardNumberDesc)
	if err != nil {
		t.Fatalf("ExpansionCards() error = %v", err)
	}
	if got, want := cardIDs(res.Cards), []string{"b", "a", "c"}; !slices.Equal(got, want) {
		t.Errorf("cards = %v, want %v", got, want)
	}
	if provider.requests[0].ExpansionID != "sv1" {
		t.Errorf("ExpansionID = %q, want sv1", provider.requests[0].ExpansionID)
	}
}

// setProvider returns different cards per expansion id
type setProvider struct {
	sets  map[string][]string
	calls []string
}

func (p *setProvider) SearchCards(_ context.Context, params SearchParams) (*models.ProviderPage[models.ProviderCardRecord], error) {
	p.calls = append(p.calls, params.ExpansionID)
	if params.Page > 0 {
		return &models.ProviderPage[models.ProviderCardRecord]{}, nil
	}
	ids, ok := p.sets[params.ExpansionID]
	if !ok {
		return nil, errUpstream
	}
	return page(0, ids...), nil
}

func TestCatalogFilterBySets(t *testing.T) {
	provider := &setProvider{sets: map[string][]string{
		"s1": {"A", "B"},
		"s2": {"B", "C"},
	}}
	kv := newTestKV(t)
	svc := NewCatalogService(NewDedupAggregator(provider, nil), &fakeExpansionProvider{}, kv, CatalogLimits{})
	ctx := context.Background()

	res, err := svc.FilterBySets(ctx, []string{"s1", "s2", "s1", " "}, models.SortRelevance)
	if err != nil {
		t.Fatalf("FilterBySets() error = %v", err)
	}
	if got, want := cardIDs(res.Cards), []string{"A", "B", "C"}; !slices.Equal(got, want) {
		t.Errorf("cards = %v, want %v", got, want)
	}
	if res.Degraded() {
		t.Errorf("Outcome = %s, want healthy", res.Outcome)
	}

	if _, err := svc.FilterBySets(ctx, nil, models.SortRelevance); !errors.Is(err, ErrNoSetsSelected) {
		t.Errorf("FilterBySets(nil) error = %v, want ErrNoSetsSelected", err)
	}

	partial, err := svc.FilterBySets(ctx, []string{"s1", "missing"}, models.SortRelevance)
	if err != nil {
		t.Fatalf("FilterBySets() error = %v", err)
	}
	if partial.Outcome != OutcomePartial || len(partial.Cards) != 2 {
		t.Errorf("partial = %+v, want 2 cards and partial outcome", partial)
	}
}

func TestCatalogFindExpansion(t *testing.T) {
	exps := &fakeExpansionProvider{search: []models.ProviderEpisode{
		{ID: "1", Name: "Paldea Evolved"},
		{ID: "2", Name: "Paldean Fates"},
		{ID: "", Name: "Broken"},
	}}
	svc, _ := newTestCatalog(t, &fakeProvider{}, exps)
	ctx := context.Background()

	exp, err := svc.FindExpansion(ctx, "paldean fates")
	if err != nil {
		t.Fatalf("FindExpansion() error = %v", err)
	}
	if exp.ID != "2" {
		t.Errorf("FindExpansion() = %s, want 2", exp.ID)
	}

	exps.search = nil
	if _, err := svc.FindExpansion(ctx, "nothing"); !errors.Is(err, ErrExpansionNotFound) {
		t.Errorf("FindExpansion() error = %v, want ErrExpansionNotFound", err)
	}

	exps.searchErr = errUpstream
	if _, err := svc.FindExpansion(ctx, "anything"); !errors.Is(err, errUpstream) {
		t.Errorf("FindExpansion() error = %v, want upstream error", err)
	}
}

func TestCatalogSearchExpansionCards(t *testing.T) {
	exps := &fakeExpansionProvider{search: []models.ProviderEpisode{{ID: "9", Name: "Base Set"}}}
	provider := &fakeProvider{pages: map[int]*models.ProviderPage[models.ProviderCardRecord]{0: page(1, "X")}}
	svc, _ := newTestCatalog(t, provider, exps)

	exp, res, err := svc.SearchExpansionCards(context.Background(), "base set", models.SortRelevance)
	if err != nil {
		t.Fatalf("SearchExpansionCards() error = %v", err)
	}
	if exp.ID != "9" || len(res.Cards) != 1 {
		t.Errorf("got expansion %+v with %d cards", exp, len(res.Cards))
	}
}

func TestCatalogExpansions(t *testing.T) {
	exps := &fakeExpansionProvider{pages: map[int]*models.ProviderPage[models.ProviderEpisode]{
		0: {Data: []models.ProviderEpisode{
			{ID: "1", Name: "Base Set", Code: "BS", ReleasedAt: "1999-01-09", Series: &models.ProviderSeries{Name: "Base"}},
			{ID: "2", Name: "Promo"},
		}},
		1: {Data: []models.ProviderEpisode{{ID: "1", Name: "Base Set"}}},
	}}
	svc, _ := newTestCatalog(t, &fakeProvider{}, exps)
	ctx := context.Background()

	list, cached, err := svc.Expansions(ctx)
	if err != nil {
		t.Fatalf("Expansions() error = %v", err)
	}
	if cached {
		t.Error("first load should not be cached")
	}
	if len(list) != 2 {
		t.Fatalf("got %d expansions, want 2", len(list))
	}
	if list[1].SeriesName != "Other" {
		t.Errorf("SeriesName = %q, want Other", list[1].SeriesName)
	}

	calls := exps.listCalls
	if _, cached, _ := svc.Expansions(ctx); !cached {
		t.Error("second load should be cached")
	}
	if exps.listCalls != calls {
		t.Error("provider called again on a cache hit")
	}
}

func TestCatalogExpansionsFailure(t *testing.T) {
	exps := &fakeExpansionProvider{errs: map[int]error{0: errUpstream}}
	svc, _ := newTestCatalog(t, &fakeProvider{}, exps)

	if _, _, err := svc.Expansions(context.Background()); !errors.Is(err, errUpstream) {
		t.Errorf("Expansions() error = %v, want upstream error", err)
	}
}

func TestGroupExpansionsBySeries(t *testing.T) {
	exps := []models.Expansion{
		{ID: "1", Name: "Base Set", Code: "BS", SeriesName: "Base", ReleasedAt: "1999-01-09"},
		{ID: "2", Name: "Scarlet & Violet", Code: "SVI", SeriesName: "Scarlet & Violet", ReleasedAt: "2023-03-31"},
		{ID: "3", Name: "Jungle", Code: "JU", SeriesName: "Base", ReleasedAt: "1999-06-16"},
		{ID: "4", Name: "Base Set", Code: "BS", SeriesName: "Base", ReleasedAt: "1999-01-09"},
		{ID: "5", Name: "Mystery Promos", Code: "", SeriesName: "", ReleasedAt: ""},
		{ID: "6", Name: "Paldea Evolved", Code: "PAL", SeriesName: "Scarlet & Violet", ReleasedAt: "2023-06-09"},
	}

	groups := GroupExpansionsBySeries(exps)

	if len(groups) != 3 {
		t.Fatalf("got %d groups, want 3", len(groups))
	}
	wantSeries := []string{"Scarlet & Violet", "Base", "Other"}
	for i, g := range groups {
		if g.SeriesName != wantSeries[i] {
			t.Errorf("group %d = %q, want %q", i, g.SeriesName, wantSeries[i])
		}
	}

	var svIDs []string
	for _, e := range groups[0].Expansions {
		svIDs = append(svIDs, e.ID)
	}
	if want := []string{"6", "2"}; !slices.Equal(svIDs, want) {
		t.Errorf("Scarlet & Violet order = %v, want %v", svIDs, want)
	}

	var baseIDs []string
	for _, e := range groups[1].Expansions {
		baseIDs = append(baseIDs, e.ID)
	}
	if want := []string{"3", "1"}; !slices.Equal(baseIDs, want) {
		t.Errorf("Base expansions = %v, want %v (duplicate id 4 dropped)", baseIDs, want)
	}
}

func TestPaginate(t *testing.T) {
	cards := make([]models.Card, 45)
	for i := range cards {
		cards[i] = models.Card{ID: string(rune('a' + i%26))}
	}

	tests := []struct {
		name      string
		page      int
		perPage   int
		wantPage  int
		wantLen   int
		wantPages int
	}{
		{"first page", 1, 20, 1, 20, 3},
		{"last page", 3, 20, 3, 5, 3},
		{"past the end clamps", 9, 20, 3, 5, 3},
		{"zero clamps to first", 0, 20, 1, 20, 3},
		{"default page size", 1, 0, 1, 20, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Paginate(cards, tt.page, tt.perPage)
			if p.Page != tt.wantPage || len(p.Cards) != tt.wantLen || p.TotalPages != tt.wantPages {
				t.Errorf("Paginate() = page %d, %d cards, %d pages; want %d, %d, %d",
					p.Page, len(p.Cards), p.TotalPages, tt.wantPage, tt.wantLen, tt.wantPages)
			}
		})
	}

	empty := Paginate(nil, 1, 20)
	if empty.TotalPages != 1 || len(empty.Cards) != 0 || empty.Cards == nil {
		t.Errorf("Paginate(nil) = %+v, want one empty page", empty)
	}
}

func TestReleaseDate(t *testing.T) {
	tests := []struct {
		name string
		ep   models.ProviderEpisode
		want string
	}{
		{"plain date", models.ProviderEpisode{ReleasedAt: "2023-03-31"}, "2023-03-31"},
		{"slashes", models.ProviderEpisode{ReleaseDate: "1999/01/09"}, "1999-01-09"},
		{"timestamp", models.ProviderEpisode{ReleasedAt: "2023-06-09T00:00:00Z"}, "2023-06-09"},
		{"released_at wins", models.ProviderEpisode{ReleasedAt: "2020-02-07", ReleaseDate: "2021/01/01"}, "2020-02-07"},
		{"multibyte garbage", models.ProviderEpisode{ReleasedAt: "2023-03-3é1xx"}, ""},
		{"not a date", models.ProviderEpisode{ReleasedAt: "soon"}, ""},
		{"empty", models.ProviderEpisode{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := releaseDate(tt.ep); got != tt.want {
				t.Errorf("releaseDate() = %q, want %q", got, tt.want)
			}
		})
	}
}
