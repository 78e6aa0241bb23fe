package services

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/codyseavey/tcg-wishlist/internal/models"
)

func TestAggregateLookaheadScenario(t *testing.T) {
	provider := &fakeProvider{
		pages: map[int]*models.ProviderPage[models.ProviderCardRecord]{
			0: page(2, "A", "B", "C"),
			1: page(2, "C", "D"),
			2: page(2),
		},
	}
	agg := NewDedupAggregator(provider, nil)

	res := agg.Run(context.Background(), models.SearchQuery{Name: "pikachu"}, 20)

	if got, want := cardIDs(res.Cards), []string{"A", "B", "C", "D"}; !slices.Equal(got, want) {
		t.Errorf("cards = %v, want %v", got, want)
	}
	if got, want := provider.pagesRequested(), []int{0, 1, 2}; !slices.Equal(got, want) {
		t.Errorf("pages requested = %v, want %v", got, want)
	}
	if res.Outcome != OutcomeComplete {
		t.Errorf("Outcome = %s, want %s", res.Outcome, OutcomeComplete)
	}
	if res.DuplicatesDropped != 1 {
		t.Errorf("DuplicatesDropped = %d, want 1", res.DuplicatesDropped)
	}
}

func TestAggregateLookaheadRecoversCards(t *testing.T) {
	provider := &fakeProvider{
		pages: map[int]*models.ProviderPage[models.ProviderCardRecord]{
			0: page(2, "A", "B"),
			1: page(2, "C"),
			2: page(2, "D", "A"),
			3: page(2, "E"),
		},
	}
	agg := NewDedupAggregator(provider, nil)

	cards := agg.Aggregate(context.Background(), models.SearchQuery{Name: "x"}, 20)

	if got, want := cardIDs(cards), []string{"A", "B", "C", "D"}; !slices.Equal(got, want) {
		t.Errorf("cards = %v, want %v", got, want)
	}
	// Only one lookahead page, even though it returned new cards
	if got, want := provider.pagesRequested(), []int{0, 1, 2}; !slices.Equal(got, want) {
		t.Errorf("pages requested = %v, want %v", got, want)
	}
}

func TestAggregateDedupAcrossNonAdjacentPages(t *testing.T) {
	provider := &fakeProvider{
		pages: map[int]*models.ProviderPage[models.ProviderCardRecord]{
			0: page(0, "A", "B"),
			1: page(0, "C"),
			2: page(0, "B", "D", "A"),
			3: page(0, "D", "E", "E"),
		},
	}
	agg := NewDedupAggregator(provider, nil)

	res := agg.Run(context.Background(), models.SearchQuery{Name: "x"}, 10)

	if got, want := cardIDs(res.Cards), []string{"A", "B", "C", "D", "E"}; !slices.Equal(got, want) {
		t.Errorf("cards = %v, want %v", got, want)
	}
	if res.DuplicatesDropped != 4 {
		t.Errorf("DuplicatesDropped = %d, want 4", res.DuplicatesDropped)
	}
	// Page 4 is empty and ends the run
	if res.PagesFetched != 5 {
		t.Errorf("PagesFetched = %d, want 5", res.PagesFetched)
	}
	if res.Outcome != OutcomeComplete {
		t.Errorf("Outcome = %s, want %s", res.Outcome, OutcomeComplete)
	}
}

func TestAggregateTerminatesAtMaxPages(t *testing.T) {
	tests := []struct {
		name     string
		maxPages int
		want     int
	}{
		{"one page", 1, 1},
		{"ten pages", 10, 10},
		{"zero clamps to one", 0, 1},
		{"negative clamps to one", -3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{repeat: page(0, "same")}
			agg := NewDedupAggregator(provider, nil)

			res := agg.Run(context.Background(), models.SearchQuery{Name: "x"}, tt.maxPages)

			if res.PagesFetched != tt.want {
				t.Errorf("PagesFetched = %d, want %d", res.PagesFetched, tt.want)
			}
			if len(res.Cards) != 1 {
				t.Errorf("got %d cards, want 1", len(res.Cards))
			}
			if res.Outcome != OutcomeExhausted {
				t.Errorf("Outcome = %s, want %s", res.Outcome, OutcomeExhausted)
			}
		})
	}
}

func TestAggregateNoPagingFetchesExactlyMaxPages(t *testing.T) {
	provider := &fakeProvider{pages: map[int]*models.ProviderPage[models.ProviderCardRecord]{}}
	for i := 0; i < 50; i++ {
		provider.pages[i] = page(0, string(rune('a'+i%26))+string(rune('A'+i/26)))
	}
	agg := NewDedupAggregator(provider, nil)

	res := agg.Run(context.Background(), models.SearchQuery{Name: "x"}, 7)

	if res.PagesFetched != 7 {
		t.Errorf("PagesFetched = %d, want 7", res.PagesFetched)
	}
	if len(res.Cards) != 7 {
		t.Errorf("got %d cards, want 7", len(res.Cards))
	}
}

func TestAggregateLookaheadPastCeiling(t *testing.T) {
	provider := &fakeProvider{
		pages: map[int]*models.ProviderPage[models.ProviderCardRecord]{
			0: page(2, "A", "B", "C"),
			1: page(2, "C", "D"),
			2: page(2, "E"),
			3: page(2, "F"),
		},
	}
	agg := NewDedupAggregator(provider, nil)

	res := agg.Run(context.Background(), models.SearchQuery{Name: "x"}, 2)

	if got, want := provider.pagesRequested(), []int{0, 1, 2}; !slices.Equal(got, want) {
		t.Errorf("pages requested = %v, want %v", got, want)
	}
	if got, want := cardIDs(res.Cards), []string{"A", "B", "C", "D", "E"}; !slices.Equal(got, want) {
		t.Errorf("cards = %v, want %v", got, want)
	}
	if res.Outcome != OutcomeComplete {
		t.Errorf("Outcome = %s, want %s", res.Outcome, OutcomeComplete)
	}
}

func TestAggregateCeilingBeforeReportedTotal(t *testing.T) {
	provider := &fakeProvider{
		pages: map[int]*models.ProviderPage[models.ProviderCardRecord]{
			0: page(5, "A"),
			1: page(5, "B"),
			2: page(5, "C"),
		},
	}
	agg := NewDedupAggregator(provider, nil)

	res := agg.Run(context.Background(), models.SearchQuery{Name: "x"}, 2)

	// Reported total not reached, so no lookahead
	if got, want := provider.pagesRequested(), []int{0, 1}; !slices.Equal(got, want) {
		t.Errorf("pages requested = %v, want %v", got, want)
	}
	if res.Outcome != OutcomeExhausted {
		t.Errorf("Outcome = %s, want %s", res.Outcome, OutcomeExhausted)
	}
}

func TestAggregatePageErrorReturnsPartial(t *testing.T) {
	provider := &fakeProvider{
		pages: map[int]*models.ProviderPage[models.ProviderCardRecord]{
			0: page(5, "A", "B"),
			1: page(5, "C"),
		},
		errs: map[int]error{2: errUpstream},
	}
	agg := NewDedupAggregator(provider, nil)

	res := agg.Run(context.Background(), models.SearchQuery{Name: "x"}, 10)

	if got, want := cardIDs(res.Cards), []string{"A", "B", "C"}; !slices.Equal(got, want) {
		t.Errorf("cards = %v, want %v", got, want)
	}
	if res.Outcome != OutcomePartial {
		t.Errorf("Outcome = %s, want %s", res.Outcome, OutcomePartial)
	}
	if !errors.Is(res.Err, errUpstream) {
		t.Errorf("Err = %v, want %v", res.Err, errUpstream)
	}
	if got, want := provider.pagesRequested(), []int{0, 1, 2}; !slices.Equal(got, want) {
		t.Errorf("pages requested = %v, want %v", got, want)
	}
}

func TestAggregateFirstPageError(t *testing.T) {
	provider := &fakeProvider{errs: map[int]error{0: errUpstream}}
	agg := NewDedupAggregator(provider, nil)

	res := agg.Run(context.Background(), models.SearchQuery{Name: "x"}, 10)

	if len(res.Cards) != 0 {
		t.Errorf("got %d cards, want none", len(res.Cards))
	}
	if res.Cards == nil {
		t.Error("Cards should be an empty slice, not nil")
	}
	if res.Outcome != OutcomeFailed {
		t.Errorf("Outcome = %s, want %s", res.Outcome, OutcomeFailed)
	}
}

func TestAggregateLookaheadErrorIsIgnored(t *testing.T) {
	provider := &fakeProvider{
		pages: map[int]*models.ProviderPage[models.ProviderCardRecord]{
			0: page(1, "A", "B"),
		},
		errs: map[int]error{1: errUpstream},
	}
	agg := NewDedupAggregator(provider, nil)

	res := agg.Run(context.Background(), models.SearchQuery{Name: "x"}, 10)

	if res.Outcome != OutcomeComplete {
		t.Errorf("Outcome = %s, want %s", res.Outcome, OutcomeComplete)
	}
	if res.Err != nil {
		t.Errorf("Err = %v, want nil", res.Err)
	}
	if len(res.Cards) != 2 {
		t.Errorf("got %d cards, want 2", len(res.Cards))
	}
}

func TestAggregateResetsPageAndPassesQuery(t *testing.T) {
	provider := &fakeProvider{}
	agg := NewDedupAggregator(provider, nil).WithPageSize(25)

	agg.Run(context.Background(), models.SearchQuery{Name: "  Charizard ", ExpansionID: "sv3", Page: 7}, 5)

	if len(provider.requests) != 1 {
		t.Fatalf("got %d requests, want 1", len(provider.requests))
	}
	req := provider.requests[0]
	if req.Page != 0 {
		t.Errorf("first page = %d, want 0", req.Page)
	}
	if req.Name != "Charizard" || req.ExpansionID != "sv3" || req.PageSize != 25 {
		t.Errorf("request = %+v, want name Charizard, expansion sv3, page size 25", req)
	}
}

func TestAggregateSnapshotsRateOnce(t *testing.T) {
	rec := models.ProviderCardRecord{
		ID: "A",
		TCGPlayer: &models.ProviderTCGPlayer{
			Prices: map[string]models.VariantPrices{"normal": {Market: models.NewPrice(10)}},
		},
	}
	rec2 := rec
	rec2.ID = "B"
	provider := &fakeProvider{
		pages: map[int]*models.ProviderPage[models.ProviderCardRecord]{
			0: {Data: []models.ProviderCardRecord{rec}},
			1: {Data: []models.ProviderCardRecord{rec2}},
		},
	}
	rates := &fixedRate{rate: decimal.RequireFromString("1.5")}
	agg := NewDedupAggregator(provider, rates)

	cards := agg.Aggregate(context.Background(), models.SearchQuery{Name: "x"}, 5)

	if rates.calls != 1 {
		t.Errorf("rate requested %d times, want 1", rates.calls)
	}
	for _, c := range cards {
		if !c.Prices.RawMarketPrice.Equal(decimal.RequireFromString("15")) {
			t.Errorf("card %s market = %s, want 15", c.ID, c.Prices.RawMarketPrice)
		}
	}
}

func TestAggregateCancelledContext(t *testing.T) {
	provider := &fakeProvider{repeat: page(0, "A")}
	agg := NewDedupAggregator(provider, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := agg.Run(ctx, models.SearchQuery{Name: "x"}, 5)

	if res.PagesFetched != 0 {
		t.Errorf("PagesFetched = %d, want 0", res.PagesFetched)
	}
	if res.Outcome != OutcomeFailed {
		t.Errorf("Outcome = %s, want %s", res.Outcome, OutcomeFailed)
	}
}

func TestAggregateSkipsRecordsWithoutID(t *testing.T) {
	provider := &fakeProvider{
		pages: map[int]*models.ProviderPage[models.ProviderCardRecord]{
			0: page(1, "A", "", "B"),
		},
	}
	agg := NewDedupAggregator(provider, nil)

	cards := agg.Aggregate(context.Background(), models.SearchQuery{Name: "x"}, 5)

	if got, want := cardIDs(cards), []string{"A", "B"}; !slices.Equal(got, want) {
		t.Errorf("cards = %v, want %v", got, want)
	}
}

func TestOutcomeCacheable(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    bool
	}{
		{OutcomeComplete, true},
		{OutcomeExhausted, true},
		{OutcomePartial, false},
		{OutcomeFailed, false},
	}
	for _, tt := range tests {
		if got := tt.outcome.Cacheable(); got != tt.want {
			t.Errorf("%s.Cacheable() = %v, want %v", tt.outcome, got, tt.want)
		}
	}
}
