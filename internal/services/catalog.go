package services

import (
	"cmp"
	"context"
	"errors"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/codyseavey/tcg-wishlist/internal/cache"
	"github.com/codyseavey/tcg-wishlist/internal/metrics"
	"github.com/codyseavey/tcg-wishlist/internal/models"
)

var (
	ErrEmptyQuery        = errors.New("search query is empty")
	ErrNoSetsSelected    = errors.New("no sets selected")
	ErrExpansionNotFound = errors.New("expansion not found")
)

const (
	DefaultSearchMaxPages    = 10
	DefaultExpansionMaxPages = 20
	DefaultCatalogMaxPages   = 50

	// Series label for expansions the upstream does not assign to one
	otherSeries = "Other"
	// Sorts expansions without a release date after every dated one
	unknownReleaseDate = "1996-01-01"
)

// ExpansionProvider is the upstream expansion catalog
type ExpansionProvider interface {
	ListExpansions(ctx context.Context, page int) (*models.ProviderPage[models.ProviderEpisode], error)
	SearchExpansions(ctx context.Context, name string) ([]models.ProviderEpisode, error)
}

// CatalogResult is an aggregated card list ready for display
type CatalogResult struct {
	Cards   []models.Card
	Cached  bool
	Outcome Outcome
}

// Degraded reports whether the upstream failed during the run
func (r CatalogResult) Degraded() bool {
	return r.Outcome == OutcomePartial || r.Outcome == OutcomeFailed
}

type CatalogLimits struct {
	SearchMaxPages    int
	ExpansionMaxPages int
	CatalogMaxPages   int
}

// CatalogService answers card and expansion queries from the cache when fresh,
// otherwise by aggregating the upstream.
type CatalogService struct {
	aggregator *DedupAggregator
	expansions ExpansionProvider
	cards      *cache.ExpansionCache
	catalog    *cache.CatalogCache
	limits     CatalogLimits
}

func NewCatalogService(aggregator *DedupAggregator, expansions ExpansionProvider, kv cache.KVStore, limits CatalogLimits) *CatalogService {
	if limits.SearchMaxPages <= 0 {
		limits.SearchMaxPages = DefaultSearchMaxPages
	}
	if limits.ExpansionMaxPages <= 0 {
		limits.ExpansionMaxPages = DefaultExpansionMaxPages
	}
	if limits.CatalogMaxPages <= 0 {
		limits.CatalogMaxPages = DefaultCatalogMaxPages
	}
	return &CatalogService{
		aggregator: aggregator,
		expansions: expansions,
		cards:      cache.NewExpansionCache(kv),
		catalog:    cache.NewCatalogCache(kv),
		limits:     limits,
	}
}

// SearchCards finds cards by name across every expansion.
func (s *CatalogService) SearchCards(ctx context.Context, name string, sort models.SortMode) (CatalogResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return CatalogResult{}, ErrEmptyQuery
	}
	query := models.SearchQuery{Name: name}
	res := s.cachedAggregate(ctx, cache.SearchKey(name, ""), query, s.limits.SearchMaxPages)
	res.Cards = SortCards(res.Cards, sort)
	return res, nil
}

// ExpansionCards lists every card of one expansion.
func (s *CatalogService) ExpansionCards(ctx context.Context, expansionID string, sort models.SortMode) (CatalogResult, error) {
	expansionID = strings.TrimSpace(expansionID)
	if expansionID == "" {
		return CatalogResult{}, ErrNoSetsSelected
	}
	query := models.SearchQuery{ExpansionID: expansionID}
	res := s.cachedAggregate(ctx, cache.ExpansionCardsKey(expansionID), query, s.limits.ExpansionMaxPages)
	res.Cards = SortCards(res.Cards, sort)
	return res, nil
}

// FilterBySets merges the cards of several expansions, one expansion at a time.
// A card listed under more than one expansion appears once.
func (s *CatalogService) FilterBySets(ctx context.Context, expansionIDs []string, sort models.SortMode) (CatalogResult, error) {
	var ids []string
	for _, id := range expansionIDs {
		if id = strings.TrimSpace(id); id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return CatalogResult{}, ErrNoSetsSelected
	}

	merged := CatalogResult{Cards: []models.Card{}, Cached: true, Outcome: OutcomeComplete}
	seen := make(map[string]struct{})
	for _, id := range ids {
		res, err := s.ExpansionCards(ctx, id, models.SortRelevance)
		if err != nil {
			return CatalogResult{}, err
		}
		merged.Cached = merged.Cached && res.Cached
		if res.Degraded() {
			merged.Outcome = OutcomePartial
		}
		for _, card := range res.Cards {
			if _, dup := seen[card.ID]; dup {
				continue
			}
			seen[card.ID] = struct{}{}
			merged.Cards = append(merged.Cards, card)
		}
	}
	if merged.Outcome == OutcomePartial && len(merged.Cards) == 0 {
		merged.Outcome = OutcomeFailed
	}

	merged.Cards = SortCards(merged.Cards, sort)
	return merged, nil
}

// SearchExpansionCards resolves an expansion by name and lists its cards.
func (s *CatalogService) SearchExpansionCards(ctx context.Context, name string, sort models.SortMode) (*models.Expansion, CatalogResult, error) {
	exp, err := s.FindExpansion(ctx, name)
	if err != nil {
		return nil, CatalogResult{}, err
	}
	res, err := s.ExpansionCards(ctx, exp.ID, sort)
	if err != nil {
		return nil, CatalogResult{}, err
	}
	return exp, res, nil
}

// FindExpansion picks the upstream search result closest to name by edit
// distance. Ties keep the upstream's order.
func (s *CatalogService) FindExpansion(ctx context.Context, name string) (*models.Expansion, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyQuery
	}

	found, err := s.expansions.SearchExpansions(ctx, name)
	if err != nil {
		return nil, err
	}

	target := strings.ToLower(name)
	var best *models.Expansion
	bestDistance := 0
	for _, ep := range found {
		exp := toExpansion(ep)
		if exp.ID == "" {
			continue
		}
		d := levenshtein.ComputeDistance(target, strings.ToLower(exp.Name))
		if best == nil || d < bestDistance {
			best = &exp
			bestDistance = d
		}
	}
	if best == nil {
		return nil, ErrExpansionNotFound
	}
	return best, nil
}

// Expansions returns the full expansion catalog in upstream order.
func (s *CatalogService) Expansions(ctx context.Context) ([]models.Expansion, bool, error) {
	key := cache.ExpansionCatalogKey()
	if entry, ok := s.catalog.Get(ctx, key); ok {
		return entry.Value, true, nil
	}

	collected := collectPages(ctx, s.limits.CatalogMaxPages, s.expansions.ListExpansions, func(ep models.ProviderEpisode) string {
		return ep.ID.String()
	})
	metrics.AggregationRunsTotal.WithLabelValues("expansions", string(collected.outcome)).Inc()

	exps := make([]models.Expansion, 0, len(collected.items))
	for _, ep := range collected.items {
		exps = append(exps, toExpansion(ep))
	}

	if collected.outcome == OutcomeFailed {
		return nil, false, collected.err
	}
	if collected.outcome.Cacheable() {
		_ = s.catalog.Put(ctx, key, exps)
	} else {
		log.Printf("Catalog: expansion catalog incomplete (%d loaded), not caching: %v", len(exps), collected.err)
	}
	return exps, false, nil
}

// RefreshExpansions reloads the catalog when the cached copy is stale. Used by
// the warmer.
func (s *CatalogService) RefreshExpansions(ctx context.Context) (int, bool, error) {
	exps, cached, err := s.Expansions(ctx)
	return len(exps), cached, err
}

func (s *CatalogService) cachedAggregate(ctx context.Context, key string, query models.SearchQuery, maxPages int) CatalogResult {
	if entry, ok := s.cards.Get(ctx, key); ok {
		return CatalogResult{Cards: entry.Value, Cached: true, Outcome: OutcomeComplete}
	}

	run := s.aggregator.Run(ctx, query, maxPages)
	if run.Outcome.Cacheable() {
		_ = s.cards.Put(ctx, key, run.Cards)
	}
	return CatalogResult{Cards: run.Cards, Outcome: run.Outcome}
}

func toExpansion(ep models.ProviderEpisode) models.Expansion {
	exp := models.Expansion{
		ID:         ep.ID.String(),
		Name:       strings.TrimSpace(ep.Name),
		Code:       strings.TrimSpace(ep.Code),
		ReleasedAt: releaseDate(ep),
		SeriesName: otherSeries,
	}
	if ep.Series != nil && strings.TrimSpace(ep.Series.Name) != "" {
		exp.SeriesName = strings.TrimSpace(ep.Series.Name)
	}
	return exp
}

var releaseDateLayouts = []string{time.RFC3339, "2006-01-02", "2006/01/02"}

// releaseDate returns whichever date field is set as YYYY-MM-DD, or empty when it
// does not parse.
func releaseDate(ep models.ProviderEpisode) string {
	d := strings.TrimSpace(ep.ReleasedAt)
	if d == "" {
		d = strings.TrimSpace(ep.ReleaseDate)
	}
	for _, layout := range releaseDateLayouts {
		if t, err := time.Parse(layout, d); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// GroupExpansionsBySeries orders expansions newest first, drops display
// duplicates (same name and code), and groups them by series. Series appear in
// the order of their newest expansion.
func GroupExpansionsBySeries(expansions []models.Expansion) []models.SeriesGroup {
	sorted := slices.Clone(expansions)
	slices.SortStableFunc(sorted, func(a, b models.Expansion) int {
		return cmp.Compare(sortableDate(b.ReleasedAt), sortableDate(a.ReleasedAt))
	})

	groups := []models.SeriesGroup{}
	index := make(map[string]int)
	seen := make(map[string]struct{})
	for _, exp := range sorted {
		if _, dup := seen[exp.DisplayKey()]; dup {
			continue
		}
		seen[exp.DisplayKey()] = struct{}{}

		series := exp.SeriesName
		if series == "" {
			series = otherSeries
		}
		i, ok := index[series]
		if !ok {
			i = len(groups)
			index[series] = i
			groups = append(groups, models.SeriesGroup{SeriesName: series})
		}
		groups[i].Expansions = append(groups[i].Expansions, exp)
	}
	return groups
}

func sortableDate(d string) string {
	if d == "" {
		return unknownReleaseDate
	}
	return d
}

// Page is one display page of an already aggregated list. It is unrelated to
// upstream pagination.
type Page struct {
	Cards      []models.Card
	Page       int
	PerPage    int
	TotalPages int
	Total      int
}

// Paginate slices cards for display. page is 1-based and clamped into range.
func Paginate(cards []models.Card, page, perPage int) Page {
	if perPage <= 0 {
		perPage = 20
	}
	total := len(cards)
	totalPages := (total + perPage - 1) / perPage
	if totalPages == 0 {
		totalPages = 1
	}
	page = max(1, min(page, totalPages))

	start := (page - 1) * perPage
	end := min(start+perPage, total)
	out := []models.Card{}
	if start < end {
		out = cards[start:end]
	}
	return Page{
		Cards:      out,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		Total:      total,
	}
}
