package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/time/rate"

	"github.com/codyseavey/tcg-wishlist/internal/metrics"
	"github.com/codyseavey/tcg-wishlist/internal/models"
)

const (
	pokemonTCGBaseURL = "https://pokemon-tcg-api.p.rapidapi.com"
	pokemonTCGHost    = "pokemon-tcg-api.p.rapidapi.com"
)

// PokemonTCGService talks to the Pokémon TCG API on RapidAPI. It serves both card
// search and the expansion ("episode") catalog.
type PokemonTCGService struct {
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
	host    string
	apiKey  string
}

// PokemonTCGOptions configures the client. Zero values take defaults.
type PokemonTCGOptions struct {
	APIKey            string
	Host              string
	BaseURL           string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

func NewPokemonTCGService(opts PokemonTCGOptions) *PokemonTCGService {
	if opts.Host == "" {
		opts.Host = pokemonTCGHost
	}
	if opts.BaseURL == "" {
		opts.BaseURL = pokemonTCGBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	client := cleanhttp.DefaultPooledClient()
	client.Timeout = opts.Timeout

	return &PokemonTCGService{
		client:  client,
		limiter: rate.NewLimiter(limit, opts.Burst),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		host:    opts.Host,
		apiKey:  opts.APIKey,
	}
}

// IsConfigured reports whether an API key was supplied
func (s *PokemonTCGService) IsConfigured() bool {
	return s.apiKey != ""
}

// SearchCards fetches one page of card search results.
func (s *PokemonTCGService) SearchCards(ctx context.Context, params SearchParams) (*models.ProviderPage[models.ProviderCardRecord], error) {
	q := url.Values{}
	setParam(q, "name", params.Name)
	setParam(q, "episode_id", params.ExpansionID)
	setParam(q, "sort", params.Sort)
	setIntParam(q, "page", params.Page)
	setIntParam(q, "per_page", params.PageSize)

	var page models.ProviderPage[models.ProviderCardRecord]
	if err := s.getJSON(ctx, "cards", "/cards/search", q, &page); err != nil {
		return nil, err
	}
	if page.Skipped > 0 {
		log.Printf("PokemonTCG: skipped %d malformed card records on page %d", page.Skipped, params.Page)
	}
	return &page, nil
}

// ListExpansions fetches one page of the expansion catalog.
func (s *PokemonTCGService) ListExpansions(ctx context.Context, page int) (*models.ProviderPage[models.ProviderEpisode], error) {
	q := url.Values{}
	setIntParam(q, "page", page)

	var resp models.ProviderPage[models.ProviderEpisode]
	if err := s.getJSON(ctx, "episodes", "/episodes", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SearchExpansions returns expansions whose name matches name upstream.
func (s *PokemonTCGService) SearchExpansions(ctx context.Context, name string) ([]models.ProviderEpisode, error) {
	q := url.Values{}
	setParam(q, "search", name)

	var resp models.ProviderPage[models.ProviderEpisode]
	if err := s.getJSON(ctx, "episodes_search", "/episodes/search", q, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (s *PokemonTCGService) getJSON(ctx context.Context, endpoint, path string, q url.Values, out any) error {
	start := time.Now()
	defer func() {
		metrics.ProviderRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := s.baseURL + path
	if encoded := q.Encode(); encoded != "" {
		reqURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-rapidapi-key", s.apiKey)
	req.Header.Set("x-rapidapi-host", s.host)

	resp, err := s.client.Do(req)
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(endpoint, "network").Inc()
		return fmt.Errorf("failed to query pokemon tcg API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ProviderRequestsTotal.WithLabelValues(endpoint, "http_error").Inc()
		return fmt.Errorf("pokemon tcg API returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(endpoint, "decode").Inc()
		return fmt.Errorf("failed to decode pokemon tcg response: %w", err)
	}

	metrics.ProviderRequestsTotal.WithLabelValues(endpoint, "success").Inc()
	return nil
}

// Empty values are left out of the query string
func setParam(q url.Values, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		q.Set(key, value)
	}
}

func setIntParam(q url.Values, key string, value int) {
	if value != 0 {
		q.Set(key, strconv.Itoa(value))
	}
}
