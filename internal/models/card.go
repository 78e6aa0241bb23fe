package models

import (
	"strings"
)

// Card is a catalog card after aggregation and price normalization.
// ID is unique within one aggregated result set.
type Card struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Number        string     `json:"number"`
	Rarity        string     `json:"rarity,omitempty"`
	ExpansionID   string     `json:"expansion_id"`
	ExpansionName string     `json:"expansion_name"`
	ImageURL      string     `json:"image_url,omitempty"`
	Prices        PriceModel `json:"prices"`
}

// Expansion is a named card set. Display grouping treats two expansions with the
// same name and code as one, regardless of ID.
type Expansion struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Code       string `json:"code"`
	SeriesName string `json:"series_name"`
	ReleasedAt string `json:"released_at,omitempty"` // YYYY-MM-DD, empty when unknown
}

// DisplayKey identifies an expansion for display deduplication.
func (e Expansion) DisplayKey() string {
	return strings.ToLower(strings.TrimSpace(e.Name)) + "|" + strings.ToLower(strings.TrimSpace(e.Code))
}

// SeriesGroup is a set of expansions sharing a series label, newest first.
type SeriesGroup struct {
	SeriesName string      `json:"series_name"`
	Expansions []Expansion `json:"expansions"`
}

// SortMode selects the ordering applied to an aggregated card list
type SortMode string

const (
	SortRelevance      SortMode = "relevance"
	SortPriceDesc      SortMode = "price-desc"
	SortPriceAsc       SortMode = "price-asc"
	SortCardNumberDesc SortMode = "card-number-desc"
)

// ParseSortMode maps request values (including the legacy UI names) to a SortMode.
// Unknown values fall back to relevance.
func ParseSortMode(s string) SortMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "price-desc", "price-high", "high-to-low":
		return SortPriceDesc
	case "price-asc", "price-low", "low-to-high":
		return SortPriceAsc
	case "card-number-desc", "card-number-high":
		return SortCardNumberDesc
	default:
		return SortRelevance
	}
}

// SearchQuery holds the parameters of one aggregation run. Page is zero-based and
// owned by the aggregator while a run is in progress.
type SearchQuery struct {
	Name        string   `json:"name"`
	ExpansionID string   `json:"expansion_id,omitempty"`
	Page        int      `json:"page"`
	Sort        SortMode `json:"sort"`
}

type CardSearchResult struct {
	Cards      []Card `json:"cards"`
	TotalCount int    `json:"total_count"`
	Page       int    `json:"page"`
	PerPage    int    `json:"per_page"`
	TotalPages int    `json:"total_pages"`
	HasMore    bool   `json:"has_more"`
	Cached     bool   `json:"cached"`
	Partial    bool   `json:"partial"`
	Message    string `json:"message,omitempty"`
}
