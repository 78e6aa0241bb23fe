package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ProviderPage is one page of a paged upstream listing. Paging is nil when the
// upstream omitted pagination metadata.
type ProviderPage[T any] struct {
	Data   []T     `json:"data"`
	Paging *Paging `json:"paging,omitempty"`

	// Skipped counts records that could not be decoded and were left out
	Skipped int `json:"-"`
}

// UnmarshalJSON decodes each record on its own so one malformed record does not
// cost the rest of the page. Unusable paging metadata is treated as absent.
func (p *ProviderPage[T]) UnmarshalJSON(b []byte) error {
	var raw struct {
		Data   []json.RawMessage `json:"data"`
		Paging json.RawMessage   `json:"paging"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*p = ProviderPage[T]{Data: make([]T, 0, len(raw.Data))}
	for _, rec := range raw.Data {
		var v T
		if err := json.Unmarshal(rec, &v); err != nil {
			p.Skipped++
			continue
		}
		p.Data = append(p.Data, v)
	}

	if isJSONObject(raw.Paging) {
		var paging Paging
		if err := json.Unmarshal(raw.Paging, &paging); err == nil {
			p.Paging = &paging
		}
	}
	return nil
}

func isJSONObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{'
}

// Paging is the upstream pagination block. Total is the number of pages.
type Paging struct {
	Current int `json:"current"`
	Total   int `json:"total"`
	PerPage int `json:"per_page"`
}

// Pages reports the total page count when the metadata is usable.
func (p *Paging) Pages() (int, bool) {
	if p == nil || p.Total <= 0 {
		return 0, false
	}
	return p.Total, true
}

// FlexString decodes a JSON string or number into a string. Provider ids and card
// numbers arrive as either.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// ProviderCardRecord is a card as the search provider returns it. Both the flat
// RapidAPI price block and the nested pokemontcg.io style vendor blocks are
// accepted; any of them may be missing.
type ProviderCardRecord struct {
	ID         FlexString          `json:"id"`
	Name       string              `json:"name"`
	CardNumber FlexString          `json:"card_number"`
	Number     FlexString          `json:"number"`
	Rarity     string              `json:"rarity"`
	Image      string              `json:"image"`
	Images     *ProviderImages     `json:"images"`
	Episode    *ProviderEpisode    `json:"episode"`
	Set        *ProviderEpisode    `json:"set"`
	Prices     *ProviderPrices     `json:"prices"`
	TCGPlayer  *ProviderTCGPlayer  `json:"tcgplayer"`
	Cardmarket *ProviderCardmarket `json:"cardmarket"`
}

type ProviderImages struct {
	Small string `json:"small"`
	Large string `json:"large"`
}

// ProviderPrices is the flat RapidAPI price block
type ProviderPrices struct {
	TCGPlayer  *ProviderTCGPlayerFlat  `json:"tcg_player"`
	Cardmarket *ProviderCardmarketFlat `json:"cardmarket"`
}

// Price blocks of the wrong shape decode as empty rather than failing the record.
func (x *ProviderPrices) UnmarshalJSON(b []byte) error {
	*x = ProviderPrices{}
	if !isJSONObject(b) {
		return nil
	}
	type plain ProviderPrices
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	*x = ProviderPrices(v)
	return nil
}

type ProviderTCGPlayerFlat struct {
	Currency    string `json:"currency"`
	MarketPrice Price  `json:"market_price"`
	MidPrice    Price  `json:"mid_price"`
}

func (x *ProviderTCGPlayerFlat) UnmarshalJSON(b []byte) error {
	*x = ProviderTCGPlayerFlat{}
	if !isJSONObject(b) {
		return nil
	}
	type plain ProviderTCGPlayerFlat
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	*x = ProviderTCGPlayerFlat(v)
	return nil
}

type ProviderCardmarketFlat struct {
	Currency       string       `json:"currency"`
	LowestNearMint Price        `json:"lowest_near_mint"`
	Graded         GradedPrices `json:"graded"`
}

func (x *ProviderCardmarketFlat) UnmarshalJSON(b []byte) error {
	*x = ProviderCardmarketFlat{}
	if !isJSONObject(b) {
		return nil
	}
	type plain ProviderCardmarketFlat
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	*x = ProviderCardmarketFlat(v)
	return nil
}

// ProviderTCGPlayer is the nested TCGplayer block keyed by printing variant
// (holofoil, reverseHolofoil, normal, ...).
type ProviderTCGPlayer struct {
	URL    string                   `json:"url"`
	Prices map[string]VariantPrices `json:"prices"`
}

func (x *ProviderTCGPlayer) UnmarshalJSON(b []byte) error {
	*x = ProviderTCGPlayer{}
	if !isJSONObject(b) {
		return nil
	}
	type plain ProviderTCGPlayer
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	*x = ProviderTCGPlayer(v)
	return nil
}

type VariantPrices struct {
	Low    Price `json:"low"`
	Mid    Price `json:"mid"`
	High   Price `json:"high"`
	Market Price `json:"market"`
}

func (x *VariantPrices) UnmarshalJSON(b []byte) error {
	*x = VariantPrices{}
	if !isJSONObject(b) {
		return nil
	}
	type plain VariantPrices
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	*x = VariantPrices(v)
	return nil
}

type ProviderCardmarket struct {
	URL    string                    `json:"url"`
	Prices *ProviderCardmarketPrices `json:"prices"`
}

func (x *ProviderCardmarket) UnmarshalJSON(b []byte) error {
	*x = ProviderCardmarket{}
	if !isJSONObject(b) {
		return nil
	}
	type plain ProviderCardmarket
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	*x = ProviderCardmarket(v)
	return nil
}

type ProviderCardmarketPrices struct {
	AverageSellPrice Price `json:"averageSellPrice"`
	TrendPrice       Price `json:"trendPrice"`
}

func (x *ProviderCardmarketPrices) UnmarshalJSON(b []byte) error {
	*x = ProviderCardmarketPrices{}
	if !isJSONObject(b) {
		return nil
	}
	type plain ProviderCardmarketPrices
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	*x = ProviderCardmarketPrices(v)
	return nil
}

// GradedPrices holds the grading-company price table. Its shape varies: some
// records nest codes under a company ({"psa": {"psa10": 90}}), others use flat
// human labels ({"PSA 10": 90}).
type GradedPrices map[string]json.RawMessage

// UnmarshalJSON treats anything other than an object (arrays, strings) as no
// graded prices.
func (g *GradedPrices) UnmarshalJSON(b []byte) error {
	*g = nil
	if !isJSONObject(b) {
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	*g = m
	return nil
}

// Lookup follows path through nested objects and decodes the leaf as a Price.
func (g GradedPrices) Lookup(path ...string) (Price, bool) {
	if len(g) == 0 || len(path) == 0 {
		return Price{}, false
	}
	raw, ok := g[path[0]]
	if !ok {
		return Price{}, false
	}
	if len(path) > 1 {
		var nested GradedPrices
		if err := json.Unmarshal(raw, &nested); err != nil {
			return Price{}, false
		}
		return nested.Lookup(path[1:]...)
	}
	var p Price
	if err := json.Unmarshal(raw, &p); err != nil {
		return Price{}, false
	}
	if _, valid := p.Decimal(); !valid {
		return Price{}, false
	}
	return p, true
}

// ProviderEpisode is an expansion ("episode" upstream)
type ProviderEpisode struct {
	ID          FlexString      `json:"id"`
	Name        string          `json:"name"`
	Code        string          `json:"code"`
	ReleasedAt  string          `json:"released_at"`
	ReleaseDate string          `json:"releaseDate"`
	Series      *ProviderSeries `json:"series"`
}

type ProviderSeries struct {
	ID   FlexString `json:"id"`
	Name string     `json:"name"`
}
