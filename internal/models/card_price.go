package models

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// GradeLabel names a graded-condition price slot. The set is open; these are the
// labels the normalizer fills.
type GradeLabel string

const (
	GradeRaw       GradeLabel = "raw"
	GradePSA9      GradeLabel = "psa9"
	GradePSA10     GradeLabel = "psa10"
	GradeBeckett9  GradeLabel = "beckett9"
	GradeBeckett10 GradeLabel = "beckett10"
)

// GradedLabels returns the graded labels every PriceModel carries
func GradedLabels() []GradeLabel {
	return []GradeLabel{
		GradePSA9,
		GradePSA10,
		GradeBeckett9,
		GradeBeckett10,
	}
}

// ParseGradeLabel normalizes a user supplied grade. Empty input means raw.
func ParseGradeLabel(s string) GradeLabel {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return GradeRaw
	}
	return GradeLabel(s)
}

const CurrencyUSD = "USD"

// PriceModel is the canonical price shape of a card. Every amount is in Currency,
// rounded to cents, and never negative.
type PriceModel struct {
	Currency       string                         `json:"currency"`
	RawMarketPrice decimal.Decimal                `json:"raw_market_price"`
	AlternatePrice decimal.Decimal                `json:"alternate_price"`
	GradedPrices   map[GradeLabel]decimal.Decimal `json:"graded_prices"`
}

// ZeroPriceModel returns a model with every known slot present and zero.
func ZeroPriceModel() PriceModel {
	graded := make(map[GradeLabel]decimal.Decimal, len(GradedLabels()))
	for _, label := range GradedLabels() {
		graded[label] = decimal.Zero
	}
	return PriceModel{
		Currency:       CurrencyUSD,
		RawMarketPrice: decimal.Zero,
		AlternatePrice: decimal.Zero,
		GradedPrices:   graded,
	}
}

// SortPrice is the comparator key for price ordering: the higher of the market and
// alternate vendor prices.
func (p PriceModel) SortPrice() decimal.Decimal {
	return decimal.Max(p.RawMarketPrice, p.AlternatePrice)
}

// Graded returns the price for label, or zero when the slot is missing.
func (p PriceModel) Graded(label GradeLabel) decimal.Decimal {
	if v, ok := p.GradedPrices[label]; ok {
		return v
	}
	return decimal.Zero
}

// GradeTable flattens the model into the per-grade price table used by wishlist and
// budget entries. The raw slot carries SortPrice.
func (p PriceModel) GradeTable() map[GradeLabel]decimal.Decimal {
	table := map[GradeLabel]decimal.Decimal{GradeRaw: p.SortPrice()}
	for _, label := range GradedLabels() {
		table[label] = p.Graded(label)
	}
	return table
}

// Price is an upstream price field. The provider sends numbers, numeric strings,
// null, or nothing at all; decoding never fails, it only marks the value absent.
type Price struct {
	value decimal.Decimal
	valid bool
}

// NewPrice builds a present price, mostly for fixtures.
func NewPrice(v float64) Price {
	return Price{value: decimal.NewFromFloat(v), valid: true}
}

func (p *Price) UnmarshalJSON(b []byte) error {
	*p = Price{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	var raw string
	if b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil
		}
		raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "$"))
	} else {
		raw = string(b)
	}

	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return nil
	}
	p.value = d
	p.valid = true
	return nil
}

func (p Price) MarshalJSON() ([]byte, error) {
	if !p.valid {
		return []byte("null"), nil
	}
	return []byte(p.value.String()), nil
}

// Decimal returns the value and whether it was present and numeric.
func (p Price) Decimal() (decimal.Decimal, bool) {
	return p.value, p.valid
}
