package services

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/codyseavey/tcg-wishlist/internal/models"
)

// SortCards returns a new slice ordered by mode. The input is not modified. Sorting
// is stable, so cards with equal keys keep their arrival order. Relevance and
// unknown modes return the input order.
func SortCards(cards []models.Card, mode models.SortMode) []models.Card {
	out := slices.Clone(cards)

	switch mode {
	case models.SortPriceDesc:
		slices.SortStableFunc(out, func(a, b models.Card) int {
			return b.Prices.SortPrice().Cmp(a.Prices.SortPrice())
		})
	case models.SortPriceAsc:
		slices.SortStableFunc(out, func(a, b models.Card) int {
			return a.Prices.SortPrice().Cmp(b.Prices.SortPrice())
		})
	case models.SortCardNumberDesc:
		slices.SortStableFunc(out, func(a, b models.Card) int {
			return cmp.Compare(cardNumberValue(b.Number), cardNumberValue(a.Number))
		})
	}
	return out
}

// cardNumberValue parses the leading digits of a printed card number, so "25/102"
// is 25. Numbers without leading digits ("SV1", "TG05") are 0.
func cardNumberValue(number string) int {
	number = strings.TrimSpace(number)
	end := 0
	for end < len(number) && number[end] >= '0' && number[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(number[:end])
	if err != nil {
		return 0
	}
	return n
}
