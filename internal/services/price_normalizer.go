package services

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/codyseavey/tcg-wishlist/internal/models"
)

// tcgPlayerVariants is the order in which TCGplayer printing variants supply the
// market price. Holofoil wins over reverse holo, which wins over normal.
var tcgPlayerVariants = []string{
	"holofoil",
	"reverseHolofoil",
	"normal",
	"1stEditionHolofoil",
	"1stEditionNormal",
	"unlimitedHolofoil",
}

// gradedSources lists where each grade may appear in the provider's graded table.
// The first present path wins.
var gradedSources = map[models.GradeLabel][][]string{
	models.GradePSA9:      {{"psa", "psa9"}, {"PSA 9"}},
	models.GradePSA10:     {{"psa", "psa10"}, {"PSA 10"}},
	models.GradeBeckett9:  {{"bgs", "bgs9"}, {"BGS 9"}},
	models.GradeBeckett10: {{"bgs", "bgs10"}, {"BGS 10"}, {"bgs", "bgs10pristine"}, {"BGS 10 Pristine"}},
}

// NormalizePrices maps a provider record to the canonical price model. Every
// amount is multiplied by rate and rounded to cents. Missing or malformed fields
// become zero; the function never fails.
func NormalizePrices(rec models.ProviderCardRecord, rate decimal.Decimal) models.PriceModel {
	if !rate.IsPositive() {
		rate = decimal.NewFromInt(1)
	}
	convert := func(p models.Price) decimal.Decimal {
		v, ok := p.Decimal()
		if !ok {
			return decimal.Zero
		}
		return v.Mul(rate).Round(2)
	}

	pm := models.ZeroPriceModel()
	pm.RawMarketPrice = convert(marketPrice(rec))
	pm.AlternatePrice = convert(alternatePrice(rec))

	graded := gradedTable(rec)
	for label, paths := range gradedSources {
		for _, path := range paths {
			if p, ok := graded.Lookup(path...); ok {
				pm.GradedPrices[label] = convert(p)
				break
			}
		}
	}
	return pm
}

func marketPrice(rec models.ProviderCardRecord) models.Price {
	if rec.TCGPlayer != nil {
		for _, variant := range tcgPlayerVariants {
			if prices, ok := rec.TCGPlayer.Prices[variant]; ok {
				if _, valid := prices.Market.Decimal(); valid {
					return prices.Market
				}
			}
		}
	}
	if rec.Prices != nil && rec.Prices.TCGPlayer != nil {
		return rec.Prices.TCGPlayer.MarketPrice
	}
	return models.Price{}
}

func alternatePrice(rec models.ProviderCardRecord) models.Price {
	if rec.Prices != nil && rec.Prices.Cardmarket != nil {
		if _, valid := rec.Prices.Cardmarket.LowestNearMint.Decimal(); valid {
			return rec.Prices.Cardmarket.LowestNearMint
		}
	}
	if rec.Cardmarket != nil && rec.Cardmarket.Prices != nil {
		return rec.Cardmarket.Prices.AverageSellPrice
	}
	return models.Price{}
}

func gradedTable(rec models.ProviderCardRecord) models.GradedPrices {
	if rec.Prices == nil || rec.Prices.Cardmarket == nil {
		return nil
	}
	return rec.Prices.Cardmarket.Graded
}

// ToCard converts a provider record into a Card priced at rate.
func ToCard(rec models.ProviderCardRecord, rate decimal.Decimal) models.Card {
	card := models.Card{
		ID:     rec.ID.String(),
		Name:   strings.TrimSpace(rec.Name),
		Number: rec.CardNumber.String(),
		Rarity: rec.Rarity,
		Prices: NormalizePrices(rec, rate),
	}
	if card.Number == "" {
		card.Number = rec.Number.String()
	}

	card.ImageURL = rec.Image
	if card.ImageURL == "" && rec.Images != nil {
		card.ImageURL = rec.Images.Small
	}

	episode := rec.Episode
	if episode == nil {
		episode = rec.Set
	}
	if episode != nil {
		card.ExpansionID = episode.ID.String()
		card.ExpansionName = episode.Name
	}
	return card
}
