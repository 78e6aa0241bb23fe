package cache

import (
	"strings"
)

const keyPrefix = "tcgwish:"

// ExpansionCardsKey is the key for every card of one expansion
func ExpansionCardsKey(expansionID string) string {
	return keyPrefix + "expansion:" + strings.TrimSpace(expansionID) + ":cards"
}

// SearchKey is the key for a free-text search, optionally scoped to an expansion.
// Names are compared case-insensitively with collapsed whitespace.
func SearchKey(name, expansionID string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(name)), " ")
	key := keyPrefix + "search:" + normalized
	if expansionID = strings.TrimSpace(expansionID); expansionID != "" {
		key += "|expansion:" + expansionID
	}
	return key
}

// ExpansionCatalogKey is the singleton key of the expansion catalog
func ExpansionCatalogKey() string {
	return keyPrefix + "expansions:catalog"
}

func ExchangeRateKey(base, quote string) string {
	return keyPrefix + "rate:" + strings.ToUpper(base) + ":" + strings.ToUpper(quote)
}
