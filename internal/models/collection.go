package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority returns the priority for s and whether s named one. Empty input is
// medium.
func ParsePriority(s string) (Priority, bool) {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case "", PriorityMedium:
		return PriorityMedium, true
	case PriorityHigh:
		return PriorityHigh, true
	case PriorityLow:
		return PriorityLow, true
	default:
		return PriorityMedium, false
	}
}

// Rank orders priorities for listing, high first
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// GradeTable maps grade labels to prices. Stored as JSON text.
type GradeTable map[GradeLabel]decimal.Decimal

// Price returns the price for grade, zero when missing.
func (t GradeTable) Price(grade GradeLabel) decimal.Decimal {
	if v, ok := t[grade]; ok {
		return v
	}
	return decimal.Zero
}

// WishlistItem is a card a user wants, one row per (user, card).
type WishlistItem struct {
	ID            uint            `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID        string          `json:"user_id" gorm:"not null;uniqueIndex:idx_wishlist_user_card"`
	CardID        string          `json:"card_id" gorm:"not null;uniqueIndex:idx_wishlist_user_card"`
	Name          string          `json:"name" gorm:"not null"`
	SetName       string          `json:"set_name"`
	SetID         string          `json:"set_id"`
	Number        string          `json:"number"`
	Rarity        string          `json:"rarity"`
	ImageURL      string          `json:"image_url"`
	Priority      Priority        `json:"priority" gorm:"default:'medium'"`
	Price         decimal.Decimal `json:"price" gorm:"type:decimal(12,2)"`
	SelectedGrade GradeLabel      `json:"selected_grade" gorm:"default:'raw'"`
	GradedPrices  GradeTable      `json:"graded_prices" gorm:"serializer:json"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// WishlistShare maps a public share token to its owner
type WishlistShare struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID    string    `json:"user_id" gorm:"not null;index"`
	Token     string    `json:"token" gorm:"not null;uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
}

// AddWishlistRequest carries a card as the search UI shows it
type AddWishlistRequest struct {
	CardID          string          `json:"card_id" binding:"required"`
	Name            string          `json:"name" binding:"required"`
	SetName         string          `json:"set_name"`
	SetID           string          `json:"set_id"`
	Number          string          `json:"number"`
	Rarity          string          `json:"rarity"`
	ImageURL        string          `json:"image_url"`
	Priority        string          `json:"priority"`
	SelectedGrade   string          `json:"selected_grade"`
	TCGPlayerPrice  decimal.Decimal `json:"tcgplayer_price"`
	CardmarketPrice decimal.Decimal `json:"cardmarket_price"`
	GradedPrices    GradeTable      `json:"graded_prices"`
}

type UpdateWishlistRequest struct {
	Priority      *string    `json:"priority"`
	SelectedGrade *string    `json:"selected_grade"`
	GradedPrices  GradeTable `json:"graded_prices"`
}

// SharedWishlist is what a share token resolves to
type SharedWishlist struct {
	Owner string         `json:"owner"`
	Items []WishlistItem `json:"items"`
}

// WishlistComparison contrasts the caller's wishlist with a shared one.
// Cards are matched on card id.
type WishlistComparison struct {
	Friend        string         `json:"friend"`
	MatchingCount int            `json:"matching_count"`
	OnlyYouHave   int            `json:"only_you_have"`
	OnlyTheyHave  int            `json:"only_they_have"`
	Matching      []string       `json:"matching"`
	YourCards     []WishlistItem `json:"your_cards"`
	FriendCards   []WishlistItem `json:"friend_cards"`
}

// BudgetItem is a card the user plans to buy
type BudgetItem struct {
	ID            uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID        string     `json:"user_id" gorm:"not null;uniqueIndex:idx_budget_user_card"`
	CardID        string     `json:"card_id" gorm:"not null;uniqueIndex:idx_budget_user_card"`
	Name          string     `json:"name" gorm:"not null"`
	SetName       string     `json:"set_name"`
	Number        string     `json:"number"`
	ImageURL      string     `json:"image_url"`
	SelectedGrade GradeLabel `json:"selected_grade" gorm:"default:'raw'"`
	Prices        GradeTable `json:"prices" gorm:"serializer:json"`
	Purchased     bool       `json:"purchased" gorm:"not null"`
	InBudget      bool       `json:"in_budget" gorm:"not null"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Price is the item's price at its selected grade
func (b BudgetItem) Price() decimal.Decimal {
	return b.Prices.Price(b.SelectedGrade)
}

// BudgetLimit is a user's spending ceiling
type BudgetLimit struct {
	UserID    string          `json:"user_id" gorm:"primaryKey"`
	Limit     decimal.Decimal `json:"limit" gorm:"column:limit_amount;type:decimal(12,2)"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type AddBudgetRequest struct {
	CardID        string     `json:"card_id" binding:"required"`
	Name          string     `json:"name" binding:"required"`
	SetName       string     `json:"set_name"`
	Number        string     `json:"number"`
	ImageURL      string     `json:"image_url"`
	SelectedGrade string     `json:"selected_grade"`
	Prices        GradeTable `json:"prices"`
	InBudget      *bool      `json:"in_budget"`
}

type UpdateBudgetRequest struct {
	Purchased     *bool      `json:"purchased"`
	InBudget      *bool      `json:"in_budget"`
	SelectedGrade *string    `json:"selected_grade"`
	Prices        GradeTable `json:"prices"`
}

type BudgetStatus string

const (
	BudgetOver    BudgetStatus = "over"
	BudgetWithin  BudgetStatus = "within"
	BudgetNoLimit BudgetStatus = "no_limit"
)

// BudgetStats summarizes in-budget items against the user's limit
type BudgetStats struct {
	TotalCards       int             `json:"total_cards"`
	PurchasedCards   int             `json:"purchased_cards"`
	UnpurchasedCards int             `json:"unpurchased_cards"`
	TotalValue       decimal.Decimal `json:"total_value"`
	PurchasedTotal   decimal.Decimal `json:"purchased_total"`
	Limit            decimal.Decimal `json:"limit"`
	Remaining        decimal.Decimal `json:"remaining"`
	Status           BudgetStatus    `json:"status"`
}
