package services

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codyseavey/tcg-wishlist/internal/metrics"
	"github.com/codyseavey/tcg-wishlist/internal/models"
)

var ErrNegativeLimit = errors.New("budget limit cannot be negative")

// BudgetService tracks cards a user plans to buy against a spending limit.
type BudgetService struct {
	db *gorm.DB
}

func NewBudgetService(db *gorm.DB) *BudgetService {
	return &BudgetService{db: db}
}

func (s *BudgetService) List(userID string) ([]models.BudgetItem, error) {
	var items []models.BudgetItem
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to load budget: %w", err)
	}
	return items, nil
}

// Add puts a card in the budget, or refreshes it when it is already there.
// Purchase state of an existing item is kept.
func (s *BudgetService) Add(userID string, req models.AddBudgetRequest) (*models.BudgetItem, error) {
	if strings.TrimSpace(req.CardID) == "" || strings.TrimSpace(req.Name) == "" {
		return nil, ErrMissingCard
	}

	item := models.BudgetItem{
		UserID:        userID,
		CardID:        strings.TrimSpace(req.CardID),
		Name:          strings.TrimSpace(req.Name),
		SetName:       req.SetName,
		Number:        req.Number,
		ImageURL:      req.ImageURL,
		SelectedGrade: models.ParseGradeLabel(req.SelectedGrade),
		Prices:        req.Prices,
		InBudget:      true,
	}
	if req.InBudget != nil {
		item.InBudget = *req.InBudget
	}
	if item.Prices == nil {
		item.Prices = models.GradeTable{}
	}

	if err := s.upsert(&item); err != nil {
		return nil, err
	}
	return s.byCard(userID, item.CardID)
}

func (s *BudgetService) Update(userID string, id uint, req models.UpdateBudgetRequest) (*models.BudgetItem, error) {
	item, err := s.get(userID, id)
	if err != nil {
		return nil, err
	}

	if req.Purchased != nil {
		item.Purchased = *req.Purchased
	}
	if req.InBudget != nil {
		item.InBudget = *req.InBudget
	}
	if req.SelectedGrade != nil {
		item.SelectedGrade = models.ParseGradeLabel(*req.SelectedGrade)
	}
	if req.Prices != nil {
		item.Prices = req.Prices
	}

	if err := s.db.Save(item).Error; err != nil {
		return nil, fmt.Errorf("failed to update budget item: %w", err)
	}
	return item, nil
}

func (s *BudgetService) Remove(userID string, id uint) error {
	result := s.db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.BudgetItem{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove budget item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ImportFromWishlist copies wishlist cards that are not yet budgeted. It returns
// how many were added.
func (s *BudgetService) ImportFromWishlist(userID string) (int, error) {
	var wishlist []models.WishlistItem
	if err := s.db.Where("user_id = ?", userID).Order("id").Find(&wishlist).Error; err != nil {
		return 0, fmt.Errorf("failed to load wishlist: %w", err)
	}

	var existing []string
	if err := s.db.Model(&models.BudgetItem{}).Where("user_id = ?", userID).Pluck("card_id", &existing).Error; err != nil {
		return 0, fmt.Errorf("failed to load budget: %w", err)
	}
	budgeted := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		budgeted[id] = struct{}{}
	}

	added := 0
	for _, w := range wishlist {
		if _, ok := budgeted[w.CardID]; ok {
			continue
		}

		prices := models.GradeTable{}
		for grade, price := range w.GradedPrices {
			prices[grade] = price
		}
		prices[models.GradeRaw] = w.Price

		item := models.BudgetItem{
			UserID:        userID,
			CardID:        w.CardID,
			Name:          w.Name,
			SetName:       w.SetName,
			Number:        w.Number,
			ImageURL:      w.ImageURL,
			SelectedGrade: w.SelectedGrade,
			Prices:        prices,
			InBudget:      true,
		}
		if err := s.db.Create(&item).Error; err != nil {
			return added, fmt.Errorf("failed to import %s: %w", w.CardID, err)
		}
		budgeted[w.CardID] = struct{}{}
		added++
	}

	metrics.BudgetItemsImported.Add(float64(added))
	log.Printf("Budget: imported %d of %d wishlist cards for user %s", added, len(wishlist), userID)
	return added, nil
}

// GetLimit returns the user's limit; zero means none has been set.
func (s *BudgetService) GetLimit(userID string) (decimal.Decimal, error) {
	var limit models.BudgetLimit
	err := s.db.Where("user_id = ?", userID).First(&limit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load budget limit: %w", err)
	}
	return limit.Limit, nil
}

func (s *BudgetService) SetLimit(userID string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeLimit
	}
	limit := models.BudgetLimit{UserID: userID, Limit: amount.Round(2)}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"limit_amount", "updated_at"}),
	}).Create(&limit).Error
	if err != nil {
		return fmt.Errorf("failed to save budget limit: %w", err)
	}
	return nil
}

// Stats summarizes in-budget items. Items taken out of the budget are ignored.
func (s *BudgetService) Stats(userID string) (*models.BudgetStats, error) {
	items, err := s.List(userID)
	if err != nil {
		return nil, err
	}
	limit, err := s.GetLimit(userID)
	if err != nil {
		return nil, err
	}
	return ComputeBudgetStats(items, limit), nil
}

// ComputeBudgetStats totals items at their selected grade. Remaining is limit
// minus what was already purchased.
func ComputeBudgetStats(items []models.BudgetItem, limit decimal.Decimal) *models.BudgetStats {
	stats := &models.BudgetStats{
		TotalValue:     decimal.Zero,
		PurchasedTotal: decimal.Zero,
		Limit:          limit,
	}
	for _, item := range items {
		if !item.InBudget {
			continue
		}
		price := item.Price()
		stats.TotalCards++
		stats.TotalValue = stats.TotalValue.Add(price)
		if item.Purchased {
			stats.PurchasedCards++
			stats.PurchasedTotal = stats.PurchasedTotal.Add(price)
		} else {
			stats.UnpurchasedCards++
		}
	}

	stats.Remaining = limit.Sub(stats.PurchasedTotal)
	switch {
	case !limit.IsPositive():
		stats.Status = models.BudgetNoLimit
	case stats.Remaining.IsNegative():
		stats.Status = models.BudgetOver
	default:
		stats.Status = models.BudgetWithin
	}
	return stats
}

func (s *BudgetService) upsert(item *models.BudgetItem) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "card_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "set_name", "number", "image_url", "selected_grade", "prices", "in_budget", "updated_at",
		}),
	}).Create(item).Error
	if err != nil {
		return fmt.Errorf("failed to save budget item: %w", err)
	}
	return nil
}

func (s *BudgetService) byCard(userID, cardID string) (*models.BudgetItem, error) {
	var item models.BudgetItem
	if err := s.db.Where("user_id = ? AND card_id = ?", userID, cardID).First(&item).Error; err != nil {
		return nil, fmt.Errorf("failed to reload budget item: %w", err)
	}
	return &item, nil
}

func (s *BudgetService) get(userID string, id uint) (*models.BudgetItem, error) {
	var item models.BudgetItem
	err := s.db.Where("id = ? AND user_id = ?", id, userID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load budget item: %w", err)
	}
	return &item, nil
}
