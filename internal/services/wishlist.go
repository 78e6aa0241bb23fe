package services

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codyseavey/tcg-wishlist/internal/metrics"
	"github.com/codyseavey/tcg-wishlist/internal/models"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidPriority = errors.New("priority must be high, medium or low")
	ErrMissingCard     = errors.New("card id and name are required")
	ErrShareNotFound   = errors.New("share link not found")
)

// WishlistService stores per-user wishlists and share links.
type WishlistService struct {
	db *gorm.DB
}

func NewWishlistService(db *gorm.DB) *WishlistService {
	return &WishlistService{db: db}
}

// List returns the user's wishlist, high priority first, newest first within a
// priority.
func (s *WishlistService) List(userID string) ([]models.WishlistItem, error) {
	var items []models.WishlistItem
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to load wishlist: %w", err)
	}
	slices.SortStableFunc(items, func(a, b models.WishlistItem) int {
		return a.Priority.Rank() - b.Priority.Rank()
	})
	return items, nil
}

// Add saves a card to the wishlist. Adding a card already on the list refreshes
// its details and price instead of creating a second row.
func (s *WishlistService) Add(userID string, req models.AddWishlistRequest) (*models.WishlistItem, error) {
	if strings.TrimSpace(req.CardID) == "" || strings.TrimSpace(req.Name) == "" {
		return nil, ErrMissingCard
	}
	priority, ok := models.ParsePriority(req.Priority)
	if !ok {
		return nil, ErrInvalidPriority
	}

	item := models.WishlistItem{
		UserID:        userID,
		CardID:        strings.TrimSpace(req.CardID),
		Name:          strings.TrimSpace(req.Name),
		SetName:       req.SetName,
		SetID:         req.SetID,
		Number:        req.Number,
		Rarity:        req.Rarity,
		ImageURL:      req.ImageURL,
		Priority:      priority,
		Price:         decimal.Max(req.TCGPlayerPrice, req.CardmarketPrice).Round(2),
		SelectedGrade: models.ParseGradeLabel(req.SelectedGrade),
		GradedPrices:  req.GradedPrices,
	}
	if item.GradedPrices == nil {
		item.GradedPrices = models.GradeTable{}
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "card_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "set_name", "set_id", "number", "rarity", "image_url",
			"priority", "price", "selected_grade", "graded_prices", "updated_at",
		}),
	}).Create(&item).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save wishlist item: %w", err)
	}
	metrics.WishlistItemsAdded.Inc()

	// The upsert does not report the existing row's id
	var saved models.WishlistItem
	if err := s.db.Where("user_id = ? AND card_id = ?", userID, item.CardID).First(&saved).Error; err != nil {
		return nil, fmt.Errorf("failed to reload wishlist item: %w", err)
	}
	return &saved, nil
}

// Update changes the priority, selected grade or graded prices of an item.
func (s *WishlistService) Update(userID string, id uint, req models.UpdateWishlistRequest) (*models.WishlistItem, error) {
	item, err := s.get(userID, id)
	if err != nil {
		return nil, err
	}

	if req.Priority != nil {
		priority, ok := models.ParsePriority(*req.Priority)
		if !ok {
			return nil, ErrInvalidPriority
		}
		item.Priority = priority
	}
	if req.SelectedGrade != nil {
		item.SelectedGrade = models.ParseGradeLabel(*req.SelectedGrade)
	}
	if req.GradedPrices != nil {
		item.GradedPrices = req.GradedPrices
	}

	if err := s.db.Save(item).Error; err != nil {
		return nil, fmt.Errorf("failed to update wishlist item: %w", err)
	}
	return item, nil
}

func (s *WishlistService) Remove(userID string, id uint) error {
	result := s.db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.WishlistItem{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove wishlist item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateShare returns the user's share token, creating one on first use.
func (s *WishlistService) CreateShare(userID string) (string, error) {
	var share models.WishlistShare
	err := s.db.Where("user_id = ?", userID).First(&share).Error
	if err == nil {
		return share.Token, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("failed to load share link: %w", err)
	}

	share = models.WishlistShare{
		UserID: userID,
		Token:  strings.ReplaceAll(uuid.New().String(), "-", ""),
	}
	if err := s.db.Create(&share).Error; err != nil {
		return "", fmt.Errorf("failed to create share link: %w", err)
	}
	log.Printf("Wishlist: created share link for user %s", userID)
	return share.Token, nil
}

// Shared resolves a share token to its owner's wishlist.
func (s *WishlistService) Shared(token string) (*models.SharedWishlist, error) {
	owner, err := s.shareOwner(token)
	if err != nil {
		return nil, err
	}
	items, err := s.List(owner)
	if err != nil {
		return nil, err
	}
	return &models.SharedWishlist{Owner: owner, Items: items}, nil
}

// Compare contrasts the user's wishlist with the one behind token.
func (s *WishlistService) Compare(userID, token string) (*models.WishlistComparison, error) {
	owner, err := s.shareOwner(token)
	if err != nil {
		return nil, err
	}
	mine, err := s.List(userID)
	if err != nil {
		return nil, err
	}
	theirs, err := s.List(owner)
	if err != nil {
		return nil, err
	}

	theirIDs := make(map[string]struct{}, len(theirs))
	for _, item := range theirs {
		theirIDs[item.CardID] = struct{}{}
	}

	result := &models.WishlistComparison{
		Friend:      owner,
		Matching:    []string{},
		YourCards:   mine,
		FriendCards: theirs,
	}
	for _, item := range mine {
		if _, ok := theirIDs[item.CardID]; ok {
			result.Matching = append(result.Matching, item.CardID)
		}
	}
	result.MatchingCount = len(result.Matching)
	result.OnlyYouHave = len(mine) - result.MatchingCount
	result.OnlyTheyHave = len(theirs) - result.MatchingCount

	metrics.WishlistComparisonsTotal.Inc()
	return result, nil
}

func (s *WishlistService) shareOwner(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrShareNotFound
	}
	var share models.WishlistShare
	err := s.db.Where("token = ?", token).First(&share).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrShareNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve share link: %w", err)
	}
	return share.UserID, nil
}

func (s *WishlistService) get(userID string, id uint) (*models.WishlistItem, error) {
	var item models.WishlistItem
	err := s.db.Where("id = ? AND user_id = ?", id, userID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load wishlist item: %w", err)
	}
	return &item, nil
}
