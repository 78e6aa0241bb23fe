package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/codyseavey/tcg-wishlist/internal/api/middleware"
	"github.com/codyseavey/tcg-wishlist/internal/models"
	"github.com/codyseavey/tcg-wishlist/internal/services"
)

type BudgetHandler struct {
	budget *services.BudgetService
}

func NewBudgetHandler(budget *services.BudgetService) *BudgetHandler {
	return &BudgetHandler{budget: budget}
}

func (h *BudgetHandler) GetBudget(c *gin.Context) {
	items, err := h.budget.List(middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *BudgetHandler) AddToBudget(c *gin.Context) {
	var req models.AddBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.budget.Add(middleware.UserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *BudgetHandler) UpdateBudgetItem(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req models.UpdateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.budget.Update(middleware.UserID(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *BudgetHandler) DeleteBudgetItem(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.budget.Remove(middleware.UserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "removed from budget"})
}

func (h *BudgetHandler) GetLimit(c *gin.Context) {
	limit, err := h.budget.GetLimit(middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"limit": limit})
}

type limitRequest struct {
	Limit decimal.Decimal `json:"limit"`
}

func (h *BudgetHandler) SetLimit(c *gin.Context) {
	var req limitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.budget.SetLimit(middleware.UserID(c), req.Limit); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"limit": req.Limit.Round(2)})
}

func (h *BudgetHandler) GetStats(c *gin.Context) {
	stats, err := h.budget.Stats(middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ImportWishlist handles POST /api/budget/import
func (h *BudgetHandler) ImportWishlist(c *gin.Context) {
	added, err := h.budget.ImportFromWishlist(middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": added})
}
