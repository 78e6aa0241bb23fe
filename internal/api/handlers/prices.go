package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/tcg-wishlist/internal/services"
)

type PriceHandler struct {
	currency *services.CurrencyConverter
	warmer   *services.CatalogWarmer
}

func NewPriceHandler(currency *services.CurrencyConverter, warmer *services.CatalogWarmer) *PriceHandler {
	return &PriceHandler{
		currency: currency,
		warmer:   warmer,
	}
}

// GetRate handles GET /api/prices/rate
func (h *PriceHandler) GetRate(c *gin.Context) {
	h.currency.GetRate(c.Request.Context())
	c.JSON(http.StatusOK, h.currency.Status())
}

// RefreshRate handles POST /api/prices/rate/refresh. A failed fetch still
// reports the rate in use.
func (h *PriceHandler) RefreshRate(c *gin.Context) {
	if err := h.currency.Refresh(c.Request.Context()); err != nil {
		log.Printf("Prices: manual rate refresh failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":  "could not refresh the exchange rate, keeping the current one",
			"status": h.currency.Status(),
		})
		return
	}
	c.JSON(http.StatusOK, h.currency.Status())
}

// GetWarmerStatus handles GET /api/prices/status
func (h *PriceHandler) GetWarmerStatus(c *gin.Context) {
	if h.warmer == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"enabled": true,
		"warmer":  h.warmer.Status(),
	})
}
