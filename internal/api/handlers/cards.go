package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/tcg-wishlist/internal/models"
	"github.com/codyseavey/tcg-wishlist/internal/services"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
	// Upper bound on sets per filter request; each set is a separate aggregation
	maxFilterSets = 10

	partialMessage = "Some results could not be loaded. Showing what was found; please try again later."
	failedMessage  = "The card service is unavailable right now. Please try again later."
)

type CardHandler struct {
	catalog *services.CatalogService
	warmer  *services.CatalogWarmer
}

func NewCardHandler(catalog *services.CatalogService, warmer *services.CatalogWarmer) *CardHandler {
	return &CardHandler{
		catalog: catalog,
		warmer:  warmer,
	}
}

// SearchCards handles GET /api/cards/search?q=&sort=&page=&per_page=
func (h *CardHandler) SearchCards(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		query = c.Query("name")
	}

	res, err := h.catalog.SearchCards(c.Request.Context(), query, models.ParseSortMode(c.Query("sort")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pagedResult(c, res))
}

// GetExpansions handles GET /api/expansions, grouped by series
func (h *CardHandler) GetExpansions(c *gin.Context) {
	exps, cached, err := h.catalog.Expansions(c.Request.Context())
	if err != nil {
		log.Printf("Cards: failed to load expansions: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": failedMessage})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"series": services.GroupExpansionsBySeries(exps),
		"total":  len(exps),
		"cached": cached,
	})
}

// GetExpansionCards handles GET /api/expansions/:id/cards
func (h *CardHandler) GetExpansionCards(c *gin.Context) {
	res, err := h.catalog.ExpansionCards(c.Request.Context(), c.Param("id"), models.ParseSortMode(c.Query("sort")))
	if err != nil {
		respondError(c, err)
		return
	}
	if res.Degraded() && h.warmer != nil {
		h.warmer.QueueExpansion(c.Param("id"))
	}
	c.JSON(http.StatusOK, pagedResult(c, res))
}

// SearchExpansion handles GET /api/expansions/search?name=
func (h *CardHandler) SearchExpansion(c *gin.Context) {
	exp, res, err := h.catalog.SearchExpansionCards(c.Request.Context(), c.Query("name"), models.ParseSortMode(c.Query("sort")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"expansion": exp,
		"results":   pagedResult(c, res),
	})
}

type filterRequest struct {
	SetIDs []string `json:"set_ids"`
	Sort   string   `json:"sort"`
}

// FilterBySets handles POST /api/cards/filter
func (h *CardHandler) FilterBySets(c *gin.Context) {
	var req filterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.SetIDs) > maxFilterSets {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many sets selected (max " + strconv.Itoa(maxFilterSets) + ")"})
		return
	}

	res, err := h.catalog.FilterBySets(c.Request.Context(), req.SetIDs, models.ParseSortMode(req.Sort))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pagedResult(c, res))
}

// pagedResult slices an aggregated list for display using the page and per_page
// query parameters.
func pagedResult(c *gin.Context, res services.CatalogResult) models.CardSearchResult {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(defaultPerPage)))
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	perPage = min(perPage, maxPerPage)

	p := services.Paginate(res.Cards, page, perPage)
	out := models.CardSearchResult{
		Cards:      p.Cards,
		TotalCount: p.Total,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: p.TotalPages,
		HasMore:    p.Page < p.TotalPages,
		Cached:     res.Cached,
		Partial:    res.Degraded(),
	}
	switch res.Outcome {
	case services.OutcomePartial:
		out.Message = partialMessage
	case services.OutcomeFailed:
		out.Message = failedMessage
	}
	return out
}

// respondError maps service errors to status codes. Anything unexpected is
// logged and reported generically.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrEmptyQuery),
		errors.Is(err, services.ErrNoSetsSelected),
		errors.Is(err, services.ErrMissingCard),
		errors.Is(err, services.ErrInvalidPriority),
		errors.Is(err, services.ErrNegativeLimit):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrShareNotFound),
		errors.Is(err, services.ErrExpansionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Printf("Handlers: %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong, please try again"})
	}
}
