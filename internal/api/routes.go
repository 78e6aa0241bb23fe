package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codyseavey/tcg-wishlist/internal/api/handlers"
	"github.com/codyseavey/tcg-wishlist/internal/api/middleware"
	"github.com/codyseavey/tcg-wishlist/internal/services"
)

// Dependencies are the services the HTTP layer exposes. Warmer and Limiter may be
// nil.
type Dependencies struct {
	Catalog  *services.CatalogService
	Currency *services.CurrencyConverter
	Wishlist *services.WishlistService
	Budget   *services.BudgetService
	Warmer   *services.CatalogWarmer
	Limiter  *middleware.RateLimiter

	CORSAllowedOrigins []string
	FrontendDistPath   string
}

func SetupRouter(deps Dependencies) *gin.Engine {
	router := gin.Default()
	router.Use(middleware.Metrics())

	serveFrontend := deps.FrontendDistPath != "" && dirExists(deps.FrontendDistPath)

	config := cors.DefaultConfig()
	if len(deps.CORSAllowedOrigins) > 0 {
		config.AllowOrigins = deps.CORSAllowedOrigins
	} else {
		config.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.UserIDHeader}
	config.AllowCredentials = false
	router.Use(cors.New(config))

	cardHandler := handlers.NewCardHandler(deps.Catalog, deps.Warmer)
	priceHandler := handlers.NewPriceHandler(deps.Currency, deps.Warmer)
	wishlistHandler := handlers.NewWishlistHandler(deps.Wishlist)
	budgetHandler := handlers.NewBudgetHandler(deps.Budget)

	api := router.Group("/api")
	if deps.Limiter != nil {
		api.Use(deps.Limiter.Middleware())
	}
	{
		cards := api.Group("/cards")
		{
			cards.GET("/search", cardHandler.SearchCards)
			cards.POST("/filter", cardHandler.FilterBySets)
		}

		expansions := api.Group("/expansions")
		{
			expansions.GET("", cardHandler.GetExpansions)
			expansions.GET("/search", cardHandler.SearchExpansion)
			expansions.GET("/:id/cards", cardHandler.GetExpansionCards)
		}

		prices := api.Group("/prices")
		{
			prices.GET("/rate", priceHandler.GetRate)
			prices.POST("/rate/refresh", priceHandler.RefreshRate)
			prices.GET("/status", priceHandler.GetWarmerStatus)
		}

		// Shared lists are public
		api.GET("/wishlist/shared/:token", wishlistHandler.GetSharedWishlist)

		wishlist := api.Group("/wishlist", middleware.RequireUser())
		{
			wishlist.GET("", wishlistHandler.GetWishlist)
			wishlist.POST("", wishlistHandler.AddToWishlist)
			wishlist.PUT("/:id", wishlistHandler.UpdateWishlistItem)
			wishlist.DELETE("/:id", wishlistHandler.DeleteWishlistItem)
			wishlist.POST("/share", wishlistHandler.ShareWishlist)
			wishlist.POST("/compare", wishlistHandler.CompareWishlist)
		}

		budget := api.Group("/budget", middleware.RequireUser())
		{
			budget.GET("", budgetHandler.GetBudget)
			budget.POST("", budgetHandler.AddToBudget)
			budget.PUT("/:id", budgetHandler.UpdateBudgetItem)
			budget.DELETE("/:id", budgetHandler.DeleteBudgetItem)
			budget.GET("/limit", budgetHandler.GetLimit)
			budget.POST("/limit", budgetHandler.SetLimit)
			budget.GET("/stats", budgetHandler.GetStats)
			budget.POST("/import", budgetHandler.ImportWishlist)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if serveFrontend {
		indexPath := filepath.Join(deps.FrontendDistPath, "index.html")

		router.Static("/assets", filepath.Join(deps.FrontendDistPath, "assets"))
		router.GET("/", func(c *gin.Context) {
			c.File(indexPath)
		})

		// SPA fallback for everything outside /api
		router.NoRoute(func(c *gin.Context) {
			if strings.HasPrefix(c.Request.URL.Path, "/api") {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.File(indexPath)
		})
	}

	return router
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
