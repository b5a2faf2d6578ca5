package http

import "github.com/gin-gonic/gin"

// RegisterCatalogRoutes registra las rutas HTTP de juegos y promociones.
func RegisterCatalogRoutes(r *gin.Engine, handler *CatalogHandler) {
	games := r.Group("/games")
	{
		games.POST("", handler.CreateGame)
		games.GET("", handler.ListGames)
		games.GET("/search", handler.SearchGames)
		games.GET("/:id", handler.GetGame)
		games.PUT("/:id", handler.UpdateGame)
	}

	promotions := r.Group("/promotions")
	{
		promotions.POST("", handler.CreatePromotion)
		promotions.GET("", handler.ListPromotions)
		promotions.GET("/:id", handler.GetPromotion)
		promotions.PUT("/:id", handler.UpdatePromotion)
	}
}

func RegisterHealthRoutes(r *gin.Engine, handler *HealthHandler) {
	r.GET("/health", handler.Health)
}
