package router

import (
	"github.com/labstack/echo/v4"

	"houseshower/internal/adapter/api/handler"
	"houseshower/internal/adapter/api/middleware"
	"houseshower/internal/infrastructure/ratelimit"
)

func SetupProductRouter(e *echo.Echo, sessions *middleware.SessionMiddleware, limiter *ratelimit.RateLimiter) {
	productHandler := handler.GetProductHandler()
	mutate := middleware.RateLimit(limiter, ratelimit.ActionMutate)

	products := e.Group("/api/products")
	products.Use(sessions.RequireUser)
	products.GET("", productHandler.ListProducts)
	products.GET("/:id", productHandler.GetProduct)
	products.POST("/:id/reserve", productHandler.ReserveProduct, mutate)
	products.POST("/:id/unreserve", productHandler.UnreserveProduct, mutate)

	products.POST("/refresh", productHandler.RefreshProducts, middleware.AdminOnly)
	products.POST("", productHandler.CreateProduct, middleware.AdminOnly, mutate)
	products.PUT("/:id", productHandler.UpdateProduct, middleware.AdminOnly, mutate)
	products.DELETE("/:id", productHandler.DeleteProduct, middleware.AdminOnly, mutate)
}
