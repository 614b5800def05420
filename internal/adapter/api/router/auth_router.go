package router

import (
	"github.com/labstack/echo/v4"

	"houseshower/internal/adapter/api/handler"
	"houseshower/internal/adapter/api/middleware"
	"houseshower/internal/infrastructure/ratelimit"
)

// SetupAuthRouter initializes login, logout and session routes
func SetupAuthRouter(e *echo.Echo, sessions *middleware.SessionMiddleware, limiter *ratelimit.RateLimiter) {
	authHandler := handler.GetAuthHandler()

	e.GET("/login", authHandler.LoginPage, sessions.RedirectIfLoggedIn)
	e.POST("/login", authHandler.Login, middleware.RateLimit(limiter, ratelimit.ActionLogin))
	e.POST("/logout", authHandler.Logout)

	e.GET("/api/me", authHandler.Me, sessions.RequireUser)
}
