package router

import (
	"github.com/labstack/echo/v4"

	"houseshower/internal/adapter/api/handler"
	"houseshower/internal/adapter/api/middleware"
	"houseshower/internal/infrastructure/ratelimit"
)

func SetupUploadRouter(e *echo.Echo, sessions *middleware.SessionMiddleware, limiter *ratelimit.RateLimiter) {
	uploadHandler := handler.GetUploadHandler()
	e.POST("/api/upload", uploadHandler.UploadImage, sessions.RequireUser, middleware.RateLimit(limiter, ratelimit.ActionUpload))
}
