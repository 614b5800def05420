package router

import (
	"github.com/labstack/echo/v4"

	"houseshower/internal/adapter/api/middleware"
	"houseshower/internal/infrastructure/ratelimit"
)

// Setup registers every route. Handlers must already be set up.
func Setup(e *echo.Echo, sessions *middleware.SessionMiddleware, limiter *ratelimit.RateLimiter) {
	e.Use(sessions.Store(), sessions.LoadUser)

	SetupHealthRouter(e)
	SetupAuthRouter(e, sessions, limiter)
	SetupPageRouter(e, sessions)
	SetupProductRouter(e, sessions, limiter)
	SetupUploadRouter(e, sessions, limiter)
	SetupWebSocketRouter(e, sessions)
}
