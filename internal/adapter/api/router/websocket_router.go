package router

import (
	"github.com/labstack/echo/v4"

	"houseshower/internal/adapter/api/handler"
	"houseshower/internal/adapter/api/middleware"
)

// SetupWebSocketRouter exposes the product change stream to logged in guests
func SetupWebSocketRouter(e *echo.Echo, sessions *middleware.SessionMiddleware) {
	wsHandler := handler.GetWebSocketHandler()
	e.GET("/ws", wsHandler.HandleWebSocket, sessions.RequireUser)
}
