package router

import (
	"github.com/labstack/echo/v4"

	"houseshower/internal/adapter/api/handler"
	"houseshower/internal/adapter/api/middleware"
)

func SetupPageRouter(e *echo.Echo, sessions *middleware.SessionMiddleware) {
	pageHandler := handler.GetPageHandler()
	e.GET("/", pageHandler.Index, sessions.RequirePageUser)
}
