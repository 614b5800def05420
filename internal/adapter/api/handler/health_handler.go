package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type HealthHandler struct {
	productCount func() int
}

var healthHandler *HealthHandler

// NewHealthHandler takes the store size as a callback so the health check
// never waits on the product API.
func NewHealthHandler(productCount func() int) *HealthHandler {
	return &HealthHandler{
		productCount: productCount,
	}
}

func SetupHealthHandler(productCount func() int) {
	healthHandler = NewHealthHandler(productCount)
}

func GetHealthHandler() *HealthHandler {
	return healthHandler
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	body := map[string]interface{}{
		"status": "Server is running",
		"time":   time.Now().Format(time.RFC3339),
	}
	if h.productCount != nil {
		body["products"] = h.productCount()
	}
	return c.JSON(http.StatusOK, body)
}
