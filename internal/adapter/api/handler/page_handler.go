package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"houseshower/internal/adapter/api/middleware"
	"houseshower/internal/domain/entity"
	"houseshower/internal/usecase"
)

type PageHandler struct {
	productUseCase *usecase.ProductUseCase
}

func NewPageHandler(productUseCase *usecase.ProductUseCase) *PageHandler {
	return &PageHandler{
		productUseCase: productUseCase,
	}
}

type indexPageData struct {
	User     *entity.User
	Products []*entity.Product
	Stats    entity.ProductStats
	Query    string
	Status   string
	Filters  []usecase.ReservationFilter
}

// Index renders the registry from the in-memory store, filtered by the
// q and status query parameters.
func (h *PageHandler) Index(c echo.Context) error {
	query := c.QueryParam("q")
	filter := usecase.ParseReservationFilter(c.QueryParam("status"))

	return c.Render(http.StatusOK, "index.html", indexPageData{
		User:     middleware.CurrentUser(c),
		Products: h.productUseCase.Search(query, filter),
		Stats:    h.productUseCase.Stats(),
		Query:    query,
		Status:   string(filter),
		Filters:  []usecase.ReservationFilter{usecase.FilterAll, usecase.FilterAvailable, usecase.FilterReserved},
	})
}
