package handler

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"houseshower/internal/adapter/api/middleware"
	"houseshower/internal/domain/entity"
	"houseshower/internal/usecase"
	"houseshower/pkg/errors"
	"houseshower/pkg/response"
)

type ProductHandler struct {
	productUseCase *usecase.ProductUseCase
}

func NewProductHandler(productUseCase *usecase.ProductUseCase) *ProductHandler {
	return &ProductHandler{
		productUseCase: productUseCase,
	}
}

type productRequest struct {
	Title string `json:"title" form:"title"`
	URL   string `json:"url" form:"url"`
	Image string `json:"image" form:"image"`
}

type productListResponse struct {
	Products []*entity.Product   `json:"products"`
	Stats    entity.ProductStats `json:"stats"`
	Query    string              `json:"query"`
	Status   string              `json:"status"`
}

func (h *ProductHandler) ListProducts(c echo.Context) error {
	query := c.QueryParam("q")
	filter := usecase.ParseReservationFilter(c.QueryParam("status"))

	return response.Success(c, productListResponse{
		Products: h.productUseCase.Search(query, filter),
		Stats:    h.productUseCase.Stats(),
		Query:    query,
		Status:   string(filter),
	})
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := productID(c)
	if err != nil {
		return response.Error(c, err)
	}

	product, err := h.productUseCase.Get(id)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, product)
}

func (h *ProductHandler) RefreshProducts(c echo.Context) error {
	if _, err := h.productUseCase.LoadAll(c.Request().Context()); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, productListResponse{
		Products: h.productUseCase.Products(),
		Stats:    h.productUseCase.Stats(),
		Status:   string(usecase.FilterAll),
	})
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	input, closer, err := bindProductInput(c)
	if err != nil {
		return response.Error(c, err)
	}
	defer closer.Close()

	product, err := h.productUseCase.Create(c.Request().Context(), input)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, product)
}

func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	id, err := productID(c)
	if err != nil {
		return response.Error(c, err)
	}

	input, closer, err := bindProductInput(c)
	if err != nil {
		return response.Error(c, err)
	}
	defer closer.Close()

	product, err := h.productUseCase.Update(c.Request().Context(), id, input)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, product)
}

func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	id, err := productID(c)
	if err != nil {
		return response.Error(c, err)
	}

	if err := h.productUseCase.Delete(c.Request().Context(), id); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"id":      id,
		"message": "Product deleted successfully",
	})
}

func (h *ProductHandler) ReserveProduct(c echo.Context) error {
	id, err := productID(c)
	if err != nil {
		return response.Error(c, err)
	}

	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Error(c, errors.Unauthorized("Please log in first", nil))
	}

	product, err := h.productUseCase.Reserve(c.Request().Context(), id, user.Email)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, product)
}

// UnreserveProduct cancels a reservation. Only the guest holding it or an
// admin may do so.
func (h *ProductHandler) UnreserveProduct(c echo.Context) error {
	id, err := productID(c)
	if err != nil {
		return response.Error(c, err)
	}

	current, err := h.productUseCase.Get(id)
	if err != nil {
		return response.Error(c, err)
	}
	if !current.IsReserved {
		return response.Success(c, current)
	}
	if !usecase.CanUnreserve(current, middleware.CurrentUser(c)) {
		return response.Error(c, errors.Forbidden("Only the guest who reserved this gift can cancel the reservation", nil))
	}

	product, err := h.productUseCase.Unreserve(c.Request().Context(), id)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, product)
}

func productID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.BadRequest("Invalid product id", err)
	}
	return id, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// bindProductInput reads a JSON body or a multipart form. A multipart "file"
// field takes precedence over the image URL; the returned closer releases it.
func bindProductInput(c echo.Context) (entity.ProductInput, io.Closer, error) {
	var req productRequest
	if err := c.Bind(&req); err != nil {
		return entity.ProductInput{}, nopCloser{}, errors.BadRequest("Invalid product data", err)
	}

	input := entity.ProductInput{
		Title:    req.Title,
		URL:      req.URL,
		ImageURL: strings.TrimSpace(req.Image),
	}

	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return input, nopCloser{}, nil
	}

	fileHeader, err := c.FormFile("file")
	if err == http.ErrMissingFile {
		return input, nopCloser{}, nil
	}
	if err != nil {
		return input, nopCloser{}, errors.BadRequest("Invalid image file", err)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return input, nopCloser{}, errors.BadRequest("Unable to read image file", err)
	}

	input.ImageURL = ""
	input.ImageFile = &entity.ImageFile{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get(echo.HeaderContentType),
		Size:        fileHeader.Size,
		Content:     src,
	}
	return input, src, nil
}
