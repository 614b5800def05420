package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"houseshower/internal/domain/entity"
	"houseshower/internal/domain/repository"
	"houseshower/pkg/errors"
	"houseshower/pkg/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	productsPath     = "/api/productos/"
	defaultUserAgent = "houseshower/1.0"
	maxErrorBody     = 4096
)

var _ repository.ProductRepository = (*HTTPProductRepository)(nil)

// HTTPProductRepository talks to the remote product API. Every product it
// lists or creates belongs to the registry named by productType.
type HTTPProductRepository struct {
	baseURL     *url.URL
	http        *http.Client
	productType string
	userAgent   string
}

// flexibleID accepts ids encoded either as numbers or strings.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	*f = flexibleID(strings.Trim(strings.TrimSpace(string(data)), `"`))
	return nil
}

type productWire struct {
	ID         flexibleID `json:"id"`
	Title      string     `json:"title"`
	Image      string     `json:"image"`
	URL        string     `json:"url"`
	Email      *string    `json:"email"`
	IsReserved bool       `json:"isReserved"`
	Type       string     `json:"type"`
	CreatedAt  string     `json:"created_at"`
	UpdatedAt  string     `json:"updated_at"`
}

type paginatedProducts struct {
	Count    int           `json:"count"`
	Next     *string       `json:"next"`
	Previous *string       `json:"previous"`
	Results  []productWire `json:"results"`
}

func NewHTTPProductRepository(baseURL, productType string, timeout time.Duration) (*HTTPProductRepository, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProductRepository{
		baseURL:     base,
		http:        &http.Client{Timeout: timeout},
		productType: productType,
		userAgent:   defaultUserAgent,
	}, nil
}

func (r *HTTPProductRepository) List(ctx context.Context) ([]*entity.Product, error) {
	values := url.Values{}
	values.Set("type", r.productType)
	rel := &url.URL{Path: strings.TrimSuffix(productsPath, "/"), RawQuery: values.Encode()}

	var page paginatedProducts
	if err := r.do(ctx, http.MethodGet, rel, nil, &page); err != nil {
		return nil, err
	}
	if page.Next != nil && *page.Next != "" {
		logger.Debug("Product list has %d entries, only the first page is loaded", page.Count)
	}

	products := make([]*entity.Product, 0, len(page.Results))
	for _, w := range page.Results {
		p, err := w.toEntity()
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

func (r *HTTPProductRepository) GetByID(ctx context.Context, id int64) (*entity.Product, error) {
	var w productWire
	if err := r.do(ctx, http.MethodGet, productURL(id), nil, &w); err != nil {
		return nil, err
	}
	return w.toEntity()
}

func (r *HTTPProductRepository) Create(ctx context.Context, payload repository.ProductPayload) (*entity.Product, error) {
	payload.Type = r.productType
	var w productWire
	if err := r.do(ctx, http.MethodPost, &url.URL{Path: productsPath}, payload, &w); err != nil {
		return nil, err
	}
	return w.toEntity()
}

func (r *HTTPProductRepository) Update(ctx context.Context, id int64, payload repository.ProductPayload) (*entity.Product, error) {
	payload.Type = r.productType
	body := map[string]interface{}{
		"title": payload.Title,
		"image": payload.Image,
		"url":   payload.URL,
		"email": payload.Email,
		"type":  payload.Type,
	}
	var w productWire
	if err := r.do(ctx, http.MethodPut, productURL(id), body, &w); err != nil {
		return nil, err
	}
	return w.toEntity()
}

func (r *HTTPProductRepository) Patch(ctx context.Context, id int64, fields map[string]interface{}) (*entity.Product, error) {
	var w productWire
	if err := r.do(ctx, http.MethodPatch, productURL(id), fields, &w); err != nil {
		return nil, err
	}
	return w.toEntity()
}

func (r *HTTPProductRepository) SetEmail(ctx context.Context, id int64, email *string) (*entity.Product, error) {
	return r.Patch(ctx, id, map[string]interface{}{"email": email})
}

func (r *HTTPProductRepository) Delete(ctx context.Context, id int64) error {
	var ack struct {
		Message string `json:"message"`
	}
	if err := r.do(ctx, http.MethodDelete, productURL(id), nil, &ack); err != nil {
		return err
	}
	logger.Debug("Product %d deleted: %s", id, ack.Message)
	return nil
}

func productURL(id int64) *url.URL {
	return &url.URL{Path: productsPath + strconv.FormatInt(id, 10) + "/"}
}

func (r *HTTPProductRepository) do(ctx context.Context, method string, rel *url.URL, body interface{}, dest interface{}) error {
	reqURL := r.endpoint(rel)

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errors.Internal("Failed to encode request", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return errors.Internal("Failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.http.Do(req)
	if err != nil {
		logger.Error("Product API %s %s failed: %v", method, rel.Path, err)
		return errors.ServiceUnavailable("The product service is unavailable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return errors.NotFound("Product", nil)
	}
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := extractErrorMessage(raw, resp.Status)
		logger.Warn("Product API %s %s returned %d: %s", method, rel.Path, resp.StatusCode, msg)
		return errors.BadGateway(msg, fmt.Errorf("product api %s %s: status %d", method, rel.Path, resp.StatusCode))
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		if err == io.EOF {
			return nil
		}
		return errors.BadGateway("Unexpected response from the product service", err)
	}
	return nil
}

// extractErrorMessage turns an API error body into something a guest can
// read. DRF style bodies map field names to lists of messages.
func extractErrorMessage(raw []byte, status string) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return fmt.Sprintf("Product service error: %s", status)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return trimmed
	}
	for _, key := range []string{"detail", "message", "error"} {
		if v, ok := body[key].(string); ok && v != "" {
			return v
		}
	}

	parts := make([]string, 0, len(body))
	for field, v := range body {
		switch val := v.(type) {
		case []interface{}:
			for _, item := range val {
				parts = append(parts, fmt.Sprintf("%s: %v", field, item))
			}
		default:
			parts = append(parts, fmt.Sprintf("%s: %v", field, val))
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Product service error: %s", status)
	}
	return strings.Join(parts, "; ")
}

func (w productWire) toEntity() (*entity.Product, error) {
	id, err := strconv.ParseInt(string(w.ID), 10, 64)
	if err != nil {
		return nil, errors.BadGateway("Product service returned an invalid id", err)
	}

	p := &entity.Product{
		ID:         id,
		Title:      w.Title,
		Image:      w.Image,
		URL:        w.URL,
		IsReserved: w.IsReserved,
		Type:       w.Type,
	}
	if w.Email != nil && *w.Email != "" {
		email := *w.Email
		p.Email = &email
	}
	p.CreatedAt = parseTime(w.CreatedAt)
	p.UpdatedAt = parseTime(w.UpdatedAt)
	return p, nil
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// endpoint appends rel to the base URL, keeping any path prefix the base
// carries.
func (r *HTTPProductRepository) endpoint(rel *url.URL) *url.URL {
	u := *r.baseURL
	u.Path = r.baseURL.Path + rel.Path
	u.RawQuery = rel.RawQuery
	return &u
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("product api base url is required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse product api url %q: %w", raw, err)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
