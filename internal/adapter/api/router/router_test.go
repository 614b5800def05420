package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"houseshower/internal/adapter/api"
	"houseshower/internal/adapter/api/handler"
	"houseshower/internal/adapter/api/middleware"
	"houseshower/internal/adapter/api/view"
	"houseshower/internal/adapter/repository"
	"houseshower/internal/domain/entity"
	"houseshower/internal/infrastructure/ratelimit"
	"houseshower/internal/infrastructure/storage"
	"houseshower/internal/usecase"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type gatewayProduct struct {
	ID         int64   `json:"id"`
	Title      string  `json:"title"`
	Image      string  `json:"image"`
	URL        string  `json:"url"`
	Email      *string `json:"email"`
	IsReserved bool    `json:"isReserved"`
	Type       string  `json:"type"`
}

// fakeGateway is an in-memory product API.
type fakeGateway struct {
	mu       sync.Mutex
	products []*gatewayProduct
	nextID   int64
	mutating int
}

func (g *fakeGateway) find(id int64) (int, *gatewayProduct) {
	for i, p := range g.products {
		if p.ID == id {
			return i, p
		}
	}
	return -1, nil
}

func (g *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()

	write := func(status int, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/productos"), "/")
	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			write(http.StatusOK, map[string]interface{}{"count": len(g.products), "next": nil, "previous": nil, "results": g.products})
		case http.MethodPost:
			g.mutating++
			var p gatewayProduct
			_ = json.NewDecoder(r.Body).Decode(&p)
			g.nextID++
			p.ID = g.nextID
			g.products = append(g.products, &p)
			write(http.StatusCreated, p)
		}
		return
	}

	id, _ := strconv.ParseInt(rest, 10, 64)
	i, p := g.find(id)
	if p == nil {
		write(http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}

	switch r.Method {
	case http.MethodGet:
		write(http.StatusOK, p)
	case http.MethodPatch, http.MethodPut:
		g.mutating++
		var fields map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&fields)
		for k, v := range fields {
			switch k {
			case "title":
				p.Title, _ = v.(string)
			case "image":
				p.Image, _ = v.(string)
			case "url":
				p.URL, _ = v.(string)
			case "email":
				if s, ok := v.(string); ok {
					p.Email = &s
				} else {
					p.Email = nil
				}
			}
		}
		p.IsReserved = p.Email != nil
		write(http.StatusOK, p)
	case http.MethodDelete:
		g.mutating++
		g.products = append(g.products[:i], g.products[i+1:]...)
		write(http.StatusOK, map[string]string{"message": "deleted"})
	}
}

func (g *fakeGateway) mutations() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mutating
}

type recordingUploader struct {
	storage.ImagePolicy
	mu      sync.Mutex
	uploads []string
}

func (u *recordingUploader) Upload(ctx context.Context, file *entity.ImageFile) (*entity.UploadResult, error) {
	if err := u.Validate(file); err != nil {
		return nil, err
	}
	n, _ := io.Copy(io.Discard, file.Content)

	u.mu.Lock()
	defer u.mu.Unlock()
	name := "uploads/" + strconv.Itoa(len(u.uploads)+1) + u.Extension(file.ContentType)
	u.uploads = append(u.uploads, name)
	return &entity.UploadResult{
		URL:         "https://storage.example.com/" + name,
		Filename:    name,
		Size:        n,
		ContentType: file.ContentType,
	}, nil
}

func (u *recordingUploader) Delete(ctx context.Context, fileURL string) error { return nil }

type testServer struct {
	e        *echo.Echo
	gateway  *fakeGateway
	uploader *recordingUploader
	products *usecase.ProductUseCase
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ana := "ana@example.com"
	gateway := &fakeGateway{
		nextID: 2,
		products: []*gatewayProduct{
			{ID: 1, Title: "Blender", Image: "https://img.example.com/1.png", URL: "https://shop.example.com/1", Type: "shower"},
			{ID: 2, Title: "Baby Crib", Image: "https://img.example.com/2.png", URL: "https://shop.example.com/2", Email: &ana, IsReserved: true, Type: "shower"},
		},
	}
	gw := httptest.NewServer(gateway)
	t.Cleanup(gw.Close)

	repo, err := repository.NewHTTPProductRepository(gw.URL, "shower", 5*time.Second)
	require.NoError(t, err)

	validate := api.NewValidator()
	uploader := &recordingUploader{ImagePolicy: storage.NewImagePolicy(storage.DefaultMaxImageSize)}
	products := usecase.NewProductUseCase(repo, uploader, nil, validate.Engine())
	_, err = products.LoadAll(context.Background())
	require.NoError(t, err)

	auth := usecase.NewAuthUseCase(usecase.AdminCredentials{Name: "admin", Email: "admin@admin.com"}, validate.Engine())
	sessions := middleware.NewSessionMiddleware("router-test-secret", false)

	handler.Setup(auth, products, sessions)
	handler.SetupHealthHandler(func() int { return len(products.Products()) })
	handler.SetupUploadHandler(uploader)

	renderer, err := view.NewRenderer()
	require.NoError(t, err)

	e := echo.New()
	e.Validator = validate
	e.Renderer = renderer
	Setup(e, sessions, ratelimit.NewRateLimiter(nil))

	return &testServer{e: e, gateway: gateway, uploader: uploader, products: products}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, name, email string) []*http.Cookie {
	t.Helper()
	form := url.Values{"name": {name}, "email": {email}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)

	rec := s.do(t, req, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	require.Equal(t, "/", rec.Header().Get("Location"))
	return rec.Result().Cookies()
}

func jsonRequest(method, target string, body interface{}) *http.Request {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Server is running")
	assert.Contains(t, rec.Body.String(), `"products":2`)
}

func TestPages_RequireSession(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/login", nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	cookies := s.login(t, "Ana", "ana@example.com")

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/?q=crib", nil), cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Baby Crib")
	assert.NotContains(t, rec.Body.String(), "Blender")
	assert.Contains(t, rec.Body.String(), "You reserved this gift.")
}

func TestLogin_InvalidFormRendersError(t *testing.T) {
	s := newTestServer(t)

	form := url.Values{"name": {"R2-D2"}, "email": {"droid@example.com"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)

	rec := s.do(t, req, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "name may only contain letters and spaces")
}

func TestLogin_JSONAdmin(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, jsonRequest(http.MethodPost, "/login", map[string]string{"name": "Admin", "email": "ADMIN@admin.com"}), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var user entity.User
	decode(t, rec, &user)
	assert.True(t, user.IsAdmin)

	rec = s.do(t, jsonRequest(http.MethodGet, "/api/me", nil), rec.Result().Cookies())
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &user)
	assert.Equal(t, "ADMIN@admin.com", user.Email)
}

func TestProducts_ListRequiresSession(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, jsonRequest(http.MethodGet, "/api/products", nil), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	cookies := s.login(t, "Ana", "ana@example.com")
	rec = s.do(t, jsonRequest(http.MethodGet, "/api/products?status=available", nil), cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	var list struct {
		Products []entity.Product    `json:"products"`
		Stats    entity.ProductStats `json:"stats"`
		Status   string              `json:"status"`
	}
	decode(t, rec, &list)
	require.Len(t, list.Products, 1)
	assert.Equal(t, "Blender", list.Products[0].Title)
	assert.Equal(t, entity.ProductStats{Total: 2, Available: 1, Reserved: 1}, list.Stats)
	assert.Equal(t, "available", list.Status)
}

func TestProducts_ReservationFlow(t *testing.T) {
	s := newTestServer(t)
	bob := s.login(t, "Bob", "bob@example.com")
	ana := s.login(t, "Ana", "ana@example.com")

	rec := s.do(t, jsonRequest(http.MethodPost, "/api/products/1/reserve", nil), bob)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var product entity.Product
	decode(t, rec, &product)
	assert.True(t, product.IsReserved)
	require.NotNil(t, product.Email)
	assert.Equal(t, "bob@example.com", *product.Email)

	// somebody else's reservation
	before := s.gateway.mutations()
	rec = s.do(t, jsonRequest(http.MethodPost, "/api/products/1/reserve", nil), ana)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = s.do(t, jsonRequest(http.MethodPost, "/api/products/1/unreserve", nil), ana)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, before, s.gateway.mutations())

	rec = s.do(t, jsonRequest(http.MethodPost, "/api/products/1/unreserve", nil), bob)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &product)
	assert.False(t, product.IsReserved)
	assert.Nil(t, product.Email)

	got, err := s.products.Get(1)
	require.NoError(t, err)
	assert.False(t, got.IsReserved)
}

func TestProducts_AdminOnlyMutations(t *testing.T) {
	s := newTestServer(t)
	guest := s.login(t, "Ana", "ana@example.com")

	body := map[string]string{"title": "Stroller", "url": "https://shop.example.com/3", "image": "https://img.example.com/3.png"}
	rec := s.do(t, jsonRequest(http.MethodPost, "/api/products", body), guest)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, jsonRequest(http.MethodDelete, "/api/products/1", nil), guest)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, s.gateway.mutations())
}

func TestProducts_AdminCRUD(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin", "admin@admin.com")

	rec := s.do(t, jsonRequest(http.MethodPost, "/api/products", map[string]string{"title": "Go", "url": "https://shop.example.com/3", "image": "https://img.example.com/3.png"}), admin)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Zero(t, s.gateway.mutations())

	rec = s.do(t, jsonRequest(http.MethodPost, "/api/products", map[string]string{"title": "Stroller", "url": "https://shop.example.com/3", "image": "https://img.example.com/3.png"}), admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created entity.Product
	decode(t, rec, &created)
	assert.Equal(t, int64(3), created.ID)
	assert.Equal(t, "shower", created.Type)
	assert.Len(t, s.products.Products(), 3)

	rec = s.do(t, jsonRequest(http.MethodPut, "/api/products/2", map[string]string{"title": "Wooden Crib", "url": "https://shop.example.com/2", "image": "https://img.example.com/2.png"}), admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated entity.Product
	decode(t, rec, &updated)
	assert.Equal(t, "Wooden Crib", updated.Title)
	assert.True(t, updated.IsReserved, "full update keeps the reservation")

	rec = s.do(t, jsonRequest(http.MethodDelete, "/api/products/1", nil), admin)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, jsonRequest(http.MethodGet, "/api/products/1", nil), admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, jsonRequest(http.MethodDelete, "/api/products/abc", nil), admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProducts_AdminUnreservesAnyone(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin", "admin@admin.com")

	rec := s.do(t, jsonRequest(http.MethodPost, "/api/products/2/unreserve", nil), admin)
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := s.products.Get(2)
	require.NoError(t, err)
	assert.False(t, got.IsReserved)
}

func multipartRequest(t *testing.T, target string, fields map[string]string, filename, contentType string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	return req
}

func TestProducts_CreateWithImageFile(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin", "admin@admin.com")

	req := multipartRequest(t, "/api/products", map[string]string{"title": "Bath Tub", "url": "https://shop.example.com/4"}, "tub.png", "image/png", pngHeader)
	rec := s.do(t, req, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created entity.Product
	decode(t, rec, &created)
	assert.Equal(t, "https://storage.example.com/uploads/1.png", created.Image)
	assert.Len(t, s.uploader.uploads, 1)
}

func TestUpload(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, multipartRequest(t, "/api/upload", nil, "a.png", "image/png", pngHeader), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	guest := s.login(t, "Ana", "ana@example.com")

	rec = s.do(t, multipartRequest(t, "/api/upload", nil, "a.png", "image/png", pngHeader), guest)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result entity.UploadResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "image/png", result.ContentType)
	assert.Equal(t, int64(len(pngHeader)), result.Size)
	assert.NotEmpty(t, result.URL)

	rec = s.do(t, multipartRequest(t, "/api/upload", nil, "notes.txt", "text/plain", []byte("hello")), guest)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)

	rec = s.do(t, multipartRequest(t, "/api/upload", map[string]string{"other": "x"}, "", "", nil), guest)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No file provided")
}
