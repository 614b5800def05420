package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"houseshower/internal/adapter/api/middleware"
	"houseshower/internal/usecase"
	"houseshower/pkg/errors"
	"houseshower/pkg/logger"
	"houseshower/pkg/response"
)

type AuthHandler struct {
	authUseCase *usecase.AuthUseCase
	sessions    *middleware.SessionMiddleware
}

func NewAuthHandler(authUseCase *usecase.AuthUseCase, sessions *middleware.SessionMiddleware) *AuthHandler {
	return &AuthHandler{
		authUseCase: authUseCase,
		sessions:    sessions,
	}
}

type loginPageData struct {
	Name  string
	Email string
	Error string
}

func (h *AuthHandler) LoginPage(c echo.Context) error {
	return c.Render(http.StatusOK, "login.html", loginPageData{})
}

// Login accepts the login form or a JSON body. Form posts are redirected to
// the registry page; JSON callers get the session user back.
func (h *AuthHandler) Login(c echo.Context) error {
	var req usecase.LoginInput
	if err := c.Bind(&req); err != nil {
		return h.loginFailed(c, req, errors.BadRequest("Invalid login request", err))
	}

	user, err := h.authUseCase.Login(c.Request().Context(), req)
	if err != nil {
		return h.loginFailed(c, req, err)
	}

	if err := h.sessions.SaveUser(c, user); err != nil {
		logger.Error("Failed to start session: %v", err)
		return h.loginFailed(c, req, err)
	}

	if wantsJSON(c) {
		return response.Success(c, user)
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func (h *AuthHandler) loginFailed(c echo.Context, req usecase.LoginInput, err error) error {
	if wantsJSON(c) {
		return response.Error(c, err)
	}

	return c.Render(errors.Status(err, http.StatusBadRequest), "login.html", loginPageData{
		Name:  req.Name,
		Email: req.Email,
		Error: errors.Message(err, "Unable to log in"),
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.sessions.Clear(c); err != nil {
		return response.Error(c, err)
	}

	if wantsJSON(c) {
		return response.Success(c, map[string]string{"message": "Logged out"})
	}
	return c.Redirect(http.StatusSeeOther, "/login")
}

func (h *AuthHandler) Me(c echo.Context) error {
	return response.Success(c, middleware.CurrentUser(c))
}

func wantsJSON(c echo.Context) bool {
	req := c.Request()
	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		return true
	}
	return strings.Contains(req.Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}
