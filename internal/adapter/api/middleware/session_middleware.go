package middleware

import (
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"

	"houseshower/internal/domain/entity"
	"houseshower/pkg/errors"
	"houseshower/pkg/logger"
	"houseshower/pkg/response"
)

const (
	SessionName    = "hs_session"
	AuthCookieName = "hs_auth"
	userContextKey = "user"
	sessionMaxAge  = 30 * 24 * 60 * 60 // 30 days
)

// SessionMiddleware keeps the logged in guest in a signed cookie session and
// exposes it on the echo context. It is the only place the session is read.
type SessionMiddleware struct {
	store  sessions.Store
	secure bool
}

func NewSessionMiddleware(secret string, secure bool) *SessionMiddleware {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionMiddleware{
		store:  store,
		secure: secure,
	}
}

// Store installs the session store; it must run before LoadUser.
func (m *SessionMiddleware) Store() echo.MiddlewareFunc {
	return session.Middleware(m.store)
}

// LoadUser resolves the session user once per request. Unreadable session
// data is logged and treated as no session.
func (m *SessionMiddleware) LoadUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := session.Get(SessionName, c)
		if err != nil {
			logger.Warn("Discarding unreadable session from %s: %v", c.RealIP(), err)
			return next(c)
		}

		if user, ok := userFromSession(sess); ok {
			c.Set(userContextKey, user)
		}
		return next(c)
	}
}

func userFromSession(sess *sessions.Session) (*entity.User, bool) {
	name, _ := sess.Values["name"].(string)
	email, _ := sess.Values["email"].(string)
	isAdmin, _ := sess.Values["admin"].(bool)

	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" {
		return nil, false
	}
	return &entity.User{Name: name, Email: email, IsAdmin: isAdmin}, true
}

// SaveUser starts a session for user and sets the auth flag cookie.
func (m *SessionMiddleware) SaveUser(c echo.Context, user *entity.User) error {
	sess, err := session.Get(SessionName, c)
	if sess == nil {
		return errors.Internal("Session store is not configured", err)
	}
	if err != nil {
		logger.Warn("Replacing unreadable session: %v", err)
	}
	sess.Values["name"] = user.Name
	sess.Values["email"] = user.Email
	sess.Values["admin"] = user.IsAdmin
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return errors.Internal("Failed to save session", err)
	}

	c.SetCookie(m.authCookie("1", sessionMaxAge))
	c.Set(userContextKey, user)
	return nil
}

// Clear ends the session and removes the auth flag cookie.
func (m *SessionMiddleware) Clear(c echo.Context) error {
	sess, _ := session.Get(SessionName, c)
	if sess != nil {
		sess.Values = map[interface{}]interface{}{}
		sess.Options = &sessions.Options{Path: "/", MaxAge: -1, HttpOnly: true, Secure: m.secure}
		if err := sess.Save(c.Request(), c.Response()); err != nil {
			return errors.Internal("Failed to clear session", err)
		}
	}

	c.SetCookie(m.authCookie("", -1))
	c.Set(userContextKey, nil)
	return nil
}

func (m *SessionMiddleware) authCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     AuthCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// RequireUser answers 401 for API calls without a session.
func (m *SessionMiddleware) RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if CurrentUser(c) == nil {
			return response.Error(c, errors.Unauthorized("Please log in first", nil))
		}
		return next(c)
	}
}

// RequirePageUser sends guests without a session to the login page.
func (m *SessionMiddleware) RequirePageUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if CurrentUser(c) == nil {
			return c.Redirect(http.StatusSeeOther, "/login")
		}
		return next(c)
	}
}

// RedirectIfLoggedIn keeps logged in guests away from the login page.
func (m *SessionMiddleware) RedirectIfLoggedIn(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if CurrentUser(c) != nil {
			return c.Redirect(http.StatusSeeOther, "/")
		}
		return next(c)
	}
}

// CurrentUser returns the session user or nil.
func CurrentUser(c echo.Context) *entity.User {
	user, _ := c.Get(userContextKey).(*entity.User)
	return user
}
