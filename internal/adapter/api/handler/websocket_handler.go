package handler

import (
	"net/http"
	"net/url"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"houseshower/internal/adapter/api/middleware"
	ws "houseshower/internal/infrastructure/websocket"
	"houseshower/pkg/errors"
	"houseshower/pkg/logger"
	"houseshower/pkg/response"
)

type WebSocketHandler struct {
	wsManager *ws.Manager
	upgrader  gorillaws.Upgrader
}

var webSocketHandler *WebSocketHandler

func NewWebSocketHandler(wsManager *ws.Manager) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager: wsManager,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     sameOrigin,
		},
	}
}

func SetupWebSocketHandler(wsManager *ws.Manager) {
	webSocketHandler = NewWebSocketHandler(wsManager)
}

func GetWebSocketHandler() *WebSocketHandler {
	return webSocketHandler
}

// sameOrigin accepts requests without an Origin header (non-browser clients)
// and browser requests from the page's own host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Error(c, errors.Unauthorized("Please log in first", nil))
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already answered the request
		logger.Warn("Websocket upgrade failed for %s: %v", user.Email, err)
		return nil
	}

	client := ws.NewClient(user.Email, conn)
	if !h.wsManager.Join(client) {
		conn.Close()
		return nil
	}

	go client.ReadPump(h.wsManager)
	go client.WritePump()

	return nil
}
