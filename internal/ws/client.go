package ws

import (
	"FrappeBot/internal/lib/sl"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Authenticator validates a dashboard token and returns the username.
type Authenticator interface {
	ValidateToken(token string) (string, error)
}

// Client is one dashboard connection. The hub owns send and closes it.
type Client struct {
	id       string
	username string
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	log      *slog.Logger
}

// listen reads client actions until the connection drops.
func (c *Client) listen() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.With(sl.Err(err)).Warn("websocket closed unexpectedly")
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		c.hub.HandleClientMessage(c.username, message)
	}
}

// deliver writes queued events and keeps the connection alive with pings.
func (c *Client) deliver() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.With(sl.Err(err)).Debug("websocket write")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades an authenticated dashboard request. Browsers cannot set
// headers on a websocket handshake, so the token may come in the query string.
func ServeWs(hub *Hub, auth Authenticator, log *slog.Logger, w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	username, err := auth.ValidateToken(token)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.With(sl.Err(err)).Error("websocket upgrade failed")
		return
	}

	client := &Client{
		id:       uuid.NewString(),
		username: username,
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
	}
	client.log = log.With(
		slog.String("client", client.id),
		slog.String("username", username),
	)

	hub.register <- client
	client.log.Debug("websocket client connected")

	go client.deliver()
	go client.listen()
}
