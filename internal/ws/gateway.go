package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"opendebate/backend/internal/discussion"
	"opendebate/backend/internal/hub"
	"opendebate/backend/internal/pairing"
	"opendebate/backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to the frontend origin in production.
		return true
	},
}

// Envelope is the inbound client message. All fields are untrusted and are
// validated before any state mutation.
type Envelope struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

// Gateway upgrades authenticated HTTP requests to websocket connections
// and dispatches validated client events to the pairing and discussion
// services. Server pushes flow through the hub; a connection only receives
// events addressed to its own user.
type Gateway struct {
	hub         *hub.Hub
	pairing     *pairing.Service
	discussions *discussion.Service
}

func NewGateway(h *hub.Hub, pairingSvc *pairing.Service, discussionSvc *discussion.Service) *Gateway {
	return &Gateway{hub: h, pairing: pairingSvc, discussions: discussionSvc}
}

type connection struct {
	conn   *websocket.Conn
	send   hub.Client
	userID uint
}

// reply sends an event to this connection only.
func (c *connection) reply(event hub.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

type eventHandler func(c *connection, env Envelope)

// PairingEndpoint serves the pairing stream.
func (g *Gateway) PairingEndpoint() gin.HandlerFunc {
	return g.serve(hub.StreamPairing, g.handlePairing)
}

// DiscussionEndpoint serves the discussion stream.
func (g *Gateway) DiscussionEndpoint() gin.HandlerFunc {
	return g.serve(hub.StreamDiscussion, g.handleDiscussion)
}

// NotificationEndpoint serves the notification stream. It is push-only;
// every inbound event is rejected.
func (g *Gateway) NotificationEndpoint() gin.HandlerFunc {
	return g.serve(hub.StreamNotification, func(c *connection, env Envelope) {
		c.reply(hub.Error(apperrors.ErrInvalidEventType.Error()))
	})
}

// serve upgrades the connection and joins the user's broadcast group on
// the stream. AuthMiddleware runs before this, so an unauthenticated
// request never reaches the upgrade.
func (g *Gateway) serve(stream hub.Stream, handle eventHandler) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userIDValue, exists := ctx.Get("userID")
		if !exists {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		userID := userIDValue.(uint)

		conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
		if err != nil {
			log.Printf("ws: upgrade failed for user %d: %v", userID, err)
			return
		}

		c := &connection{
			conn:   conn,
			send:   make(hub.Client, sendBuffer),
			userID: userID,
		}
		g.hub.Subscribe(stream, userID, c.send)

		go c.writePump()
		go g.readPump(c, stream, handle)
	}
}

// readPump reads client events until the connection drops. Malformed input
// produces a structured error event; it never tears the connection down.
func (g *Gateway) readPump(c *connection, stream hub.Stream, handle eventHandler) {
	defer func() {
		g.hub.Unsubscribe(stream, c.userID, c.send)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws: unexpected close for user %d: %v", c.userID, err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil || env.EventType == "" {
			c.reply(hub.Error(apperrors.ErrMalformedEnvelope.Error()))
			continue
		}

		handle(c, env)
	}
}

func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// replyServiceError translates a service error into a structured error
// event on this connection. Internal errors are not echoed verbatim.
func (c *connection) replyServiceError(err error) {
	if code := apperrors.CodeOf(err); code != apperrors.CodeUnknown && code != apperrors.CodeInternal {
		c.reply(hub.Error(err.Error()))
		return
	}
	log.Printf("ws: internal error for user %d: %v", c.userID, err)
	c.reply(hub.Error("something went wrong, please try again"))
}
