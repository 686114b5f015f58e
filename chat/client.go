package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/agroph/portal/models"
	"github.com/agroph/portal/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 8 << 10
	sendBufferSize = 64
	eventTimeout   = 5 * time.Second
)

// Client is one websocket connection. Identity fields are written by the read loop
// before Hub.Join and only read by the hub afterwards.
type Client struct {
	hub     *Hub
	service *Service
	conn    *websocket.Conn
	send    chan []byte
	log     *zap.Logger

	token       string
	userID      uint
	displayName string
	guest       bool
	joined      bool
}

func newClient(hub *Hub, service *Service, conn *websocket.Conn, log *zap.Logger) *Client {
	return &Client{
		hub:     hub,
		service: service,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		log:     log,
	}
}

// readPump handles inbound frames until the connection fails.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("chat read failed", zap.Error(err))
			}
			return
		}
		var frame inFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.fail("malformed frame")
			continue
		}
		c.handle(frame)
	}
}

func (c *Client) handle(frame inFrame) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	switch frame.Event {
	case EventJoin:
		c.handleJoin(ctx, frame.Data)
	case EventSendMessage:
		c.handleSend(ctx, frame.Data, false)
	case EventAdminSend:
		c.handleSend(ctx, frame.Data, true)
	default:
		c.fail("unknown event")
	}
}

func (c *Client) handleJoin(ctx context.Context, data json.RawMessage) {
	if c.joined {
		c.fail("already joined")
		return
	}
	var p joinPayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			c.fail("malformed join payload")
			return
		}
	}

	p.Token = strings.TrimSpace(p.Token)
	if p.Token == "" {
		c.guest = true
		c.displayName = "Guest"
	} else {
		claims, err := c.service.Authenticate(ctx, p.Token)
		if err != nil {
			c.fail(utils.AsAppError(err).Message)
			return
		}
		c.token = p.Token
		c.userID = claims.UserID
		c.displayName = claims.DisplayName
	}
	c.joined = true
	c.hub.Join(c)
}

func (c *Client) handleSend(ctx context.Context, data json.RawMessage, asAdmin bool) {
	if !c.joined {
		c.fail("join the chat first")
		return
	}
	if c.guest {
		c.fail("authentication required to send messages")
		return
	}

	msgType := models.MessageTypeUser
	userID, name := c.userID, c.displayName
	if asAdmin {
		// privilege is re-checked on every admin event
		claims, err := utils.ParseToken(c.token)
		if err != nil {
			c.fail("session expired")
			return
		}
		if claims.Role != models.RoleAdmin {
			c.fail("admin privileges required")
			return
		}
		msgType = models.MessageTypeAdmin
		userID, name = claims.UserID, claims.DisplayName
	}

	var p messagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.fail("malformed message payload")
		return
	}
	if _, err := c.service.Post(ctx, userID, name, p.Message, msgType); err != nil {
		var appErr *utils.AppError
		if !errors.As(err, &appErr) {
			c.log.Error("chat message persist failed", zap.Error(err))
		}
		c.fail(utils.AsAppError(err).Message)
	}
}

func (c *Client) fail(msg string) {
	c.hub.SendTo(c, EventError, msg)
}

// writePump drains the send buffer and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
