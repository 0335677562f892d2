package hub

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Buffer size for outbound frames
	sendBufferSize = 64
)

// Broker is the side of the hub a client talks to.
type Broker interface {
	Unregister(c *Client)
	Dispatch(ctx context.Context, c *Client, msg ClientMessage)
}

// Client is one WebSocket connection.
type Client struct {
	ID     string
	conn   *websocket.Conn
	Send   chan Frame
	broker Broker
	logger *zap.Logger
}

// NewClient creates a client for conn.
func NewClient(id string, conn *websocket.Conn, broker Broker, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		ID:     id,
		conn:   conn,
		Send:   make(chan Frame, sendBufferSize),
		broker: broker,
		logger: logger,
	}
}

// ReadPump reads client messages until the connection closes and hands each
// one to the broker.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.broker.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket closed unexpectedly",
					zap.String("op", "hub.ReadPump"),
					zap.String("client", c.ID),
					zap.Error(err),
				)
			}
			return
		}
		c.broker.Dispatch(ctx, c, msg)
	}
}

// WritePump writes queued frames and keepalive pings until Send is closed.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case frame, ok := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				c.logger.Debug("websocket write failed",
					zap.String("op", "hub.WritePump"),
					zap.String("client", c.ID),
					zap.Error(err),
				)
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

// TrySend queues a frame without blocking. It returns false if the client's
// buffer is full.
func (c *Client) TrySend(frame Frame) bool {
	select {
	case c.Send <- frame:
		return true
	default:
		return false
	}
}
