package ws

import (
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"messenger-service/internal/observability"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Client is one live socket. Its rooms set is guarded by the Hub lock.
type Client struct {
	info    ConnInfo
	conn    *websocket.Conn
	send    chan []byte
	rooms   map[string]struct{}
	limiter *rate.Limiter
}

// NewClient wraps conn. A nil limiter accepts every inbound event.
func NewClient(conn *websocket.Conn, info ConnInfo, limiter *rate.Limiter) *Client {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &Client{
		info:    info,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		rooms:   make(map[string]struct{}),
		limiter: limiter,
	}
}

func (c *Client) Info() ConnInfo { return c.info }

// readPump hands every text frame to onFrame until the socket fails and
// returns the read error that ended it.
func (c *Client) readPump(onFrame func([]byte)) error {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		if !c.limiter.Allow() {
			observability.IncWSInbound("any", "rate_limited")
			continue
		}
		onFrame(frame)
	}
}

// writePump drains the send buffer onto the socket and keeps it alive with
// pings. It returns when the hub closes the buffer or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
