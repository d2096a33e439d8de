package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/quantfin/papertrade/pkg/broadcast"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins (CORS handled by main server)
		return true
	},
}

// Client is one WebSocket connection registered with the broadcaster. The
// notification stream is payload-free; the client re-queries prices itself.
type Client struct {
	conn        *websocket.Conn
	sub         *broadcast.Subscriber
	broadcaster *broadcast.Broadcaster
	logger      *zap.SugaredLogger
}

// readPump drains inbound frames so control messages are processed and a
// closed connection is detected promptly. Unsubscribes on exit.
func (c *Client) readPump() {
	defer func() {
		c.broadcaster.Unsubscribe(c.sub)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warnw("ws_read_error", "err", err)
			}
			return
		}
	}
}

// writePump forwards one {"event":"prices"} frame per tick notification and
// keeps the connection alive with pings. A closed notification channel means
// the broadcaster dropped us (slow consumer or shutdown).
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case _, ok := <-c.sub.Notify():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(PriceEvent{Event: "prices"}); err != nil {
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

// handleWebSocket upgrades the connection and registers it as a subscriber.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("ws_upgrade_error", "err", err)
		return
	}

	client := &Client{
		conn:        conn,
		sub:         s.broadcaster.Subscribe(),
		broadcaster: s.broadcaster,
		logger:      s.logger,
	}

	s.logger.Infow("ws_client_connected", "remote", conn.RemoteAddr().String())

	go client.writePump()
	go client.readPump()
}
