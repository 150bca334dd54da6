package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kode4food/caravan/topic"

	"github.com/dnw3/synapse/internal/runtime"
	"github.com/dnw3/synapse/internal/util"
	"github.com/dnw3/synapse/pkg/log"
)

type (
	// Client represents a WebSocket client connection streaming thread
	// events
	Client struct {
		server   *Server
		conn     *websocket.Conn
		consumer topic.Consumer[*runtime.ThreadEvent]
		filter   eventFilter
		done     chan struct{}
	}

	// eventFilter reports whether a client should receive an event
	eventFilter func(*runtime.ThreadEvent) bool
)

const (
	writeWait          = 10 * time.Second
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10
	maxMessageSize     = 512
	wsBufferSize       = 1024
	incomingBufferSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed",
			log.Error(err))
		return
	}

	noopFilter := func(*runtime.ThreadEvent) bool { return false }
	client := &Client{
		server:   s,
		conn:     conn,
		consumer: s.runtime.NewConsumer(),
		filter:   noopFilter,
		done:     make(chan struct{}),
	}
	s.registerWebSocket(client)

	go client.run()
}

// Close terminates the client connection and stops its event loop
func (c *Client) Close() {
	close(c.done)
}

func (c *Client) run() {
	defer func() {
		c.server.unregisterWebSocket(c)
		c.consumer.Close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	incoming := make(chan []byte, incomingBufferSize)
	go c.readMessages(incoming)

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message, ok := <-incoming:
			if !ok {
				return
			}
			c.handleSubscribe(message)

		case event, ok := <-c.consumer.Receive():
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !c.sendEventIfMatched(event) {
				return
			}

		case <-ticker.C:
			if !c.sendPing() {
				return
			}
		}
	}
}

func (c *Client) readMessages(incoming chan []byte) {
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			close(incoming)
			return
		}
		incoming <- message
	}
}

func (c *Client) handleSubscribe(message []byte) {
	var sub SubscribeRequest
	if err := json.Unmarshal(message, &sub); err != nil {
		slog.Error("Failed to parse WebSocket message",
			log.Error(err))
		return
	}

	if sub.Type != "subscribe" {
		return
	}
	c.filter = buildFilter(&sub.Data)
}

func (c *Client) sendEventIfMatched(ev *runtime.ThreadEvent) bool {
	if !c.filter(ev) {
		return true
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(ev); err != nil {
		slog.Error("WebSocket write failed",
			log.Error(err))
		return false
	}
	return true
}

func (c *Client) sendPing() bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteMessage(websocket.PingMessage, nil)
	return err == nil
}

// buildFilter creates an event filter from a client subscription. Empty
// subscription fields match every event
func buildFilter(sub *ClientSubscription) eventFilter {
	types := util.SetOf(sub.EventTypes...)
	return func(ev *runtime.ThreadEvent) bool {
		if sub.GraphID != "" && ev.GraphID != sub.GraphID {
			return false
		}
		if sub.ThreadID != "" && ev.ThreadID != sub.ThreadID {
			return false
		}
		if types.Len() > 0 && !types.Contains(string(ev.Type)) {
			return false
		}
		return true
	}
}
