package messaging

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/pkg/config"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// LiveClient is one websocket connection bound to a hub channel.
type LiveClient struct {
	Conn     *websocket.Conn
	Audience string
	Topic    string
	Send     chan []byte
	hub      Broadcaster
	logger   *logging.ChanneledLogger
}

// NewLiveClient registers a channel on hub for the connection.
func NewLiveClient(conn *websocket.Conn, hub Broadcaster, audience, topic string, logger *logging.ChanneledLogger) *LiveClient {
	return &LiveClient{
		Conn:     conn,
		Audience: audience,
		Topic:    topic,
		Send:     hub.AddClient(audience, topic),
		hub:      hub,
		logger:   logger,
	}
}

// Run pumps events until the peer goes away, then unregisters. initial, if
// non-nil, is written before anything from the hub.
func (c *LiveClient) Run(initial []byte) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.readPump()
	}()
	c.writePump(initial, done)
	c.hub.RemoveClient(c.Send, c.Audience, c.Topic)
	_ = c.Conn.Close()
	<-done
}

// readPump discards client frames; it exists to process pongs and notice closes.
func (c *LiveClient) readPump() {
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Messaging().Debug("Live client read error", "topic", c.Topic, "error", err)
			}
			return
		}
	}
}

func (c *LiveClient) writePump(initial []byte, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	if initial != nil && !c.write(websocket.TextMessage, initial) {
		return
	}
	for {
		select {
		case message, ok := <-c.Send:
			if !ok {
				_ = c.Conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(config.LiveWriteTimeout))
				return
			}
			if !c.write(websocket.TextMessage, message) {
				return
			}
		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}
		case <-done:
			return
		}
	}
}

func (c *LiveClient) write(messageType int, data []byte) bool {
	_ = c.Conn.SetWriteDeadline(time.Now().Add(config.LiveWriteTimeout))
	if err := c.Conn.WriteMessage(messageType, data); err != nil {
		c.logger.Messaging().Debug("Live client write failed", "topic", c.Topic, "error", err)
		return false
	}
	return true
}
