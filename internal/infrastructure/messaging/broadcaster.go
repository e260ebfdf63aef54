package messaging

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/metrics"
)

// Event types sent to clients.
const (
	EventSnapshot = "snapshot"
	EventToast    = "toast"
	EventStatus   = "status"
)

// Event is the envelope written to a websocket as one text frame.
type Event struct {
	Type     string `json:"type"`
	Resource string `json:"resource,omitempty"`
	Topic    string `json:"topic,omitempty"`
	Data     any    `json:"data,omitempty"`
	At       int64  `json:"at"`
}

const clientBuffer = 16

// Hub manages audience-scoped, topic-specific client channels. An audience is
// a user id (or "qr:<id>" for anonymous QR watchers); a topic is a resource
// such as "feed" or "messages:<room>".
type Hub struct {
	audiences map[string]map[string][]chan []byte
	mu        sync.Mutex
	logger    *logging.ChanneledLogger
	metrics   *metrics.Collector
	now       func() time.Time
}

// NewHub creates a hub. There is one per process, owned by the container.
func NewHub(logger *logging.ChanneledLogger, collector *metrics.Collector) *Hub {
	return &Hub{
		audiences: make(map[string]map[string][]chan []byte),
		logger:    logger,
		metrics:   collector,
		now:       time.Now,
	}
}

// AddClient registers a new client channel for one audience and topic.
func (h *Hub) AddClient(audience, topic string) chan []byte {
	ch := make(chan []byte, clientBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.audiences[audience] == nil {
		h.audiences[audience] = make(map[string][]chan []byte)
	}
	h.audiences[audience][topic] = append(h.audiences[audience][topic], ch)
	h.metrics.AddLiveClients(1)

	h.logger.Messaging().Debug("Live client registered", "audience", logging.MaskID(audience), "topic", topic)
	return ch
}

// RemoveClient removes and closes a client channel. Removing twice is a no-op.
func (h *Hub) RemoveClient(ch chan []byte, audience, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	topics, exists := h.audiences[audience]
	if !exists {
		return
	}
	clients := topics[topic]
	kept := make([]chan []byte, 0, len(clients))
	removed := false
	for _, client := range clients {
		if client == ch {
			removed = true
			continue
		}
		kept = append(kept, client)
	}
	if !removed {
		return
	}
	close(ch)
	h.metrics.AddLiveClients(-1)

	if len(kept) == 0 {
		delete(topics, topic)
	} else {
		topics[topic] = kept
	}
	if len(topics) == 0 {
		delete(h.audiences, audience)
	}
	h.logger.Messaging().Debug("Live client unregistered", "audience", logging.MaskID(audience), "topic", topic)
}

// ClientCount returns the number of open channels for an audience.
func (h *Hub) ClientCount(audience string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, clients := range h.audiences[audience] {
		n += len(clients)
	}
	return n
}

// HasClients reports whether anyone is listening on audience/topic.
func (h *Hub) HasClients(audience, topic string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.audiences[audience][topic]) > 0
}

// Publish sends evt to every client of audience on topic. Slow clients lose
// the event rather than block the publisher.
func (h *Hub) Publish(audience, topic string, evt Event) {
	message, ok := h.encode(topic, evt)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.send(audience, topic, h.audiences[audience][topic], message)
}

// PublishAll sends evt to every client of audience regardless of topic.
func (h *Hub) PublishAll(audience string, evt Event) {
	message, ok := h.encode(evt.Topic, evt)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for topic, clients := range h.audiences[audience] {
		h.send(audience, topic, clients, message)
	}
}

func (h *Hub) encode(topic string, evt Event) ([]byte, bool) {
	if evt.Topic == "" {
		evt.Topic = topic
	}
	if evt.At == 0 {
		evt.At = h.now().UnixMilli()
	}
	message, err := json.Marshal(evt)
	if err != nil {
		h.logger.Messaging().Error("Failed to encode live event", "type", evt.Type, "topic", topic, "error", err)
		return nil, false
	}
	return message, true
}

func (h *Hub) send(audience, topic string, clients []chan []byte, message []byte) {
	for _, ch := range clients {
		select {
		case ch <- message:
		default:
			h.logger.Messaging().Warn("Live channel full, message dropped", "audience", logging.MaskID(audience), "topic", topic)
		}
	}
}
