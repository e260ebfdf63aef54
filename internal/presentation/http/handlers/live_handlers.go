package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/iyedjb/edutokudte-sub000/internal/application/services"
	"github.com/iyedjb/edutokudte-sub000/internal/application/session"
	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/messaging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
)

// qrAudience is the hub audience of an anonymous display watching a QR session.
func qrAudience(id string) string { return "qr:" + id }

const qrTopic = "status"

// LiveHandlers upgrade to websockets that carry view snapshots and toasts.
type LiveHandlers struct {
	hub      *messaging.Hub
	qr       *services.QRLoginService
	upgrader websocket.Upgrader
	logger   *logging.ChanneledLogger
}

func NewLiveHandlers(hub *messaging.Hub, qr *services.QRLoginService, logger *logging.ChanneledLogger) *LiveHandlers {
	return &LiveHandlers{
		hub:    hub,
		qr:     qr,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// origins are enforced by the CORS layer and the bearer token
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// GetLive handles GET /api/v1/live/:resource. resource is a session topic
// (feed, grades, conversations, profiles, videos, classes, events) or
// "messages" with ?room=. The first frame is the current snapshot; later
// frames follow every change to the view.
func (h *LiveHandlers) GetLive(c *gin.Context) {
	sess, ok := mustSession(c)
	if !ok {
		return
	}
	topic := c.Param("resource")

	var snapshot any
	if topic == "messages" {
		room := c.Query("room")
		view, err := sess.Messages(c.Request.Context(), room)
		if err != nil {
			respondError(c, h.logger, logging.ChannelMessaging, "live_room", err)
			return
		}
		topic = session.MessagesTopic(view.Room())
		snapshot = view.Snapshot()
	} else {
		resource, found := sess.Resource(topic)
		if !found {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown resource " + topic})
			return
		}
		snapshot = resource.Snapshot()
	}

	initial, err := json.Marshal(messaging.Event{
		Type:     messaging.EventSnapshot,
		Resource: topic,
		Topic:    topic,
		Data:     snapshot,
		At:       time.Now().UnixMilli(),
	})
	if err != nil {
		respondError(c, h.logger, logging.ChannelMessaging, "live_snapshot", err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Messaging().Warn("Websocket upgrade failed", "topic", topic, "error", err)
		return
	}
	h.logger.Messaging().Debug("Live client connected", "uid", logging.MaskID(sess.UID()), "topic", topic)
	messaging.NewLiveClient(conn, h.hub, sess.UID(), topic, h.logger).Run(initial)
}

// GetLiveQR handles GET /api/v1/live/qr?id=. No token is needed; the
// display only ever sees the public status view.
func (h *LiveHandlers) GetLiveQR(c *gin.Context) {
	id := c.Query("id")
	view, err := h.qr.Status(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, logging.ChannelAuth, "live_qr", err)
		return
	}
	initial, err := json.Marshal(messaging.Event{
		Type:  messaging.EventStatus,
		Topic: qrTopic,
		Data:  view,
		At:    time.Now().UnixMilli(),
	})
	if err != nil {
		respondError(c, h.logger, logging.ChannelAuth, "live_qr", err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Auth().Warn("Websocket upgrade failed", "sessionId", id, "error", err)
		return
	}
	audience := qrAudience(id)
	client := messaging.NewLiveClient(conn, h.hub, audience, qrTopic, h.logger)
	stop := h.qr.Watch(id, func(v edu.QRStatusView) {
		h.hub.Publish(audience, qrTopic, messaging.Event{Type: messaging.EventStatus, Data: v})
	})
	defer stop()
	client.Run(initial)
}
