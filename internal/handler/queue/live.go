package queue

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/jwalitptl/queue-api/internal/livequeue"
	"github.com/jwalitptl/queue-api/internal/model"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512
)

// LiveConfig tunes the websocket endpoint.
type LiveConfig struct {
	ClientBuffer int
	PingInterval time.Duration
	// CheckOrigin defaults to allowing every origin.
	CheckOrigin func(r *http.Request) bool
}

func (c LiveConfig) withDefaults() LiveConfig {
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = func(*http.Request) bool { return true }
	}
	return c
}

// pongWait must exceed the ping interval so a healthy peer is never cut off.
func (c LiveConfig) pongWait() time.Duration {
	return c.PingInterval * 10 / 9
}

type subscribeMessage struct {
	DoctorID string `json:"doctorId"`
	Date     string `json:"date"`
}

type liveError struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

// Live upgrades to a websocket. The client sends {"doctorId","date"} to
// join that day's channel and receives current-patient-update events.
func (h *Handler) Live(c *gin.Context) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.live.CheckOrigin,
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn(err, "websocket upgrade failed", "ip", c.ClientIP())
		return
	}

	client := livequeue.NewClient(h.live.ClientBuffer)
	ctx, cancel := context.WithCancel(context.Background())

	go h.writePump(ctx, conn, client)
	h.readPump(ctx, conn, client)

	cancel()
	h.hub.Unsubscribe(client)
}

func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, client *livequeue.Client) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.live.pongWait()))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.live.pongWait()))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket closed", "error", err.Error())
			}
			return
		}

		var msg subscribeMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.DoctorID == "" {
			h.reply(client, liveError{Event: "error", Message: "expected {\"doctorId\",\"date\"}"})
			continue
		}
		day, err := model.ParseDate(msg.Date)
		if err != nil {
			h.reply(client, liveError{Event: "error", Message: "date must be a date in YYYY-MM-DD format"})
			continue
		}

		channel := h.hub.Subscribe(client, msg.DoctorID, day)

		// Late joiners start from the current counters.
		if snap, err := h.service.Status(ctx, msg.DoctorID, msg.Date); err == nil {
			h.reply(client, livequeue.Event{
				Channel: channel,
				Event:   livequeue.EventCurrentPatientUpdate,
				Data:    *snap,
			})
		}
	}
}

func (h *Handler) reply(client *livequeue.Client, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case client.Send <- data:
	default:
	}
}

func (h *Handler) writePump(ctx context.Context, conn *websocket.Conn, client *livequeue.Client) {
	ticker := time.NewTicker(h.live.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-client.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
